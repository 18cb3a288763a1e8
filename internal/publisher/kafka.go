package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// StockUpdate is one (item, new stock) pair published after a mutation batch.
type StockUpdate struct {
	ItemID   int64 `json:"item_id"`
	NewStock int64 `json:"new_stock"`
}

// KafkaStockPublisher publishes stock updates to a Kafka topic.
// Publishing is fire-and-forget: failures are logged and never retried.
type KafkaStockPublisher struct {
	writer *kafka.Writer
	log    *logrus.Logger
}

// NewKafkaStockPublisher creates a publisher for the given brokers and topic.
func NewKafkaStockPublisher(brokers []string, topic string, log *logrus.Logger) *KafkaStockPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
	return &KafkaStockPublisher{writer: writer, log: log}
}

// Publish sends the batch as one message keyed by order id.
func (p *KafkaStockPublisher) Publish(ctx context.Context, orderID string, updates []StockUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	payload, err := json.Marshal(updates)
	if err != nil {
		return fmt.Errorf("failed to marshal stock updates: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(orderID),
		Value: payload,
	})
	if err != nil {
		p.log.WithFields(logrus.Fields{
			"order_id": orderID,
			"updates":  len(updates),
		}).WithError(err).Error("failed to publish stock updates")
		return fmt.Errorf("failed to publish stock updates: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (p *KafkaStockPublisher) Close() error {
	return p.writer.Close()
}

package service

import (
	"context"

	"itemledger/internal/model"
	"itemledger/internal/repository"

	"github.com/sirupsen/logrus"
)

// CompensationFailure describes one entry that could not be reversed.
type CompensationFailure struct {
	EntryID int64  `json:"entry_id"`
	ItemID  int64  `json:"item_id"`
	Reason  string `json:"reason"`
}

// CompensationReport summarizes one compensation run.
type CompensationReport struct {
	OrderID  string                `json:"order_id"`
	Reversed int                   `json:"reversed"`
	Skipped  int                   `json:"skipped"`
	Failures []CompensationFailure `json:"failures,omitempty"`
}

// Compensator reverses the applied stock decrements of a failed order,
// using the stock update log as source of truth.
type Compensator struct {
	stock    *StockService
	stockLog repository.StockLogRepository
	log      *logrus.Logger
}

// NewCompensator creates a compensation coordinator.
func NewCompensator(stock *StockService, stockLog repository.StockLogRepository, log *logrus.Logger) *Compensator {
	return &Compensator{stock: stock, stockLog: stockLog, log: log}
}

// Compensate re-adds stock for every SUCCEEDED log entry of the order and
// marks each reversed. Entries are handled independently: a failure on one
// is reported and the loop continues, so partial compensation is preserved.
// Marking happens only after a successful increase, which makes the whole
// run safe to retry: a second invocation sees already-REVERSED entries and
// skips them.
func (c *Compensator) Compensate(ctx context.Context, orderID string) (*CompensationReport, error) {
	entries, err := c.stockLog.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	report := &CompensationReport{OrderID: orderID}
	for _, entry := range entries {
		if entry.Outcome != model.OutcomeSucceeded {
			report.Skipped++
			continue
		}

		if _, err := c.stock.Increase(ctx, entry.ItemID, entry.Quantity); err != nil {
			c.log.WithFields(logrus.Fields{
				"order_id": orderID,
				"entry_id": entry.ID,
				"item_id":  entry.ItemID,
			}).WithError(err).Error("failed to reverse stock decrement")
			report.Failures = append(report.Failures, CompensationFailure{
				EntryID: entry.ID, ItemID: entry.ItemID, Reason: err.Error(),
			})
			continue
		}

		if err := c.stockLog.MarkReversed(ctx, entry.ID); err != nil {
			// Stock is already re-added; losing the transition would allow a
			// double reversal on retry, so this failure must be visible.
			c.log.WithFields(logrus.Fields{
				"order_id": orderID,
				"entry_id": entry.ID,
				"item_id":  entry.ItemID,
			}).WithError(err).Error("failed to mark entry reversed after increase")
			report.Failures = append(report.Failures, CompensationFailure{
				EntryID: entry.ID, ItemID: entry.ItemID, Reason: err.Error(),
			})
			continue
		}

		report.Reversed++
	}

	c.log.WithFields(logrus.Fields{
		"order_id": orderID,
		"reversed": report.Reversed,
		"skipped":  report.Skipped,
		"failures": len(report.Failures),
	}).Info("compensation run complete")
	return report, nil
}

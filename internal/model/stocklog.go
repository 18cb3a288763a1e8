package model

import "time"

// Outcome is the recorded result of one stock mutation attempt.
type Outcome string

const (
	OutcomeSucceeded Outcome = "SUCCEEDED"
	OutcomeFailed    Outcome = "FAILED"
	OutcomeReversed  Outcome = "REVERSED"
)

// StockLogEntry is one appended record of a stock mutation attempt.
// Entries are immutable once written; the single permitted transition is
// SUCCEEDED -> REVERSED, applied at most once per entry.
type StockLogEntry struct {
	ID        int64     `json:"id"`
	OrderID   string    `json:"order_id"`
	ItemID    int64     `json:"item_id"`
	Quantity  int64     `json:"quantity"`
	Outcome   Outcome   `json:"outcome"`
	CreatedAt time.Time `json:"created_at"`
}

package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Shop represents a physical store that owns items.
type Shop struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Location  string    `json:"location"`
	CreatedAt time.Time `json:"created_at"`
}

// Item represents a sellable item. Stock is owned exclusively by this record;
// it is never cached or duplicated elsewhere and never observed negative.
type Item struct {
	ID        int64           `json:"id"`
	ShopID    int64           `json:"shop_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Stock     int64           `json:"stock"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// CanDecrease reports whether removing quantity keeps stock non-negative.
func (i *Item) CanDecrease(quantity int64) bool {
	return i.Stock >= quantity
}

// Decrease removes quantity from stock. Callers must check CanDecrease first.
func (i *Item) Decrease(quantity int64) {
	i.Stock -= quantity
	i.UpdatedAt = time.Now()
}

// Increase adds quantity to stock. No upper bound.
func (i *Item) Increase(quantity int64) {
	i.Stock += quantity
	i.UpdatedAt = time.Now()
}

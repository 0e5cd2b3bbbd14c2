package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartLine is one product line of the active cart. Name, UnitPrice and
// AvailableStock are captured when the product is first added and are not
// re-synced from the catalogue afterwards.
type CartLine struct {
	ProductID      string          `json:"product_id"`
	Name           string          `json:"name"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	Quantity       int             `json:"quantity"`
	ImageRef       string          `json:"image_ref"`
	AvailableStock int             `json:"available_stock"`
}

// Subtotal is UnitPrice * Quantity.
func (l CartLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// CartCandidate is what a shopper asks to add: a catalogue snapshot without a quantity.
type CartCandidate struct {
	ProductID      string
	Name           string
	UnitPrice      decimal.Decimal
	ImageRef       string
	AvailableStock int
}

// Cart is the persisted document: the whole line collection of one session.
type Cart struct {
	SessionID string     `json:"session_id"`
	Lines     []CartLine `json:"lines"`
	UpdatedAt time.Time  `json:"updated_at"`
}

package models

import "github.com/shopspring/decimal"

// CartLine is one product in the local cart. Name and price are snapshots taken
// when the product was added, so the cart still renders after catalog edits.
type CartLine struct {
	ProductID ID              `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Qty       int             `json:"qty"`
}

// LineTotal is price times quantity.
func (l CartLine) LineTotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Qty)))
}

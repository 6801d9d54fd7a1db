// Package cart is the client-only cart persisted under the "cart" storage key.
// Every mutation reads the stored list, applies the change and writes the whole
// list back before returning.
package cart

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/shopspring/decimal"

	"gitlab.connectwisedev.com/storefront/models"
	"gitlab.connectwisedev.com/storefront/pkg/apperr"
	"gitlab.connectwisedev.com/storefront/pkg/storage"
)

var hundred = decimal.NewFromInt(100)

// Pricing holds the cart's tax and shipping policy.
type Pricing struct {
	TaxPercent  decimal.Decimal
	ShippingFee decimal.Decimal
}

// DefaultPricing is 18% GST and free shipping.
var DefaultPricing = Pricing{
	TaxPercent:  decimal.NewFromInt(18),
	ShippingFee: decimal.Zero,
}

// Totals is the bill for a set of lines.
type Totals struct {
	Items    int
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Shipping decimal.Decimal
	Total    decimal.Decimal
}

// Bill computes totals for an already known subtotal.
func (p Pricing) Bill(subtotal decimal.Decimal) Totals {
	tax := subtotal.Mul(p.TaxPercent).Div(hundred)
	return Totals{
		Subtotal: subtotal,
		Tax:      tax,
		Shipping: p.ShippingFee,
		Total:    subtotal.Add(tax).Add(p.ShippingFee),
	}
}

// Cart is safe for concurrent use within a process. Across processes the last
// whole-list write wins.
type Cart struct {
	store   storage.Store
	pricing Pricing
	mu      sync.Mutex
}

func New(st storage.Store, pricing Pricing) *Cart {
	return &Cart{store: st, pricing: pricing}
}

// Lines returns the stored lines. A corrupt value reads as an empty cart.
func (c *Cart) Lines(ctx context.Context) ([]models.CartLine, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.load(ctx)
}

// AddOrMerge adds qty units of p. An existing line for the same product has its
// quantity increased; otherwise a new line snapshots the product's name and price.
func (c *Cart) AddOrMerge(ctx context.Context, p models.Product, qty int) error {
	if qty < 1 {
		qty = 1
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	lines, err := c.load(ctx)
	if err != nil {
		return err
	}
	for i := range lines {
		if lines[i].ProductID == p.ID {
			lines[i].Qty += qty
			return c.save(ctx, lines)
		}
	}
	lines = append(lines, models.CartLine{
		ProductID: p.ID,
		Name:      p.Name,
		Price:     p.Price,
		Qty:       qty,
	})
	return c.save(ctx, lines)
}

// SetQuantity sets a line's quantity, clamped to at least 1. Unknown ids are ignored.
func (c *Cart) SetQuantity(ctx context.Context, id models.ID, qty int) error {
	if qty < 1 {
		qty = 1
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	lines, err := c.load(ctx)
	if err != nil {
		return err
	}
	for i := range lines {
		if lines[i].ProductID == id {
			lines[i].Qty = qty
			return c.save(ctx, lines)
		}
	}
	return nil
}

// Remove deletes a line. Unknown ids are ignored.
func (c *Cart) Remove(ctx context.Context, id models.ID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	lines, err := c.load(ctx)
	if err != nil {
		return err
	}
	out := lines[:0]
	found := false
	for _, l := range lines {
		if l.ProductID == id {
			found = true
			continue
		}
		out = append(out, l)
	}
	if !found {
		return nil
	}
	return c.save(ctx, out)
}

// Clear empties the cart.
func (c *Cart) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.save(ctx, []models.CartLine{})
}

// Totals returns the bill for the stored lines.
func (c *Cart) Totals(ctx context.Context) (Totals, error) {
	lines, err := c.Lines(ctx)
	if err != nil {
		return Totals{}, err
	}
	return c.TotalsFor(lines), nil
}

// TotalsFor bills the given lines with the cart's pricing.
func (c *Cart) TotalsFor(lines []models.CartLine) Totals {
	subtotal := decimal.Zero
	items := 0
	for _, l := range lines {
		subtotal = subtotal.Add(l.LineTotal())
		items += l.Qty
	}
	t := c.pricing.Bill(subtotal)
	t.Items = items
	return t
}

// Pricing returns the cart's tax and shipping policy.
func (c *Cart) Pricing() Pricing {
	return c.pricing
}

func (c *Cart) load(ctx context.Context) ([]models.CartLine, error) {
	var stored []models.CartLine
	if err := storage.ReadJSON(ctx, c.store, storage.KeyCart, &stored); err != nil {
		if !errors.Is(err, apperr.ErrMalformedCache) {
			return nil, err
		}
		log.Printf("Ignoring stored cart: %v", err)
		return []models.CartLine{}, nil
	}
	return normalize(stored), nil
}

func (c *Cart) save(ctx context.Context, lines []models.CartLine) error {
	if err := storage.WriteJSON(ctx, c.store, storage.KeyCart, lines); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}

// normalize repairs lines written by older clients: quantities below 1 become
// 1 and duplicate product ids are merged into the first line.
func normalize(lines []models.CartLine) []models.CartLine {
	out := make([]models.CartLine, 0, len(lines))
	index := make(map[models.ID]int, len(lines))
	for _, l := range lines {
		if l.ProductID == "" {
			continue
		}
		if l.Qty < 1 {
			l.Qty = 1
		}
		if i, ok := index[l.ProductID]; ok {
			out[i].Qty += l.Qty
			continue
		}
		index[l.ProductID] = len(out)
		out = append(out, l)
	}
	return out
}

// Package account is the signed-in customer's order history.
package account

import (
	"context"
	"log"
	"strings"
	"sync"

	"gitlab.connectwisedev.com/storefront/models"
	"gitlab.connectwisedev.com/storefront/pkg/apperr"
	"gitlab.connectwisedev.com/storefront/pkg/cart"
)

const (
	LoadFailed    = "Failed to load orders"
	LoginRequired = "Please login to view your orders"
)

// OrderSource lists a customer's orders.
type OrderSource interface {
	ListOrdersFor(ctx context.Context, email string) ([]models.Order, error)
}

// Snapshot is the history as a view renders it. Err is the banner for the last
// failed load; Orders still holds the last list that loaded.
type Snapshot struct {
	Email    string
	Orders   []models.Order
	Selected *models.Order
	Loaded   bool
	Err      error
}

// History caches the last good order list per signed-in email.
type History struct {
	src     OrderSource
	pricing cart.Pricing

	mu       sync.Mutex
	email    string
	orders   []models.Order
	loaded   bool
	selected models.ID
	lastErr  error
}

func New(src OrderSource, pricing cart.Pricing) *History {
	return &History{src: src, pricing: pricing}
}

// Load fetches the orders for p. A failed fetch keeps the previous list for
// the same email and records the error for the banner. Switching to a
// different email drops the old list first.
func (h *History) Load(ctx context.Context, p models.Profile) (Snapshot, error) {
	email := strings.TrimSpace(p.Email)
	if email == "" {
		return Snapshot{}, apperr.NoCredential(LoginRequired)
	}

	h.mu.Lock()
	if !strings.EqualFold(h.email, email) {
		h.email = email
		h.orders = nil
		h.loaded = false
		h.selected = ""
		h.lastErr = nil
	}
	h.mu.Unlock()

	orders, err := h.src.ListOrdersFor(ctx, email)

	h.mu.Lock()
	defer h.mu.Unlock()
	if !strings.EqualFold(h.email, email) {
		// signed in as someone else while loading
		return h.snapshotLocked(), ctx.Err()
	}
	if err != nil {
		log.Printf("Failed to load orders for %s: %v", email, err)
		h.lastErr = err
		return h.snapshotLocked(), err
	}
	h.orders = orders
	h.loaded = true
	h.lastErr = nil
	if _, ok := h.findLocked(h.selected); !ok {
		h.selected = ""
		if len(orders) > 0 {
			h.selected = orders[0].ID
		}
	}
	return h.snapshotLocked(), nil
}

// Select marks an order as selected. It reports false for unknown ids.
func (h *History) Select(id models.ID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.findLocked(id); !ok {
		return false
	}
	h.selected = id
	return true
}

func (h *History) Snapshot() Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snapshotLocked()
}

// Bill treats the order's total_amount as the pre-tax subtotal.
func (h *History) Bill(o models.Order) cart.Totals {
	t := h.pricing.Bill(o.TotalAmount)
	t.Items = o.Quantity
	return t
}

// Banner is the message shown above the list, or "" when the last load succeeded.
func Banner(s Snapshot) string {
	if s.Err == nil {
		return ""
	}
	return apperr.Message(s.Err, LoadFailed)
}

func (h *History) snapshotLocked() Snapshot {
	s := Snapshot{
		Email:  h.email,
		Orders: append([]models.Order(nil), h.orders...),
		Loaded: h.loaded,
		Err:    h.lastErr,
	}
	if i, ok := h.findLocked(h.selected); ok {
		o := h.orders[i]
		s.Selected = &o
	}
	return s
}

func (h *History) findLocked(id models.ID) (int, bool) {
	if id == "" {
		return 0, false
	}
	for i, o := range h.orders {
		if o.ID == id {
			return i, true
		}
	}
	return 0, false
}

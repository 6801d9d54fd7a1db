// Package checkout drives order submission: it validates the shipping form,
// builds the order and submits it through the gateway. The form is never
// discarded on failure.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"gitlab.connectwisedev.com/storefront/models"
	"gitlab.connectwisedev.com/storefront/pkg/apperr"
	"gitlab.connectwisedev.com/storefront/pkg/cart"
)

const (
	SuccessMessage  = "✅ Order placed! You will receive an email once the admin confirms your order."
	FailureMessage  = "Failed to place order. Please try again."
	LoginRequired   = "Please login to place an order!"
	invalidQuantity = "Please select a valid quantity"
)

// ErrInFlight is returned when Submit is called while a submission is running.
var ErrInFlight = errors.New("checkout: order submission already in progress")

// State of a Flow. A failed submission returns the flow to Idle.
type State int

const (
	Idle State = iota
	Validating
	Submitting
	Succeeded
)

func (s State) String() string {
	switch s {
	case Validating:
		return "validating"
	case Submitting:
		return "submitting"
	case Succeeded:
		return "succeeded"
	default:
		return "idle"
	}
}

// OrderCreator is the gateway operation the flow submits through.
type OrderCreator interface {
	CreateOrder(ctx context.Context, order models.Order, idempotencyKey string) (models.Order, error)
}

// Flow holds one checkout form and its submission state. It is safe for
// concurrent use; a second Submit while one is running fails with ErrInFlight.
type Flow struct {
	orders OrderCreator
	newKey func() string

	mu      sync.Mutex
	state   State
	form    models.ShippingForm
	message string
	err     error
}

// Option customizes a Flow.
type Option func(*Flow)

// WithKeyFunc replaces the idempotency key generator.
func WithKeyFunc(fn func() string) Option {
	return func(f *Flow) { f.newKey = fn }
}

func New(orders OrderCreator, opts ...Option) *Flow {
	f := &Flow{
		orders: orders,
		newKey: func() string { return uuid.New().String() },
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// RequireProfile fails with a NoCredential error when nobody is signed in.
func RequireProfile(p models.Profile, ok bool) error {
	if !ok || p.Email == "" {
		return apperr.NoCredential(LoginRequired)
	}
	return nil
}

// Prefill copies the signed-in user's name and email into empty form fields.
func (f *Flow) Prefill(p models.Profile) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.form.FullName == "" {
		f.form.FullName = p.Name
	}
	if f.form.Email == "" {
		f.form.Email = p.Email
	}
}

// SetForm replaces the form. It is ignored while a submission is running.
func (f *Flow) SetForm(form models.ShippingForm) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == Submitting {
		return
	}
	f.form = form
	if f.state == Succeeded {
		f.state = Idle
	}
}

func (f *Flow) Form() models.ShippingForm {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.form
}

func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Message is the last user-facing outcome: a validation message, the server's
// error detail, or the confirmation.
func (f *Flow) Message() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.message
}

// Err is the error of the last failed attempt, or nil.
func (f *Flow) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// Busy reports whether submit controls should be disabled.
func (f *Flow) Busy() bool {
	return f.State() == Submitting
}

// Submit places an order for qty units of p using the current form.
func (f *Flow) Submit(ctx context.Context, p models.Product, qty int) (models.Order, error) {
	form, err := f.begin(qty)
	if err != nil {
		return models.Order{}, err
	}

	created, err := f.orders.CreateOrder(ctx, models.NewOrder(p, qty, form), f.newKey())
	if err != nil {
		f.fail(err)
		return models.Order{}, err
	}
	f.succeed()
	log.Printf("Order placed for product %s (qty %d)", p.ID, qty)
	return created, nil
}

// CartResult reports a whole-cart checkout. Placed lines have been removed
// from the cart; failed lines are still in it.
type CartResult struct {
	Placed []models.Order
	Failed []LineError
}

// LineError is a cart line whose order was rejected.
type LineError struct {
	Line models.CartLine
	Err  error
}

func (e LineError) Error() string {
	return fmt.Sprintf("%s: %v", e.Line.Name, e.Err)
}

// SubmitCart places one order per cart line, each with its own idempotency key.
// Lines are removed from the cart as their orders succeed, so a retry only
// resubmits what failed.
func (f *Flow) SubmitCart(ctx context.Context, c *cart.Cart) (CartResult, error) {
	lines, err := c.Lines(ctx)
	if err != nil {
		return CartResult{}, err
	}
	if len(lines) == 0 {
		return CartResult{}, apperr.Validation("cart", "Your cart is empty")
	}
	form, err := f.begin(1)
	if err != nil {
		return CartResult{}, err
	}

	var res CartResult
	for _, l := range lines {
		p := models.Product{ID: l.ProductID, Name: l.Name, Price: l.Price}
		created, err := f.orders.CreateOrder(ctx, models.NewOrder(p, l.Qty, form), f.newKey())
		if err != nil {
			res.Failed = append(res.Failed, LineError{Line: l, Err: err})
			continue
		}
		res.Placed = append(res.Placed, created)
		if err := c.Remove(ctx, l.ProductID); err != nil {
			log.Printf("Failed to remove ordered line %s from cart: %v", l.ProductID, err)
		}
	}

	if len(res.Failed) > 0 {
		err := res.Failed[0].Err
		f.fail(err)
		return res, err
	}
	f.succeed()
	log.Printf("Cart checkout placed %d orders", len(res.Placed))
	return res, nil
}

// begin validates the form and moves to Submitting, returning a copy of the form.
func (f *Flow) begin(qty int) (models.ShippingForm, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == Submitting {
		return models.ShippingForm{}, ErrInFlight
	}

	f.state = Validating
	err := Validate(f.form)
	if err == nil && qty < 1 {
		err = apperr.Validation("quantity", invalidQuantity)
	}
	if err != nil {
		f.state = Idle
		f.err = err
		f.message = apperr.Message(err, FailureMessage)
		return models.ShippingForm{}, err
	}

	f.state = Submitting
	f.err = nil
	f.message = ""
	return f.form, nil
}

func (f *Flow) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = Idle
	f.err = err
	f.message = apperr.Message(err, FailureMessage)
	log.Printf("Order submission failed: %v", err)
}

func (f *Flow) succeed() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = Succeeded
	f.err = nil
	f.message = SuccessMessage
	f.form = models.ShippingForm{}
}

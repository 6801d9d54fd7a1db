// Package admin is the admin dashboard: product CRUD and order approval on
// behalf of the signed-in admin. The role check here is advisory; every call
// carries the session token and the backend authorizes it.
package admin

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"gitlab.connectwisedev.com/storefront/models"
	"gitlab.connectwisedev.com/storefront/pkg/apperr"
	"gitlab.connectwisedev.com/storefront/pkg/catalog"
	"gitlab.connectwisedev.com/storefront/pkg/gateway"
	"gitlab.connectwisedev.com/storefront/pkg/storage"
)

const (
	AccessDenied = "Access denied. Admin privileges required."
	NotPending   = "Only pending orders can be approved"
)

// API is the admin half of the gateway.
type API interface {
	AdminListProducts(ctx context.Context, token string) ([]models.Product, error)
	AdminCreateProduct(ctx context.Context, form gateway.ProductForm, token string) (models.Product, error)
	AdminUpdateProduct(ctx context.Context, id models.ID, form gateway.ProductForm, token string) (models.Product, error)
	AdminDeleteProduct(ctx context.Context, id models.ID, token string) error
	AdminListOrders(ctx context.Context, token string) ([]models.Order, error)
	ApproveOrder(ctx context.Context, id models.ID, token string) error
}

// Session resolves the bearer token and the advisory role.
type Session interface {
	Token(ctx context.Context) (string, error)
	IsAdmin(ctx context.Context) bool
}

// Dashboard caches the last loaded orders and products.
type Dashboard struct {
	api     API
	session Session
	store   storage.Store
	now     func() time.Time

	mu       sync.Mutex
	orders   []models.Order
	products []models.Product
}

// Option customizes a Dashboard.
type Option func(*Dashboard)

func WithClock(now func() time.Time) Option {
	return func(d *Dashboard) { d.now = now }
}

// New returns a dashboard. store receives the products-changed marker after
// every catalog mutation.
func New(api API, session Session, store storage.Store, opts ...Option) *Dashboard {
	d := &Dashboard{api: api, session: session, store: store, now: time.Now}
	for _, o := range opts {
		o(d)
	}
	return d
}

// NeedsLogin reports whether err should send the user back to a login screen
// rather than be shown as an error.
func NeedsLogin(err error) bool {
	if errors.Is(err, apperr.ErrNoCredential) {
		return true
	}
	switch apperr.Status(err) {
	case http.StatusUnauthorized, http.StatusForbidden:
		return true
	}
	return false
}

// CheckAccess gates the dashboard on the advisory role claim.
func (d *Dashboard) CheckAccess(ctx context.Context) error {
	if !d.session.IsAdmin(ctx) {
		return apperr.NoCredential(AccessDenied)
	}
	return nil
}

func (d *Dashboard) Orders(ctx context.Context) ([]models.Order, error) {
	token, err := d.session.Token(ctx)
	if err != nil {
		return nil, err
	}
	orders, err := d.api.AdminListOrders(ctx, token)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	d.orders = orders
	d.mu.Unlock()
	return orders, nil
}

func (d *Dashboard) Products(ctx context.Context) ([]models.Product, error) {
	token, err := d.session.Token(ctx)
	if err != nil {
		return nil, err
	}
	products, err := d.api.AdminListProducts(ctx, token)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	d.products = products
	d.mu.Unlock()
	return products, nil
}

// CreateProduct validates the form before resolving a token, so an incomplete
// form never triggers a token exchange.
func (d *Dashboard) CreateProduct(ctx context.Context, form gateway.ProductForm) (models.Product, error) {
	if err := form.Validate(true); err != nil {
		return models.Product{}, err
	}
	token, err := d.session.Token(ctx)
	if err != nil {
		return models.Product{}, err
	}
	p, err := d.api.AdminCreateProduct(ctx, form, token)
	if err != nil {
		return models.Product{}, err
	}
	log.Printf("Product %q created", form.Name)
	d.catalogChanged(ctx)
	return p, nil
}

func (d *Dashboard) UpdateProduct(ctx context.Context, id models.ID, form gateway.ProductForm) (models.Product, error) {
	if err := form.Validate(false); err != nil {
		return models.Product{}, err
	}
	token, err := d.session.Token(ctx)
	if err != nil {
		return models.Product{}, err
	}
	p, err := d.api.AdminUpdateProduct(ctx, id, form, token)
	if err != nil {
		return models.Product{}, err
	}
	log.Printf("Product %s updated", id)
	d.catalogChanged(ctx)
	return p, nil
}

func (d *Dashboard) DeleteProduct(ctx context.Context, id models.ID) error {
	token, err := d.session.Token(ctx)
	if err != nil {
		return err
	}
	if err := d.api.AdminDeleteProduct(ctx, id, token); err != nil {
		return err
	}
	log.Printf("Product %s deleted", id)
	d.mu.Lock()
	d.products = removeProduct(d.products, id)
	d.mu.Unlock()
	d.catalogChanged(ctx)
	return nil
}

// Approve confirms a pending order and reloads the order list. Orders already
// known to be past pending are rejected locally.
func (d *Dashboard) Approve(ctx context.Context, id models.ID) error {
	if o, ok := d.cachedOrder(id); ok && !o.IsPending() {
		return apperr.Validation("status", NotPending)
	}
	token, err := d.session.Token(ctx)
	if err != nil {
		return err
	}
	if err := d.api.ApproveOrder(ctx, id, token); err != nil {
		return err
	}
	log.Printf("Order %s approved", id)
	if _, err := d.Orders(ctx); err != nil {
		log.Printf("Failed to reload orders after approval: %v", err)
	}
	return nil
}

// Cached returns the last loaded orders and products without a network call.
func (d *Dashboard) Cached() ([]models.Order, []models.Product) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]models.Order(nil), d.orders...), append([]models.Product(nil), d.products...)
}

func (d *Dashboard) cachedOrder(id models.ID) (models.Order, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, o := range d.orders {
		if o.ID == id {
			return o, true
		}
	}
	return models.Order{}, false
}

// catalogChanged tells other processes to refresh their catalog. A failure is
// logged; the mutation itself already succeeded.
func (d *Dashboard) catalogChanged(ctx context.Context) {
	if d.store == nil {
		return
	}
	if err := catalog.NotifyChanged(ctx, d.store, d.now()); err != nil {
		log.Printf("Failed to signal catalog change: %v", err)
	}
}

func removeProduct(products []models.Product, id models.ID) []models.Product {
	out := make([]models.Product, 0, len(products))
	for _, p := range products {
		if p.ID != id {
			out = append(out, p)
		}
	}
	return out
}

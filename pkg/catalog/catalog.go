// Package catalog holds the last known product list. It serves the persisted
// copy immediately, refreshes from the backend in the background, and never
// replaces good data with a failure.
package catalog

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"gitlab.connectwisedev.com/storefront/models"
	"gitlab.connectwisedev.com/storefront/pkg/storage"
)

// Source is the backend read the catalog refreshes from.
type Source interface {
	ListProducts(ctx context.Context) ([]models.Product, error)
}

// Snapshot is what a view renders.
type Snapshot struct {
	Products []models.Product
	// Loaded is true once a refresh has succeeded in this process.
	Loaded bool
	// Err is the last refresh failure. It is only reported while Products
	// is empty; with data on screen failures stay silent.
	Err         error
	LastUpdated time.Time
}

// Catalog is the product cache and view model for one mounted view.
type Catalog struct {
	src     Source
	store   storage.Store
	baseURL string

	mu          sync.RWMutex
	products    []models.Product
	loaded      bool
	lastErr     error
	lastUpdated time.Time

	group singleflight.Group

	// ctx lives until Close; results arriving after that are dropped.
	ctx    context.Context
	cancel context.CancelFunc
}

func New(src Source, store storage.Store, baseURL string) *Catalog {
	ctx, cancel := context.WithCancel(context.Background())
	return &Catalog{
		src:     src,
		store:   store,
		baseURL: baseURL,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Mount loads the persisted list synchronously and starts a background
// refresh. The returned channel receives the refresh result and is closed.
func (c *Catalog) Mount(ctx context.Context) ([]models.Product, <-chan error) {
	cached := c.loadCached(ctx)

	c.mu.Lock()
	if !c.loaded && len(c.products) == 0 {
		c.products = cached
	}
	out := clone(c.products)
	c.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		defer close(done)
		done <- c.Refresh(ctx)
	}()
	return out, done
}

// Refresh fetches the catalog. Concurrent calls share one backend request.
// On failure the current list is kept.
func (c *Catalog) Refresh(ctx context.Context) error {
	ch := c.group.DoChan("products", func() (interface{}, error) {
		return c.src.ListProducts(c.ctx)
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return ctx.Err()
	case res = <-ch:
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ctx.Err() != nil {
		return fmt.Errorf("catalog closed")
	}
	if res.Err != nil {
		c.lastErr = res.Err
		if len(c.products) > 0 {
			log.Printf("Product refresh failed, keeping %d cached products: %v", len(c.products), res.Err)
		}
		return res.Err
	}

	products := models.NormalizeImages(res.Val.([]models.Product), c.baseURL)
	c.products = products
	c.loaded = true
	c.lastErr = nil
	c.lastUpdated = time.Now()

	if err := storage.WriteJSON(ctx, c.store, storage.KeyCachedProducts, products); err != nil {
		log.Printf("Failed to persist product cache: %v", err)
	}
	return nil
}

// Focus is called when the view regains focus.
func (c *Catalog) Focus(ctx context.Context) error {
	return c.Refresh(ctx)
}

// Products returns the current list in backend order.
func (c *Catalog) Products() []models.Product {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return clone(c.products)
}

// Snapshot returns the current state for rendering.
func (c *Catalog) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := Snapshot{
		Products:    clone(c.products),
		Loaded:      c.loaded,
		LastUpdated: c.lastUpdated,
	}
	if len(c.products) == 0 {
		s.Err = c.lastErr
	}
	return s
}

// View returns the storefront ordering of the current list.
func (c *Catalog) View() []models.Product {
	return SortedView(c.Products())
}

// Get returns a product from the current list.
func (c *Catalog) Get(id models.ID) (models.Product, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, p := range c.products {
		if p.ID == id {
			return p, true
		}
	}
	return models.Product{}, false
}

// Close detaches the catalog from its view. In-flight refreshes are cancelled
// and late results are discarded.
func (c *Catalog) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancel()
}

// Watch refreshes whenever the products-changed marker moves, either through
// a pushed signal from a Notifier store or by polling every interval.
// It returns when ctx is done or the catalog is closed.
func (c *Catalog) Watch(ctx context.Context, interval time.Duration) {
	last := c.marker(ctx)

	var signals <-chan string
	if n, ok := c.store.(storage.Notifier); ok {
		ch, err := n.Subscribe(ctx, storage.ChannelProductsUpdated)
		if err != nil {
			log.Printf("Products change signal unavailable, polling only: %v", err)
		} else {
			signals = ch
		}
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.ctx.Done():
			return
		case _, ok := <-signals:
			if !ok {
				signals = nil
				continue
			}
			last = c.marker(ctx)
			c.refreshLogged(ctx)
		case <-ticker.C:
			if m := c.marker(ctx); m != last {
				last = m
				c.refreshLogged(ctx)
			}
		}
	}
}

func (c *Catalog) refreshLogged(ctx context.Context) {
	if err := c.Refresh(ctx); err != nil && ctx.Err() == nil {
		log.Printf("Product refresh after change signal failed: %v", err)
	}
}

func (c *Catalog) marker(ctx context.Context) string {
	v, _, err := c.store.Get(ctx, storage.KeyProductsUpdated)
	if err != nil {
		log.Printf("Failed to read products marker: %v", err)
	}
	return v
}

func (c *Catalog) loadCached(ctx context.Context) []models.Product {
	var cached []models.Product
	if err := storage.ReadJSON(ctx, c.store, storage.KeyCachedProducts, &cached); err != nil {
		log.Printf("Ignoring cached products: %v", err)
		return nil
	}
	return models.NormalizeImages(cached, c.baseURL)
}

// NotifyChanged records that the catalog changed so other processes refresh:
// it writes the marker key and, when the store supports it, publishes a signal.
func NotifyChanged(ctx context.Context, st storage.Store, now time.Time) error {
	stamp := strconv.FormatInt(now.UnixMilli(), 10)
	if err := st.Set(ctx, storage.KeyProductsUpdated, stamp); err != nil {
		return fmt.Errorf("write products marker: %w", err)
	}
	if n, ok := st.(storage.Notifier); ok {
		if err := n.Publish(ctx, storage.ChannelProductsUpdated, stamp); err != nil {
			log.Printf("Failed to publish products change: %v", err)
		}
	}
	return nil
}

// SortedView places every priority 1 product first and keeps the relative
// order of everything else. The input is not modified.
func SortedView(products []models.Product) []models.Product {
	out := clone(products)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority == 1 && out[j].Priority != 1
	})
	return out
}

func clone(products []models.Product) []models.Product {
	if products == nil {
		return nil
	}
	out := make([]models.Product, len(products))
	copy(out, products)
	return out
}

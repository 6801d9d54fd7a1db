// Package storage is the persistent client-side key/value state shared by every
// storefront process: the cart, the cached catalog, tokens and the profile.
//
// Every key is written as a whole value; there are no partial patches. Readers
// must tolerate missing or malformed values (see ReadJSON).
package storage

import (
	"context"
	"errors"
)

// Well-known keys.
const (
	KeyCart            = "cart"
	KeyCachedProducts  = "cachedProducts"
	KeyUserToken       = "userToken"
	KeyAdminToken      = "adminToken"
	KeyUserData        = "userData"
	KeyProductsUpdated = "productsUpdated"
)

// ChannelProductsUpdated is the change signal published after admin catalog edits.
const ChannelProductsUpdated = "storefront:productsUpdated"

// ErrClosed is returned by stores used after Close.
var ErrClosed = errors.New("storage: store is closed")

// Store is a string key/value store.
type Store interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set replaces the value for key.
	Set(ctx context.Context, key, value string) error
	// Delete removes all keys in one atomic step. Missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

// Notifier is implemented by stores that can push change signals to other processes.
type Notifier interface {
	Publish(ctx context.Context, channel, message string) error
	// Subscribe delivers messages until ctx is done.
	Subscribe(ctx context.Context, channel string) (<-chan string, error)
}

package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"gitlab.connectwisedev.com/storefront/pkg/apperr"
)

// ReadJSON decodes the value stored under key into v. A missing key leaves v
// untouched and returns nil. A value that does not decode returns an
// apperr.KindMalformedCache error; callers log it and fall back to a default.
func ReadJSON(ctx context.Context, s Store, key string, v interface{}) error {
	raw, ok, err := s.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("read %s: %w", key, err)
	}
	if !ok || raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return apperr.MalformedCache(key, err)
	}
	return nil
}

// WriteJSON replaces the value under key with the JSON encoding of v.
func WriteJSON(ctx context.Context, s Store, key string, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.Set(ctx, key, string(b)); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

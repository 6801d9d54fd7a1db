package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOfThroughWrapping(t *testing.T) {
	err := fmt.Errorf("list products: %w", Remote(502, "bad gateway"))

	assert.Equal(t, KindRemote, KindOf(err))
	assert.Equal(t, 502, Status(err))
	assert.True(t, errors.Is(err, ErrRemote))
	assert.False(t, errors.Is(err, ErrNetwork))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
}

func TestRemoteFallsBackToGenericDetail(t *testing.T) {
	assert.Equal(t, GenericDetail, Remote(500, "").Error())
}

func TestMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"remote detail verbatim", Remote(400, "Product out of stock"), "Product out of stock"},
		{"validation", Validation("pincode", "Please enter a valid 6-digit pincode"), "Please enter a valid 6-digit pincode"},
		{"generic remote detail uses fallback", Remote(502, ""), "Failed to place order. Please try again."},
		{"network uses fallback", Network(errors.New("dial tcp: refused")), "Failed to place order. Please try again."},
		{"plain error uses fallback", errors.New("boom"), "Failed to place order. Please try again."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Message(tt.err, "Failed to place order. Please try again."))
		})
	}
}

func TestNoCredentialIs(t *testing.T) {
	err := fmt.Errorf("approve order: %w", NoCredential("Admin token missing. Please login again as admin."))
	assert.ErrorIs(t, err, ErrNoCredential)
	assert.Equal(t, "Admin token missing. Please login again as admin.", err.(interface{ Unwrap() error }).Unwrap().Error())
}

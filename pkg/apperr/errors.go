// Package apperr defines the single error type the storefront client produces at
// its boundaries. Downstream code switches on Kind instead of probing fields.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an Error.
type Kind int

const (
	KindUnknown Kind = iota
	// KindNetwork is a transport failure with no HTTP response.
	KindNetwork
	// KindRemote is a non-2xx HTTP response.
	KindRemote
	// KindValidation is a client-side form check failure.
	KindValidation
	// KindNoCredential means auth was required but no usable token exists.
	KindNoCredential
	// KindMalformedCache is a corrupt stored value. It is always recovered from
	// by falling back to a default and never shown to the user.
	KindMalformedCache
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindRemote:
		return "remote"
	case KindValidation:
		return "validation"
	case KindNoCredential:
		return "no_credential"
	case KindMalformedCache:
		return "malformed_cache"
	default:
		return "unknown"
	}
}

// GenericDetail is used when a failed response carries no readable detail.
const GenericDetail = "request failed"

// Error is the tagged storefront error.
type Error struct {
	Kind Kind
	// Status is the HTTP status for KindRemote.
	Status int
	// Detail is the user-facing message.
	Detail string
	// Field names the failing form field for KindValidation.
	Field string
	// Key names the storage key for KindMalformedCache.
	Key string
	Err error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindRemote:
		return e.Detail
	case KindValidation:
		return e.Detail
	case KindNoCredential:
		if e.Detail != "" {
			return e.Detail
		}
		return "no usable credential, please log in again"
	case KindNetwork:
		if e.Err != nil {
			return fmt.Sprintf("network error: %v", e.Err)
		}
		return "network error"
	case KindMalformedCache:
		return fmt.Sprintf("malformed cached value for %q: %v", e.Key, e.Err)
	default:
		if e.Err != nil {
			return e.Err.Error()
		}
		return e.Detail
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches sentinel errors by kind, so errors.Is(err, ErrNoCredential) works
// for any NoCredential error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Status == 0 && t.Field == "" && t.Detail == "" && t.Err == nil
}

// Sentinels for errors.Is.
var (
	ErrNetwork        = &Error{Kind: KindNetwork}
	ErrRemote         = &Error{Kind: KindRemote}
	ErrValidation     = &Error{Kind: KindValidation}
	ErrNoCredential   = &Error{Kind: KindNoCredential}
	ErrMalformedCache = &Error{Kind: KindMalformedCache}
)

func Network(err error) *Error {
	return &Error{Kind: KindNetwork, Err: err}
}

func Remote(status int, detail string) *Error {
	if detail == "" {
		detail = GenericDetail
	}
	return &Error{Kind: KindRemote, Status: status, Detail: detail}
}

func Validation(field, msg string) *Error {
	return &Error{Kind: KindValidation, Field: field, Detail: msg}
}

func NoCredential(detail string) *Error {
	return &Error{Kind: KindNoCredential, Detail: detail}
}

func MalformedCache(key string, err error) *Error {
	return &Error{Kind: KindMalformedCache, Key: key, Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Status returns the HTTP status of a remote error, or 0.
func Status(err error) int {
	var e *Error
	if errors.As(err, &e) && e.Kind == KindRemote {
		return e.Status
	}
	return 0
}

// Message is the text to show a user for err. Remote details are passed
// through verbatim; anything without a usable message, including the generic
// remote detail, gets fallback.
func Message(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) {
		switch e.Kind {
		case KindRemote, KindValidation, KindNoCredential:
			if msg := e.Error(); msg != "" && msg != GenericDetail {
				return msg
			}
		}
	}
	return fallback
}

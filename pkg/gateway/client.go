// Package gateway is the only egress point to the storefront backend. Every
// backend operation is one method; failures come back as *apperr.Error.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"gitlab.connectwisedev.com/storefront/pkg/apperr"
	"gitlab.connectwisedev.com/storefront/pkg/config"
)

// maxErrorBody bounds how much of a failed response is read for its detail.
const maxErrorBody = 64 << 10

// RetryPolicy applies to read operations only.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy covers a backend waking from a cold start.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts:     3,
	InitialInterval: 500 * time.Millisecond,
	MaxInterval:     5 * time.Second,
}

// Client talks to the storefront backend.
type Client struct {
	baseURL string
	http    *http.Client
	retry   RetryPolicy
}

// Option customizes a Client.
type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Client) { c.retry = p }
}

// New returns a client for the backend at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		retry:   DefaultRetryPolicy,
	}
	for _, o := range opts {
		o(c)
	}
	if c.retry.MaxAttempts < 1 {
		c.retry.MaxAttempts = 1
	}
	return c
}

// NewFromConfig builds a client from the loaded configuration.
func NewFromConfig(cfg config.Config) *Client {
	return New(cfg.APIBaseURL,
		WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}),
		WithRetryPolicy(RetryPolicy{
			MaxAttempts:     cfg.RetryMaxAttempts,
			InitialInterval: cfg.RetryInitialInterval,
			MaxInterval:     DefaultRetryPolicy.MaxInterval,
		}),
	)
}

// BaseURL is the backend root used to absolutize relative image paths.
func (c *Client) BaseURL() string {
	return c.baseURL
}

type request struct {
	method      string
	path        string
	query       url.Values
	token       string
	body        []byte
	contentType string
	header      http.Header
}

// get performs a read with the retry policy and decodes the JSON body into out.
func (c *Client) get(ctx context.Context, r request, out interface{}) error {
	r.method = http.MethodGet
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retry.InitialInterval
	if c.retry.MaxInterval > 0 {
		b.MaxInterval = c.retry.MaxInterval
	}
	b.MaxElapsedTime = 0 // bounded by attempts instead

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.retry.MaxAttempts-1)), ctx)
	return backoff.Retry(func() error {
		err := c.do(ctx, r, out)
		if err != nil && !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
}

// retryable reports whether a failed read is worth repeating: transport
// failures, timeouts, throttling and server errors.
func retryable(err error) bool {
	var e *apperr.Error
	if !errors.As(err, &e) {
		return false
	}
	switch e.Kind {
	case apperr.KindNetwork:
		return !errors.Is(err, context.Canceled)
	case apperr.KindRemote:
		return e.Status >= 500 || e.Status == http.StatusRequestTimeout || e.Status == http.StatusTooManyRequests
	}
	return false
}

func (c *Client) do(ctx context.Context, r request, out interface{}) error {
	u := c.baseURL + r.path
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}

	var body io.Reader
	if r.body != nil {
		body = bytes.NewReader(r.body)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, u, body)
	if err != nil {
		return fmt.Errorf("failed to build request %s %s: %w", r.method, r.path, err)
	}
	req.Header.Set("Accept", "application/json")
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}
	for k, vs := range r.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return apperr.Network(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return apperr.Remote(resp.StatusCode, errorDetail(raw))
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperr.Network(err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &apperr.Error{Kind: apperr.KindRemote, Status: resp.StatusCode, Detail: "invalid response from server", Err: err}
	}
	return nil
}

// errorDetail extracts a human readable message from a failed response body:
// the JSON "detail" or "message" field, else the raw text, else "".
func errorDetail(raw []byte) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	var body struct {
		Detail  json.RawMessage `json:"detail"`
		Message json.RawMessage `json:"message"`
		Error   json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		for _, f := range []json.RawMessage{body.Detail, body.Message, body.Error} {
			if s := messageText(f); s != "" {
				return s
			}
		}
	}
	return string(raw)
}

// messageText reads a string field, or the first "msg" of a validation list.
func messageText(f json.RawMessage) string {
	if len(f) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(f, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var list []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(f, &list); err == nil && len(list) > 0 {
		return strings.TrimSpace(list[0].Msg)
	}
	return ""
}

// decodeList tolerates a non-array success body by returning an empty list.
func decodeList(raw json.RawMessage, out interface{}) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '[' {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &apperr.Error{Kind: apperr.KindRemote, Status: http.StatusOK, Detail: "invalid response from server", Err: err}
	}
	return nil
}

func requireToken(token string) error {
	if strings.TrimSpace(token) == "" {
		return apperr.NoCredential("Admin token missing. Please login again as admin.")
	}
	return nil
}

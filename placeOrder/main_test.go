package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.connectwisedev.com/storefront/models"
	"gitlab.connectwisedev.com/storefront/pkg/checkout"
	"gitlab.connectwisedev.com/storefront/pkg/gateway"
)

type backend struct {
	mu         sync.Mutex
	orders     []map[string]interface{}
	keys       []string
	orderCalls int
	rejectWith int
}

func (b *backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/products/5":
		w.Write([]byte(`{"id":5,"name":"Oil","price":499,"priority":1}`))
	case r.Method == http.MethodGet:
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"detail":"Product not found"}`))
	case r.Method == http.MethodPost && r.URL.Path == "/orders":
		b.mu.Lock()
		defer b.mu.Unlock()
		b.orderCalls++
		if b.rejectWith != 0 {
			w.WriteHeader(b.rejectWith)
			w.Write([]byte(`{"detail":"Product out of stock"}`))
			return
		}
		raw, _ := io.ReadAll(r.Body)
		var o map[string]interface{}
		json.Unmarshal(raw, &o)
		b.orders = append(b.orders, o)
		b.keys = append(b.keys, r.Header.Get("Idempotency-Key"))
		o["id"] = 77
		json.NewEncoder(w).Encode(o)
	}
}

func setup(t *testing.T) (*orderHandler, *backend) {
	t.Helper()
	b := &backend{}
	srv := httptest.NewServer(b)
	t.Cleanup(srv.Close)
	gw := gateway.New(srv.URL, gateway.WithRetryPolicy(gateway.RetryPolicy{MaxAttempts: 1}))
	return &orderHandler{products: gw, orders: gw}, b
}

func body(t *testing.T, overrides map[string]interface{}) string {
	t.Helper()
	req := map[string]interface{}{
		"product_id": 5,
		"quantity":   2,
		"full_name":  "Asha Rao",
		"phone":      "9876543210",
		"email":      "asha@example.com",
		"address":    "12 MG Road",
		"city":       "Pune",
		"state":      "Maharashtra",
		"pincode":    "411001",
	}
	for k, v := range overrides {
		req[k] = v
	}
	b, err := json.Marshal(req)
	require.NoError(t, err)
	return string(b)
}

func TestPlacesOrderWithBackendPrice(t *testing.T) {
	h, b := setup(t)

	resp, err := h.handle(context.Background(), events.APIGatewayProxyRequest{
		Body:    body(t, map[string]interface{}{"price": 1}),
		Headers: map[string]string{"idempotency-key": "attempt-1"},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var out struct {
		Message string       `json:"message"`
		Order   models.Order `json:"order"`
	}
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &out))
	assert.Equal(t, checkout.SuccessMessage, out.Message)
	assert.Equal(t, models.ID("77"), out.Order.ID)

	require.Len(t, b.orders, 1)
	assert.Equal(t, float64(998), b.orders[0]["total_amount"])
	assert.Equal(t, "12 MG Road, Pune, Maharashtra - 411001", b.orders[0]["shipping_address"])
	assert.Equal(t, []string{"attempt-1"}, b.keys)
}

func TestInvalidFormMakesNoBackendCall(t *testing.T) {
	h, b := setup(t)

	resp, err := h.handle(context.Background(), events.APIGatewayProxyRequest{
		Body: body(t, map[string]interface{}{"pincode": "12345"}),
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.JSONEq(t, `{"message":"Please enter a valid 6-digit pincode","field":"pincode"}`, resp.Body)
	assert.Equal(t, 0, b.orderCalls)
}

func TestUnknownProduct(t *testing.T) {
	h, b := setup(t)

	resp, err := h.handle(context.Background(), events.APIGatewayProxyRequest{
		Body: body(t, map[string]interface{}{"product_id": 9}),
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.JSONEq(t, `{"message":"Product not found"}`, resp.Body)
	assert.Equal(t, 0, b.orderCalls)
}

func TestBackendRejectionPassesDetailThrough(t *testing.T) {
	h, b := setup(t)
	b.rejectWith = http.StatusConflict

	resp, err := h.handle(context.Background(), events.APIGatewayProxyRequest{Body: body(t, nil)})
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.JSONEq(t, `{"message":"Product out of stock"}`, resp.Body)
	assert.Equal(t, 1, b.orderCalls, "writes are never retried")
}

func TestServerErrorMapsToBadGateway(t *testing.T) {
	h, b := setup(t)
	b.rejectWith = http.StatusInternalServerError

	resp, err := h.handle(context.Background(), events.APIGatewayProxyRequest{Body: body(t, nil)})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Contains(t, resp.Body, "Product out of stock")
}

func TestMalformedBody(t *testing.T) {
	h, _ := setup(t)
	resp, err := h.handle(context.Background(), events.APIGatewayProxyRequest{Body: "{"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

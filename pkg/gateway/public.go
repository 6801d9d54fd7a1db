package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"gitlab.connectwisedev.com/storefront/models"
	"gitlab.connectwisedev.com/storefront/pkg/apperr"
)

// ListProducts returns the public catalog with image URLs made absolute.
func (c *Client) ListProducts(ctx context.Context) ([]models.Product, error) {
	var raw json.RawMessage
	err := c.get(ctx, request{
		path:   "/products",
		header: http.Header{"Cache-Control": []string{"no-cache"}},
	}, &raw)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	var products []models.Product
	if err := decodeList(raw, &products); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return models.NormalizeImages(products, c.baseURL), nil
}

// GetProduct returns a single product.
func (c *Client) GetProduct(ctx context.Context, id models.ID) (models.Product, error) {
	if id == "" {
		return models.Product{}, apperr.Validation("id", "product id is required")
	}
	var p models.Product
	if err := c.get(ctx, request{path: "/products/" + url.PathEscape(id.String())}, &p); err != nil {
		return models.Product{}, fmt.Errorf("get product %s: %w", id, err)
	}
	return models.NormalizeImages([]models.Product{p}, c.baseURL)[0], nil
}

// CreateOrder submits a new order. A non-empty idempotencyKey is sent as the
// Idempotency-Key header so the backend can drop duplicate submissions.
func (c *Client) CreateOrder(ctx context.Context, order models.Order, idempotencyKey string) (models.Order, error) {
	if err := validateOrder(order); err != nil {
		return models.Order{}, err
	}
	body, err := json.Marshal(order)
	if err != nil {
		return models.Order{}, fmt.Errorf("encode order: %w", err)
	}
	r := request{
		method:      http.MethodPost,
		path:        "/orders",
		body:        body,
		contentType: "application/json",
	}
	if idempotencyKey != "" {
		r.header = http.Header{"Idempotency-Key": []string{idempotencyKey}}
	}

	created := order
	if err := c.do(ctx, r, &created); err != nil {
		return models.Order{}, fmt.Errorf("create order: %w", err)
	}
	return created, nil
}

// ListOrdersFor returns the orders placed with the given customer email.
func (c *Client) ListOrdersFor(ctx context.Context, email string) ([]models.Order, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, apperr.Validation("email", "email is required")
	}
	var raw json.RawMessage
	if err := c.get(ctx, request{path: "/orders", query: url.Values{"email": []string{email}}}, &raw); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	var orders []models.Order
	if err := decodeList(raw, &orders); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

// ExchangeIdentityForSession trades an identity provider token for a backend
// session token. The caller persists the result.
func (c *Client) ExchangeIdentityForSession(ctx context.Context, identityToken string) (string, error) {
	if strings.TrimSpace(identityToken) == "" {
		return "", apperr.NoCredential("identity token is required")
	}
	body, err := json.Marshal(map[string]string{"token": identityToken})
	if err != nil {
		return "", fmt.Errorf("encode identity exchange: %w", err)
	}
	var resp tokenResponse
	err = c.do(ctx, request{
		method:      http.MethodPost,
		path:        "/auth/google",
		body:        body,
		contentType: "application/json",
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("exchange identity token: %w", err)
	}
	return resp.token()
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	Token       string `json:"token"`
}

func (t tokenResponse) token() (string, error) {
	if t.AccessToken != "" {
		return t.AccessToken, nil
	}
	if t.Token != "" {
		return t.Token, nil
	}
	return "", apperr.Remote(http.StatusOK, "no access token in response")
}

func validateOrder(o models.Order) error {
	switch {
	case o.ProductID == "":
		return apperr.Validation("product_id", "product is required")
	case o.Quantity < 1:
		return apperr.Validation("quantity", "quantity must be at least 1")
	case !o.UnitPrice.IsPositive():
		return apperr.Validation("unit_price", "price must be greater than 0")
	case strings.TrimSpace(o.CustomerName) == "":
		return apperr.Validation("customer_name", "customer name is required")
	case strings.TrimSpace(o.CustomerEmail) == "":
		return apperr.Validation("customer_email", "customer email is required")
	case strings.TrimSpace(o.ShippingAddress) == "":
		return apperr.Validation("shipping_address", "shipping address is required")
	}
	return nil
}

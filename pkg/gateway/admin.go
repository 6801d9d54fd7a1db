package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"gitlab.connectwisedev.com/storefront/models"
	"gitlab.connectwisedev.com/storefront/pkg/apperr"
)

// ProductForm is the multipart payload for admin product create/update.
type ProductForm struct {
	Name        string
	Price       decimal.Decimal
	Description string
	// Priority defaults to 1 when zero.
	Priority int
	// Image is required on create and optional on update.
	Image     io.Reader
	ImageName string
}

// Validate checks the fields the backend requires. requireImage is true for create.
func (f ProductForm) Validate(requireImage bool) error {
	switch {
	case requireImage && f.Image == nil:
		return apperr.Validation("image", "Please select an image file")
	case strings.TrimSpace(f.Name) == "":
		return apperr.Validation("name", "Please fill all required fields")
	case !f.Price.IsPositive():
		return apperr.Validation("price", "Price must be greater than 0")
	case strings.TrimSpace(f.Description) == "":
		return apperr.Validation("description", "Please fill all required fields")
	case f.Priority < 0:
		return apperr.Validation("priority", "Priority must be at least 1")
	}
	return nil
}

func (f ProductForm) encode() ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	priority := f.Priority
	if priority == 0 {
		priority = 1
	}
	fields := [][2]string{
		{"name", strings.TrimSpace(f.Name)},
		{"price", f.Price.String()},
		{"description", strings.TrimSpace(f.Description)},
		{"priority", strconv.Itoa(priority)},
	}
	for _, kv := range fields {
		if err := w.WriteField(kv[0], kv[1]); err != nil {
			return nil, "", err
		}
	}
	if f.Image != nil {
		name := f.ImageName
		if name == "" {
			name = "image"
		}
		part, err := w.CreateFormFile("image", filepath.Base(name))
		if err != nil {
			return nil, "", err
		}
		if _, err := io.Copy(part, f.Image); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

// AdminLogin exchanges admin credentials for a session token.
func (c *Client) AdminLogin(ctx context.Context, email, password string) (string, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return "", apperr.Validation("email", "email and password are required")
	}
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("email", strings.TrimSpace(email)); err != nil {
		return "", err
	}
	if err := w.WriteField("password", password); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	var resp tokenResponse
	err := c.do(ctx, request{
		method:      http.MethodPost,
		path:        "/admin/login",
		body:        buf.Bytes(),
		contentType: w.FormDataContentType(),
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("admin login: %w", err)
	}
	return resp.token()
}

// AdminListProducts returns the full admin view of the catalog.
func (c *Client) AdminListProducts(ctx context.Context, token string) ([]models.Product, error) {
	if err := requireToken(token); err != nil {
		return nil, err
	}
	var raw json.RawMessage
	if err := c.get(ctx, request{path: "/admin/products", token: token}, &raw); err != nil {
		return nil, fmt.Errorf("admin list products: %w", err)
	}
	var products []models.Product
	if err := decodeList(raw, &products); err != nil {
		return nil, fmt.Errorf("admin list products: %w", err)
	}
	return models.NormalizeImages(products, c.baseURL), nil
}

// AdminCreateProduct uploads a new product with its image.
func (c *Client) AdminCreateProduct(ctx context.Context, form ProductForm, token string) (models.Product, error) {
	if err := requireToken(token); err != nil {
		return models.Product{}, err
	}
	if err := form.Validate(true); err != nil {
		return models.Product{}, err
	}
	body, ct, err := form.encode()
	if err != nil {
		return models.Product{}, fmt.Errorf("encode product form: %w", err)
	}
	var p models.Product
	err = c.do(ctx, request{method: http.MethodPost, path: "/admin/create-product", token: token, body: body, contentType: ct}, &p)
	if err != nil {
		return models.Product{}, fmt.Errorf("create product: %w", err)
	}
	return p, nil
}

// AdminUpdateProduct replaces a product's fields, and its image when one is given.
func (c *Client) AdminUpdateProduct(ctx context.Context, id models.ID, form ProductForm, token string) (models.Product, error) {
	if err := requireToken(token); err != nil {
		return models.Product{}, err
	}
	if id == "" {
		return models.Product{}, apperr.Validation("id", "product id is required")
	}
	if err := form.Validate(false); err != nil {
		return models.Product{}, err
	}
	body, ct, err := form.encode()
	if err != nil {
		return models.Product{}, fmt.Errorf("encode product form: %w", err)
	}
	var p models.Product
	err = c.do(ctx, request{method: http.MethodPut, path: "/admin/products/" + url.PathEscape(id.String()), token: token, body: body, contentType: ct}, &p)
	if err != nil {
		return models.Product{}, fmt.Errorf("update product %s: %w", id, err)
	}
	return p, nil
}

// AdminDeleteProduct removes a product.
func (c *Client) AdminDeleteProduct(ctx context.Context, id models.ID, token string) error {
	if err := requireToken(token); err != nil {
		return err
	}
	if id == "" {
		return apperr.Validation("id", "product id is required")
	}
	err := c.do(ctx, request{method: http.MethodDelete, path: "/admin/delete-product/" + url.PathEscape(id.String()), token: token}, nil)
	if err != nil {
		return fmt.Errorf("delete product %s: %w", id, err)
	}
	return nil
}

// AdminListOrders returns every order.
func (c *Client) AdminListOrders(ctx context.Context, token string) ([]models.Order, error) {
	if err := requireToken(token); err != nil {
		return nil, err
	}
	var raw json.RawMessage
	if err := c.get(ctx, request{path: "/admin/orders", token: token}, &raw); err != nil {
		return nil, fmt.Errorf("admin list orders: %w", err)
	}
	var orders []models.Order
	if err := decodeList(raw, &orders); err != nil {
		return nil, fmt.Errorf("admin list orders: %w", err)
	}
	return orders, nil
}

// ApproveOrder confirms an order; the backend notifies the customer.
func (c *Client) ApproveOrder(ctx context.Context, id models.ID, token string) error {
	if err := requireToken(token); err != nil {
		return err
	}
	if id == "" {
		return apperr.Validation("id", "order id is required")
	}
	err := c.do(ctx, request{method: http.MethodPost, path: "/admin/orders/" + url.PathEscape(id.String()) + "/approve", token: token}, nil)
	if err != nil {
		return fmt.Errorf("approve order %s: %w", id, err)
	}
	return nil
}

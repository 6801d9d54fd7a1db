package models

import (
	"strings"

	"github.com/shopspring/decimal"
)

func init() {
	// The backend speaks plain JSON numbers for money.
	decimal.MarshalJSONWithoutQuotes = true
}

// Product represents a catalog entry as served by the backend and held in the client cache
type Product struct {
	ID          ID              `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description"`
	ImageURL    *string         `json:"image_url,omitempty"` // Pointer for nullable field
	Priority    int             `json:"priority"`
	Quantity    *int            `json:"quantity,omitempty"` // Optional stock count
}

// AvailableSoon reports whether the product is listed but not yet in stock.
func (p Product) AvailableSoon() bool {
	return p.Quantity != nil && *p.Quantity <= 0
}

// Image returns the image URL or an empty string when the product has none.
func (p Product) Image() string {
	if p.ImageURL == nil {
		return ""
	}
	return *p.ImageURL
}

// NormalizeImageURL rewrites a product image reference into an absolute URL.
//
//   - absolute URLs (with a scheme) are kept as is
//   - cloud storage hosts, bare or protocol relative, get an https scheme
//   - anything else is treated as a backend relative path joined onto baseURL
//     with exactly one slash between them
func NormalizeImageURL(raw, baseURL string) string {
	u := strings.TrimSpace(strings.ReplaceAll(raw, `\`, "/"))
	if u == "" {
		return ""
	}
	if hasScheme(u) {
		return u
	}
	trimmed := strings.TrimLeft(u, "/")
	if isCloudStorageHost(trimmed) {
		return "https://" + trimmed
	}
	return strings.TrimRight(baseURL, "/") + "/" + trimmed
}

// NormalizeImages returns a copy of products with every image URL made absolute.
// Products without an image are left untouched.
func NormalizeImages(products []Product, baseURL string) []Product {
	out := make([]Product, len(products))
	for i, p := range products {
		if p.ImageURL != nil && *p.ImageURL != "" {
			abs := NormalizeImageURL(*p.ImageURL, baseURL)
			p.ImageURL = &abs
		}
		out[i] = p
	}
	return out
}

func hasScheme(u string) bool {
	i := strings.Index(u, "://")
	if i <= 0 {
		return false
	}
	for _, r := range u[:i] {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '+' || r == '-' || r == '.') {
			return false
		}
	}
	return true
}

var cloudStorageHosts = []string{
	"res.cloudinary.com/",
	"storage.googleapis.com/",
	"s3.amazonaws.com/",
}

func isCloudStorageHost(u string) bool {
	for _, h := range cloudStorageHosts {
		if strings.HasPrefix(u, h) || strings.Contains(strings.SplitN(u, "/", 2)[0]+"/", "."+h) {
			return true
		}
	}
	return false
}

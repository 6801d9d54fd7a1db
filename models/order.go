package models

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// OrderStatus is owned by the backend; the client only ever writes StatusPending.
type OrderStatus string

const (
	StatusPending        OrderStatus = "pending"
	StatusConfirmed      OrderStatus = "confirmed"
	StatusApproved       OrderStatus = "approved"
	StatusShipped        OrderStatus = "shipped"
	StatusOutForDelivery OrderStatus = "out_for_delivery"
	StatusDelivered      OrderStatus = "delivered"
)

const PaymentPending = "pending"

// Order snapshots product fields at order time.
type Order struct {
	ID              ID              `json:"id,omitempty"`
	ProductID       ID              `json:"product_id"`
	ProductName     string          `json:"product_name"`
	Quantity        int             `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	CustomerName    string          `json:"customer_name"`
	CustomerEmail   string          `json:"customer_email"`
	CustomerPhone   string          `json:"customer_phone"`
	ShippingAddress string          `json:"shipping_address"`
	Notes           string          `json:"notes"`
	Status          OrderStatus     `json:"status"`
	PaymentStatus   string          `json:"payment_status"`
	OrderDate       string          `json:"order_date,omitempty"`
}

// IsPending reports whether the order still awaits admin approval.
func (o Order) IsPending() bool {
	return o.Status == StatusPending
}

// ShippingForm is the customer input collected at checkout.
type ShippingForm struct {
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
	Address  string `json:"address"`
	City     string `json:"city"`
	State    string `json:"state"`
	Pincode  string `json:"pincode"`
	Notes    string `json:"notes,omitempty"`
}

// ShippingAddress flattens the form into the single string the backend stores:
// "address, city, state - pincode".
func (f ShippingForm) ShippingAddress() string {
	return fmt.Sprintf("%s, %s, %s - %s",
		strings.TrimSpace(f.Address),
		strings.TrimSpace(f.City),
		strings.TrimSpace(f.State),
		strings.TrimSpace(f.Pincode))
}

// NewOrder builds a pending order for qty units of p shipped to f.
func NewOrder(p Product, qty int, f ShippingForm) Order {
	return Order{
		ProductID:       p.ID,
		ProductName:     p.Name,
		Quantity:        qty,
		UnitPrice:       p.Price,
		TotalAmount:     p.Price.Mul(decimal.NewFromInt(int64(qty))),
		CustomerName:    strings.TrimSpace(f.FullName),
		CustomerEmail:   strings.TrimSpace(f.Email),
		CustomerPhone:   strings.TrimSpace(f.Phone),
		ShippingAddress: f.ShippingAddress(),
		Notes:           f.Notes,
		Status:          StatusPending,
		PaymentStatus:   PaymentPending,
	}
}

// Command placeOrder is a Lambda that validates a checkout form and submits
// the order to the backend. The product's name and price are read from the
// backend, never taken from the request.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"gitlab.connectwisedev.com/storefront/models"
	"gitlab.connectwisedev.com/storefront/pkg/apperr"
	"gitlab.connectwisedev.com/storefront/pkg/checkout"
	"gitlab.connectwisedev.com/storefront/pkg/config"
	"gitlab.connectwisedev.com/storefront/pkg/gateway"
)

// orderRequest is the request body: the product, the quantity and the shipping form.
type orderRequest struct {
	ProductID models.ID `json:"product_id"`
	Quantity  int       `json:"quantity"`
	models.ShippingForm
}

type productReader interface {
	GetProduct(ctx context.Context, id models.ID) (models.Product, error)
}

type orderHandler struct {
	products productReader
	orders   checkout.OrderCreator
}

func (h *orderHandler) handle(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	var req orderRequest
	if err := json.Unmarshal([]byte(request.Body), &req); err != nil {
		log.Printf("Invalid order request body: %v", err)
		return jsonResponse(http.StatusBadRequest, map[string]string{"message": "Invalid request body"}), nil
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	// validate before the product lookup so a bad form costs no backend call
	if err := checkout.Validate(req.ShippingForm); err != nil {
		return errorResponse(err), nil
	}
	p, err := h.products.GetProduct(ctx, req.ProductID)
	if err != nil {
		log.Printf("Error fetching product %s: %v", req.ProductID, err)
		return errorResponse(err), nil
	}

	var opts []checkout.Option
	if key := idempotencyKey(request.Headers); key != "" {
		opts = append(opts, checkout.WithKeyFunc(func() string { return key }))
	}
	flow := checkout.New(h.orders, opts...)
	flow.SetForm(req.ShippingForm)

	order, err := flow.Submit(ctx, p, req.Quantity)
	if err != nil {
		return errorResponse(err), nil
	}
	return jsonResponse(http.StatusCreated, map[string]interface{}{
		"message": flow.Message(),
		"order":   order,
	}), nil
}

// idempotencyKey reads the header case-insensitively; API Gateway passes
// headers as the client sent them.
func idempotencyKey(headers map[string]string) string {
	for k, v := range headers {
		if strings.EqualFold(k, "Idempotency-Key") {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func errorResponse(err error) events.APIGatewayProxyResponse {
	body := map[string]string{"message": apperr.Message(err, checkout.FailureMessage)}
	var e *apperr.Error
	status := http.StatusBadGateway
	if errors.As(err, &e) {
		switch e.Kind {
		case apperr.KindValidation:
			status = http.StatusBadRequest
			body["field"] = e.Field
		case apperr.KindRemote:
			if e.Status >= 400 && e.Status < 500 {
				status = e.Status
			}
		}
	}
	return jsonResponse(status, body)
}

func jsonResponse(status int, body interface{}) events.APIGatewayProxyResponse {
	headers := map[string]string{
		"Content-Type":                 "application/json",
		"Access-Control-Allow-Origin":  "*",
		"Access-Control-Allow-Methods": "POST",
		"Access-Control-Allow-Headers": "Content-Type, Idempotency-Key",
	}
	b, err := json.Marshal(body)
	if err != nil {
		log.Printf("Error marshaling response to JSON: %v", err)
		return events.APIGatewayProxyResponse{
			StatusCode: http.StatusInternalServerError,
			Headers:    headers,
			Body:       `{"message": "Failed to format response"}`,
		}
	}
	return events.APIGatewayProxyResponse{StatusCode: status, Headers: headers, Body: string(b)}
}

func main() {
	config.LoadEnv()
	gw := gateway.NewFromConfig(config.Load())
	h := &orderHandler{products: gw, orders: gw}
	lambda.Start(h.handle)
}

// Command getallProducts is a Lambda serving the storefront catalog view from
// the shared product cache. It refreshes from the backend on every request and
// falls back to the last cached list when the backend is down.
package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"gitlab.connectwisedev.com/storefront/models"
	"gitlab.connectwisedev.com/storefront/pkg/catalog"
	"gitlab.connectwisedev.com/storefront/pkg/config"
	"gitlab.connectwisedev.com/storefront/pkg/gateway"
	"gitlab.connectwisedev.com/storefront/pkg/storage"
)

type productsHandler struct {
	cat *catalog.Catalog
}

func (h *productsHandler) handle(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	log.Printf("Received request: %v", request.Path)

	_, done := h.cat.Mount(ctx)
	refreshErr := <-done
	snap := h.cat.Snapshot()

	if len(snap.Products) == 0 && refreshErr != nil {
		log.Printf("Error fetching products with nothing cached: %v", refreshErr)
		return jsonResponse(http.StatusServiceUnavailable, map[string]string{"message": "Failed to retrieve products"}, nil), nil
	}

	cacheState := "REFRESHED"
	if refreshErr != nil {
		log.Printf("Error refreshing products (%v), serving %d cached products.", refreshErr, len(snap.Products))
		cacheState = "STALE"
	}
	headers := map[string]string{
		"Cache-Control": "public, max-age=300, must-revalidate",
		"X-Cache":       cacheState,
	}

	if id := request.PathParameters["id"]; id != "" {
		p, ok := h.cat.Get(models.ID(id))
		if !ok {
			return jsonResponse(http.StatusNotFound, map[string]string{"message": "Product not found"}, nil), nil
		}
		return jsonResponse(http.StatusOK, p, headers), nil
	}
	return jsonResponse(http.StatusOK, catalog.SortedView(snap.Products), headers), nil
}

func jsonResponse(status int, body interface{}, extra map[string]string) events.APIGatewayProxyResponse {
	headers := map[string]string{
		"Content-Type":                 "application/json",
		"Access-Control-Allow-Origin":  "*",
		"Access-Control-Allow-Methods": "GET",
		"Access-Control-Allow-Headers": "Content-Type",
	}
	for k, v := range extra {
		headers[k] = v
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
	cfg := config.Load()

	store, err := storage.Open(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer store.Close()

	cat := catalog.New(gateway.NewFromConfig(cfg), store, cfg.APIBaseURL)
	defer cat.Close()

	h := &productsHandler{cat: cat}
	lambda.Start(h.handle)
}

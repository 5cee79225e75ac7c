// Package gateway holds the HTTP clients for the remote catalog and
// transaction services. Both map transport failures to ErrRequestFailed and
// malformed success bodies to ErrBadPayload, and neither retries; retry
// policy belongs to whoever wraps them.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/arthurstore/storefront/internal/metrics"
	"github.com/arthurstore/storefront/internal/models"
	"github.com/arthurstore/storefront/internal/patterns"
	"github.com/go-resty/resty/v2"
)

// CatalogClient fetches the list of purchasable items.
type CatalogClient struct {
	client   *resty.Client
	baseURL  string
	circuit  *patterns.Breaker
	bulkhead *patterns.Bulkhead
}

// NewCatalogClient creates a catalog client for the given base URL.
func NewCatalogClient(baseURL string) *CatalogClient {
	return &CatalogClient{
		client: resty.New().
			SetTimeout(patterns.CatalogTimeout).
			SetRetryCount(0), // No automatic retries, resilience is the caller's concern
		baseURL:  baseURL,
		circuit:  patterns.NewBreaker("Catalog", "storefront"),
		bulkhead: patterns.NewBulkhead(10, "catalog", "storefront"),
	}
}

// FetchCatalog issues one GET <base>/products request and returns the items
// parsed verbatim from the body.
func (cc *CatalogClient) FetchCatalog(ctx context.Context) ([]models.Item, error) {
	var items []models.Item

	err := cc.bulkhead.Execute(func() error {
		_, cbErr := cc.circuit.Execute(func() (interface{}, error) {
			start := time.Now()
			resp, httpErr := cc.client.R().
				SetContext(ctx).
				Get(cc.baseURL + "/products")
			metrics.GatewayRequestDuration.WithLabelValues("catalog").Observe(time.Since(start).Seconds())

			if httpErr != nil {
				return nil, fmt.Errorf("%w: %v", ErrRequestFailed, httpErr)
			}

			if resp.StatusCode() < http.StatusOK || resp.StatusCode() >= http.StatusMultipleChoices {
				return nil, fmt.Errorf("%w: catalog service returned status %d", ErrRequestFailed, resp.StatusCode())
			}

			if err := json.Unmarshal(resp.Body(), &items); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
			}

			return items, nil
		})

		return patterns.DescribeError("Catalog", cbErr)
	})

	if err != nil {
		return nil, err
	}
	return items, nil
}

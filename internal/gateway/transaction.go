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
	log "github.com/sirupsen/logrus"
)

// transactionResponse mirrors the processor's wire shape. The status string
// arrives in varying case and is normalized before use.
type transactionResponse struct {
	Message string `json:"message"`
	Status  string `json:"transactionStatus"`
}

// TransactionClient submits purchase requests to the remote processor.
type TransactionClient struct {
	client   *resty.Client
	baseURL  string
	circuit  *patterns.Breaker
	bulkhead *patterns.Bulkhead
}

// NewTransactionClient creates a transaction client for the given base URL.
func NewTransactionClient(baseURL string) *TransactionClient {
	return &TransactionClient{
		client: resty.New().
			SetTimeout(patterns.DefaultTimeout).
			SetRetryCount(0), // Exactly one request per submission
		baseURL:  baseURL,
		circuit:  patterns.NewBreaker("Transaction", "storefront"),
		bulkhead: patterns.NewBulkhead(10, "transaction", "storefront"),
	}
}

// Submit sends one POST <base>/transaction request carrying the payment and
// delivery details and returns the processor's immediate response. The
// returned status is pending, approved or denied; anything else is a
// malformed payload.
func (tc *TransactionClient) Submit(ctx context.Context, req models.PaymentRequest) (*models.TransactionOutcome, error) {
	var outcome *models.TransactionOutcome

	err := tc.bulkhead.Execute(func() error {
		_, cbErr := tc.circuit.Execute(func() (interface{}, error) {
			start := time.Now()
			resp, httpErr := tc.client.R().
				SetContext(ctx).
				SetHeader("Content-Type", "application/json").
				SetBody(req).
				Post(tc.baseURL + "/transaction")
			metrics.GatewayRequestDuration.WithLabelValues("transaction").Observe(time.Since(start).Seconds())

			if httpErr != nil {
				return nil, fmt.Errorf("%w: %v", ErrRequestFailed, httpErr)
			}

			if resp.StatusCode() < http.StatusOK || resp.StatusCode() >= http.StatusMultipleChoices {
				return nil, fmt.Errorf("%w: transaction service returned status %d: %s", ErrRequestFailed, resp.StatusCode(), resp.String())
			}

			var body transactionResponse
			if err := json.Unmarshal(resp.Body(), &body); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
			}

			status, ok := models.ParseStatus(body.Status)
			if !ok || status == models.StatusIdle || status == models.StatusSubmitting {
				return nil, fmt.Errorf("%w: unexpected transaction status %q", ErrBadPayload, body.Status)
			}

			log.WithFields(log.Fields{
				"transaction_id": req.TransactionID,
				"status":         status,
			}).Info("Transaction submitted")

			outcome = &models.TransactionOutcome{Message: body.Message, Status: status}
			return outcome, nil
		})

		return patterns.DescribeError("Transaction", cbErr)
	})

	if err != nil {
		return nil, err
	}
	return outcome, nil
}

package shipping

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
)

// RateRequest is the carrier quote request. Volume and weight are estimates
// derived from the cart with fixed per-unit constants; the declared value is
// the cart subtotal.
type RateRequest struct {
	PostalCode    string  `json:"destination_postal_code"`
	ContractCode  string  `json:"contract_code"`
	ClientCode    string  `json:"client_code"`
	Volume        float64 `json:"volume_estimate"`
	Weight        float64 `json:"weight_estimate"`
	DeclaredValue float64 `json:"declared_value"`
}

type RateResponse struct {
	Price    float64 `json:"price"`
	Currency string  `json:"currency"`
}

// RateClient obtains a shipping price from the external carrier. Consumers
// define this interface, not the HTTP implementation.
type RateClient interface {
	Quote(ctx context.Context, req RateRequest) (*RateResponse, error)
}

// HTTPRateClient talks to the carrier rate API over HTTP behind a circuit
// breaker. Every call is bounded by a fixed timeout at the transport layer;
// nothing upstream cancels an in-flight quote.
type HTTPRateClient struct {
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[*RateResponse]
}

func NewHTTPRateClient(baseURL string, timeout time.Duration) *HTTPRateClient {
	settings := gobreaker.Settings{
		Name:    "carrier-rates",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
	return &HTTPRateClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker[*RateResponse](settings),
	}
}

func (c *HTTPRateClient) Quote(ctx context.Context, req RateRequest) (*RateResponse, error) {
	return c.breaker.Execute(func() (*RateResponse, error) {
		return c.quote(ctx, req)
	})
}

func (c *HTTPRateClient) quote(ctx context.Context, req RateRequest) (*RateResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal rate request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rates", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build rate request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("carrier rate request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("carrier rate request failed: status %d", resp.StatusCode)
	}

	var rate RateResponse
	if err := json.NewDecoder(resp.Body).Decode(&rate); err != nil {
		return nil, fmt.Errorf("decode rate response: %w", err)
	}

	return &rate, nil
}

// File: internal/infra/adapters/relay/http_relay.go
package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"telegram-sms-relay/internal/domain"
	"telegram-sms-relay/internal/domain/ports/adapter"
	"telegram-sms-relay/internal/infra/metrics"
)

var _ adapter.RelayClient = (*HTTPRelayClient)(nil)

// HTTPRelayClient talks to the external SMS relay:
// GET {base}/send?number=<destination>&sms=<message>. Status 200 means
// accepted; everything else is a failure. The client timeout is the bound
// on the whole call.
type HTTPRelayClient struct {
	baseURL string
	client  *http.Client
}

func NewHTTPRelayClient(baseURL string, timeout time.Duration) (*HTTPRelayClient, error) {
	if baseURL == "" {
		return nil, errors.New("relay base url empty")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid relay base url: %w", err)
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPRelayClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}, nil
}

func (c *HTTPRelayClient) Send(ctx context.Context, destination, message string) error {
	q := url.Values{}
	q.Set("number", destination)
	q.Set("sms", message)
	endpoint := c.baseURL + "/send?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrRelayFailure, err)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		metrics.ObserveRelayCall(latency, false)
		return fmt.Errorf("%w: %v", domain.ErrRelayFailure, err)
	}
	defer resp.Body.Close()
	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode != http.StatusOK {
		metrics.ObserveRelayCall(latency, false)
		return fmt.Errorf("%w: relay returned status %d", domain.ErrRelayFailure, resp.StatusCode)
	}
	metrics.ObserveRelayCall(latency, true)
	return nil
}

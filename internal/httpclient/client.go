// Package httpclient is the HTTP plumbing shared by the provider packages:
// retries with exponential backoff, JSON helpers and a typed status error.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/pulseboard/pulse/registry"
)

// maxErrorBody caps how much of an error response is kept in StatusError.
const maxErrorBody = 4 << 10

// StatusError is a non-2xx response from an upstream API.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s API error: status %d", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.StatusCode, e.Body)
}

// Retryable reports whether the request may succeed when repeated.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

// BaseClient executes provider requests.
type BaseClient struct {
	Provider   string
	HTTPClient *http.Client
	Logger     registry.Logger

	MaxRetries int
	RetryDelay time.Duration

	// Breaker, when set, fails requests fast while the upstream is down.
	Breaker *Breaker

	retries metric.Int64Counter
}

// New creates a client for provider with an otelhttp-instrumented transport.
func New(provider string, timeout time.Duration, logger registry.Logger) *BaseClient {
	if logger == nil {
		logger = registry.NoOpLogger{}
	}
	// The global meter is a no-op until a MeterProvider is installed.
	retries, _ := otel.Meter("github.com/pulseboard/pulse/internal/httpclient").Int64Counter(
		"pulse.provider.request.retries",
		metric.WithDescription("Provider HTTP requests repeated after a retryable failure."),
	)
	return &BaseClient{
		Provider: provider,
		HTTPClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		Logger:     logger,
		MaxRetries: 3,
		RetryDelay: 500 * time.Millisecond,
		Breaker:    NewBreaker(5, 30*time.Second),
		retries:    retries,
	}
}

// Do sends req, retrying transport errors, 429 and 5xx responses with
// exponential backoff. A 2xx response is returned to the caller, who owns
// the body. Any other final status is returned as *StatusError.
//
// Requests with a body must set GetBody (http.NewRequest does this for the
// common reader types) so they can be replayed.
func (b *BaseClient) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if b.Breaker == nil {
		return b.do(ctx, req)
	}
	if !b.Breaker.Allow() {
		return nil, fmt.Errorf("%s: %w", b.Provider, ErrCircuitOpen)
	}
	resp, err := b.do(ctx, req)
	b.Breaker.Record(err)
	if err == nil {
		return resp, nil
	}
	if b.Breaker.State() == BreakerOpen {
		b.Logger.Warn("Provider circuit opened", map[string]interface{}{
			"operation":       "provider_circuit_open",
			"provider":        b.Provider,
			"sleep_window_ms": b.Breaker.SleepWindow.Milliseconds(),
		})
	}
	return nil, err
}

func (b *BaseClient) do(ctx context.Context, req *http.Request) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= b.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := b.backoff(attempt - 1)
			b.Logger.Warn("Provider request failed, retrying", map[string]interface{}{
				"operation":      "provider_request_retry",
				"provider":       b.Provider,
				"attempt":        attempt + 1,
				"max_retries":    b.MaxRetries,
				"retry_delay_ms": delay.Milliseconds(),
				"error":          lastErr.Error(),
			})
			if b.retries != nil {
				b.retries.Add(ctx, 1, metric.WithAttributes(attribute.String("provider", b.Provider)))
			}
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		attemptReq := req.Clone(ctx)
		if req.Body != nil && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("%s: failed to rewind request body: %w", b.Provider, err)
			}
			attemptReq.Body = body
		}

		resp, err := b.HTTPClient.Do(attemptReq)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			if attempt > 0 {
				b.Logger.Info("Provider request succeeded after retry", map[string]interface{}{
					"operation": "provider_request_recovery",
					"provider":  b.Provider,
					"attempts":  attempt + 1,
				})
			}
			return resp, nil
		}

		statusErr := readStatusError(b.Provider, resp)
		if !statusErr.Retryable() {
			b.Logger.Error("Provider request failed with non-retryable status", map[string]interface{}{
				"operation":   "provider_request_error",
				"provider":    b.Provider,
				"status_code": statusErr.StatusCode,
			})
			return nil, statusErr
		}
		lastErr = statusErr
	}

	b.Logger.Error("Provider request failed after all retries", map[string]interface{}{
		"operation":      "provider_request_final_failure",
		"provider":       b.Provider,
		"total_attempts": b.MaxRetries + 1,
		"error":          lastErr.Error(),
	})
	return nil, fmt.Errorf("request failed after %d retries: %w", b.MaxRetries, lastErr)
}

// DoJSON sends req and decodes a 2xx JSON response into out. out may be nil.
func (b *BaseClient) DoJSON(ctx context.Context, req *http.Request, out any) error {
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	resp, err := b.Do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: failed to decode response: %w", b.Provider, err)
	}
	return nil
}

// NewJSONRequest builds a request with a JSON-encoded body.
func NewJSONRequest(ctx context.Context, method, url string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (b *BaseClient) backoff(n int) time.Duration {
	if n > 16 {
		n = 16
	}
	return b.RetryDelay * time.Duration(1<<uint(n))
}

func readStatusError(provider string, resp *http.Response) *StatusError {
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{
		Provider:   provider,
		StatusCode: resp.StatusCode,
		Body:       string(bytes.TrimSpace(body)),
	}
}

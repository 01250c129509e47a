package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-dashboard/internal/common"
	"github.com/i474232898/weather-dashboard/internal/weather"
)

// BackoffConfig controls exponential backoff behaviour.
// MaxRetries of 0 disables retries.
type BackoffConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// HTTPClientConfig bundles HTTP client and resilience settings.
type HTTPClientConfig struct {
	Client  *http.Client
	Backoff BackoffConfig
}

var (
	errNoHTTPClient  = errors.New("http client not configured")
	errInvalidConfig = errors.New("invalid backoff configuration")
)

func newCircuitBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,

		// A caller giving up says nothing about the provider's health.
		IsSuccessful: func(err error) bool {
			return err == nil || weather.IsCancelled(err)
		},
	})
}

// doRequestWithResilience executes the HTTP request with retries, exponential
// backoff and a circuit breaker. Every failure is returned as a
// *weather.APIError. Only 429 and 5xx responses trip the breaker or get
// retried; other non-2xx statuses are returned as is.
func doRequestWithResilience(
	ctx context.Context,
	cfg HTTPClientConfig,
	cb *gobreaker.CircuitBreaker,
	buildRequest func() (*http.Request, error),
) (*http.Response, error) {
	if cfg.Client == nil {
		return nil, errNoHTTPClient
	}
	if cfg.Backoff.MaxRetries < 0 || (cfg.Backoff.MaxRetries > 0 && cfg.Backoff.InitialInterval <= 0) {
		return nil, errInvalidConfig
	}

	var attempt int

	for {
		if ctx.Err() != nil {
			return nil, classifyTransportError(ctx, ctx.Err())
		}

		req, err := buildRequest()
		if err != nil {
			return nil, err
		}

		// Ensure the request obeys context cancellation.
		req = req.WithContext(ctx)
		req.Header.Set("Accept", "application/json")

		result, err := cb.Execute(func() (interface{}, error) {
			resp, execErr := cfg.Client.Do(req)
			if execErr != nil {
				return nil, classifyTransportError(ctx, execErr)
			}

			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				return nil, statusError(resp)
			}
			return resp, nil
		})

		if err == nil {
			resp, ok := result.(*http.Response)
			if !ok {
				return nil, fmt.Errorf("unexpected result type from circuit breaker")
			}
			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				return nil, statusError(resp)
			}
			return resp, nil
		}

		// If circuit is open, propagate immediately.
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &weather.APIError{Kind: weather.KindServer, Message: "circuit breaker open", Err: err}
		}

		if !retryable(err) || attempt >= cfg.Backoff.MaxRetries {
			return nil, err
		}

		// Backoff with exponential delay.
		delay := cfg.Backoff.InitialInterval * time.Duration(math.Pow(2, float64(attempt)))
		if delay > cfg.Backoff.MaxInterval && cfg.Backoff.MaxInterval > 0 {
			delay = cfg.Backoff.MaxInterval
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, classifyTransportError(ctx, ctx.Err())
		case <-timer.C:
			// continue to next attempt
		}

		attempt++
	}
}

func retryable(err error) bool {
	switch weather.KindOf(err) {
	case weather.KindNetwork, weather.KindTimeout, weather.KindRateLimited, weather.KindServer:
		return true
	default:
		return false
	}
}

// statusError drains and closes resp, turning it into a classified error.
// The provider reports failures as {"cod": ..., "message": "..."}.
func statusError(resp *http.Response) error {
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var payload struct {
		Message string `json:"message"`
	}
	msg := resp.Status
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		msg = payload.Message
	}

	return &weather.APIError{
		Kind:       weather.KindFromStatus(resp.StatusCode),
		StatusCode: resp.StatusCode,
		Message:    msg,
	}
}

func classifyTransportError(ctx context.Context, err error) error {
	kind := weather.KindNetwork

	var netErr net.Error
	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		kind = weather.KindCancelled
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = weather.KindTimeout
	case errors.Is(err, context.DeadlineExceeded):
		kind = weather.KindTimeout
	case errors.Is(err, context.Canceled):
		kind = weather.KindCancelled
	case common.HasAny(strings.ToLower(err.Error()), "timeout", "deadline exceeded"):
		kind = weather.KindTimeout
	}

	return &weather.APIError{Kind: kind, Message: "request failed", Err: err}
}

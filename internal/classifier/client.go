// Package classifier talks to the remote plant-health scoring service. The
// service is treated as untrusted: every call runs under a bounded timeout,
// behind a circuit breaker, with at most one configured retry.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"github.com/agrosense/cropwatch/internal/model/messages"
)

type Config struct {
	Endpoint string
	Timeout  time.Duration
	// Retries is the number of extra attempts after a failed call. The
	// pipeline contract allows 0 (default) or 1; never automatic beyond that.
	Retries uint64

	BreakerFailures uint32
	BreakerOpenFor  time.Duration
}

type Client struct {
	cfg     Config
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerOpenFor <= 0 {
		cfg.BreakerOpenFor = 30 * time.Second
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "classifier",
		Timeout: cfg.BreakerOpenFor,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= cfg.BreakerFailures
		},
	})
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		breaker: cb,
	}
}

type classifyRequest struct {
	Image string `json:"image"`
}

// Classify sends one image reference for scoring and returns the verdict.
// Errors always carry a ClassificationError kind.
func (c *Client) Classify(ctx context.Context, imageRef string) (messages.Verdict, error) {
	var verdict messages.Verdict

	attempt := func() error {
		res, err := c.breaker.Execute(func() (any, error) {
			return c.doRequest(ctx, imageRef)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(&ClassificationError{Kind: KindUnavailable, Err: err})
			}
			var ce *ClassificationError
			if errors.As(err, &ce) && ce.Kind == KindBadPayload {
				// A decode failure is not transient; retrying cannot help.
				return backoff.Permanent(err)
			}
			return err
		}
		verdict = res.(messages.Verdict)
		return nil
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.cfg.Retries), ctx)
	if err := backoff.Retry(attempt, bo); err != nil {
		var ce *ClassificationError
		if errors.As(err, &ce) {
			return messages.Verdict{}, ce
		}
		return messages.Verdict{}, &ClassificationError{Kind: KindUnreachable, Err: err}
	}
	return verdict, nil
}

func (c *Client) doRequest(ctx context.Context, imageRef string) (messages.Verdict, error) {
	body, err := json.Marshal(classifyRequest{Image: imageRef})
	if err != nil {
		return messages.Verdict{}, &ClassificationError{Kind: KindBadPayload, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return messages.Verdict{}, &ClassificationError{Kind: KindUnreachable, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return messages.Verdict{}, &ClassificationError{Kind: KindUnreachable, Err: err}
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(res.Body, 256))
		return messages.Verdict{}, &ClassificationError{
			Kind:   KindBadStatus,
			Status: res.StatusCode,
			Err:    fmt.Errorf("classifier status %d: %s", res.StatusCode, string(b)),
		}
	}

	var v messages.Verdict
	if err := json.NewDecoder(res.Body).Decode(&v); err != nil {
		return messages.Verdict{}, &ClassificationError{Kind: KindBadPayload, Err: err}
	}
	return v, nil
}

// BreakerState exposes the breaker state for health reporting.
func (c *Client) BreakerState() gobreaker.State { return c.breaker.State() }

package acquire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

var (
	errUnexpected   = errors.New("unexpected status code")
	errShortPayload = errors.New("payload too small")
	errCircuitOpen  = errors.New("circuit breaker open")
	errNoHTTPClient = errors.New("http client not configured")
)

// fetchResult is returned through the circuit breaker. A not-found status is a
// successful call for the breaker: the provider answered, the hour is just not
// published yet.
type fetchResult struct {
	body     []byte
	notFound bool
}

// fetch performs one GET under the rate limiter and the circuit breaker. It does
// not retry; absence is handled by the caller.
func fetch(
	ctx context.Context,
	client *http.Client,
	cb *gobreaker.CircuitBreaker,
	limiter *rate.Limiter,
	url string,
	minPayload int,
) ([]byte, error) {
	if client == nil {
		return nil, errNoHTTPClient
	}
	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: waiting for rate limiter: %v", ErrAcquisition, err)
		}
	}

	result, err := cb.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			io.Copy(io.Discard, resp.Body)
			return fetchResult{notFound: true}, nil
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("%w: %d", errUnexpected, resp.StatusCode)
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}
		if len(body) < minPayload {
			return nil, fmt.Errorf("%w: %d bytes", errShortPayload, len(body))
		}
		return fetchResult{body: body}, nil
	})

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %w: %v", ErrAcquisition, errCircuitOpen, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrAcquisition, err)
	}

	res, ok := result.(fetchResult)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected result type from circuit breaker", ErrAcquisition)
	}
	if res.notFound {
		return nil, ErrNotPublished
	}
	return res.body, nil
}

package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Renderer turns a page address into its final markup.
// A Renderer serves one page at a time and must not be shared between goroutines.
type Renderer interface {
	Render(ctx context.Context, url string) (string, error)
	Close() error
}

// SessionFactory opens a new rendering session for exclusive use by one worker.
type SessionFactory func() (Renderer, error)

// HTTPRenderer fetches static markup over plain HTTP.
type HTTPRenderer struct {
	client  *http.Client
	retries int
	backoff time.Duration
}

func NewHTTPRenderer(timeout time.Duration, retries int) *HTTPRenderer {
	if retries < 1 {
		retries = 1
	}

	return &HTTPRenderer{
		client: &http.Client{
			Timeout: timeout,
		},
		retries: retries,
		backoff: 250 * time.Millisecond,
	}
}

// HTTPSessions returns a factory of plain HTTP sessions.
func HTTPSessions(timeout time.Duration, retries int) SessionFactory {
	return func() (Renderer, error) {
		return NewHTTPRenderer(timeout, retries), nil
	}
}

func (r *HTTPRenderer) Render(ctx context.Context, url string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= r.retries; attempt++ {
		if attempt > 1 {
			// exponential backoff with jitter
			wait := r.backoff*time.Duration(1<<(attempt-2)) + time.Duration(rand.Intn(100))*time.Millisecond
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(wait):
			}
		}

		body, retry, err := r.fetch(ctx, url)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !retry || ctx.Err() != nil {
			break
		}
	}

	if lastErr == nil {
		lastErr = errors.New("request failed")
	}
	return "", fmt.Errorf("could not render %s: %w", url, lastErr)
}

func (r *HTTPRenderer) fetch(ctx context.Context, url string) (string, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return "", false, fmt.Errorf("could not create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", true, err
	}
	defer resp.Body.Close() //nolint: errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", true, fmt.Errorf("could not read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", isRetryableStatus(resp.StatusCode), fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}

	return string(body), false, nil
}

func (r *HTTPRenderer) Close() error {
	r.client.CloseIdleConnections()
	return nil
}

func isRetryableStatus(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

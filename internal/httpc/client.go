// Package httpc builds the HTTP clients used by the provider SDKs and the
// plain HTTP providers, and the retry loop the plain ones share.
package httpc

import (
	"bytes"
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"
)

const (
	DefaultTimeout   = 30 * time.Second
	connectTimeout   = 10 * time.Second
	keepAlive        = 30 * time.Second
	idleConnTimeout  = 90 * time.Second
	handshakeTimeout = 10 * time.Second
)

// NewClient returns a client with its own pooled transport. A zero timeout
// uses DefaultTimeout.
func NewClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           (&net.Dialer{Timeout: connectTimeout, KeepAlive: keepAlive}).DialContext,
			MaxIdleConnsPerHost:   4,
			IdleConnTimeout:       idleConnTimeout,
			TLSHandshakeTimeout:   handshakeTimeout,
			ExpectContinueTimeout: time.Second,
		},
	}
}

// NewJSONRequest builds a POST carrying body as JSON.
func NewJSONRequest(ctx context.Context, url string, body []byte, headers map[string]string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return req, nil
}

// Retry configures DoWithRetry.
type Retry struct {
	MaxRetries int
	// Delay before the first retry; the nth retry waits n times as long.
	Delay  time.Duration
	Logger *slog.Logger
}

// Retryable reports whether a response status is worth another attempt.
func Retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// DoWithRetry sends the request built by newReq, retrying transport failures
// and Retryable statuses. The last response is returned whatever its status,
// so callers decode API errors in one place. Cancellation returns ctx.Err().
func DoWithRetry(ctx context.Context, c *http.Client, r Retry, newReq func() (*http.Request, error)) (*http.Response, error) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var lastErr error
	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			t := time.NewTimer(r.Delay * time.Duration(attempt))
			select {
			case <-ctx.Done():
				t.Stop()
				return nil, ctx.Err()
			case <-t.C:
			}
		}

		req, err := newReq()
		if err != nil {
			return nil, err
		}
		resp, err := c.Do(req)
		final := attempt >= r.MaxRetries

		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			if final {
				return nil, lastErr
			}
			logger.Warn("request failed, retrying", "attempt", attempt+1, "error", err)
		case Retryable(resp.StatusCode) && !final:
			resp.Body.Close()
			logger.Warn("retrying request", "attempt", attempt+1, "status", resp.StatusCode)
		default:
			return resp, nil
		}
	}
}

package util

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// RetryTransport retries idempotent requests that fail with a network error or
// a 5xx status, waiting Backoff, 2*Backoff, ... between attempts.
type RetryTransport struct {
	Base    http.RoundTripper
	Retries int
	Backoff time.Duration
	Logger  *zap.Logger
}

func (t *RetryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	if !retryable(req) {
		return base.RoundTrip(req)
	}

	wait := t.Backoff
	for attempt := 0; ; attempt++ {
		resp, err := base.RoundTrip(req)
		if attempt >= t.Retries || !shouldRetry(resp, err) {
			return resp, err
		}

		if t.Logger != nil {
			fields := []zap.Field{zap.String("url", redact(req)), zap.Int("attempt", attempt+1)}
			if err != nil {
				fields = append(fields, zap.Error(err))
			} else {
				fields = append(fields, zap.Int("status", resp.StatusCode))
			}
			t.Logger.Warn("Retrying request", fields...)
		}
		if resp != nil {
			resp.Body.Close()
		}

		timer := time.NewTimer(wait)
		select {
		case <-req.Context().Done():
			timer.Stop()
			return nil, req.Context().Err()
		case <-timer.C:
		}
		wait *= 2
	}
}

func retryable(req *http.Request) bool {
	return (req.Method == http.MethodGet || req.Method == http.MethodHead) && req.Body == nil
}

func shouldRetry(resp *http.Response, err error) bool {
	if err != nil {
		return true
	}
	return resp.StatusCode >= 500
}

package util

import (
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const defaultBackoff = 500 * time.Millisecond

// NewHTTPClient returns a client that retries idempotent requests and logs
// traffic at debug level.
func NewHTTPClient(timeout time.Duration, retries int, logger *zap.Logger) *http.Client {
	return &http.Client{
		Transport: &LoggingTransport{
			Base:   &RetryTransport{Retries: retries, Backoff: defaultBackoff, Logger: logger},
			Logger: logger,
		},
		Timeout: timeout,
	}
}

// Credentials are the optional basic auth credentials of a catalog account.
type Credentials struct {
	Username string
	Password string
}

// Apply sets basic auth on req when a username is configured.
func (c Credentials) Apply(req *http.Request) {
	if c.Username != "" {
		req.SetBasicAuth(c.Username, c.Password)
	}
}

// StatusError reports an unexpected HTTP response status.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status: %d", e.URL, e.StatusCode)
}

package util

import (
	"bytes"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// maxLoggedBody caps how much of a body is written to the debug log.
const maxLoggedBody = 4096

// LoggingTransport is an http.RoundTripper that logs requests and responses
// when the logger has debug enabled.
type LoggingTransport struct {
	Base   http.RoundTripper
	Logger *zap.Logger
}

func (t *LoggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	if t.Logger == nil || !t.Logger.Core().Enabled(zap.DebugLevel) {
		return base.RoundTrip(req)
	}

	// Request logging
	var reqBody []byte
	if req.Body != nil {
		reqBody, _ = io.ReadAll(req.Body)
		req.Body = io.NopCloser(bytes.NewBuffer(reqBody))
	}

	fields := []zap.Field{zap.String("method", req.Method), zap.String("url", redact(req))}
	if len(reqBody) > 0 {
		fields = append(fields, zap.Int("body_bytes", len(reqBody)))
	}
	t.Logger.Debug("Outbound request", fields...)

	resp, err := base.RoundTrip(req)
	if err != nil {
		t.Logger.Debug("Outbound request failed", zap.String("url", redact(req)), zap.Error(err))
		return resp, err
	}

	// Response logging. Content downloads are not buffered.
	fields = []zap.Field{zap.Int("status", resp.StatusCode), zap.String("url", redact(req))}
	if isTextual(resp.Header.Get("Content-Type")) {
		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		resp.Body = io.NopCloser(bytes.NewBuffer(respBody))
		if len(respBody) > 0 {
			fields = append(fields, zap.String("body", truncate(respBody)))
		}
	}
	t.Logger.Debug("Outbound response", fields...)

	return resp, nil
}

func isTextual(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "xml") || strings.HasPrefix(ct, "text/") || strings.Contains(ct, "json")
}

func truncate(b []byte) string {
	if len(b) <= maxLoggedBody {
		return string(b)
	}
	return string(b[:maxLoggedBody]) + "...(truncated)"
}

func redact(req *http.Request) string {
	u := *req.URL
	u.User = nil
	return u.String()
}

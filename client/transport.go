package client

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"gitlab.com/gitlab-org/labkit/fields"
	"gitlab.com/gitlab-org/labkit/v2/log"

	"gitlab.com/gitlab-org/correlated-http/internal/metrics"
)

type transport struct {
	next        http.RoundTripper
	diagnostics bool
}

// TransportOption configures the correlation transport.
type TransportOption func(*transport)

// WithDiagnostics enables the per-request correlation diagnostic line.
// Intended for development-mode configurations; production configurations
// leave it off and produce no diagnostic output.
func WithDiagnostics() TransportOption {
	return func(t *transport) {
		t.diagnostics = true
	}
}

// RoundTrip executes a single HTTP transaction. The request is augmented with
// a correlation id before it is sent; transport failures propagate to the
// caller unmodified. Any settled response is returned as-is regardless of its
// status code.
func (rt *transport) RoundTrip(request *http.Request) (*http.Response, error) {
	ctx := request.Context()
	logger := log.New()

	request = WithCorrelationID(request)

	start := time.Now()

	response, err := rt.next.RoundTrip(request)

	ctx = log.AppendFields(ctx,
		slog.String("method", requestMethod(request)),
		slog.String("url", request.URL.String()),
		slog.Duration("duration", time.Since(start)/time.Millisecond),
	)

	if err != nil {
		logger.ErrorContext(ctx,
			"API unreachable",
			slog.String(fields.ErrorMessage, err.Error()),
		)
		return response, err
	}

	ctx = log.AppendFields(ctx,
		slog.Int("status", response.StatusCode),
	)

	if rt.diagnostics {
		if id, ok := ExtractCorrelationID(response); ok {
			logger.DebugContext(ctx, fmt.Sprintf("[HTTP] %s %s - Correlation-Id: %s", requestMethod(request), request.URL.String(), id))
		}
	}

	if response.StatusCode >= 400 {
		logger.ErrorContext(ctx, "API error")
		return response, nil
	}

	if response.ContentLength >= 0 {
		ctx = log.AppendFields(
			ctx,
			slog.Int64("content_length_bytes", response.ContentLength),
		)
	}

	logger.InfoContext(ctx, "Finished HTTP request")
	return response, nil
}

func requestMethod(request *http.Request) string {
	if request.Method == "" {
		return http.MethodGet
	}

	return request.Method
}

// DefaultTransport returns a clone of the default HTTP transport.
func DefaultTransport() http.RoundTripper {
	return http.DefaultTransport.(*http.Transport).Clone()
}

// NewTransport creates a transport that correlates and instruments every
// outgoing request.
func NewTransport(next http.RoundTripper, opts ...TransportOption) http.RoundTripper {
	t := &transport{next: next}
	for _, opt := range opts {
		opt(t)
	}
	return metrics.NewRoundTripper(t)
}

// Package client provides an HTTP client with correlation-id handling,
// enhanced logging and error shaping.
package client

import (
	"net/http"

	"github.com/google/uuid"
)

// CorrelationHeader is the header carrying the correlation id on both the
// request and the response.
const CorrelationHeader = "X-Correlation-Id"

// GenerateCorrelationID returns a fresh version-4 UUID in its canonical
// 36-character lowercase hyphenated form. Ids are independent between calls
// and are meant for log correlation, not for security tokens.
func GenerateCorrelationID() string {
	return uuid.NewString()
}

// WithCorrelationID returns a clone of the request that carries a correlation
// id header. A correlation id the caller already set, under any casing of the
// header name, is left untouched so that ids can be propagated explicitly
// across chained calls. The original request is never mutated.
func WithCorrelationID(request *http.Request) *http.Request {
	request = request.Clone(request.Context())

	if request.Header == nil {
		request.Header = http.Header{}
	}

	if request.Header.Get(CorrelationHeader) == "" {
		request.Header.Set(CorrelationHeader, GenerateCorrelationID())
	}

	return request
}

// ExtractCorrelationID reads the correlation id from the response headers.
// The lookup is case-insensitive. The second return value reports whether an
// id was present; the response body is never inspected.
func ExtractCorrelationID(response *http.Response) (string, bool) {
	if response == nil {
		return "", false
	}

	id := response.Header.Get(CorrelationHeader)
	if id == "" {
		return "", false
	}

	return id, true
}

package client

import (
	"encoding/json"
	"io"
	"net/http"
	"time"
)

// UnparseableResponseCode is the sentinel error code used when a failed
// response carries a body that cannot be decoded as a JSON error object.
// Empty, malformed and truncated bodies all collapse to this one code.
const UnparseableResponseCode = "UNPARSEABLE_RESPONSE"

// ErrorSource reports which evidence a CorrelatedError was built from.
type ErrorSource int

const (
	// ErrorSourceBody means the error was decoded from a structured JSON body.
	ErrorSourceBody ErrorSource = iota
	// ErrorSourceFallback means the body was unusable and the error was
	// assembled from the status line and response headers.
	ErrorSourceFallback
)

// CorrelatedError is a structured error decoded from a failed response. A
// missing correlation id is represented by an empty CorrelationID, never by a
// fabricated value.
type CorrelatedError struct {
	ErrorCode     string            `json:"errorCode,omitempty"`
	Message       string            `json:"message"`
	CorrelationID string            `json:"correlationId,omitempty"`
	FieldErrors   map[string]string `json:"fieldErrors,omitempty"`
	Timestamp     time.Time         `json:"timestamp,omitzero"`

	Source ErrorSource `json:"-"`
}

func (e *CorrelatedError) Error() string {
	return FormatErrorWithCorrelation(e.Message, e.CorrelationID)
}

// ParseErrorResponse builds a CorrelatedError from a failed response. The
// body is decoded as a JSON error object; when it decodes, its fields win and
// the correlation header is only consulted for a missing correlationId. Any
// decode failure is converted into a fallback error carrying
// UnparseableResponseCode and the status text, so this function itself never
// fails. A body that decodes without the required message field (such as
// `null` or `{}`) is as unusable as a malformed one and takes the same
// fallback path, so Message is always populated. The response body is
// consumed exactly once and closed.
func ParseErrorResponse(response *http.Response) *CorrelatedError {
	parsedError := &CorrelatedError{}

	body, readErr := io.ReadAll(response.Body)
	_ = response.Body.Close()

	if readErr != nil || json.Unmarshal(body, parsedError) != nil || parsedError.Message == "" {
		parsedError = &CorrelatedError{
			ErrorCode: UnparseableResponseCode,
			Message:   statusText(response),
			Source:    ErrorSourceFallback,
		}
	} else {
		parsedError.Source = ErrorSourceBody
	}

	if parsedError.CorrelationID == "" {
		if id, ok := ExtractCorrelationID(response); ok {
			parsedError.CorrelationID = id
		}
	}

	return parsedError
}

// FormatErrorWithCorrelation renders a user-facing message, appending the
// correlation id when one is known so that a user report can be matched to
// server-side logs. Without an id the message is returned unchanged.
func FormatErrorWithCorrelation(message, correlationID string) string {
	if correlationID == "" {
		return message
	}

	return message + " (Correlation ID: " + correlationID + ")"
}

func statusText(response *http.Response) string {
	if text := http.StatusText(response.StatusCode); text != "" {
		return text
	}

	return response.Status
}

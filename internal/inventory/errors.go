package inventory

import (
	"fmt"
	"io"
	"net/http"
)

// APIError is the base error type for HTTP errors from the inventory
// service. It supports errors.Is matching by status code.
type APIError struct {
	StatusCode int
	Message    string
}

// Error returns the formatted error string.
func (e *APIError) Error() string {
	return fmt.Sprintf("inventory: HTTP %d: %s", e.StatusCode, e.Message)
}

// Is supports errors.Is matching by status code. ErrServer (500) matches
// any 5xx status code; all other sentinels require an exact match.
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	if !ok {
		return false
	}
	if t.StatusCode == 500 && e.StatusCode >= 500 && e.StatusCode < 600 {
		return true
	}
	return e.StatusCode == t.StatusCode
}

// Sentinel errors for common HTTP error status codes.
var (
	ErrBadRequest = &APIError{StatusCode: 400, Message: "bad request"}
	ErrNotFound   = &APIError{StatusCode: 404, Message: "not found"}
	ErrConflict   = &APIError{StatusCode: 409, Message: "conflict"}
	ErrServer     = &APIError{StatusCode: 500, Message: "server error"}
)

// ErrOwnsNothing is returned by FetchSnapshot when the inventory answers
// 404 for this endpoint's resources. This is a distinguished semantic
// absence — "this endpoint owns nothing" — and is not a transport
// failure: callers (the reconciler) treat it as a request to tear down every
// locally-managed interface, not as a reason to keep stale state.
var ErrOwnsNothing = fmt.Errorf("inventory: endpoint owns nothing: %w", ErrNotFound)

// maxErrorBody is the maximum number of bytes read from an error response body.
const maxErrorBody = 4096

// errorFromResponse creates an error from a non-2xx HTTP response. A 404 is
// translated to ErrOwnsNothing so callers can distinguish it with errors.Is
// without inspecting status codes themselves.
func errorFromResponse(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	if resp.StatusCode == http.StatusNotFound {
		return ErrOwnsNothing
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    string(body),
	}
}

package llm

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedResponse marks a 2xx response whose body did not carry a
// generated-text field at the expected path. Providers wrap it with detail.
var ErrMalformedResponse = errors.New("malformed completion response")

// HTTPError is a non-2xx reply from a completion endpoint. Transport-level
// failures (connection refused, timeout) are returned untyped from the HTTP
// client instead.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("llm http %d", e.Status)
	}
	return fmt.Sprintf("llm http %d: %s", e.Status, body)
}

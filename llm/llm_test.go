package llm

import (
	"errors"
	"fmt"
	"testing"
)

func TestHTTPErrorMessage(t *testing.T) {
	t.Parallel()

	err := &HTTPError{Status: 429, Body: `{"error":"rate limited"}`}
	want := `llm http 429: {"error":"rate limited"}`
	if err.Error() != want {
		t.Fatalf("error string mismatch: got %q want %q", err.Error(), want)
	}

	bare := &HTTPError{Status: 500}
	if bare.Error() != "llm http 500" {
		t.Fatalf("error string mismatch: got %q want %q", bare.Error(), "llm http 500")
	}
}

func TestHTTPErrorAs(t *testing.T) {
	t.Parallel()

	var httpErr *HTTPError
	wrapped := fmt.Errorf("chat: %w", &HTTPError{Status: 503})
	if !errors.As(wrapped, &httpErr) {
		t.Fatalf("errors.As mismatch: got false want true")
	}
	if httpErr.Status != 503 {
		t.Fatalf("status mismatch: got %d want 503", httpErr.Status)
	}
}

func TestMalformedResponseIs(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("%w: empty choices", ErrMalformedResponse)
	if !errors.Is(wrapped, ErrMalformedResponse) {
		t.Fatalf("errors.Is mismatch: got false want true")
	}
}

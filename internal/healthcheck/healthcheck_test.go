package healthcheck

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"
)

func TestNormalizeListen(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"  ", ""},
		{"8080", ":8080"},
		{":8080", ":8080"},
		{"127.0.0.1:8080", "127.0.0.1:8080"},
	}
	for _, tc := range cases {
		if got := NormalizeListen(tc.in); got != tc.want {
			t.Fatalf("NormalizeListen(%q) mismatch: got %q want %q", tc.in, got, tc.want)
		}
	}
}

func TestStartServerServesHealth(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	srv, err := StartServer(ctx, nil, "127.0.0.1:0", "telegram")
	if err != nil {
		t.Fatalf("start server: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	resp, err := http.Get("http://" + srv.Addr() + "/")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status mismatch: got %d want %d", resp.StatusCode, http.StatusOK)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	var payload map[string]string
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if payload["status"] != "ok" {
		t.Fatalf("status field mismatch: got %q", payload["status"])
	}
	if payload["channel"] != "telegram" {
		t.Fatalf("channel field mismatch: got %q", payload["channel"])
	}
}

func TestHandlerRejectsOtherPaths(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	srv, err := StartServer(ctx, nil, "127.0.0.1:0", "telegram")
	if err != nil {
		t.Fatalf("start server: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	resp, err := http.Get("http://" + srv.Addr() + "/nope")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status mismatch: got %d want %d", resp.StatusCode, http.StatusNotFound)
	}
}

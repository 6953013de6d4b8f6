// Package healthcheck serves the liveness endpoint for long-running bot
// processes.
package healthcheck

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"
)

type Server struct {
	httpServer *http.Server
	addr       string
}

// NormalizeListen turns a bare port ("8080" or ":8080") into a listen
// address. Empty input disables the server.
func NormalizeListen(listen string) string {
	listen = strings.TrimSpace(listen)
	if listen == "" {
		return ""
	}
	if !strings.Contains(listen, ":") {
		return ":" + listen
	}
	return listen
}

// Handler returns the health mux for channel. It can be mounted on an
// existing server (the webhook listener) instead of a dedicated one.
func Handler(channel string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status":  "ok",
			"channel": channel,
		})
	})
	return mux
}

// StartServer listens on addr and answers GET / with a small JSON body.
func StartServer(ctx context.Context, logger *slog.Logger, addr, channel string) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	srv := &http.Server{
		Handler:           Handler(channel),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	s := &Server{httpServer: srv, addr: listener.Addr().String()}
	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("health_server_error", "addr", s.addr, "error", err.Error())
		}
	}()
	return s, nil
}

// Addr is the bound listen address, useful when addr was ":0".
func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	return s.addr
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s == nil || s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

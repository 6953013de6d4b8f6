package telegram

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/level5vta-creator/ejdevassistant-bot/internal/healthcheck"
)

const webhookPath = "/webhook"

// WebhookHandler answers Telegram's update POSTs. A publish failure returns
// 500 so Telegram retries the delivery; the bus idempotency key absorbs the
// duplicate once the original eventually lands.
func WebhookHandler(logger *slog.Logger, secretToken string, handle func(context.Context, Update) error) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+webhookPath, func(w http.ResponseWriter, r *http.Request) {
		if secretToken != "" {
			got := r.Header.Get("X-Telegram-Bot-Api-Secret-Token")
			if subtle.ConstantTimeCompare([]byte(got), []byte(secretToken)) != 1 {
				logger.Warn("telegram_webhook_bad_secret", "remote", r.RemoteAddr)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		var u Update
		if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
			logger.Warn("telegram_webhook_bad_body", "error", err.Error())
			http.Error(w, "bad update", http.StatusInternalServerError)
			return
		}
		if err := handle(r.Context(), u); err != nil {
			logger.Warn("telegram_webhook_handle_error", "update_id", u.UpdateID, "error", err.Error())
			http.Error(w, "handle failed", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("GET /{$}", healthcheck.Handler("telegram"))
	return mux
}

func (rt *Runtime) runWebhook(ctx context.Context) error {
	logger := rt.opts.Logger

	webhookURL := strings.TrimRight(strings.TrimSpace(rt.opts.WebhookURL), "/") + webhookPath
	if err := rt.opts.API.SetWebhook(ctx, webhookURL, rt.opts.WebhookSecret); err != nil {
		return fmt.Errorf("telegram setWebhook: %w", err)
	}
	logger.Info("telegram_webhook_set", "url", webhookURL)

	listen := healthcheck.NormalizeListen(rt.opts.WebhookListen)
	if listen == "" {
		listen = ":8443"
	}
	listener, err := net.Listen("tcp", listen)
	if err != nil {
		return fmt.Errorf("webhook listen: %w", err)
	}
	srv := &http.Server{
		Handler:           WebhookHandler(logger, rt.opts.WebhookSecret, rt.HandleUpdate),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(listener)
	}()
	logger.Info("telegram_webhook_listen", "addr", listener.Addr().String())

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		logger.Info("telegram_stop", "reason", "context_canceled")
		return nil
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("webhook server: %w", err)
		}
		return nil
	}
}

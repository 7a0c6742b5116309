package ingress

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/quailyquaily/auditdesk/internal/debuglog"
	"github.com/quailyquaily/auditdesk/internal/outputfmt"
	"github.com/quailyquaily/auditdesk/internal/telegramapi"
)

const (
	DefaultWebhookPath = "/telegram/webhook"
	SecretHeader       = "X-Telegram-Bot-Api-Secret-Token"
	maxBodyBytes       = 1 << 20
)

type UpdateSink interface {
	Dispatch(ctx context.Context, u telegramapi.Update) error
}

type ServerOptions struct {
	// Path defaults to DefaultWebhookPath.
	Path string
	// Secret, when set, must match the secret token header.
	Secret     string
	Dispatcher UpdateSink
	Logger     *slog.Logger
	// Sink records deliveries that were acknowledged but not dispatched. Optional.
	Sink *debuglog.Sink
}

func NewRouter(opts ServerOptions) http.Handler {
	path := strings.TrimSpace(opts.Path)
	if path == "" {
		path = DefaultWebhookPath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	secret := strings.TrimSpace(opts.Secret)

	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})
	r.Post(path, func(w http.ResponseWriter, r *http.Request) {
		if secret != "" && subtle.ConstantTimeCompare([]byte(r.Header.Get(SecretHeader)), []byte(secret)) != 1 {
			logger.Warn("webhook_unauthorized", "remote", r.RemoteAddr)
			writeJSON(w, http.StatusUnauthorized, map[string]any{"ok": false, "error": "unauthorized"})
			return
		}
		// Past the secret check every delivery is acknowledged with 200 so the
		// platform never redelivers; failures go to the logs only.
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		var u telegramapi.Update
		if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
			event := "webhook_bad_request"
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				event = "webhook_body_too_large"
			}
			logger.Warn(event, "error", err.Error())
			opts.Sink.Log(event, map[string]any{"error": err.Error()})
		} else if err := opts.Dispatcher.Dispatch(r.Context(), u); err != nil {
			msg := outputfmt.Error(err)
			logger.Error("webhook_dispatch_failed", "update_id", u.UpdateID, "error", msg)
			opts.Sink.Log("webhook_dispatch_failed", map[string]any{"update_id": u.UpdateID, "error": msg})
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

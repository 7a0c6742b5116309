// Package assist turns the generative endpoint into an llm.TextGenerator that
// never fails loudly: every problem becomes ("", false).
package assist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/quailyquaily/auditdesk/internal/debuglog"
	"github.com/quailyquaily/auditdesk/internal/outputfmt"
	"github.com/quailyquaily/auditdesk/llm"
	"github.com/quailyquaily/auditdesk/providers/generative"
	"github.com/quailyquaily/auditdesk/settings"
)

const DefaultAttemptTimeout = 15 * time.Second

// KeySource is satisfied by *settings.Resolver.
type KeySource interface {
	Env(key string) (string, bool)
	Get(ctx context.Context, key string) (string, bool)
}

type Generator interface {
	Generate(ctx context.Context, key string, req generative.Request, mode generative.AuthMode) (generative.Completion, error)
}

type Options struct {
	Keys           KeySource
	Client         Generator
	Sink           *debuglog.Sink
	Logger         *slog.Logger
	AttemptTimeout time.Duration
}

type Adapter struct {
	keys    KeySource
	client  Generator
	sink    *debuglog.Sink
	logger  *slog.Logger
	timeout time.Duration
}

var _ llm.TextGenerator = (*Adapter)(nil)

func New(opts Options) *Adapter {
	a := &Adapter{
		keys:    opts.Keys,
		client:  opts.Client,
		sink:    opts.Sink,
		logger:  opts.Logger,
		timeout: opts.AttemptTimeout,
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	if a.timeout <= 0 {
		a.timeout = DefaultAttemptTimeout
	}
	return a
}

var attemptModes = []generative.AuthMode{generative.AuthHeader, generative.AuthQuery}

func (a *Adapter) GenerateText(ctx context.Context, prompt string, opts llm.Options) (text string, ok bool) {
	if a == nil || a.client == nil {
		return "", false
	}
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("assist_panic", "panic", fmt.Sprint(r))
			a.sink.Log("assist_panic", map[string]any{"panic": fmt.Sprint(r)})
			text, ok = "", false
		}
	}()
	if ctx == nil {
		ctx = context.Background()
	}

	key := a.resolveKey(ctx)
	if key == "" {
		a.sink.Log("assist_skipped", map[string]any{"reason": "missing_key"})
		return "", false
	}

	req := generative.Request{
		Prompt:      prompt,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}
	for i, mode := range attemptModes {
		completion, err := a.attempt(ctx, key, req, mode)
		payload := map[string]any{
			"attempt":    i + 1,
			"auth":       mode.String(),
			"prompt_len": len(prompt),
		}
		if err != nil {
			msg := outputfmt.Error(err)
			payload["error"] = msg
			payload["timeout"] = errors.Is(err, context.DeadlineExceeded)
			a.sink.Log("assist_attempt_failed", payload)
			a.logger.Debug("assist_attempt_failed", "attempt", i+1, "auth", mode.String(), "error", msg)
			if ctx.Err() != nil {
				return "", false
			}
			continue
		}
		payload["shape"] = string(completion.Shape)
		if !completion.OK() {
			a.sink.Log("assist_attempt_unrecognized", payload)
			continue
		}
		if llm.IsEcho(completion.Text, prompt, opts.EchoPrefixes) {
			payload["text_len"] = len(completion.Text)
			a.sink.Log("assist_echo_rejected", payload)
			return "", false
		}
		payload["text_len"] = len(completion.Text)
		a.sink.Log("assist_ok", payload)
		return completion.Text, true
	}
	a.sink.Log("assist_exhausted", map[string]any{"attempts": len(attemptModes)})
	return "", false
}

func (a *Adapter) attempt(ctx context.Context, key string, req generative.Request, mode generative.AuthMode) (generative.Completion, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	return a.client.Generate(attemptCtx, key, req, mode)
}

// resolveKey checks the environment before the store so a deployment with an
// env-provided key never touches the store for it.
func (a *Adapter) resolveKey(ctx context.Context) string {
	if a.keys == nil {
		return ""
	}
	if v, ok := a.keys.Env(settings.KeyAIAPIKey); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	if v, ok := a.keys.Get(ctx, settings.KeyAIAPIKey); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

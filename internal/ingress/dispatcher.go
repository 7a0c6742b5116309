// Package ingress receives Telegram updates, over a webhook or long polling,
// and hands them to per-chat workers.
package ingress

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/quailyquaily/auditdesk/approval"
	"github.com/quailyquaily/auditdesk/conversation"
	"github.com/quailyquaily/auditdesk/internal/debuglog"
	"github.com/quailyquaily/auditdesk/internal/outputfmt"
	"github.com/quailyquaily/auditdesk/internal/telegramapi"
	"github.com/quailyquaily/auditdesk/internal/worker"
)

const (
	DefaultMaxConcurrency = 8
	DefaultDedupSize      = 2048
	DefaultDedupTTL       = 10 * time.Minute

	fallbackText = "Sorry, something went wrong while handling your message. Please try again in a moment."
)

type MessageHandler interface {
	Handle(ctx context.Context, in conversation.Incoming) error
}

type CallbackHandler interface {
	HandleCallback(ctx context.Context, cb approval.Callback) error
}

type Notifier interface {
	SendMessage(ctx context.Context, chatID int64, text string, opts telegramapi.SendOptions) error
}

type DispatcherOptions struct {
	Messages       MessageHandler
	Callbacks      CallbackHandler
	Notifier       Notifier
	Logger         *slog.Logger
	Sink           *debuglog.Sink
	MaxConcurrency int
	DedupSize      int
	DedupTTL       time.Duration
	Now            func() time.Time
}

type Dispatcher struct {
	messages  MessageHandler
	callbacks CallbackHandler
	notifier  Notifier
	logger    *slog.Logger
	sink      *debuglog.Sink
	pool      *worker.Pool[int64, telegramapi.Update]
	now       func() time.Time

	dedupMu  sync.Mutex
	dedup    *lru.Cache[int64, time.Time]
	dedupTTL time.Duration
}

func NewDispatcher(opts DispatcherOptions) (*Dispatcher, error) {
	if opts.Messages == nil || opts.Callbacks == nil {
		return nil, fmt.Errorf("missing update handlers")
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = DefaultMaxConcurrency
	}
	if opts.DedupSize <= 0 {
		opts.DedupSize = DefaultDedupSize
	}
	if opts.DedupTTL <= 0 {
		opts.DedupTTL = DefaultDedupTTL
	}
	cache, err := lru.New[int64, time.Time](opts.DedupSize)
	if err != nil {
		return nil, fmt.Errorf("update deduper init: %w", err)
	}
	d := &Dispatcher{
		messages:  opts.Messages,
		callbacks: opts.Callbacks,
		notifier:  opts.Notifier,
		logger:    opts.Logger,
		sink:      opts.Sink,
		now:       opts.Now,
		dedup:     cache,
		dedupTTL:  opts.DedupTTL,
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	if d.now == nil {
		d.now = time.Now
	}
	d.pool = worker.NewPool(worker.PoolOptions[int64, telegramapi.Update]{
		MaxConcurrency: opts.MaxConcurrency,
		Handle:         d.handle,
	})
	return d, nil
}

// RoutingKey returns the chat an update belongs to. Callback queries route by
// the chat of the message carrying the button.
func RoutingKey(u telegramapi.Update) (int64, bool) {
	switch {
	case u.Message != nil && u.Message.Chat != nil:
		return u.Message.Chat.ID, true
	case u.CallbackQuery != nil && u.CallbackQuery.Message != nil && u.CallbackQuery.Message.Chat != nil:
		return u.CallbackQuery.Message.Chat.ID, true
	case u.CallbackQuery != nil && u.CallbackQuery.From != nil:
		return u.CallbackQuery.From.ID, true
	default:
		return 0, false
	}
}

// Dispatch queues the update on its chat's worker. Duplicates and updates the
// bot does not act on are dropped without error.
func (d *Dispatcher) Dispatch(ctx context.Context, u telegramapi.Update) error {
	key, ok := RoutingKey(u)
	if !ok {
		d.logger.Debug("update_ignored", "update_id", u.UpdateID)
		return nil
	}
	if u.Message != nil && u.Message.From != nil && u.Message.From.IsBot {
		return nil
	}
	if d.isDuplicate(u.UpdateID) {
		d.logger.Info("update_duplicate", "update_id", u.UpdateID, "chat_id", key)
		return nil
	}
	if err := d.pool.Submit(ctx, key, u); err != nil {
		d.forget(u.UpdateID)
		return err
	}
	return nil
}

func (d *Dispatcher) isDuplicate(updateID int64) bool {
	if updateID == 0 {
		return false
	}
	d.dedupMu.Lock()
	defer d.dedupMu.Unlock()
	now := d.now()
	if ts, ok := d.dedup.Get(updateID); ok {
		if now.Sub(ts) <= d.dedupTTL {
			return true
		}
		d.dedup.Remove(updateID)
	}
	d.dedup.Add(updateID, now)
	return false
}

// forget lets a retried delivery through after a failed enqueue.
func (d *Dispatcher) forget(updateID int64) {
	d.dedupMu.Lock()
	d.dedup.Remove(updateID)
	d.dedupMu.Unlock()
}

// Drain blocks until every queued update has been handled.
func (d *Dispatcher) Drain() { d.pool.Drain() }

// Close stops accepting updates after draining the queued ones.
func (d *Dispatcher) Close() { d.pool.Close() }

func (d *Dispatcher) handle(ctx context.Context, chatID int64, u telegramapi.Update) {
	start := d.now()
	err := d.run(ctx, u)
	if err == nil {
		d.logger.Debug("update_handled", "update_id", u.UpdateID, "chat_id", chatID, "duration_ms", d.now().Sub(start).Milliseconds())
		return
	}
	msg := outputfmt.Error(err)
	d.logger.Error("update_handler_failed", "update_id", u.UpdateID, "chat_id", chatID, "error", msg)
	d.sink.Log("update_handler_failed", map[string]any{"update_id": u.UpdateID, "chat_id": chatID, "error": msg})
	if d.notifier == nil {
		return
	}
	if err := d.notifier.SendMessage(ctx, chatID, fallbackText, telegramapi.SendOptions{}); err != nil {
		d.logger.Warn("update_fallback_failed", "chat_id", chatID, "error", err.Error())
	}
}

func (d *Dispatcher) run(ctx context.Context, u telegramapi.Update) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	switch {
	case u.CallbackQuery != nil:
		cq := u.CallbackQuery
		cb := approval.Callback{ID: cq.ID, Data: cq.Data}
		if cq.Message != nil && cq.Message.Chat != nil {
			cb.ChatID = cq.Message.Chat.ID
		}
		if cq.From != nil {
			cb.FromUserID = cq.From.ID
			cb.FromUsername = cq.From.Username
		}
		return d.callbacks.HandleCallback(ctx, cb)
	case u.Message != nil:
		msg := u.Message
		text := msg.Text
		if strings.TrimSpace(text) == "" {
			text = msg.Caption
		}
		in := conversation.Incoming{ChatID: msg.Chat.ID, Text: text}
		if msg.From != nil {
			in.UserID = msg.From.ID
			in.Username = msg.From.Username
			in.DisplayName = telegramapi.DisplayName(msg.From)
		}
		return d.messages.Handle(ctx, in)
	}
	return nil
}

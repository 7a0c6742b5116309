package ingress

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/quailyquaily/auditdesk/approval"
	"github.com/quailyquaily/auditdesk/conversation"
	"github.com/quailyquaily/auditdesk/internal/debuglog"
	"github.com/quailyquaily/auditdesk/internal/telegramapi"
)

type recorder struct {
	mu        sync.Mutex
	messages  []conversation.Incoming
	callbacks []approval.Callback
	fallbacks []int64
	msgErr    error
	order     map[int64][]string
}

func (r *recorder) Handle(_ context.Context, in conversation.Incoming) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, in)
	if r.order == nil {
		r.order = map[int64][]string{}
	}
	r.order[in.ChatID] = append(r.order[in.ChatID], in.Text)
	return r.msgErr
}

func (r *recorder) HandleCallback(_ context.Context, cb approval.Callback) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callbacks = append(r.callbacks, cb)
	return nil
}

func (r *recorder) SendMessage(_ context.Context, chatID int64, _ string, _ telegramapi.SendOptions) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallbacks = append(r.fallbacks, chatID)
	return nil
}

func newTestDispatcher(t *testing.T, rec *recorder) *Dispatcher {
	t.Helper()
	d, err := NewDispatcher(DispatcherOptions{Messages: rec, Callbacks: rec, Notifier: rec, MaxConcurrency: 4})
	if err != nil {
		t.Fatalf("NewDispatcher() error = %v", err)
	}
	t.Cleanup(d.Close)
	return d
}

func textUpdate(id, chatID int64, text string) telegramapi.Update {
	return telegramapi.Update{
		UpdateID: id,
		Message: &telegramapi.Message{
			MessageID: id,
			Chat:      &telegramapi.Chat{ID: chatID, Type: "private"},
			From:      &telegramapi.User{ID: chatID, Username: "alice", FirstName: "Alice"},
			Text:      text,
		},
	}
}

func TestWebhook_SecretMismatch(t *testing.T) {
	rec := &recorder{}
	h := NewRouter(ServerOptions{Secret: "s3cret", Dispatcher: newTestDispatcher(t, rec)})

	req := httptest.NewRequest(http.MethodPost, DefaultWebhookPath, strings.NewReader(`{"update_id":1}`))
	req.Header.Set(SecretHeader, "wrong")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
}

func TestWebhook_MalformedJSON(t *testing.T) {
	rec := &recorder{}
	h := NewRouter(ServerOptions{Dispatcher: newTestDispatcher(t, rec)})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, DefaultWebhookPath, strings.NewReader(`{"update_id":`)))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"ok":true`) {
		t.Fatalf("response = %d %s, want 200 ok", rr.Code, rr.Body.String())
	}
	if len(rec.messages) != 0 {
		t.Fatalf("malformed update dispatched: %+v", rec.messages)
	}
}

func TestWebhook_DispatchFailureStillAcknowledged(t *testing.T) {
	rec := &recorder{}
	d := newTestDispatcher(t, rec)
	d.Close()

	logPath := filepath.Join(t.TempDir(), "debug.jsonl")
	sink := debuglog.Open(debuglog.Options{Path: logPath})
	h := NewRouter(ServerOptions{Dispatcher: d, Sink: sink})

	rr := httptest.NewRecorder()
	body := `{"update_id":9,"message":{"message_id":1,"chat":{"id":1001,"type":"private"},"from":{"id":1001},"text":"hello"}}`
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, DefaultWebhookPath, strings.NewReader(body)))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if got := strings.TrimSpace(rr.Body.String()); got != `{"ok":true}` {
		t.Fatalf("body = %s", got)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("sink.Close() error = %v", err)
	}
	raw, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read debug log: %v", err)
	}
	if !strings.Contains(string(raw), `"event":"webhook_dispatch_failed"`) {
		t.Fatalf("debug log = %s", raw)
	}
	if len(rec.messages) != 0 {
		t.Fatalf("closed dispatcher handled %d messages", len(rec.messages))
	}
}

func TestWebhook_OversizedBodyAcknowledged(t *testing.T) {
	rec := &recorder{}
	h := NewRouter(ServerOptions{Dispatcher: newTestDispatcher(t, rec)})
	big := `{"update_id":1,"message":{"text":"` + strings.Repeat("x", maxBodyBytes) + `"}}`
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, DefaultWebhookPath, strings.NewReader(big)))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if len(rec.messages) != 0 {
		t.Fatalf("oversized update dispatched")
	}
}

func TestWebhook_DispatchesMessage(t *testing.T) {
	rec := &recorder{}
	d := newTestDispatcher(t, rec)
	h := NewRouter(ServerOptions{Path: "/hook", Secret: "s3cret", Dispatcher: d})

	body := `{"update_id":7,"message":{"message_id":3,"chat":{"id":1001,"type":"private"},"from":{"id":1001,"username":"alice","first_name":"Alice"},"text":"/request Acme"}}`
	req := httptest.NewRequest(http.MethodPost, "/hook", strings.NewReader(body))
	req.Header.Set(SecretHeader, "s3cret")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"ok":true`) {
		t.Fatalf("response = %d %s", rr.Code, rr.Body.String())
	}
	d.Drain()

	if len(rec.messages) != 1 {
		t.Fatalf("messages = %d", len(rec.messages))
	}
	got := rec.messages[0]
	if got.ChatID != 1001 || got.Text != "/request Acme" || got.Username != "alice" || got.DisplayName != "Alice" {
		t.Fatalf("incoming = %+v", got)
	}
}

func TestWebhook_Healthz(t *testing.T) {
	h := NewRouter(ServerOptions{Dispatcher: newTestDispatcher(t, &recorder{})})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestDispatch_DeduplicatesUpdateID(t *testing.T) {
	rec := &recorder{}
	d := newTestDispatcher(t, rec)
	for i := 0; i < 3; i++ {
		if err := d.Dispatch(context.Background(), textUpdate(42, 1001, "hello")); err != nil {
			t.Fatalf("Dispatch() error = %v", err)
		}
	}
	d.Drain()
	if len(rec.messages) != 1 {
		t.Fatalf("messages = %d, want 1", len(rec.messages))
	}
}

func TestDispatch_DedupTTL(t *testing.T) {
	rec := &recorder{}
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	d, err := NewDispatcher(DispatcherOptions{Messages: rec, Callbacks: rec, DedupTTL: time.Minute, Now: func() time.Time { return now }})
	if err != nil {
		t.Fatalf("NewDispatcher() error = %v", err)
	}
	defer d.Close()
	_ = d.Dispatch(context.Background(), textUpdate(5, 1, "a"))
	d.Drain()
	now = now.Add(2 * time.Minute)
	_ = d.Dispatch(context.Background(), textUpdate(5, 1, "a"))
	d.Drain()
	if len(rec.messages) != 2 {
		t.Fatalf("messages = %d, want 2 after ttl", len(rec.messages))
	}
}

func TestDispatch_PerChatOrder(t *testing.T) {
	rec := &recorder{}
	d := newTestDispatcher(t, rec)
	var id int64
	for i := 0; i < 20; i++ {
		for _, chat := range []int64{1, 2, 3} {
			id++
			text := string(rune('a' + i))
			if err := d.Dispatch(context.Background(), textUpdate(id, chat, text)); err != nil {
				t.Fatalf("Dispatch() error = %v", err)
			}
		}
	}
	d.Drain()
	for _, chat := range []int64{1, 2, 3} {
		got := rec.order[chat]
		if len(got) != 20 {
			t.Fatalf("chat %d handled %d", chat, len(got))
		}
		for i, text := range got {
			if text != string(rune('a'+i)) {
				t.Fatalf("chat %d out of order: %v", chat, got)
			}
		}
	}
}

func TestDispatch_RoutesCallbackByMessageChat(t *testing.T) {
	rec := &recorder{}
	d := newTestDispatcher(t, rec)
	u := telegramapi.Update{
		UpdateID: 9,
		CallbackQuery: &telegramapi.CallbackQuery{
			ID:      "cb-1",
			Data:    "accept_abc",
			From:    &telegramapi.User{ID: 77, Username: "desk_admin"},
			Message: &telegramapi.Message{MessageID: 1, Chat: &telegramapi.Chat{ID: 9000}},
		},
	}
	if key, ok := RoutingKey(u); !ok || key != 9000 {
		t.Fatalf("RoutingKey() = %d, %v", key, ok)
	}
	if err := d.Dispatch(context.Background(), u); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	d.Drain()
	if len(rec.callbacks) != 1 {
		t.Fatalf("callbacks = %d", len(rec.callbacks))
	}
	cb := rec.callbacks[0]
	if cb.ID != "cb-1" || cb.Data != "accept_abc" || cb.ChatID != 9000 || cb.FromUserID != 77 || cb.FromUsername != "desk_admin" {
		t.Fatalf("callback = %+v", cb)
	}
}

func TestDispatch_HandlerErrorSendsFallback(t *testing.T) {
	rec := &recorder{msgErr: errors.New("telegram down")}
	d := newTestDispatcher(t, rec)
	if err := d.Dispatch(context.Background(), textUpdate(1, 1001, "/contact")); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	d.Drain()
	if len(rec.fallbacks) != 1 || rec.fallbacks[0] != 1001 {
		t.Fatalf("fallbacks = %v", rec.fallbacks)
	}
}

func TestDispatch_IgnoresBotsAndEmptyUpdates(t *testing.T) {
	rec := &recorder{}
	d := newTestDispatcher(t, rec)
	bot := textUpdate(1, 1001, "hi")
	bot.Message.From.IsBot = true
	_ = d.Dispatch(context.Background(), bot)
	_ = d.Dispatch(context.Background(), telegramapi.Update{UpdateID: 2})
	d.Drain()
	if len(rec.messages) != 0 {
		t.Fatalf("messages = %d", len(rec.messages))
	}
}

type scriptedSource struct {
	mu      sync.Mutex
	calls   int
	offsets []int64
	cancel  context.CancelFunc
}

func (s *scriptedSource) GetUpdates(ctx context.Context, offset int64, _ time.Duration) ([]telegramapi.Update, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.offsets = append(s.offsets, offset)
	switch s.calls {
	case 1:
		return []telegramapi.Update{textUpdate(10, 1, "a"), textUpdate(11, 1, "b")}, 12, nil
	default:
		s.cancel()
		return nil, offset, ctx.Err()
	}
}

func TestPoll_AdvancesOffsetAndDispatches(t *testing.T) {
	rec := &recorder{}
	d := newTestDispatcher(t, rec)
	ctx, cancel := context.WithCancel(context.Background())
	src := &scriptedSource{cancel: cancel}

	err := Poll(ctx, src, d, time.Second, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Poll() error = %v", err)
	}
	d.Drain()
	if len(rec.messages) != 2 {
		t.Fatalf("messages = %d", len(rec.messages))
	}
	if len(src.offsets) != 2 || src.offsets[1] != 12 {
		t.Fatalf("offsets = %v", src.offsets)
	}
}

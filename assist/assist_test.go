package assist

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/quailyquaily/auditdesk/internal/debuglog"
	"github.com/quailyquaily/auditdesk/llm"
	"github.com/quailyquaily/auditdesk/providers/generative"
)

type keys struct {
	env      map[string]string
	store    map[string]string
	storeHit int
}

func (k *keys) Env(key string) (string, bool) {
	v, ok := k.env[key]
	return v, ok
}

func (k *keys) Get(_ context.Context, key string) (string, bool) {
	k.storeHit++
	v, ok := k.store[key]
	if !ok {
		v, ok = k.env[key]
	}
	return v, ok
}

type call struct {
	key  string
	mode generative.AuthMode
}

type fakeGenerator struct {
	mu      sync.Mutex
	calls   []call
	results []func(ctx context.Context) (generative.Completion, error)
}

func (f *fakeGenerator) Generate(ctx context.Context, key string, _ generative.Request, mode generative.AuthMode) (generative.Completion, error) {
	f.mu.Lock()
	i := len(f.calls)
	f.calls = append(f.calls, call{key: key, mode: mode})
	f.mu.Unlock()
	if i >= len(f.results) {
		return generative.Completion{}, errors.New("no scripted result")
	}
	return f.results[i](ctx)
}

func ok(text string) func(context.Context) (generative.Completion, error) {
	return func(context.Context) (generative.Completion, error) {
		return generative.Completion{Shape: generative.ShapeCandidates, Text: text}, nil
	}
}

func fail(err error) func(context.Context) (generative.Completion, error) {
	return func(context.Context) (generative.Completion, error) { return generative.Completion{}, err }
}

func readEvents(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open debug log: %v", err)
	}
	defer f.Close()
	var events []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var rec debuglog.Record
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			t.Fatalf("decode record: %v", err)
		}
		events = append(events, rec.Event)
	}
	return events
}

func TestGenerateText_NoKeyNoNetwork(t *testing.T) {
	gen := &fakeGenerator{}
	a := New(Options{Keys: &keys{}, Client: gen})
	text, got := a.GenerateText(context.Background(), "hello", llm.Options{})
	if got || text != "" {
		t.Fatalf("GenerateText() = %q, %v", text, got)
	}
	if len(gen.calls) != 0 {
		t.Fatalf("expected no generator calls, got %d", len(gen.calls))
	}
}

func TestGenerateText_EnvKeySkipsStore(t *testing.T) {
	k := &keys{env: map[string]string{"ai_api_key": "env-key"}, store: map[string]string{"ai_api_key": "store-key"}}
	gen := &fakeGenerator{results: []func(context.Context) (generative.Completion, error){ok("Audits cover logic and access control.")}}
	a := New(Options{Keys: k, Client: gen})
	text, got := a.GenerateText(context.Background(), "What is included in an audit?", llm.Options{})
	if !got || text != "Audits cover logic and access control." {
		t.Fatalf("GenerateText() = %q, %v", text, got)
	}
	if k.storeHit != 0 {
		t.Fatalf("store consulted %d times", k.storeHit)
	}
	if gen.calls[0].key != "env-key" || gen.calls[0].mode != generative.AuthHeader {
		t.Fatalf("first call = %+v", gen.calls[0])
	}
}

func TestGenerateText_FallsBackToQueryAuth(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "debug.jsonl")
	sink := debuglog.Open(debuglog.Options{Path: logPath})
	defer sink.Close()

	gen := &fakeGenerator{results: []func(context.Context) (generative.Completion, error){
		fail(&generative.HTTPError{StatusCode: 401, Body: "bad auth"}),
		ok("Second time lucky."),
	}}
	a := New(Options{Keys: &keys{store: map[string]string{"ai_api_key": "k"}}, Client: gen, Sink: sink})
	text, got := a.GenerateText(context.Background(), "hi", llm.Options{})
	if !got || text != "Second time lucky." {
		t.Fatalf("GenerateText() = %q, %v", text, got)
	}
	if len(gen.calls) != 2 || gen.calls[1].mode != generative.AuthQuery {
		t.Fatalf("calls = %+v", gen.calls)
	}
	events := readEvents(t, logPath)
	if len(events) != 2 || events[0] != "assist_attempt_failed" || events[1] != "assist_ok" {
		t.Fatalf("events = %v", events)
	}
}

func TestGenerateText_BothAttemptsFail(t *testing.T) {
	gen := &fakeGenerator{results: []func(context.Context) (generative.Completion, error){
		fail(errors.New("boom")),
		func(context.Context) (generative.Completion, error) {
			return generative.Completion{Shape: generative.ShapeUnrecognized}, nil
		},
	}}
	a := New(Options{Keys: &keys{env: map[string]string{"ai_api_key": "k"}}, Client: gen})
	if text, got := a.GenerateText(context.Background(), "hi", llm.Options{}); got || text != "" {
		t.Fatalf("GenerateText() = %q, %v", text, got)
	}
	if len(gen.calls) != 2 {
		t.Fatalf("calls = %d", len(gen.calls))
	}
}

func TestGenerateText_AttemptTimeout(t *testing.T) {
	block := func(ctx context.Context) (generative.Completion, error) {
		<-ctx.Done()
		return generative.Completion{}, ctx.Err()
	}
	gen := &fakeGenerator{results: []func(context.Context) (generative.Completion, error){block, block}}
	a := New(Options{Keys: &keys{env: map[string]string{"ai_api_key": "k"}}, Client: gen, AttemptTimeout: 20 * time.Millisecond})

	start := time.Now()
	if _, got := a.GenerateText(context.Background(), "hi", llm.Options{}); got {
		t.Fatalf("expected timeout failure")
	}
	if len(gen.calls) != 2 {
		t.Fatalf("timeouts should count as failed attempts; calls = %d", len(gen.calls))
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("attempts not bounded: %s", elapsed)
	}
}

func TestGenerateText_RejectsEcho(t *testing.T) {
	prompt := "What is included in an audit?"
	for _, echoed := range []string{
		"You are the audit desk assistant. Answer politely.",
		"Q: What is included in an audit? A:",
	} {
		gen := &fakeGenerator{results: []func(context.Context) (generative.Completion, error){ok(echoed)}}
		a := New(Options{Keys: &keys{env: map[string]string{"ai_api_key": "k"}}, Client: gen})
		if text, got := a.GenerateText(context.Background(), prompt, llm.Options{}); got || text != "" {
			t.Fatalf("echo %q leaked: %q %v", echoed, text, got)
		}
		if len(gen.calls) != 1 {
			t.Fatalf("echo should not trigger another attempt; calls = %d", len(gen.calls))
		}
	}
}

func TestGenerateText_RecoversPanic(t *testing.T) {
	gen := &fakeGenerator{results: []func(context.Context) (generative.Completion, error){
		func(context.Context) (generative.Completion, error) { panic("provider bug") },
	}}
	a := New(Options{Keys: &keys{env: map[string]string{"ai_api_key": "k"}}, Client: gen})
	if _, got := a.GenerateText(context.Background(), "hi", llm.Options{}); got {
		t.Fatalf("expected false after panic")
	}
}

func TestGenerateText_FailureLogDropsKeyQuery(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "debug.jsonl")
	sink := debuglog.Open(debuglog.Options{Path: logPath})

	leak := errors.New(`Post "https://gen.test/v1beta2/models/m:generateText?key=AIza%2Fsecret": connection reset`)
	gen := &fakeGenerator{results: []func(context.Context) (generative.Completion, error){fail(leak), fail(leak)}}
	a := New(Options{Keys: &keys{store: map[string]string{"ai_api_key": "AIza/secret"}}, Client: gen, Sink: sink})
	if _, got := a.GenerateText(context.Background(), "hi", llm.Options{}); got {
		t.Fatal("GenerateText() should fail")
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("sink.Close() error = %v", err)
	}
	raw, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read debug log: %v", err)
	}
	if strings.Contains(string(raw), "secret") {
		t.Fatalf("debug log leaked the key: %s", raw)
	}
	if !strings.Contains(string(raw), "assist_attempt_failed") {
		t.Fatalf("debug log = %s", raw)
	}
}

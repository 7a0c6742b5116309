package generative

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func TestParseCompletion_Shapes(t *testing.T) {
	cases := []struct {
		name  string
		raw   string
		shape Shape
		text  string
	}{
		{"candidates string content", `{"candidates":[{"content":"hello"}]}`, ShapeCandidates, "hello"},
		{"candidates parts", `{"candidates":[{"content":{"parts":[{"text":"hel"},{"text":"lo"}]}}]}`, ShapeCandidates, "hello"},
		{"candidates output", `{"candidates":[{"output":" legacy "}]}`, ShapeCandidates, "legacy"},
		{"output_text", `{"output_text":"plain"}`, ShapeOutputText, "plain"},
		{"output content string", `{"output":[{"content":"first"},{"content":"second"}]}`, ShapeOutput, "first"},
		{"output content list", `{"output":[{"content":[{"text":"a"},{"text":"b"}]}]}`, ShapeOutput, "ab"},
		{"response", `{"response":"resp"}`, ShapeResponse, "resp"},
		{"bare string", `"just text"`, ShapeBareString, "just text"},
		{"candidates win over output_text", `{"candidates":[{"content":"c"}],"output_text":"o"}`, ShapeCandidates, "c"},
		{"empty candidates fall through", `{"candidates":[{"content":""}],"response":"r"}`, ShapeResponse, "r"},
		{"unknown object", `{"foo":"bar"}`, ShapeUnrecognized, ""},
		{"not json", `<html>`, ShapeUnrecognized, ""},
		{"empty", ``, ShapeUnrecognized, ""},
		{"empty bare string", `"  "`, ShapeUnrecognized, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ParseCompletion([]byte(tc.raw))
			if got.Shape != tc.shape || got.Text != tc.text {
				t.Fatalf("ParseCompletion(%s) = %+v, want {%s %q}", tc.raw, got, tc.shape, tc.text)
			}
			if got.OK() != (tc.shape != ShapeUnrecognized) {
				t.Fatalf("OK() = %v for %+v", got.OK(), got)
			}
		})
	}
}

func TestGenerate_HeaderAuth(t *testing.T) {
	var gotAuth, gotQueryKey, gotPath string
	var body generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotQueryKey = r.URL.Query().Get("key")
		gotPath = r.URL.Path
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		_, _ = w.Write([]byte(`{"candidates":[{"content":"An audit reviews your contracts."}]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "v1beta2", "text-bison-001")
	c.HTTP = srv.Client()
	got, err := c.Generate(context.Background(), "k-123", Request{Prompt: "What is an audit?", Temperature: 0.3, MaxTokens: 200}, AuthHeader)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got.Text != "An audit reviews your contracts." {
		t.Fatalf("text = %q", got.Text)
	}
	if gotAuth != "Bearer k-123" || gotQueryKey != "" {
		t.Fatalf("auth header=%q query=%q", gotAuth, gotQueryKey)
	}
	if gotPath != "/v1beta2/models/text-bison-001:generateText" {
		t.Fatalf("path = %q", gotPath)
	}
	if body.Prompt.Text != "What is an audit?" || body.Temperature != 0.3 || body.MaxOutputTokens != 200 {
		t.Fatalf("body = %+v", body)
	}
}

func TestGenerate_QueryAuth(t *testing.T) {
	var gotAuth, gotQueryKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotQueryKey = r.URL.Query().Get("key")
		_, _ = w.Write([]byte(`{"output_text":"ok then"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "", "")
	c.HTTP = srv.Client()
	got, err := c.Generate(context.Background(), "k 1", Request{Prompt: "p"}, AuthQuery)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got.Shape != ShapeOutputText {
		t.Fatalf("shape = %s", got.Shape)
	}
	if gotAuth != "" || gotQueryKey != "k 1" {
		t.Fatalf("auth header=%q query=%q", gotAuth, gotQueryKey)
	}
}

func TestGenerate_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key"}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "", "")
	c.HTTP = srv.Client()
	_, err := c.Generate(context.Background(), "k", Request{Prompt: "p"}, AuthHeader)
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 HTTPError, got %v", err)
	}
	if !strings.Contains(err.Error(), "bad key") {
		t.Fatalf("error should carry body: %v", err)
	}
}

func TestGenerate_MissingKey(t *testing.T) {
	c := New("http://127.0.0.1:1", "", "")
	if _, err := c.Generate(context.Background(), " ", Request{Prompt: "p"}, AuthHeader); !errors.Is(err, ErrMissingKey) {
		t.Fatalf("expected ErrMissingKey, got %v", err)
	}
}

func TestURL(t *testing.T) {
	c := New("https://api.example/", "/v1/", "m")
	if got := c.URL("secret", AuthHeader); got != "https://api.example/v1/models/m:generateText" {
		t.Fatalf("header URL = %q", got)
	}
	if got := c.URL("a&b", AuthQuery); got != "https://api.example/v1/models/m:generateText?key=a%26b" {
		t.Fatalf("query URL = %q", got)
	}
}

func TestRedact_RawAndEscapedKey(t *testing.T) {
	key := "ab/c+d=="
	for _, msg := range []string{
		`Post "https://x.test/v1beta2/models/m:generateText?key=` + url.QueryEscape(key) + `": dial tcp: timeout`,
		"upstream said bad key " + key,
	} {
		base := fmt.Errorf("%s: %w", msg, context.DeadlineExceeded)
		got := redact(base, key)
		if strings.Contains(got.Error(), key) || strings.Contains(got.Error(), url.QueryEscape(key)) {
			t.Fatalf("redact() leaked key: %q", got.Error())
		}
		if !strings.Contains(got.Error(), "<key>") {
			t.Fatalf("redact() = %q, want <key> marker", got.Error())
		}
		if !errors.Is(got, context.DeadlineExceeded) {
			t.Fatalf("redact() lost the cause: %v", got)
		}
	}
	plain := errors.New("connection refused")
	if got := redact(plain, key); got != plain {
		t.Fatalf("redact() should return unrelated errors unchanged")
	}
}

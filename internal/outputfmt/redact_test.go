package outputfmt

import (
	"errors"
	"strings"
	"testing"
)

func TestText_RedactsQueryKey(t *testing.T) {
	in := `assist: Post "https://generativelanguage.googleapis.com/v1beta2/models/text-bison-001:generateText?key=AIza-secret": context deadline exceeded`
	out := Text(in)
	if strings.Contains(out, "AIza-secret") {
		t.Fatalf("key leaked: %q", out)
	}
	if !strings.Contains(out, "generativelanguage.googleapis.com/v1beta2/models/") {
		t.Fatalf("host and path should survive: %q", out)
	}
	if !strings.Contains(out, "key=%5Bredacted%5D") {
		t.Fatalf("expected redacted key param: %q", out)
	}
}

func TestText_RedactsBotToken(t *testing.T) {
	in := `Post "https://api.telegram.org/bot123456:AAE-x_yz/sendMessage": dial tcp: i/o timeout`
	out := Text(in)
	if strings.Contains(out, "AAE-x_yz") {
		t.Fatalf("token leaked: %q", out)
	}
	if !strings.Contains(out, "/bot[redacted]/sendMessage") {
		t.Fatalf("unexpected: %q", out)
	}
}

func TestText_LeavesPlainTextAlone(t *testing.T) {
	in := "request req-1 not found; see https://example.com/docs?page=2"
	if got := Text(in); got != in {
		t.Fatalf("Text() = %q, want unchanged", got)
	}
}

func TestError(t *testing.T) {
	if Error(nil) != "" {
		t.Fatal("Error(nil) should be empty")
	}
	err := errors.New("fetch https://a.example.com/x?token=abc&ok=1")
	got := Error(err)
	if strings.Contains(got, "abc") || !strings.Contains(got, "ok=1") {
		t.Fatalf("Error() = %q", got)
	}
}

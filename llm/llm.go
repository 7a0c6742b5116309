// Package llm defines the small text-generation surface the bot consumes.
package llm

import (
	"context"
	"strings"
	"unicode/utf8"
)

type Options struct {
	Temperature float64
	MaxTokens   int
	// EchoPrefixes overrides DefaultEchoPrefixes when non-empty.
	EchoPrefixes []string
}

// TextGenerator returns ("", false) for every failure: missing key, transport
// error, unusable or echoed output. Callers treat false as "no AI available".
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string, opts Options) (string, bool)
}

// DefaultEchoPrefixes are the openings of instruction text that a model
// sometimes parrots back instead of answering.
var DefaultEchoPrefixes = []string{
	"you are a ",
	"you are an ",
	"you are the ",
	"as an ai language model",
	"as an ai assistant",
	"system:",
	"instruction:",
	"instructions:",
	"prompt:",
	"user:",
	"### instruction",
	"answer the following",
	"rewrite the following",
}

// IsEcho reports whether candidate reproduces the prompt instead of answering
// it: it starts with an instruction prefix (case-insensitive) or contains the
// whole prompt.
func IsEcho(candidate, prompt string, prefixes []string) bool {
	text := strings.TrimSpace(candidate)
	if text == "" {
		return false
	}
	if len(prefixes) == 0 {
		prefixes = DefaultEchoPrefixes
	}
	lower := strings.ToLower(text)
	for _, p := range prefixes {
		// trailing spaces are significant: "you are a " must not match "you are able"
		p = strings.ToLower(strings.TrimLeft(p, " \t"))
		if strings.TrimSpace(p) != "" && strings.HasPrefix(lower, p) {
			return true
		}
	}
	prompt = strings.TrimSpace(prompt)
	if prompt != "" && strings.Contains(lower, strings.ToLower(prompt)) {
		return true
	}
	return false
}

// MinUsefulRunes is the shortest completion worth forwarding to a user.
const MinUsefulRunes = 3

func Usable(text string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(text)) >= MinUsefulRunes
}

// Nop never produces text.
type Nop struct{}

func (Nop) GenerateText(context.Context, string, Options) (string, bool) { return "", false }

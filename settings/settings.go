// Package settings resolves runtime configuration for the bot: bot
// credentials, the admin identity, feature flags and the assist API key.
//
// Lookups go through three tiers: a process-local cache, the durable Settings
// Store, and finally the process environment.
package settings

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode"
)

const (
	KeyBotToken         = "telegram_bot_token"
	KeyBotUsername      = "telegram_bot_username"
	KeyAdminChatID      = "admin_chat_id"
	KeyAdminUsername    = "admin_username"
	KeyAIRepliesEnabled = "ai_replies_enabled"
	KeyAutoGroupEnabled = "auto_group_enabled"
	KeyAIAPIKey         = "ai_api_key"
	KeyAIReplySuffix    = "ai_reply_suffix"
	KeyGroupBridgeURL   = "group_bridge_url"
)

var ErrNotFound = errors.New("settings: key not found")

type Entry struct {
	Key         string    `json:"key" yaml:"key"`
	Value       string    `json:"value" yaml:"value"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	UpdatedAt   time.Time `json:"updated_at,omitempty" yaml:"-"`
}

// Store is the read side of the durable key-value store. A missing key is
// reported as ok=false, not as an error.
type Store interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
}

// Writer is the ops-tooling side of the store.
type Writer interface {
	Store
	Set(ctx context.Context, e Entry) error
	List(ctx context.Context) ([]Entry, error)
}

// EnvName maps a settings key to its environment variable: uppercase, with
// every rune that is not a letter or digit replaced by '_'.
func EnvName(key string) string {
	key = strings.TrimSpace(key)
	var b strings.Builder
	b.Grow(len(key))
	for _, r := range key {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(unicode.ToUpper(r))
			continue
		}
		b.WriteByte('_')
	}
	return b.String()
}

func normalizeKey(key string) string {
	return strings.TrimSpace(key)
}

package settings

import (
	"context"
	"strings"
	"sync/atomic"
)

const DefaultAIReplySuffix = "(automated reply from the audit desk assistant)"

// Snapshot is an immutable view of the settings the bot needs on every
// update. Components read it through a Source so a reload swaps it atomically.
type Snapshot struct {
	BotToken         string
	BotUsername      string
	AdminChatID      int64
	AdminUsername    string
	AIRepliesEnabled bool
	AutoGroupEnabled bool
	AIReplySuffix    string
	GroupBridgeURL   string
}

func (s Snapshot) AdminConfigured() bool { return s.AdminChatID != 0 }

// AdminMention renders "@name" for instructions, or "" when unknown.
func (s Snapshot) AdminMention() string {
	name := strings.TrimPrefix(strings.TrimSpace(s.AdminUsername), "@")
	if name == "" {
		return ""
	}
	return "@" + name
}

type Source interface {
	Current() Snapshot
}

// Static is a Source that never changes. Handy for tests and one-shot commands.
type Static Snapshot

func (s Static) Current() Snapshot { return Snapshot(s) }

func Resolve(ctx context.Context, r *Resolver) Snapshot {
	return Snapshot{
		BotToken:         r.GetString(ctx, KeyBotToken, ""),
		BotUsername:      strings.TrimPrefix(r.GetString(ctx, KeyBotUsername, ""), "@"),
		AdminChatID:      r.GetInt64(ctx, KeyAdminChatID, 0),
		AdminUsername:    strings.TrimPrefix(r.GetString(ctx, KeyAdminUsername, ""), "@"),
		AIRepliesEnabled: r.GetBool(ctx, KeyAIRepliesEnabled, false),
		AutoGroupEnabled: r.GetBool(ctx, KeyAutoGroupEnabled, false),
		AIReplySuffix:    r.GetString(ctx, KeyAIReplySuffix, DefaultAIReplySuffix),
		GroupBridgeURL:   r.GetString(ctx, KeyGroupBridgeURL, ""),
	}
}

// Live owns the current Snapshot and rebuilds it on Reload.
type Live struct {
	resolver *Resolver
	current  atomic.Pointer[Snapshot]
}

func NewLive(ctx context.Context, r *Resolver) *Live {
	l := &Live{resolver: r}
	snap := Resolve(ctx, r)
	l.current.Store(&snap)
	return l
}

func (l *Live) Current() Snapshot {
	if l == nil {
		return Snapshot{}
	}
	if p := l.current.Load(); p != nil {
		return *p
	}
	return Snapshot{}
}

func (l *Live) Resolver() *Resolver {
	if l == nil {
		return nil
	}
	return l.resolver
}

// Reload clears the resolver cache and publishes a freshly resolved Snapshot.
func (l *Live) Reload(ctx context.Context) Snapshot {
	l.resolver.Reload()
	snap := Resolve(ctx, l.resolver)
	l.current.Store(&snap)
	return snap
}

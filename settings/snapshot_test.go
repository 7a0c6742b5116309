package settings

import (
	"context"
	"testing"
)

func TestLiveReloadSwapsSnapshot(t *testing.T) {
	store := &fakeStore{entries: map[string]Entry{
		KeyAdminChatID:      {Key: KeyAdminChatID, Value: "7"},
		KeyAdminUsername:    {Key: KeyAdminUsername, Value: "@auditlead"},
		KeyAIRepliesEnabled: {Key: KeyAIRepliesEnabled, Value: "1"},
	}}
	r := NewResolver(ResolverOptions{Store: store, LookupEnv: envMap(nil)})
	live := NewLive(context.Background(), r)

	snap := live.Current()
	if snap.AdminChatID != 7 || !snap.AIRepliesEnabled || snap.AutoGroupEnabled {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if snap.AdminMention() != "@auditlead" {
		t.Fatalf("AdminMention() = %q", snap.AdminMention())
	}
	if snap.AIReplySuffix != DefaultAIReplySuffix {
		t.Fatalf("AIReplySuffix = %q", snap.AIReplySuffix)
	}

	store.mu.Lock()
	store.entries[KeyAutoGroupEnabled] = Entry{Key: KeyAutoGroupEnabled, Value: "true"}
	store.mu.Unlock()
	if live.Current().AutoGroupEnabled {
		t.Fatalf("snapshot must not change before Reload")
	}
	if !live.Reload(context.Background()).AutoGroupEnabled {
		t.Fatalf("Reload() did not pick up the new flag")
	}
	if !live.Current().AutoGroupEnabled {
		t.Fatalf("Current() after Reload is stale")
	}
}

func TestStaticSource(t *testing.T) {
	src := Static{AdminChatID: 9}
	if !src.Current().AdminConfigured() {
		t.Fatalf("AdminConfigured() = false")
	}
	if (Snapshot{}).AdminMention() != "" {
		t.Fatalf("empty admin mention expected")
	}
}

package settings

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
)

type cached struct {
	value string
	found bool
}

type Resolver struct {
	store  Store
	lookup func(string) (string, bool)
	logger *slog.Logger

	mu    sync.RWMutex
	cache map[string]cached
}

type ResolverOptions struct {
	// Store may be nil, in which case only the environment is consulted.
	Store  Store
	Logger *slog.Logger
	// LookupEnv defaults to os.LookupEnv.
	LookupEnv func(string) (string, bool)
}

func NewResolver(opts ResolverOptions) *Resolver {
	r := &Resolver{
		store:  opts.Store,
		lookup: opts.LookupEnv,
		logger: opts.Logger,
		cache:  map[string]cached{},
	}
	if r.lookup == nil {
		r.lookup = os.LookupEnv
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Get resolves key through cache, store and environment, in that order.
// Store failures degrade to the environment and are not cached.
func (r *Resolver) Get(ctx context.Context, key string) (string, bool) {
	key = normalizeKey(key)
	if r == nil || key == "" {
		return "", false
	}

	r.mu.RLock()
	c, ok := r.cache[key]
	r.mu.RUnlock()
	if ok && c.found {
		return c.value, true
	}
	if !ok && r.store != nil {
		if ctx == nil {
			ctx = context.Background()
		}
		e, found, err := r.store.Get(ctx, key)
		if err != nil {
			r.logger.Warn("settings_store_degraded", "key", key, "error", err.Error())
		} else {
			r.mu.Lock()
			r.cache[key] = cached{value: e.Value, found: found}
			r.mu.Unlock()
			if found {
				return e.Value, true
			}
		}
	}
	return r.Env(key)
}

// Env reads only the environment tier.
func (r *Resolver) Env(key string) (string, bool) {
	if r == nil {
		return "", false
	}
	v, ok := r.lookup(EnvName(key))
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

// Reload drops cached store results so the next Get goes back to the store.
func (r *Resolver) Reload() {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.cache = map[string]cached{}
	r.mu.Unlock()
}

func (r *Resolver) GetString(ctx context.Context, key, def string) string {
	v, ok := r.Get(ctx, key)
	if !ok || strings.TrimSpace(v) == "" {
		return def
	}
	return strings.TrimSpace(v)
}

func (r *Resolver) GetBool(ctx context.Context, key string, def bool) bool {
	v, ok := r.Get(ctx, key)
	if !ok {
		return def
	}
	switch strings.ToLower(strings.Trim(strings.TrimSpace(v), `"`)) {
	case "1", "true", "yes", "on", "enabled":
		return true
	case "0", "false", "no", "off", "disabled":
		return false
	default:
		r.logger.Warn("settings_invalid_bool", "key", key, "value", v)
		return def
	}
}

func (r *Resolver) GetInt64(ctx context.Context, key string, def int64) int64 {
	v, ok := r.Get(ctx, key)
	if !ok {
		return def
	}
	n, err := strconv.ParseInt(strings.Trim(strings.TrimSpace(v), `"`), 10, 64)
	if err != nil {
		r.logger.Warn("settings_invalid_int", "key", key, "value", v)
		return def
	}
	return n
}

package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-processes/core"
)

// Token is a bearer token and the instant the authority says it expires.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// Exchanger performs one client-credentials grant for an identity.
type Exchanger interface {
	Exchange(ctx context.Context, identity core.ServiceIdentity) (Token, error)
}

type ExchangerFunc func(ctx context.Context, identity core.ServiceIdentity) (Token, error)

func (f ExchangerFunc) Exchange(ctx context.Context, identity core.ServiceIdentity) (Token, error) {
	return f(ctx, identity)
}

type TokenCacheConfig struct {
	Exchanger      Exchanger
	ExpiryGuard    time.Duration
	Now            func() time.Time
	Logger         core.Logger
	LoggerProvider core.LoggerProvider
}

// TokenCache holds one bearer token per service identity id. Entries are
// stored with the guarded expiry, so a hit is always outside the guard
// window. A freshly issued token that already sits inside the guard window
// is rejected. The lock is never held across an exchange; concurrent misses for
// the same identity may exchange redundantly and the last write wins.
type TokenCache struct {
	exchanger Exchanger
	guard     time.Duration
	now       func() time.Time
	logger    core.Logger

	mu      sync.RWMutex
	entries map[string]Token
}

func NewTokenCache(cfg TokenCacheConfig) *TokenCache {
	guard := cfg.ExpiryGuard
	if guard <= 0 {
		guard = core.DefaultTokenExpiryGuard
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	provider, logger := glog.Resolve("processes.token_cache", cfg.LoggerProvider, cfg.Logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("processes.token_cache"); named != nil {
			logger = glog.Ensure(named)
		}
	}
	return &TokenCache{
		exchanger: cfg.Exchanger,
		guard:     guard,
		now:       now,
		logger:    logger,
		entries:   map[string]Token{},
	}
}

func (c *TokenCache) FetchToken(ctx context.Context, identity core.ServiceIdentity) (string, error) {
	if c == nil || c.exchanger == nil {
		return "", core.AuthenticationFailed(errors.New("auth: token exchanger is not configured"), identity.ID)
	}
	key := strings.TrimSpace(identity.ID)
	if key == "" {
		return "", core.ValidationFailed("identity.id", "service identity id is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if cached, ok := c.lookup(key); ok {
		return cached, nil
	}

	token, err := c.exchanger.Exchange(ctx, identity)
	if err == nil && strings.TrimSpace(token.Value) == "" {
		err = errors.New("auth: authority returned an empty access token")
	}
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	if err != nil {
		c.Invalidate(key)
		c.logger.Warn("token exchange failed", "identity_id", key, "role", identity.Role, "error", err.Error())
		if core.IsAuthenticationFailed(err) {
			return "", err
		}
		return "", core.AuthenticationFailed(err, key)
	}

	guarded := token.ExpiresAt.Add(-c.guard)
	if token.ExpiresAt.IsZero() || !guarded.After(c.now()) {
		c.Invalidate(key)
		c.logger.Warn("issued token expires inside the guard window", "identity_id", key, "role", identity.Role)
		return "", core.AuthenticationFailed(errors.New("auth: issued token expires inside the guard window"), key)
	}
	c.mu.Lock()
	c.entries[key] = Token{Value: token.Value, ExpiresAt: guarded}
	c.mu.Unlock()
	c.logger.Debug("token cached", "identity_id", key, "expires_at", guarded.Format(time.RFC3339))
	return token.Value, nil
}

func (c *TokenCache) lookup(key string) (string, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return "", false
	}
	if c.now().Before(entry.ExpiresAt) {
		return entry.Value, true
	}
	return "", false
}

func (c *TokenCache) Invalidate(identityID string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	delete(c.entries, strings.TrimSpace(identityID))
	c.mu.Unlock()
}

func (c *TokenCache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

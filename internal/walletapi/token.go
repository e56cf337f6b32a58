package walletapi

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

// ErrNoToken is returned when a token source yields an empty token.
var ErrNoToken = errors.New("no api token available")

// StaticToken is a fixed bearer token. The empty token sends no
// Authorization header.
type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) { return string(t), nil }

// TokenFetcher loads a fresh token.
type TokenFetcher func(ctx context.Context) (string, error)

// FileToken reads a token from the first line of path.
func FileToken(path string) TokenFetcher {
	return func(context.Context) (string, error) {
		b, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read token file: %w", err)
		}
		line, _, _ := strings.Cut(string(b), "\n")
		return strings.TrimSpace(line), nil
	}
}

// CachedToken memoises a fetched token for ttl measured on the injected clock.
type CachedToken struct {
	fetch TokenFetcher
	ttl   time.Duration
	now   func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

// NewCachedToken wraps fetch. now defaults to time.Now.
func NewCachedToken(fetch TokenFetcher, ttl time.Duration, now func() time.Time) *CachedToken {
	if now == nil {
		now = time.Now
	}
	return &CachedToken{fetch: fetch, ttl: ttl, now: now}
}

func (c *CachedToken) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && c.now().Before(c.expires) {
		return c.token, nil
	}
	token, err := c.fetch(ctx)
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", ErrNoToken
	}
	c.token = token
	c.expires = c.now().Add(c.ttl)
	return token, nil
}

// Invalidate drops the cached token so the next call fetches again.
func (c *CachedToken) Invalidate() {
	c.mu.Lock()
	c.token = ""
	c.expires = time.Time{}
	c.mu.Unlock()
}

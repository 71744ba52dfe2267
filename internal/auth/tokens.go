// Package auth caches OAuth2 token sources for the Google ledger backend.
package auth

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/sheets/v4"
)

// Scopes needed to create spreadsheets and move them between folders.
var Scopes = []string{sheets.SpreadsheetsScope, drive.DriveScope}

// Factory builds a token source for a credential key.
type Factory func(ctx context.Context, key string) (oauth2.TokenSource, error)

// DefaultFactory uses Application Default Credentials and ignores the key.
func DefaultFactory(ctx context.Context, key string) (oauth2.TokenSource, error) {
	ts, err := google.DefaultTokenSource(ctx, Scopes...)
	if err != nil {
		return nil, fmt.Errorf("DefaultFactory: %w", err)
	}
	return ts, nil
}

// TokenCache hands out one reusing token source per key.
type TokenCache struct {
	factory Factory

	mu      sync.Mutex
	sources map[string]oauth2.TokenSource
}

// NewTokenCache returns a cache built on factory, or on DefaultFactory when
// factory is nil.
func NewTokenCache(factory Factory) *TokenCache {
	if factory == nil {
		factory = DefaultFactory
	}
	return &TokenCache{factory: factory, sources: make(map[string]oauth2.TokenSource)}
}

// TokenSource returns the cached source for key, building it on first use.
// Failed builds are not cached.
func (c *TokenCache) TokenSource(ctx context.Context, key string) (oauth2.TokenSource, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ts, ok := c.sources[key]; ok {
		return ts, nil
	}
	ts, err := c.factory(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("TokenSource: %w", err)
	}
	ts = oauth2.ReuseTokenSource(nil, ts)
	c.sources[key] = ts
	return ts, nil
}

// Reset drops every cached source.
func (c *TokenCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sources = make(map[string]oauth2.TokenSource)
}

// Len reports how many keys are cached.
func (c *TokenCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sources)
}

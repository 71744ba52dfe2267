package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

type countingFactory struct {
	calls map[string]int
	err   error
}

func (f *countingFactory) build(ctx context.Context, key string) (oauth2.TokenSource, error) {
	f.calls[key]++
	if f.err != nil {
		return nil, f.err
	}
	return oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: "token-" + key,
		Expiry:      time.Now().Add(time.Hour),
	}), nil
}

func TestTokenCacheReusesSources(t *testing.T) {
	f := &countingFactory{calls: map[string]int{}}
	cache := NewTokenCache(f.build)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := cache.TokenSource(ctx, "alice"); err != nil {
			t.Fatalf("TokenSource: %v", err)
		}
	}
	ts, err := cache.TokenSource(ctx, "bob")
	if err != nil {
		t.Fatalf("TokenSource: %v", err)
	}
	tok, err := ts.Token()
	if err != nil || tok.AccessToken != "token-bob" {
		t.Errorf("Token() = %v, %v", tok, err)
	}

	if f.calls["alice"] != 1 || f.calls["bob"] != 1 {
		t.Errorf("factory calls = %v", f.calls)
	}
	if cache.Len() != 2 {
		t.Errorf("Len() = %d", cache.Len())
	}
}

func TestTokenCacheReset(t *testing.T) {
	f := &countingFactory{calls: map[string]int{}}
	cache := NewTokenCache(f.build)
	ctx := context.Background()

	if _, err := cache.TokenSource(ctx, "alice"); err != nil {
		t.Fatal(err)
	}
	cache.Reset()
	if cache.Len() != 0 {
		t.Fatalf("Len() after Reset = %d", cache.Len())
	}
	if _, err := cache.TokenSource(ctx, "alice"); err != nil {
		t.Fatal(err)
	}
	if f.calls["alice"] != 2 {
		t.Errorf("expected rebuild after Reset, calls = %d", f.calls["alice"])
	}
}

func TestTokenCacheDoesNotCacheFailures(t *testing.T) {
	boom := errors.New("no credentials")
	f := &countingFactory{calls: map[string]int{}, err: boom}
	cache := NewTokenCache(f.build)

	_, err := cache.TokenSource(context.Background(), "alice")
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped factory error, got %v", err)
	}
	if cache.Len() != 0 {
		t.Errorf("failed source was cached")
	}
}

func TestSeparateCachesAreIndependent(t *testing.T) {
	f := &countingFactory{calls: map[string]int{}}
	a, b := NewTokenCache(f.build), NewTokenCache(f.build)
	ctx := context.Background()

	if _, err := a.TokenSource(ctx, "alice"); err != nil {
		t.Fatal(err)
	}
	if b.Len() != 0 {
		t.Error("caches share state")
	}
}

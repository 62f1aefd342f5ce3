package blacklist

import (
	"context"
	"sync"
	"time"

	"github.com/tillhq/till/pkg/cryptox"
)

const sweepInterval = time.Minute

// MemoryBlacklist is a single-instance registry backed by a TTL-indexed map.
// Revocations are NOT visible to other instances; the app logs this as a
// scaling limitation at startup when no Redis address is configured.
type MemoryBlacklist struct {
	mu        sync.Mutex
	entries   map[string]time.Time // fingerprint -> token expiry
	lastSweep time.Time
}

func NewMemoryBlacklist() *MemoryBlacklist {
	return &MemoryBlacklist{
		entries:   make(map[string]time.Time),
		lastSweep: time.Now(),
	}
}

func (b *MemoryBlacklist) Revoke(_ context.Context, rawToken string, expiresAt time.Time) error {
	now := time.Now()
	if !expiresAt.After(now) {
		return nil // already expired, nothing to revoke
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries[cryptox.FingerprintToken(rawToken)] = expiresAt
	b.maybeSweepLocked(now)
	return nil
}

func (b *MemoryBlacklist) RevokeOnce(_ context.Context, rawToken string, expiresAt time.Time) (bool, error) {
	now := time.Now()
	if !expiresAt.After(now) {
		return false, nil
	}
	fp := cryptox.FingerprintToken(rawToken)

	b.mu.Lock()
	defer b.mu.Unlock()

	if exp, ok := b.entries[fp]; ok && exp.After(now) {
		return false, nil
	}
	b.entries[fp] = expiresAt
	b.maybeSweepLocked(now)
	return true, nil
}

func (b *MemoryBlacklist) IsRevoked(_ context.Context, rawToken string) (bool, error) {
	fp := cryptox.FingerprintToken(rawToken)
	now := time.Now()

	b.mu.Lock()
	defer b.mu.Unlock()

	exp, ok := b.entries[fp]
	if !ok {
		return false, nil
	}
	if !exp.After(now) {
		// Entry outlived its token; the token is independently invalid by now.
		delete(b.entries, fp)
		return false, nil
	}
	return true, nil
}

// maybeSweepLocked drops expired entries so the map stays bounded by the
// number of tokens still within their lifetime.
func (b *MemoryBlacklist) maybeSweepLocked(now time.Time) {
	if now.Sub(b.lastSweep) < sweepInterval {
		return
	}
	b.lastSweep = now
	for fp, exp := range b.entries {
		if !exp.After(now) {
			delete(b.entries, fp)
		}
	}
}

type memoryCounter struct {
	count     int
	expiresAt time.Time
}

// MemoryAttempts is the in-process counterpart to RedisAttempts.
type MemoryAttempts struct {
	mu       sync.Mutex
	counters map[string]memoryCounter
}

func NewMemoryAttempts() *MemoryAttempts {
	return &MemoryAttempts{counters: make(map[string]memoryCounter)}
}

func (a *MemoryAttempts) Increment(_ context.Context, key string, window time.Duration) (int, error) {
	if window <= 0 {
		window = time.Minute
	}
	now := time.Now()

	a.mu.Lock()
	defer a.mu.Unlock()

	c, ok := a.counters[key]
	if !ok || !c.expiresAt.After(now) {
		c = memoryCounter{count: 0, expiresAt: now.Add(window)}
	}
	c.count++
	a.counters[key] = c
	return c.count, nil
}

func (a *MemoryAttempts) Clear(_ context.Context, key string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.counters, key)
	return nil
}

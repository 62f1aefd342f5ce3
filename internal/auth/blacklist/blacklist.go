// Package blacklist is the revocation registry for otherwise-still-valid
// bearer tokens. Entries live exactly as long as the token they revoke, so
// the registry is bounded and self-cleaning.
package blacklist

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable wraps backend failures. Logout paths treat revocation as
// best-effort and only log this; refresh paths must surface it.
var ErrUnavailable = errors.New("blacklist: store unavailable")

// Blacklist records revoked tokens keyed by their raw value. A Revoke that
// returns before a concurrent IsRevoked begins must be visible to that call.
type Blacklist interface {
	// Revoke inserts an entry expiring when the token itself does. Revoking
	// a token that has already expired is a no-op.
	Revoke(ctx context.Context, rawToken string, expiresAt time.Time) error

	// RevokeOnce atomically inserts the entry and reports whether this call
	// was the first to revoke the token. Single-use redemptions (refresh
	// rotation, challenge completion) use the registry itself as the gate:
	// the loser of a race sees first == false, with no check-then-act window
	// even across instances. An already expired token reads as not-first;
	// it cannot be redeemed regardless.
	RevokeOnce(ctx context.Context, rawToken string, expiresAt time.Time) (first bool, err error)

	// IsRevoked reports whether the token was revoked and has not yet
	// expired out of the registry.
	IsRevoked(ctx context.Context, rawToken string) (bool, error)
}

// Attempts is a windowed failure counter, used to cap retries against a
// two-factor challenge. Counters share the registry backend so they expire
// with the challenge they guard.
type Attempts interface {
	// Increment bumps the counter for key, creating it with the given
	// window on first use, and returns the new count.
	Increment(ctx context.Context, key string, window time.Duration) (int, error)

	// Clear removes the counter.
	Clear(ctx context.Context, key string) error
}

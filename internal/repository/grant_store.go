package repository

import (
	"context"
	"time"

	"github.com/iliyamo/secure-file-share/internal/model"
)

// GrantStore is the token store for download grants. It exclusively owns
// DownloadGrant records; no other component mutates them.
//
// TryConsume is the defining operation and must be linearizable: for any
// number of concurrent callers presenting the same token, exactly one
// receives the grant and every other caller gets ErrGrantConsumed. The
// expiry check happens inside the same atomic step as the consumed flip,
// so an expired grant is never consumable, not even in a race just
// before garbage collection removes it.
//
// Three implementations exist: MySQL (durable default), Redis (cache
// with Lua-scripted consume) and an in-process store for development
// and tests.
type GrantStore interface {
	// Put persists a new grant. ErrTokenExists signals a token hash
	// collision; the issuer regenerates the token and retries.
	Put(ctx context.Context, g model.DownloadGrant) error

	// TryConsume atomically flips the grant for tokenHash from unconsumed
	// to consumed and returns it. Fails with ErrGrantNotFound,
	// ErrGrantConsumed or ErrGrantExpired.
	TryConsume(ctx context.Context, tokenHash string) (model.DownloadGrant, error)

	// DeleteExpired removes grants whose expiry lies more than the
	// retention window in the past. Best-effort: correctness never
	// depends on it, only storage bounds do.
	DeleteExpired(ctx context.Context, retention time.Duration) (int64, error)
}

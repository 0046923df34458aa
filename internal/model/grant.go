package model

import "time"

// AnonymousUser is the issued_to marker for grants not tied to an
// account. The HTTP surface always requires an authenticated client,
// so no handler ever writes this value; it exists so the store layer
// can represent grants issued by out-of-band tooling.
const AnonymousUser uint64 = 0

// DownloadGrant authorizes exactly one future download of one file.
// The raw token (≥256 bits of entropy) is returned to the client once,
// embedded in a download URL; only its SHA-256 hex digest is kept in
// the `download_grants` table, mirroring how refresh tokens are stored.
//
// A grant has two terminal states: consumed (the single download was
// released) or expired (TTL passed without a download). The consumed
// flag flips false→true at most once, atomically, and only through
// GrantStore.TryConsume.
type DownloadGrant struct {
	TokenHash string    // download_grants.token_hash (primary lookup key)
	FileID    string    // download_grants.file_id (files.public_id)
	IssuedTo  uint64    // download_grants.issued_to (users.id or AnonymousUser)
	IssuedAt  time.Time // download_grants.issued_at
	ExpiresAt time.Time // download_grants.expires_at
	Consumed  bool      // download_grants.consumed
}

// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios without
// leaking SQL or Redis details upward. A lost consumption race is a
// correct denial (ErrGrantConsumed), not a transient storage failure,
// and handlers must report the two differently.
package repository

import "errors"

// ErrEmailExists is returned when a sign-up collides with an already
// registered email address (compared case-insensitively). Handlers
// translate this into an HTTP 400 with a generic message.
var ErrEmailExists = errors.New("email already exists")

// ErrUserNotFound is returned when a user id or email has no row.
var ErrUserNotFound = errors.New("user not found")

// ErrTokenMismatch is returned by Verify when the presented verification
// token does not match the stored hash, or when the token was already
// consumed. The two cases are deliberately indistinguishable.
var ErrTokenMismatch = errors.New("verification token mismatch")

// ErrFileNotFound is returned when a public file id has no row.
var ErrFileNotFound = errors.New("file not found")

// ErrTokenExists is returned by GrantStore.Put when the token hash
// collides with an existing grant. Issuers must regenerate and retry.
var ErrTokenExists = errors.New("grant token already exists")

// ErrGrantNotFound is returned by TryConsume for an unknown token.
var ErrGrantNotFound = errors.New("grant not found")

// ErrGrantConsumed is returned by TryConsume when the grant was already
// used. Exactly one of any set of concurrent consumers sees success;
// all the others see this error.
var ErrGrantConsumed = errors.New("grant already consumed")

// ErrGrantExpired is returned by TryConsume when the grant's TTL has
// passed. The expiry check happens inside the same atomic step as the
// consumed flip, so an expired grant can never be consumed via a race.
var ErrGrantExpired = errors.New("grant expired")

// Package queue defines message payloads exchanged over the message broker.
package queue

// VerificationRequestedEvent is published when a new account signs up and
// needs its email address confirmed. The consumer side performs the
// actual delivery; from the service's perspective publishing is
// fire-and-forget and a broker failure never rolls back the account.
type VerificationRequestedEvent struct {
	UserID          uint64 `json:"user_id"`
	Email           string `json:"email"`
	VerificationURL string `json:"verification_url"`
	RequestedAt     string `json:"requested_at"`
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/secure-file-share/internal/model"
)

// GrantRepo is the durable MySQL implementation of GrantStore. The
// consume-once guarantee comes from a single conditional UPDATE that
// checks the consumed flag and the expiry in one statement; there is no
// read-then-write window for a race to slip through.
type GrantRepo struct{ DB *sql.DB }

func NewGrantRepo(db *sql.DB) *GrantRepo { return &GrantRepo{DB: db} }

// Put inserts a grant row. token_hash carries a unique index, so a
// collision surfaces as MySQL error 1062 and maps to ErrTokenExists.
func (r *GrantRepo) Put(ctx context.Context, g model.DownloadGrant) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO download_grants (token_hash, file_id, issued_to, issued_at, expires_at, consumed) VALUES (?,?,?,?,?,0)",
		g.TokenHash, g.FileID, g.IssuedTo, g.IssuedAt.UTC(), g.ExpiresAt.UTC())
	if err != nil && strings.Contains(strings.ToLower(err.Error()), "1062") {
		return ErrTokenExists
	}
	return err
}

// TryConsume flips consumed 0→1 for an unexpired grant. When the UPDATE
// touches no row, a follow-up SELECT classifies the denial: unknown
// token, already consumed, or expired.
func (r *GrantRepo) TryConsume(ctx context.Context, tokenHash string) (model.DownloadGrant, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE download_grants SET consumed=1 WHERE token_hash=? AND consumed=0 AND expires_at > UTC_TIMESTAMP()",
		tokenHash)
	if err != nil {
		return model.DownloadGrant{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return model.DownloadGrant{}, err
	}
	g, getErr := r.get(ctx, tokenHash)
	if n == 1 {
		if getErr != nil {
			return model.DownloadGrant{}, getErr
		}
		return g, nil
	}
	if getErr != nil {
		return model.DownloadGrant{}, getErr // includes ErrGrantNotFound
	}
	if g.Consumed {
		return model.DownloadGrant{}, ErrGrantConsumed
	}
	return model.DownloadGrant{}, ErrGrantExpired
}

// DeleteExpired removes grants past expiry plus the retention grace
// period kept for audit.
func (r *GrantRepo) DeleteExpired(ctx context.Context, retention time.Duration) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		"DELETE FROM download_grants WHERE expires_at <= DATE_SUB(UTC_TIMESTAMP(), INTERVAL ? SECOND)",
		int64(retention/time.Second))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *GrantRepo) get(ctx context.Context, tokenHash string) (model.DownloadGrant, error) {
	var g model.DownloadGrant
	err := r.DB.QueryRowContext(ctx,
		"SELECT token_hash, file_id, issued_to, issued_at, expires_at, consumed FROM download_grants WHERE token_hash=? LIMIT 1",
		tokenHash).
		Scan(&g.TokenHash, &g.FileID, &g.IssuedTo, &g.IssuedAt, &g.ExpiresAt, &g.Consumed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.DownloadGrant{}, ErrGrantNotFound
		}
		return model.DownloadGrant{}, err
	}
	return g, nil
}

package repository

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/secure-file-share/internal/model"
	"github.com/iliyamo/secure-file-share/internal/utils"
)

// UserRepo is the credential store: it owns the `users` table and is the
// only component that mutates account state. Rows are effectively
// append-only after creation; the single mutation is the one-shot
// verification flip.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// Create inserts a user and returns its ID together with the raw
// verification token. The password is stored as a bcrypt hash and the
// verification token as a SHA-256 hash; neither secret is persisted in
// the clear. The raw token is returned exactly once so the caller can
// hand it to the email pipeline.
func (r *UserRepo) Create(ctx context.Context, email, password, role string, cost int) (uint64, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, "", err
	}
	verifyRaw, err := utils.RandomToken(32)
	if err != nil {
		return 0, "", err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (email, password_hash, role, verification_hash, is_verified) VALUES (?,?,?,?,0)",
		email, hash, role, utils.HashToken(verifyRaw))
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return 0, "", ErrEmailExists
		}
		return 0, "", err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, "", err
	}
	return uint64(id), verifyRaw, nil
}

// Verify consumes a verification token. The stored hash is compared in
// constant time, then a single conditional UPDATE both marks the account
// verified and NULLs the hash, so a token can never verify twice: the
// second attempt finds no matching row and reports a mismatch.
func (r *UserRepo) Verify(ctx context.Context, userID uint64, rawToken string) error {
	var stored sql.NullString
	err := r.DB.QueryRowContext(ctx,
		"SELECT verification_hash FROM users WHERE id=? LIMIT 1",
		userID).Scan(&stored)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrUserNotFound
		}
		return err
	}
	if !stored.Valid {
		return ErrTokenMismatch // already verified, token gone
	}
	presented := utils.HashToken(rawToken)
	if subtle.ConstantTimeCompare([]byte(stored.String), []byte(presented)) != 1 {
		return ErrTokenMismatch
	}
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET is_verified=1, verification_hash=NULL WHERE id=? AND verification_hash=?",
		userID, presented)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// lost a race with a concurrent verify of the same token
		return ErrTokenMismatch
	}
	return nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.scanOne(ctx,
		"SELECT id,email,password_hash,role,verification_hash,is_verified,created_at,updated_at FROM users WHERE email=? LIMIT 1",
		email)
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return r.scanOne(ctx,
		"SELECT id,email,password_hash,role,verification_hash,is_verified,created_at,updated_at FROM users WHERE id=? LIMIT 1",
		id)
}

func (r *UserRepo) scanOne(ctx context.Context, query string, arg any) (model.User, error) {
	var (
		u    model.User
		hash sql.NullString
	)
	err := r.DB.QueryRowContext(ctx, query, arg).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &hash, &u.IsVerified, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, ErrUserNotFound
		}
		return model.User{}, err
	}
	if hash.Valid {
		u.VerificationHash = &hash.String
	}
	return u, nil
}

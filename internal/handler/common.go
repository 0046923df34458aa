package handler

import (
	"context"
	"errors"
	"io"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/secure-file-share/internal/model"
)

// The handler layer depends on narrow interfaces rather than concrete
// repositories so the endpoints can be exercised in tests with in-memory
// fakes. The repository and storage packages satisfy these.

// UserStore is the credential store consumed by the auth endpoints.
type UserStore interface {
	Create(ctx context.Context, email, password, role string, cost int) (uint64, string, error)
	Verify(ctx context.Context, userID uint64, rawToken string) error
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
}

// SessionStore persists refresh token hashes.
type SessionStore interface {
	StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error
	ValidateRefresh(ctx context.Context, tokenHash string) (uint64, error)
	RevokeByHash(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID uint64) error
}

// FileStore is the file registry consumed by upload and download endpoints.
type FileStore interface {
	Create(ctx context.Context, uploaderID uint64, filename, fileType string, sizeBytes int64, storageKey string) (model.File, error)
	GetByPublicID(ctx context.Context, publicID string) (model.File, error)
}

// BlobStore is the byte storage collaborator. Save returns the opaque
// storage key and the persisted size.
type BlobStore interface {
	Save(src io.Reader) (string, int64, error)
	Open(key string) (io.ReadCloser, error)
	Size(key string) (int64, error)
	Remove(key string) error
}

// dbTimeout bounds every store call made from a handler so no request
// blocks indefinitely on the database or the grant store.
const dbTimeout = 5 * time.Second

// getUserID extracts the authenticated user id stored in the context by
// the JWT middleware. Claims decoded from JSON arrive as float64; other
// representations are normalized for robustness.
func getUserID(c echo.Context) (uint64, error) {
	v := c.Get("user_id")
	switch t := v.(type) {
	case uint64:
		return t, nil
	case int:
		return uint64(t), nil
	case int64:
		return uint64(t), nil
	case float64:
		return uint64(t), nil
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, errors.New("invalid user_id in context")
}

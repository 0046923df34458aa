package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/secure-file-share/internal/config"
	"github.com/iliyamo/secure-file-share/internal/handler"
	"github.com/iliyamo/secure-file-share/internal/model"
	"github.com/iliyamo/secure-file-share/internal/queue"
	"github.com/iliyamo/secure-file-share/internal/repository"
	"github.com/iliyamo/secure-file-share/internal/utils"
)

// ----- mocks -----

type mockUsers struct {
	CreateFunc     func(ctx context.Context, email, password, role string, cost int) (uint64, string, error)
	VerifyFunc     func(ctx context.Context, userID uint64, rawToken string) error
	GetByEmailFunc func(ctx context.Context, email string) (model.User, error)
	GetByIDFunc    func(ctx context.Context, id uint64) (model.User, error)
}

func (m *mockUsers) Create(ctx context.Context, email, password, role string, cost int) (uint64, string, error) {
	return m.CreateFunc(ctx, email, password, role, cost)
}
func (m *mockUsers) Verify(ctx context.Context, userID uint64, rawToken string) error {
	return m.VerifyFunc(ctx, userID, rawToken)
}
func (m *mockUsers) GetByEmail(ctx context.Context, email string) (model.User, error) {
	return m.GetByEmailFunc(ctx, email)
}
func (m *mockUsers) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return m.GetByIDFunc(ctx, id)
}

type mockSessions struct {
	stored []string
}

func (m *mockSessions) StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error {
	m.stored = append(m.stored, tokenHash)
	return nil
}
func (m *mockSessions) ValidateRefresh(ctx context.Context, tokenHash string) (uint64, error) {
	return 0, repository.ErrUserNotFound
}
func (m *mockSessions) RevokeByHash(ctx context.Context, tokenHash string) error  { return nil }
func (m *mockSessions) RevokeAllForUser(ctx context.Context, userID uint64) error { return nil }

func testCfg() config.Config {
	return config.Config{
		JWTSecret:         "test-secret",
		AccessTTLMin:      15,
		RefreshTTLDays:    7,
		BcryptCost:        4,
		BaseURL:           "http://localhost:8080",
		GrantTTLMin:       30,
		GrantTokenBytes:   32,
		AllowedExtensions: map[string]bool{"pptx": true, "docx": true, "xlsx": true},
	}
}

func jsonCtx(e *echo.Echo, method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

// ----- tests -----

func TestSignUp(t *testing.T) {
	e := echo.New()

	t.Run("success queues verification mail", func(t *testing.T) {
		users := &mockUsers{
			CreateFunc: func(ctx context.Context, email, password, role string, cost int) (uint64, string, error) {
				require.Equal(t, "ada@example.com", email)
				require.Equal(t, model.RoleClient, role) // default role
				return 1, "raw-verify-token", nil
			},
		}
		h := handler.NewAuthHandler(testCfg(), users, &mockSessions{})
		published := make(chan queue.VerificationRequestedEvent, 1)
		h.PublishVerification = func(ctx context.Context, ev queue.VerificationRequestedEvent) error {
			published <- ev
			return nil
		}

		c, rec := jsonCtx(e, http.MethodPost, "/sign-up", `{"email":"Ada@Example.com","password":"pw"}`)
		require.NoError(t, h.SignUp(c))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Registration successful")

		select {
		case ev := <-published:
			assert.Equal(t, uint64(1), ev.UserID)
			assert.Equal(t, "ada@example.com", ev.Email)
			assert.Contains(t, ev.VerificationURL, "/email-verify/1?token=raw-verify-token")
		case <-time.After(time.Second):
			t.Fatal("verification event never published")
		}
	})

	t.Run("role in the body is ignored", func(t *testing.T) {
		users := &mockUsers{
			CreateFunc: func(ctx context.Context, email, password, role string, cost int) (uint64, string, error) {
				require.Equal(t, model.RoleClient, role)
				return 2, "raw-verify-token", nil
			},
		}
		h := handler.NewAuthHandler(testCfg(), users, &mockSessions{})
		h.PublishVerification = func(context.Context, queue.VerificationRequestedEvent) error { return nil }

		// OPS accounts are provisioned out of band; a caller asking for
		// the role at sign-up still gets a CLIENT account.
		c, rec := jsonCtx(e, http.MethodPost, "/sign-up", `{"email":"mallory@example.com","password":"pw","role":"OPS"}`)
		require.NoError(t, h.SignUp(c))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("duplicate email", func(t *testing.T) {
		users := &mockUsers{
			CreateFunc: func(ctx context.Context, email, password, role string, cost int) (uint64, string, error) {
				return 0, "", repository.ErrEmailExists
			},
		}
		h := handler.NewAuthHandler(testCfg(), users, &mockSessions{})
		h.PublishVerification = func(context.Context, queue.VerificationRequestedEvent) error { return nil }

		c, rec := jsonCtx(e, http.MethodPost, "/sign-up", `{"email":"ada@example.com","password":"pw"}`)
		require.NoError(t, h.SignUp(c))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "already taken")
	})

	t.Run("missing fields", func(t *testing.T) {
		h := handler.NewAuthHandler(testCfg(), &mockUsers{}, &mockSessions{})
		c, rec := jsonCtx(e, http.MethodPost, "/sign-up", `{"email":"","password":""}`)
		require.NoError(t, h.SignUp(c))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestEmailVerify(t *testing.T) {
	e := echo.New()

	run := func(verifyErr error) *httptest.ResponseRecorder {
		users := &mockUsers{
			VerifyFunc: func(ctx context.Context, userID uint64, rawToken string) error {
				require.Equal(t, uint64(5), userID)
				require.Equal(t, "tok", rawToken)
				return verifyErr
			},
		}
		h := handler.NewAuthHandler(testCfg(), users, &mockSessions{})
		req := httptest.NewRequest(http.MethodGet, "/email-verify/5?token=tok", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetPath("/email-verify/:user_id")
		c.SetParamNames("user_id")
		c.SetParamValues("5")
		require.NoError(t, h.EmailVerify(c))
		return rec
	}

	t.Run("success", func(t *testing.T) {
		rec := run(nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Email verified successfully")
	})

	t.Run("token mismatch", func(t *testing.T) {
		rec := run(repository.ErrTokenMismatch)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "invalid verification token")
	})

	t.Run("unknown user reads the same as mismatch", func(t *testing.T) {
		rec := run(repository.ErrUserNotFound)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "invalid verification token")
	})
}

func TestClientLogin(t *testing.T) {
	e := echo.New()
	hash, err := utils.HashPassword("pw", 4)
	require.NoError(t, err)

	account := model.User{
		ID:           9,
		Email:        "ada@example.com",
		PasswordHash: hash,
		Role:         model.RoleClient,
		IsVerified:   true,
	}

	login := func(u model.User, getErr error, body string) *httptest.ResponseRecorder {
		users := &mockUsers{
			GetByEmailFunc: func(ctx context.Context, email string) (model.User, error) {
				return u, getErr
			},
		}
		h := handler.NewAuthHandler(testCfg(), users, &mockSessions{})
		c, rec := jsonCtx(e, http.MethodPost, "/client-login", body)
		require.NoError(t, h.ClientLogin(c))
		return rec
	}

	t.Run("success returns token pair", func(t *testing.T) {
		rec := login(account, nil, `{"email":"ada@example.com","password":"pw"}`)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			User struct {
				ID   uint64 `json:"id"`
				Role string `json:"role"`
			} `json:"user"`
			Access  struct{ Token string } `json:"access"`
			Refresh struct{ Token string } `json:"refresh"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, uint64(9), resp.User.ID)
		assert.Equal(t, model.RoleClient, resp.User.Role)
		assert.NotEmpty(t, resp.Access.Token)
		assert.NotEmpty(t, resp.Refresh.Token)
	})

	const genericDenial = "invalid credentials or email not verified"

	t.Run("wrong password", func(t *testing.T) {
		rec := login(account, nil, `{"email":"ada@example.com","password":"wrong"}`)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), genericDenial)
	})

	t.Run("unverified account", func(t *testing.T) {
		u := account
		u.IsVerified = false
		rec := login(u, nil, `{"email":"ada@example.com","password":"pw"}`)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), genericDenial)
	})

	t.Run("ops account on client login", func(t *testing.T) {
		u := account
		u.Role = model.RoleOps
		rec := login(u, nil, `{"email":"ada@example.com","password":"pw"}`)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), genericDenial)
	})

	t.Run("unknown email", func(t *testing.T) {
		rec := login(model.User{}, repository.ErrUserNotFound, `{"email":"who@example.com","password":"pw"}`)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), genericDenial)
	})
}

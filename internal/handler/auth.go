package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/secure-file-share/internal/config"
	"github.com/iliyamo/secure-file-share/internal/model"
	"github.com/iliyamo/secure-file-share/internal/queue"
	"github.com/iliyamo/secure-file-share/internal/repository"
	queue_publisher "github.com/iliyamo/secure-file-share/internal/service"
	"github.com/iliyamo/secure-file-share/internal/utils"
)

// AuthHandler bundles dependencies for the account endpoints: sign-up,
// email verification and the two role-specific logins.
type AuthHandler struct {
	Cfg      config.Config
	Users    UserStore
	Sessions SessionStore

	// PublishVerification delivers the verification mail event.
	// Overridable in tests; defaults to the RabbitMQ publisher.
	PublishVerification func(ctx context.Context, ev queue.VerificationRequestedEvent) error
}

func NewAuthHandler(cfg config.Config, u UserStore, s SessionStore) *AuthHandler {
	return &AuthHandler{
		Cfg:                 cfg,
		Users:               u,
		Sessions:            s,
		PublishVerification: queue_publisher.PublishVerificationRequested,
	}
}

// ----- DTOs -----

type signUpReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type userPart struct {
	ID    uint64 `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}
type authResp struct {
	User    userPart  `json:"user"`
	Access  tokenPart `json:"access"`
	Refresh tokenPart `json:"refresh"`
}

// SignUp creates an unverified account and queues the verification mail.
// The account is durable before the response; a broker failure only
// loses the mail, never the account.
func (h *AuthHandler) SignUp(c echo.Context) error {
	var req signUpReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email and password are required"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	// Self-service accounts are always CLIENT. OPS accounts are
	// provisioned directly in the database, never via sign-up.
	uid, verifyToken, err := h.Users.Create(ctx, req.Email, req.Password, model.RoleClient, h.Cfg.BcryptCost)
	if err != nil {
		if err == repository.ErrEmailExists {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "email is already taken"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create user failed"})
	}

	verificationURL := fmt.Sprintf("%s/email-verify/%d?token=%s", h.Cfg.BaseURL, uid, verifyToken)
	ev := queue.VerificationRequestedEvent{
		UserID:          uid,
		Email:           req.Email,
		VerificationURL: verificationURL,
		RequestedAt:     time.Now().UTC().Format(time.RFC3339),
	}
	// Fire-and-forget: the request must not wait on the broker.
	go func() { _ = h.PublishVerification(context.Background(), ev) }()

	return c.JSON(http.StatusOK, echo.Map{
		"message": "Registration successful. Check your email for verification instructions.",
	})
}

// EmailVerify consumes a verification token. The token is single-use:
// a second call with the same token reports a mismatch.
func (h *AuthHandler) EmailVerify(c echo.Context) error {
	userID, err := strconv.ParseUint(c.Param("user_id"), 10, 64)
	if err != nil || userID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid verification token"})
	}
	token := strings.TrimSpace(c.QueryParam("token"))
	if token == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid verification token"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Users.Verify(ctx, userID, token); err != nil {
		switch err {
		case repository.ErrUserNotFound, repository.ErrTokenMismatch:
			// Same message for both so a caller cannot probe user ids.
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid verification token"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "verification failed"})
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Email verified successfully"})
}

// ClientLogin authenticates a CLIENT account.
func (h *AuthHandler) ClientLogin(c echo.Context) error {
	return h.login(c, model.RoleClient)
}

// OpsLogin authenticates an OPS account.
func (h *AuthHandler) OpsLogin(c echo.Context) error {
	return h.login(c, model.RoleOps)
}

// login verifies credentials for the expected role and returns a fresh
// token pair. Wrong password, unknown email, wrong role and unverified
// email all yield the same 401 body, so the response never reveals
// whether an address is registered or why it was rejected.
func (h *AuthHandler) login(c echo.Context, role string) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email and password are required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	denied := func() error {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials or email not verified"})
	}

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if err == repository.ErrUserNotFound {
			return denied()
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return denied()
	}
	if u.Role != role || !u.IsVerified {
		return denied()
	}

	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Role, h.Cfg.AccessTTLMin)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue access failed"})
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue refresh failed"})
	}
	if err := h.Sessions.StoreRefresh(ctx, u.ID, utils.HashToken(refresh.Raw), refresh.Exp); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "save refresh failed"})
	}

	return c.JSON(http.StatusOK, authResp{
		User:    userPart{ID: u.ID, Email: u.Email, Role: u.Role},
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp}, // raw back to client
	})
}

// Refresh validates a refresh token by hash, revokes it and issues a new
// pair (rotation).
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required"})
	}
	hash := utils.HashToken(strings.TrimSpace(req.RefreshToken))

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	userID, err := h.Sessions.ValidateRefresh(ctx, hash)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
	}
	_ = h.Sessions.RevokeByHash(ctx, hash)

	u, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load user failed"})
	}

	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Role, h.Cfg.AccessTTLMin)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue access failed"})
	}
	newRef, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue refresh failed"})
	}
	if err := h.Sessions.StoreRefresh(ctx, u.ID, utils.HashToken(newRef.Raw), newRef.Exp); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "save refresh failed"})
	}

	return c.JSON(http.StatusOK, authResp{
		User:    userPart{ID: u.ID, Email: u.Email, Role: u.Role},
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: newRef.Raw, Expires: newRef.Exp},
	})
}

// Logout revokes the presented refresh token (one session).
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required"})
	}
	hash := utils.HashToken(strings.TrimSpace(req.RefreshToken))

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if _, err := h.Sessions.ValidateRefresh(ctx, hash); err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh token"})
	}
	if err := h.Sessions.RevokeByHash(ctx, hash); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "logout failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

// Me is a simple protected endpoint returning the caller's identity.
func (h *AuthHandler) Me(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"user_id": c.Get("user_id"),
		"role":    c.Get("role"),
	})
}

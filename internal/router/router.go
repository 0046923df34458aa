package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // Echo web framework for routing
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/secure-file-share/internal/config"
	"github.com/iliyamo/secure-file-share/internal/handler"
	"github.com/iliyamo/secure-file-share/internal/middleware"
	"github.com/iliyamo/secure-file-share/internal/model"
)

// RegisterRoutes registers routes that do not require authentication on
// the provided Echo instance. Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth wires the account endpoints. The credential routes
// (sign-up and both logins) sit behind the Redis token-bucket limiter;
// session maintenance lives under /v1/auth; /v1/me demonstrates a
// JWT-protected route accepting either role.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, rlCfg config.RateLimitConfig, rdb *redis.Client, jwtSecret string) {
	limited := middleware.NewTokenBucket(rlCfg, rdb)

	e.POST("/sign-up", a.SignUp, limited)
	e.GET("/email-verify/:user_id", a.EmailVerify)
	e.POST("/client-login", a.ClientLogin, limited)
	e.POST("/ops-login", a.OpsLogin, limited)

	g := e.Group("/v1/auth")
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout)

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.Use(middleware.RequireRole(model.RoleOps, model.RoleClient))
	auth.GET("/me", a.Me)
}

// RegisterFiles wires the upload, grant-issuance and download routes.
// Upload requires an OPS JWT; grant issuance requires a CLIENT JWT.
// The download route itself is token-gated, not session-gated: the
// single-use grant token in the query string is the credential.
func RegisterFiles(e *echo.Echo, f *handler.FileHandler, d *handler.DownloadHandler, jwtSecret string) {
	e.POST("/upload-file", f.Upload,
		middleware.JWTAuth(jwtSecret), middleware.RequireRole(model.RoleOps))
	e.GET("/secure-download-file/:file_id", d.SecureDownload,
		middleware.JWTAuth(jwtSecret), middleware.RequireRole(model.RoleClient))
	e.GET("/download-file/:file_id", d.Download)
}

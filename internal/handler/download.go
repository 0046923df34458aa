package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/secure-file-share/internal/config"
	"github.com/iliyamo/secure-file-share/internal/model"
	"github.com/iliyamo/secure-file-share/internal/repository"
	"github.com/iliyamo/secure-file-share/internal/storage"
	"github.com/iliyamo/secure-file-share/internal/utils"
)

// DownloadHandler implements the token issuer and the download
// gatekeeper. SecureDownload mints single-use grants for verified
// clients; Download is the sole path through which file bytes leave the
// service.
type DownloadHandler struct {
	Cfg    config.Config
	Files  FileStore
	Grants repository.GrantStore
	Blobs  BlobStore
}

func NewDownloadHandler(cfg config.Config, files FileStore, grants repository.GrantStore, blobs BlobStore) *DownloadHandler {
	return &DownloadHandler{Cfg: cfg, Files: files, Grants: grants, Blobs: blobs}
}

// SecureDownload handles GET /secure-download-file/:file_id. The caller
// must be an authenticated, verified CLIENT (middleware enforces the
// role; only verified accounts can log in at all). On success the
// response carries a URL embedding a fresh single-use token; the raw
// token exists nowhere else, the store only sees its hash.
func (h *DownloadHandler) SecureDownload(c echo.Context) error {
	requesterID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	if role, ok := c.Get("role").(string); !ok || role != model.RoleClient {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "client user required for downloads"})
	}
	fileID := c.Param("file_id")
	if fileID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "file id required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	f, err := h.Files.GetByPublicID(ctx, fileID)
	if err != nil {
		if err == repository.ErrFileNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "file not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "lookup failed"})
	}

	rawToken, err := h.issueGrant(ctx, f.PublicID, requesterID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue grant failed"})
	}

	downloadURL := fmt.Sprintf("%s/download-file/%s?token=%s", h.Cfg.BaseURL, f.PublicID, rawToken)
	return c.JSON(http.StatusOK, echo.Map{
		"download_url": downloadURL,
		"message":      "success",
	})
}

// issueGrant mints a crypto-random token, persists the grant and returns
// the raw token. A token hash collision is practically impossible at 256
// bits of entropy, but the store contract surfaces it, so generation
// retries a few times before giving up.
func (h *DownloadHandler) issueGrant(ctx context.Context, fileID string, requesterID uint64) (string, error) {
	now := time.Now().UTC()
	ttl := time.Duration(h.Cfg.GrantTTLMin) * time.Minute
	for attempt := 0; attempt < 3; attempt++ {
		raw, err := utils.RandomToken(h.Cfg.GrantTokenBytes)
		if err != nil {
			return "", err
		}
		g := model.DownloadGrant{
			TokenHash: utils.HashToken(raw),
			FileID:    fileID,
			IssuedTo:  requesterID,
			IssuedAt:  now,
			ExpiresAt: now.Add(ttl),
		}
		err = h.Grants.Put(ctx, g)
		if err == nil {
			return raw, nil
		}
		if err != repository.ErrTokenExists {
			return "", err
		}
	}
	return "", errors.New("grant token collision persisted after retries")
}

// Download handles GET /download-file/:file_id?token=. The grant is
// consumed first — one atomic step covering both the expiry check and
// the consumed flip — and only then is the file resolved and streamed.
// A token presented against the wrong file id is burned by that consume
// and denied; it is treated as compromised rather than refunded.
func (h *DownloadHandler) Download(c echo.Context) error {
	fileID := c.Param("file_id")
	token := strings.TrimSpace(c.QueryParam("token"))
	if fileID == "" || token == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid download link"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	g, err := h.Grants.TryConsume(ctx, utils.HashToken(token))
	if err != nil {
		switch err {
		case repository.ErrGrantExpired:
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "download link expired"})
		case repository.ErrGrantConsumed:
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "download link already used"})
		case repository.ErrGrantNotFound:
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid download link"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "download authorization failed"})
		}
	}
	if g.FileID != fileID {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid download link"})
	}

	f, err := h.Files.GetByPublicID(ctx, fileID)
	if err != nil {
		if err == repository.ErrFileNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "file not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "lookup failed"})
	}

	rc, err := h.Blobs.Open(f.StorageKey)
	if err != nil {
		if err == storage.ErrObjectNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "file not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "open file failed"})
	}
	defer rc.Close()

	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename=%q`, f.Filename))
	c.Response().Header().Set(echo.HeaderContentLength, fmt.Sprintf("%d", f.SizeBytes))
	return c.Stream(http.StatusOK, "application/octet-stream", rc)
}

package handler

import (
	"context"
	"net/http"
	"path/filepath"
	"sort"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/secure-file-share/internal/config"
	"github.com/iliyamo/secure-file-share/internal/model"
)

// FileHandler implements the upload endpoint. Uploading is an OPS-only
// operation, enforced by the role middleware and re-checked here so the
// boundary holds even if a route is ever wired without the middleware.
type FileHandler struct {
	Cfg   config.Config
	Files FileStore
	Blobs BlobStore
}

func NewFileHandler(cfg config.Config, files FileStore, blobs BlobStore) *FileHandler {
	return &FileHandler{Cfg: cfg, Files: files, Blobs: blobs}
}

// Upload handles POST /upload-file. The multipart "file" part is
// streamed to blob storage first, then registered in the file registry.
// Bytes and metadata are created atomically from the caller's view: a
// failed insert removes the stored object before the error response.
func (h *FileHandler) Upload(c echo.Context) error {
	uploaderID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	if role, ok := c.Get("role").(string); !ok || role != model.RoleOps {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "ops user required for file upload"})
	}

	fh, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "file is required"})
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(fh.Filename)), ".")
	if !h.Cfg.AllowedExtensions[ext] {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "invalid file type, allowed types: " + allowedList(h.Cfg.AllowedExtensions),
		})
	}

	src, err := fh.Open()
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "cannot read uploaded file"})
	}
	defer src.Close()

	storageKey, size, err := h.Blobs.Save(src)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "store file failed"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	f, err := h.Files.Create(ctx, uploaderID, filepath.Base(fh.Filename), ext, size, storageKey)
	if err != nil {
		// roll back the blob so no orphaned bytes remain
		_ = h.Blobs.Remove(storageKey)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "register file failed"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"message":    "File uploaded successfully",
		"file_id":    f.PublicID,
		"size_bytes": f.SizeBytes,
	})
}

// allowedList renders the allow-list for error messages in stable form.
func allowedList(set map[string]bool) string {
	exts := make([]string, 0, len(set))
	for e := range set {
		exts = append(exts, e)
	}
	sort.Strings(exts)
	return strings.Join(exts, ", ")
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/secure-file-share/internal/model"
	"github.com/iliyamo/secure-file-share/internal/utils"
)

// FileRepo is the file registry: it owns the `files` table. Rows are
// immutable once inserted; there are no update or delete operations.
type FileRepo struct{ DB *sql.DB }

func NewFileRepo(db *sql.DB) *FileRepo { return &FileRepo{DB: db} }

// publicIDBytes is the entropy of a public file id. 12 bytes gives a
// 16-character url-safe slug, enough to make enumeration infeasible.
const publicIDBytes = 12

// Create inserts a file row and returns it with the generated public id.
// The public id is random and carries no relation to the storage key, so
// a download URL reveals nothing about the on-disk layout. On the
// (practically impossible) slug collision, generation is retried.
func (r *FileRepo) Create(ctx context.Context, uploaderID uint64, filename, fileType string, sizeBytes int64, storageKey string) (model.File, error) {
	for attempt := 0; attempt < 3; attempt++ {
		publicID, err := utils.RandomToken(publicIDBytes)
		if err != nil {
			return model.File{}, err
		}
		res, err := r.DB.ExecContext(ctx,
			"INSERT INTO files (public_id, filename, file_type, size_bytes, uploader_id, storage_key) VALUES (?,?,?,?,?,?)",
			publicID, filename, fileType, sizeBytes, uploaderID, storageKey)
		if err != nil {
			if strings.Contains(strings.ToLower(err.Error()), "1062") {
				continue // duplicate public_id, regenerate
			}
			return model.File{}, err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return model.File{}, err
		}
		return model.File{
			ID:         uint64(id),
			PublicID:   publicID,
			Filename:   filename,
			FileType:   fileType,
			SizeBytes:  sizeBytes,
			UploaderID: uploaderID,
			StorageKey: storageKey,
		}, nil
	}
	return model.File{}, errors.New("public id generation exhausted retries")
}

// GetByPublicID fetches a file by its public identifier.
func (r *FileRepo) GetByPublicID(ctx context.Context, publicID string) (model.File, error) {
	var f model.File
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,public_id,filename,file_type,size_bytes,uploader_id,storage_key,created_at FROM files WHERE public_id=? LIMIT 1",
		publicID).
		Scan(&f.ID, &f.PublicID, &f.Filename, &f.FileType, &f.SizeBytes, &f.UploaderID, &f.StorageKey, &f.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.File{}, ErrFileNotFound
		}
		return model.File{}, err
	}
	return f, nil
}

// Package storage implements the blob storage collaborator on the local
// filesystem. It speaks a deliberately narrow contract: Save bytes and
// get an opaque storage key back, Open a stream for a key, report a
// key's Size, Remove a key. Storage keys are random and never derived
// from public file identifiers, so nothing about the on-disk layout can
// be inferred from a URL.
package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/iliyamo/secure-file-share/internal/utils"
)

// ErrObjectNotFound is returned when a storage key has no object.
var ErrObjectNotFound = errors.New("storage object not found")

// LocalStore persists blobs as flat files under a base directory.
type LocalStore struct {
	base string
}

// NewLocalStore creates the base directory if needed and returns a store
// rooted there.
func NewLocalStore(base string) (*LocalStore, error) {
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create base dir: %w", err)
	}
	return &LocalStore{base: base}, nil
}

// Save streams src into a new object and returns its storage key. The
// bytes land in a temp file first and are renamed into place, so a
// half-written object is never visible under a valid key; written
// objects are immediately readable by the writer.
func (s *LocalStore) Save(src io.Reader) (string, int64, error) {
	key, err := utils.RandomToken(16)
	if err != nil {
		return "", 0, err
	}
	tmp, err := os.CreateTemp(s.base, ".upload-*")
	if err != nil {
		return "", 0, err
	}
	n, err := io.Copy(tmp, src)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return "", 0, err
	}
	if err := os.Rename(tmp.Name(), s.path(key)); err != nil {
		_ = os.Remove(tmp.Name())
		return "", 0, err
	}
	return key, n, nil
}

// Open returns a read stream for the object behind key.
func (s *LocalStore) Open(key string) (io.ReadCloser, error) {
	f, err := os.Open(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrObjectNotFound
		}
		return nil, err
	}
	return f, nil
}

// Size reports the persisted byte count for key.
func (s *LocalStore) Size(key string) (int64, error) {
	info, err := os.Stat(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, ErrObjectNotFound
		}
		return 0, err
	}
	return info.Size(), nil
}

// Remove deletes the object behind key. Used to roll back an upload
// whose metadata insert failed.
func (s *LocalStore) Remove(key string) error {
	err := os.Remove(s.path(key))
	if os.IsNotExist(err) {
		return ErrObjectNotFound
	}
	return err
}

// path maps a key to its file. Keys are generated internally, but
// flattening through filepath.Base keeps a corrupted key from escaping
// the base directory.
func (s *LocalStore) path(key string) string {
	return filepath.Join(s.base, filepath.Base(key))
}

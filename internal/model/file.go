package model

import "time"

// File describes one uploaded document as stored in the `files` table.
// PublicID is the only identifier ever shown to clients; StorageKey
// locates the bytes on the blob store and must never leave the server.
// The two are generated independently so the storage layout cannot be
// inferred from a download URL.
//
// Files are immutable once written: there are no update or delete
// operations on this table.
type File struct {
	ID         uint64    // files.id
	PublicID   string    // files.public_id (unguessable, url-safe)
	Filename   string    // files.filename (as uploaded)
	FileType   string    // files.file_type (extension, lower-cased)
	SizeBytes  int64     // files.size_bytes (measured at write time)
	UploaderID uint64    // files.uploader_id (references users.id)
	StorageKey string    // files.storage_key (internal, never exposed)
	CreatedAt  time.Time // files.created_at
}

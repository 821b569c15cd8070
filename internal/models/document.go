package models

import (
	"time"

	"github.com/lib/pq"
)

// Document is the per-archive metadata row for a content-addressed file.
// Uniqueness is on (archive, hash): the same content may exist as separate
// rows in different archives, but the underlying blob is stored once
// globally. Unsorted is true iff the document belongs to zero records.
type Document struct {
	Archive     string         `db:"archive" json:"archive"`
	Hash        string         `db:"hash" json:"hash"`
	Name        string         `db:"name" json:"name"`
	FileType    string         `db:"file_type" json:"fileType"`
	FileSize    int64          `db:"file_size" json:"fileSize"`
	Creator     string         `db:"creator" json:"creator"`
	Maintainers pq.StringArray `db:"maintainers" json:"maintainers"`
	Unsorted    bool           `db:"unsorted" json:"unsorted"`
	CreatedAt   time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updatedAt"`
}

// HasMaintainer reports whether the archivist is already on the document.
func (d *Document) HasMaintainer(archivist string) bool {
	for _, m := range d.Maintainers {
		if m == archivist {
			return true
		}
	}
	return false
}

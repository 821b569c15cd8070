package models

import (
	"time"

	"github.com/lib/pq"
)

// Archive is a named, owned namespace containing documents and records.
// The owner is fixed at creation and is the only archivist allowed to
// delete the archive. Maintainers accumulate and never shrink; they carry
// no authorization weight.
type Archive struct {
	Name        string         `db:"name" json:"name"`
	Description string         `db:"description" json:"description"`
	Owner       string         `db:"owner" json:"owner"`
	Maintainers pq.StringArray `db:"maintainers" json:"maintainers"`
	CreatedAt   time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updatedAt"`
}

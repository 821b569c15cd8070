package models

import (
	"time"

	"github.com/lib/pq"
)

// Record is an ordered, taggable collection of document references. The
// Documents column is an ordered sequence of content hashes in which
// duplicates are allowed; Tags is a set. Revision is the optimistic
// concurrency counter: every write of Documents or Tags compares and swaps
// on it.
type Record struct {
	ID          string         `db:"id" json:"id"`
	Archive     string         `db:"archive" json:"archive"`
	Name        string         `db:"name" json:"name"`
	Documents   pq.StringArray `db:"documents" json:"documents"`
	Tags        pq.StringArray `db:"tags" json:"tags"`
	Creator     string         `db:"creator" json:"creator"`
	Maintainers pq.StringArray `db:"maintainers" json:"maintainers"`
	Revision    int64          `db:"revision" json:"-"`
	CreatedAt   time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updatedAt"`
}

// HasTag reports whether the record carries the tag.
func (r *Record) HasTag(tag string) bool {
	for _, t := range r.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// HasMaintainer reports whether the archivist is already on the record.
func (r *Record) HasMaintainer(archivist string) bool {
	for _, m := range r.Maintainers {
		if m == archivist {
			return true
		}
	}
	return false
}

// RecordQuery filters records within an archive. Name is a case-insensitive
// substring match; IncludeTags requires at least one tag in common,
// ExcludeTags requires none, FilterTags requires all. Absent filters impose
// no constraint and all provided filters combine with AND.
type RecordQuery struct {
	Name        string   `json:"name,omitempty"`
	IncludeTags []string `json:"includeTags,omitempty"`
	ExcludeTags []string `json:"excludeTags,omitempty"`
	FilterTags  []string `json:"filterTags,omitempty"`
}

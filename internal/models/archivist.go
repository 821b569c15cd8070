package models

import "time"

// Archivist is a named identity allowed to mutate archives, documents and
// records. Usernames are stored normalized: lowercase and trimmed.
type Archivist struct {
	Username  string    `db:"username" json:"username"`
	Bio       string    `db:"bio" json:"bio"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/arkival/arkive-api/internal/models"
)

// ArchiveRepository handles archive directory persistence.
type ArchiveRepository struct {
	db *sqlx.DB
}

// NewArchiveRepository constructs the repository.
func NewArchiveRepository(db *sqlx.DB) *ArchiveRepository {
	return &ArchiveRepository{db: db}
}

// Exists reports whether an archive row exists for the name.
func (r *ArchiveRepository) Exists(ctx context.Context, name string) (bool, error) {
	const query = `SELECT COUNT(1) FROM archives WHERE name = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, name); err != nil {
		return false, fmt.Errorf("check archive existence: %w", err)
	}
	return count > 0, nil
}

// ListNames returns every archive name.
func (r *ArchiveRepository) ListNames(ctx context.Context) ([]string, error) {
	const query = `SELECT name FROM archives ORDER BY name`
	var names []string
	if err := r.db.SelectContext(ctx, &names, query); err != nil {
		return nil, fmt.Errorf("list archives: %w", err)
	}
	return names, nil
}

// Create inserts a new archive row. The owner is always the first maintainer.
func (r *ArchiveRepository) Create(ctx context.Context, archive *models.Archive) error {
	now := time.Now().UTC()
	if archive.CreatedAt.IsZero() {
		archive.CreatedAt = now
	}
	archive.UpdatedAt = now
	if len(archive.Maintainers) == 0 {
		archive.Maintainers = pq.StringArray{archive.Owner}
	}
	const query = `INSERT INTO archives (name, description, owner, maintainers, created_at, updated_at)
	VALUES (:name, :description, :owner, :maintainers, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, archive); err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	return nil
}

// GetByName retrieves one archive row.
func (r *ArchiveRepository) GetByName(ctx context.Context, name string) (*models.Archive, error) {
	const query = `SELECT name, description, owner, maintainers, created_at, updated_at
	FROM archives WHERE name = $1`
	var archive models.Archive
	if err := r.db.GetContext(ctx, &archive, query, name); err != nil {
		return nil, err
	}
	return &archive, nil
}

// Rename changes the archive name key.
func (r *ArchiveRepository) Rename(ctx context.Context, name, newName string) error {
	const query = `UPDATE archives SET name = $2, updated_at = NOW() WHERE name = $1`
	res, err := r.db.ExecContext(ctx, query, name, newName)
	if err != nil {
		return fmt.Errorf("rename archive: %w", err)
	}
	return requireRowsAffected(res, "rename archive")
}

// UpdateDescription replaces the description text.
func (r *ArchiveRepository) UpdateDescription(ctx context.Context, name, description string) error {
	const query = `UPDATE archives SET description = $2, updated_at = NOW() WHERE name = $1`
	res, err := r.db.ExecContext(ctx, query, name, description)
	if err != nil {
		return fmt.Errorf("update archive description: %w", err)
	}
	return requireRowsAffected(res, "update archive description")
}

// AddMaintainer appends the archivist to the maintainer set if absent. The
// append condition runs inside the statement, so concurrent calls cannot
// duplicate an entry. Zero rows affected means the archivist was already a
// maintainer, which is a no-op rather than an error.
func (r *ArchiveRepository) AddMaintainer(ctx context.Context, name, archivist string) error {
	const query = `UPDATE archives SET maintainers = array_append(maintainers, $2), updated_at = NOW()
	WHERE name = $1 AND NOT (maintainers @> ARRAY[$2])`
	if _, err := r.db.ExecContext(ctx, query, name, archivist); err != nil {
		return fmt.Errorf("add archive maintainer: %w", err)
	}
	return nil
}

// Delete removes the archive row. Contained documents and records are left
// behind on purpose; see the reconcile service for the cleanup path.
func (r *ArchiveRepository) Delete(ctx context.Context, name string) error {
	const query = `DELETE FROM archives WHERE name = $1`
	res, err := r.db.ExecContext(ctx, query, name)
	if err != nil {
		return fmt.Errorf("delete archive: %w", err)
	}
	return requireRowsAffected(res, "delete archive")
}

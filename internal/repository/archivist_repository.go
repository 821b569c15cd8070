package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/arkival/arkive-api/internal/models"
)

// ArchivistRepository handles archivist identity persistence.
type ArchivistRepository struct {
	db *sqlx.DB
}

// NewArchivistRepository constructs the repository.
func NewArchivistRepository(db *sqlx.DB) *ArchivistRepository {
	return &ArchivistRepository{db: db}
}

// Exists reports whether an archivist row exists for the username.
func (r *ArchivistRepository) Exists(ctx context.Context, username string) (bool, error) {
	const query = `SELECT COUNT(1) FROM archivists WHERE username = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, username); err != nil {
		return false, fmt.Errorf("check archivist existence: %w", err)
	}
	return count > 0, nil
}

// Create inserts a new archivist row.
func (r *ArchivistRepository) Create(ctx context.Context, archivist *models.Archivist) error {
	now := time.Now().UTC()
	if archivist.CreatedAt.IsZero() {
		archivist.CreatedAt = now
	}
	archivist.UpdatedAt = now
	const query = `INSERT INTO archivists (username, bio, created_at, updated_at)
	VALUES (:username, :bio, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, archivist); err != nil {
		return fmt.Errorf("create archivist: %w", err)
	}
	return nil
}

// GetByUsername retrieves one archivist row.
func (r *ArchivistRepository) GetByUsername(ctx context.Context, username string) (*models.Archivist, error) {
	const query = `SELECT username, bio, created_at, updated_at FROM archivists WHERE username = $1`
	var archivist models.Archivist
	if err := r.db.GetContext(ctx, &archivist, query, username); err != nil {
		return nil, err
	}
	return &archivist, nil
}

// Rename changes the username key.
func (r *ArchivistRepository) Rename(ctx context.Context, username, newUsername string) error {
	const query = `UPDATE archivists SET username = $2, updated_at = NOW() WHERE username = $1`
	res, err := r.db.ExecContext(ctx, query, username, newUsername)
	if err != nil {
		return fmt.Errorf("rename archivist: %w", err)
	}
	return requireRowsAffected(res, "rename archivist")
}

// UpdateBio replaces the bio text.
func (r *ArchivistRepository) UpdateBio(ctx context.Context, username, bio string) error {
	const query = `UPDATE archivists SET bio = $2, updated_at = NOW() WHERE username = $1`
	res, err := r.db.ExecContext(ctx, query, username, bio)
	if err != nil {
		return fmt.Errorf("update archivist bio: %w", err)
	}
	return requireRowsAffected(res, "update archivist bio")
}

// Delete removes the archivist row.
func (r *ArchivistRepository) Delete(ctx context.Context, username string) error {
	const query = `DELETE FROM archivists WHERE username = $1`
	res, err := r.db.ExecContext(ctx, query, username)
	if err != nil {
		return fmt.Errorf("delete archivist: %w", err)
	}
	return requireRowsAffected(res, "delete archivist")
}

func requireRowsAffected(res sql.Result, op string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check %s rows: %w", op, err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

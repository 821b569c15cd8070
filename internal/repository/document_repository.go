package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/arkival/arkive-api/internal/models"
)

// DocumentRepository handles document metadata persistence. Uniqueness is on
// (archive, hash); the content blob itself lives in the object store and is
// shared globally across archives.
type DocumentRepository struct {
	db *sqlx.DB
}

// NewDocumentRepository constructs the repository.
func NewDocumentRepository(db *sqlx.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Exists reports whether a metadata row exists for (archive, hash).
func (r *DocumentRepository) Exists(ctx context.Context, archive, hash string) (bool, error) {
	const query = `SELECT COUNT(1) FROM documents WHERE archive = $1 AND hash = $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, archive, hash); err != nil {
		return false, fmt.Errorf("check document existence: %w", err)
	}
	return count > 0, nil
}

// Create inserts a new document metadata row.
func (r *DocumentRepository) Create(ctx context.Context, doc *models.Document) error {
	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now
	if len(doc.Maintainers) == 0 {
		doc.Maintainers = pq.StringArray{doc.Creator}
	}
	const query = `INSERT INTO documents
	(archive, hash, name, file_type, file_size, creator, maintainers, unsorted, created_at, updated_at)
	VALUES (:archive, :hash, :name, :file_type, :file_size, :creator, :maintainers, :unsorted, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, doc); err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

// Get retrieves one document metadata row.
func (r *DocumentRepository) Get(ctx context.Context, archive, hash string) (*models.Document, error) {
	const query = `SELECT archive, hash, name, file_type, file_size, creator, maintainers, unsorted, created_at, updated_at
	FROM documents WHERE archive = $1 AND hash = $2`
	var doc models.Document
	if err := r.db.GetContext(ctx, &doc, query, archive, hash); err != nil {
		return nil, err
	}
	return &doc, nil
}

// ListByArchive returns every document row in the archive.
func (r *DocumentRepository) ListByArchive(ctx context.Context, archive string) ([]models.Document, error) {
	const query = `SELECT archive, hash, name, file_type, file_size, creator, maintainers, unsorted, created_at, updated_at
	FROM documents WHERE archive = $1 ORDER BY created_at`
	var docs []models.Document
	if err := r.db.SelectContext(ctx, &docs, query, archive); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

// ListUnsortedHashes returns the hashes of documents in the archive that
// currently belong to zero records.
func (r *DocumentRepository) ListUnsortedHashes(ctx context.Context, archive string) ([]string, error) {
	const query = `SELECT hash FROM documents WHERE archive = $1 AND unsorted = TRUE ORDER BY created_at`
	var hashes []string
	if err := r.db.SelectContext(ctx, &hashes, query, archive); err != nil {
		return nil, fmt.Errorf("list unsorted documents: %w", err)
	}
	return hashes, nil
}

// CountByHash counts metadata rows across all archives referencing the hash.
// Blob garbage collection is gated on this global reference count.
func (r *DocumentRepository) CountByHash(ctx context.Context, hash string) (int, error) {
	const query = `SELECT COUNT(1) FROM documents WHERE hash = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, hash); err != nil {
		return 0, fmt.Errorf("count documents by hash: %w", err)
	}
	return count, nil
}

// Rename updates the display name.
func (r *DocumentRepository) Rename(ctx context.Context, archive, hash, newName string) error {
	const query = `UPDATE documents SET name = $3, updated_at = NOW() WHERE archive = $1 AND hash = $2`
	res, err := r.db.ExecContext(ctx, query, archive, hash, newName)
	if err != nil {
		return fmt.Errorf("rename document: %w", err)
	}
	return requireRowsAffected(res, "rename document")
}

// AddMaintainer appends the archivist to the maintainer set if absent.
func (r *DocumentRepository) AddMaintainer(ctx context.Context, archive, hash, archivist string) error {
	const query = `UPDATE documents SET maintainers = array_append(maintainers, $3), updated_at = NOW()
	WHERE archive = $1 AND hash = $2 AND NOT (maintainers @> ARRAY[$3])`
	if _, err := r.db.ExecContext(ctx, query, archive, hash, archivist); err != nil {
		return fmt.Errorf("add document maintainer: %w", err)
	}
	return nil
}

// SetUnsorted flips the unsorted flag. Invoked by the record ledger when a
// document's record membership count crosses zero in either direction.
func (r *DocumentRepository) SetUnsorted(ctx context.Context, archive, hash string, unsorted bool) error {
	const query = `UPDATE documents SET unsorted = $3, updated_at = NOW() WHERE archive = $1 AND hash = $2`
	res, err := r.db.ExecContext(ctx, query, archive, hash, unsorted)
	if err != nil {
		return fmt.Errorf("set document unsorted: %w", err)
	}
	return requireRowsAffected(res, "set document unsorted")
}

// Delete removes the metadata row.
func (r *DocumentRepository) Delete(ctx context.Context, archive, hash string) error {
	const query = `DELETE FROM documents WHERE archive = $1 AND hash = $2`
	res, err := r.db.ExecContext(ctx, query, archive, hash)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return requireRowsAffected(res, "delete document")
}

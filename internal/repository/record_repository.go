package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/arkival/arkive-api/internal/models"
)

// ErrStaleRevision is returned by compare-and-swap writes when the record
// was modified concurrently. Callers are expected to re-read and retry.
var ErrStaleRevision = fmt.Errorf("stale record revision")

// RecordRepository handles record ledger persistence.
type RecordRepository struct {
	db *sqlx.DB
}

// NewRecordRepository constructs the repository.
func NewRecordRepository(db *sqlx.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

// Create inserts a new empty record.
func (r *RecordRepository) Create(ctx context.Context, record *models.Record) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	if record.Documents == nil {
		record.Documents = pq.StringArray{}
	}
	if record.Tags == nil {
		record.Tags = pq.StringArray{}
	}
	if len(record.Maintainers) == 0 {
		record.Maintainers = pq.StringArray{record.Creator}
	}
	const query = `INSERT INTO records
	(id, archive, name, documents, tags, creator, maintainers, revision, created_at, updated_at)
	VALUES (:id, :archive, :name, :documents, :tags, :creator, :maintainers, :revision, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("create record: %w", err)
	}
	return nil
}

// Get retrieves one record scoped to its archive.
func (r *RecordRepository) Get(ctx context.Context, archive, id string) (*models.Record, error) {
	const query = `SELECT id, archive, name, documents, tags, creator, maintainers, revision, created_at, updated_at
	FROM records WHERE archive = $1 AND id = $2`
	var record models.Record
	if err := r.db.GetContext(ctx, &record, query, archive, id); err != nil {
		return nil, err
	}
	return &record, nil
}

// ListByArchive returns every record in the archive. The query engine and
// the cross-record reference counts both build on this.
func (r *RecordRepository) ListByArchive(ctx context.Context, archive string) ([]models.Record, error) {
	const query = `SELECT id, archive, name, documents, tags, creator, maintainers, revision, created_at, updated_at
	FROM records WHERE archive = $1 ORDER BY created_at`
	var records []models.Record
	if err := r.db.SelectContext(ctx, &records, query, archive); err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return records, nil
}

// CountContainingHash counts records in the archive whose document sequence
// references the hash. Used to decide unsorted-flag transitions.
func (r *RecordRepository) CountContainingHash(ctx context.Context, archive, hash string) (int, error) {
	const query = `SELECT COUNT(1) FROM records WHERE archive = $1 AND $2 = ANY(documents)`
	var count int
	if err := r.db.GetContext(ctx, &count, query, archive, hash); err != nil {
		return 0, fmt.Errorf("count records containing hash: %w", err)
	}
	return count, nil
}

// Save writes the record's documents, tags and maintainers back, compared
// and swapped on the revision read earlier. ErrStaleRevision signals a lost
// race; the caller re-reads and replays its mutation.
func (r *RecordRepository) Save(ctx context.Context, record *models.Record) error {
	const query = `UPDATE records
	SET documents = $3, tags = $4, maintainers = $5, revision = revision + 1, updated_at = NOW()
	WHERE id = $1 AND revision = $2`
	res, err := r.db.ExecContext(ctx, query, record.ID, record.Revision, record.Documents, record.Tags, record.Maintainers)
	if err != nil {
		return fmt.Errorf("save record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check save record rows: %w", err)
	}
	if affected == 0 {
		return ErrStaleRevision
	}
	record.Revision++
	return nil
}

// Delete removes the record row.
func (r *RecordRepository) Delete(ctx context.Context, archive, id string) error {
	const query = `DELETE FROM records WHERE archive = $1 AND id = $2`
	res, err := r.db.ExecContext(ctx, query, archive, id)
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	return requireRowsAffected(res, "delete record")
}

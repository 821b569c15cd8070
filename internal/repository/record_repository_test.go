package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/arkival/arkive-api/internal/models"
)

func TestRecordRepositoryCreateAssignsID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewRecordRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO records")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	record := &models.Record{Archive: "lab", Name: "receipts", Creator: "alice"}
	require.NoError(t, repo.Create(context.Background(), record))

	_, err := uuid.Parse(record.ID)
	require.NoError(t, err)
	require.Equal(t, pq.StringArray{}, record.Documents)
	require.Equal(t, pq.StringArray{}, record.Tags)
	require.Equal(t, pq.StringArray{"alice"}, record.Maintainers)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositoryGet(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewRecordRepository(db)
	id := uuid.NewString()
	rows := sqlmock.NewRows([]string{"id", "archive", "name", "documents", "tags", "creator", "maintainers", "revision", "created_at", "updated_at"}).
		AddRow(id, "lab", "receipts", "{hash-a,hash-b}", "{tax}", "alice", "{alice}", 3, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, archive, name, documents, tags")).
		WithArgs("lab", id).
		WillReturnRows(rows)

	record, err := repo.Get(context.Background(), "lab", id)
	require.NoError(t, err)
	require.Equal(t, pq.StringArray{"hash-a", "hash-b"}, record.Documents)
	require.Equal(t, int64(3), record.Revision)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositoryCountContainingHash(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewRecordRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(1) FROM records WHERE archive = $1 AND $2 = ANY(documents)")).
		WithArgs("lab", "hash-a").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	count, err := repo.CountContainingHash(context.Background(), "lab", "hash-a")
	require.NoError(t, err)
	require.Equal(t, 1, count)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositorySave(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewRecordRepository(db)
	record := &models.Record{
		ID:        uuid.NewString(),
		Archive:   "lab",
		Documents: pq.StringArray{"hash-a"},
		Tags:      pq.StringArray{},
		Revision:  4,
	}
	mock.ExpectExec(regexp.QuoteMeta("UPDATE records")).
		WithArgs(record.ID, int64(4), record.Documents, record.Tags, record.Maintainers).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Save(context.Background(), record))
	require.Equal(t, int64(5), record.Revision)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositorySaveStaleRevision(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewRecordRepository(db)
	record := &models.Record{ID: uuid.NewString(), Archive: "lab", Revision: 4}
	mock.ExpectExec(regexp.QuoteMeta("UPDATE records")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Save(context.Background(), record)
	require.ErrorIs(t, err, ErrStaleRevision)
	require.Equal(t, int64(4), record.Revision)
	require.NoError(t, mock.ExpectationsWereMet())
}

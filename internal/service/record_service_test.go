package service

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arkival/arkive-api/internal/models"
	"github.com/arkival/arkive-api/internal/repository"
	appErrors "github.com/arkival/arkive-api/pkg/errors"
)

// recordRepoStub mirrors the compare-and-swap discipline of the real
// repository: Save succeeds only when the caller's revision matches the
// stored one.
type recordRepoStub struct {
	mu    sync.Mutex
	items map[string]*models.Record
}

func newRecordRepoStub(records ...*models.Record) *recordRepoStub {
	items := make(map[string]*models.Record, len(records))
	for _, record := range records {
		items[record.ID] = record
	}
	return &recordRepoStub{items: items}
}

func (s *recordRepoStub) Create(ctx context.Context, record *models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record.ID = uuid.NewString()
	if record.Documents == nil {
		record.Documents = []string{}
	}
	if record.Tags == nil {
		record.Tags = []string{}
	}
	cp := *record
	s.items[record.ID] = &cp
	return nil
}

func (s *recordRepoStub) Get(ctx context.Context, archive, id string) (*models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.items[id]
	if !ok || record.Archive != archive {
		return nil, sql.ErrNoRows
	}
	cp := *record
	cp.Documents = append([]string(nil), record.Documents...)
	cp.Tags = append([]string(nil), record.Tags...)
	cp.Maintainers = append([]string(nil), record.Maintainers...)
	return &cp, nil
}

func (s *recordRepoStub) ListByArchive(ctx context.Context, archive string) ([]models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var records []models.Record
	for _, record := range s.items {
		if record.Archive == archive {
			records = append(records, *record)
		}
	}
	return records, nil
}

func (s *recordRepoStub) CountContainingHash(ctx context.Context, archive, hash string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, record := range s.items {
		if record.Archive != archive {
			continue
		}
		for _, doc := range record.Documents {
			if doc == hash {
				count++
				break
			}
		}
	}
	return count, nil
}

func (s *recordRepoStub) Save(ctx context.Context, record *models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.items[record.ID]
	if !ok {
		return sql.ErrNoRows
	}
	if stored.Revision != record.Revision {
		return repository.ErrStaleRevision
	}
	record.Revision++
	cp := *record
	cp.Documents = append([]string(nil), record.Documents...)
	cp.Tags = append([]string(nil), record.Tags...)
	cp.Maintainers = append([]string(nil), record.Maintainers...)
	s.items[record.ID] = &cp
	return nil
}

func (s *recordRepoStub) Delete(ctx context.Context, archive, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.items[id]
	if !ok || record.Archive != archive {
		return sql.ErrNoRows
	}
	delete(s.items, id)
	return nil
}

type documentCatalogStub struct {
	mu       sync.Mutex
	existing map[string]bool
	unsorted map[string]bool
}

func newDocumentCatalogStub(hashes ...string) *documentCatalogStub {
	existing := make(map[string]bool, len(hashes))
	unsorted := make(map[string]bool, len(hashes))
	for _, hash := range hashes {
		existing[hash] = true
		unsorted[hash] = true
	}
	return &documentCatalogStub{existing: existing, unsorted: unsorted}
}

func (s *documentCatalogStub) Exists(ctx context.Context, archive, hash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.existing[hash], nil
}

func (s *documentCatalogStub) SetUnsorted(ctx context.Context, archive, hash string, unsorted bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unsorted[hash] = unsorted
	return nil
}

func (s *documentCatalogStub) isUnsorted(hash string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unsorted[hash]
}

type invalidatorStub struct {
	mu       sync.Mutex
	archives []string
}

func (s *invalidatorStub) InvalidateArchive(ctx context.Context, archive string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.archives = append(s.archives, archive)
}

type recordFixture struct {
	svc         *RecordService
	repo        *recordRepoStub
	catalog     *documentCatalogStub
	invalidator *invalidatorStub
}

func newRecordFixture(t *testing.T, hashes ...string) *recordFixture {
	t.Helper()
	repo := newRecordRepoStub()
	catalog := newDocumentCatalogStub(hashes...)
	invalidator := &invalidatorStub{}
	svc := NewRecordService(repo, knownArchives("lab"), knownArchivists("alice", "bob"), catalog, invalidator, zap.NewNop())
	return &recordFixture{svc: svc, repo: repo, catalog: catalog, invalidator: invalidator}
}

func (f *recordFixture) createRecord(t *testing.T, name string) *models.Record {
	t.Helper()
	record, err := f.svc.Create(context.Background(), "lab", name, "alice")
	require.NoError(t, err)
	return record
}

func TestRecordServiceCreate(t *testing.T) {
	f := newRecordFixture(t)

	record := f.createRecord(t, "receipts")
	assert.NotEmpty(t, record.ID)
	assert.Empty(t, record.Documents)
	assert.Empty(t, record.Tags)
	assert.Equal(t, "alice", record.Creator)
	assert.Equal(t, []string{"lab"}, f.invalidator.archives)
}

func TestRecordServiceCreateUnknownArchive(t *testing.T) {
	f := newRecordFixture(t)

	_, err := f.svc.Create(context.Background(), "ghost", "receipts", "alice")
	require.ErrorIs(t, err, appErrors.ErrArchiveNotFound)
}

func TestRecordServiceGetInvalidID(t *testing.T) {
	f := newRecordFixture(t)

	_, err := f.svc.Get(context.Background(), "lab", "not-a-uuid")
	require.ErrorIs(t, err, appErrors.ErrInvalidID)
}

func TestRecordServiceAddDocument(t *testing.T) {
	f := newRecordFixture(t, "hash-a")
	record := f.createRecord(t, "receipts")

	updated, err := f.svc.AddDocument(context.Background(), "lab", record.ID, "hash-a", "bob")
	require.NoError(t, err)
	assert.Equal(t, []string{"hash-a"}, []string(updated.Documents))
	assert.Contains(t, []string(updated.Maintainers), "bob")
	assert.False(t, f.catalog.isUnsorted("hash-a"))
}

func TestRecordServiceAddDocumentAllowsDuplicates(t *testing.T) {
	f := newRecordFixture(t, "hash-a")
	record := f.createRecord(t, "receipts")

	_, err := f.svc.AddDocument(context.Background(), "lab", record.ID, "hash-a", "alice")
	require.NoError(t, err)
	updated, err := f.svc.AddDocument(context.Background(), "lab", record.ID, "hash-a", "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"hash-a", "hash-a"}, []string(updated.Documents))
}

func TestRecordServiceAddDocumentUnknownDocument(t *testing.T) {
	f := newRecordFixture(t)
	record := f.createRecord(t, "receipts")

	_, err := f.svc.AddDocument(context.Background(), "lab", record.ID, "missing", "alice")
	require.ErrorIs(t, err, appErrors.ErrDocumentNotFound)
}

func TestRecordServiceRemoveDocumentAt(t *testing.T) {
	f := newRecordFixture(t, "hash-a", "hash-b")
	record := f.createRecord(t, "receipts")

	_, err := f.svc.AddDocument(context.Background(), "lab", record.ID, "hash-a", "alice")
	require.NoError(t, err)
	_, err = f.svc.AddDocument(context.Background(), "lab", record.ID, "hash-b", "alice")
	require.NoError(t, err)

	updated, err := f.svc.RemoveDocumentAt(context.Background(), "lab", record.ID, 0, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"hash-b"}, []string(updated.Documents))
	assert.True(t, f.catalog.isUnsorted("hash-a"))
	assert.False(t, f.catalog.isUnsorted("hash-b"))
}

func TestRecordServiceRemoveDocumentKeepsSortedWhileReferenced(t *testing.T) {
	f := newRecordFixture(t, "hash-a")
	first := f.createRecord(t, "receipts")
	second := f.createRecord(t, "invoices")

	_, err := f.svc.AddDocument(context.Background(), "lab", first.ID, "hash-a", "alice")
	require.NoError(t, err)
	_, err = f.svc.AddDocument(context.Background(), "lab", second.ID, "hash-a", "alice")
	require.NoError(t, err)

	_, err = f.svc.RemoveDocumentAt(context.Background(), "lab", first.ID, 0, "alice")
	require.NoError(t, err)
	assert.False(t, f.catalog.isUnsorted("hash-a"))

	_, err = f.svc.RemoveDocumentAt(context.Background(), "lab", second.ID, 0, "alice")
	require.NoError(t, err)
	assert.True(t, f.catalog.isUnsorted("hash-a"))
}

func TestRecordServiceRemoveDocumentOutOfBounds(t *testing.T) {
	f := newRecordFixture(t, "hash-a")
	record := f.createRecord(t, "receipts")
	_, err := f.svc.AddDocument(context.Background(), "lab", record.ID, "hash-a", "alice")
	require.NoError(t, err)

	_, err = f.svc.RemoveDocumentAt(context.Background(), "lab", record.ID, 1, "alice")
	require.ErrorIs(t, err, appErrors.ErrIndexOutOfBounds)

	_, err = f.svc.RemoveDocumentAt(context.Background(), "lab", record.ID, -1, "alice")
	require.ErrorIs(t, err, appErrors.ErrIndexOutOfBounds)
}

func TestRecordServiceReorder(t *testing.T) {
	f := newRecordFixture(t, "hash-a", "hash-b", "hash-c")
	record := f.createRecord(t, "receipts")
	for _, hash := range []string{"hash-a", "hash-b", "hash-c"} {
		_, err := f.svc.AddDocument(context.Background(), "lab", record.ID, hash, "alice")
		require.NoError(t, err)
	}

	updated, err := f.svc.Reorder(context.Background(), "lab", record.ID, 0, 2, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"hash-b", "hash-c", "hash-a"}, []string(updated.Documents))

	updated, err = f.svc.Reorder(context.Background(), "lab", record.ID, 2, 0, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"hash-a", "hash-b", "hash-c"}, []string(updated.Documents))
}

func TestRecordServiceReorderSameIndex(t *testing.T) {
	f := newRecordFixture(t)

	// The same-index check fires before any existence validation.
	_, err := f.svc.Reorder(context.Background(), "ghost", "not-a-uuid", 1, 1, "nobody")
	require.ErrorIs(t, err, appErrors.ErrSameIndex)
}

func TestRecordServiceReorderOutOfBounds(t *testing.T) {
	f := newRecordFixture(t, "hash-a", "hash-b")
	record := f.createRecord(t, "receipts")
	for _, hash := range []string{"hash-a", "hash-b"} {
		_, err := f.svc.AddDocument(context.Background(), "lab", record.ID, hash, "alice")
		require.NoError(t, err)
	}

	_, err := f.svc.Reorder(context.Background(), "lab", record.ID, 2, 0, "alice")
	require.ErrorIs(t, err, appErrors.ErrIndexOutOfBounds)

	_, err = f.svc.Reorder(context.Background(), "lab", record.ID, 0, 2, "alice")
	require.ErrorIs(t, err, appErrors.ErrNewIndexOutOfBounds)
}

func TestRecordServiceTags(t *testing.T) {
	f := newRecordFixture(t)
	record := f.createRecord(t, "receipts")

	updated, err := f.svc.AddTag(context.Background(), "lab", record.ID, "alice", "2024")
	require.NoError(t, err)
	assert.Equal(t, []string{"2024"}, []string(updated.Tags))

	// Adding the same tag again is a no-op.
	updated, err = f.svc.AddTag(context.Background(), "lab", record.ID, "alice", "2024")
	require.NoError(t, err)
	assert.Equal(t, []string{"2024"}, []string(updated.Tags))

	updated, err = f.svc.RemoveTag(context.Background(), "lab", record.ID, "alice", "2024")
	require.NoError(t, err)
	assert.Empty(t, updated.Tags)

	// Removing an absent tag is a no-op.
	_, err = f.svc.RemoveTag(context.Background(), "lab", record.ID, "alice", "2024")
	require.NoError(t, err)
}

func TestRecordServiceDeleteKeepsUnsortedFlags(t *testing.T) {
	f := newRecordFixture(t, "hash-a")
	record := f.createRecord(t, "receipts")
	_, err := f.svc.AddDocument(context.Background(), "lab", record.ID, "hash-a", "alice")
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(context.Background(), "lab", record.ID))

	// Record deletion does not recompute membership; the flag stays false
	// until reconciliation runs.
	assert.False(t, f.catalog.isUnsorted("hash-a"))
}

func TestRecordServiceConcurrentAddDocument(t *testing.T) {
	const writers = 16

	hashes := make([]string, writers)
	for i := range hashes {
		hashes[i] = fmt.Sprintf("hash-%02d", i)
	}
	f := newRecordFixture(t, hashes...)
	record := f.createRecord(t, "receipts")

	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(hash string) {
			defer wg.Done()
			_, err := f.svc.AddDocument(context.Background(), "lab", record.ID, hash, "alice")
			errs <- err
		}(hashes[i])
	}
	wg.Wait()
	close(errs)

	conflicts := 0
	for err := range errs {
		if err != nil {
			require.ErrorIs(t, err, appErrors.ErrRevisionConflict)
			conflicts++
		}
	}

	final, err := f.svc.Get(context.Background(), "lab", record.ID)
	require.NoError(t, err)

	// Every write that reported success is present exactly once; no lost
	// updates under contention.
	assert.Len(t, final.Documents, writers-conflicts)
	seen := make(map[string]int)
	for _, hash := range final.Documents {
		seen[hash]++
	}
	for hash, count := range seen {
		assert.Equal(t, 1, count, "hash %s appended more than once", hash)
	}
}

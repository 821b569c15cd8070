package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arkival/arkive-api/internal/models"
	"github.com/arkival/arkive-api/internal/repository"
	appErrors "github.com/arkival/arkive-api/pkg/errors"
)

// saveRetries bounds the optimistic-concurrency retry loop. Each retry
// re-reads the record and replays the mutation against the fresh revision.
const saveRetries = 5

type recordStore interface {
	Create(ctx context.Context, record *models.Record) error
	Get(ctx context.Context, archive, id string) (*models.Record, error)
	ListByArchive(ctx context.Context, archive string) ([]models.Record, error)
	CountContainingHash(ctx context.Context, archive, hash string) (int, error)
	Save(ctx context.Context, record *models.Record) error
	Delete(ctx context.Context, archive, id string) error
}

type documentCatalog interface {
	Exists(ctx context.Context, archive, hash string) (bool, error)
	SetUnsorted(ctx context.Context, archive, hash string, unsorted bool) error
}

type queryInvalidator interface {
	InvalidateArchive(ctx context.Context, archive string)
}

// RecordService is the record ledger. It owns ordered-list splice semantics,
// tag set semantics, and keeps document unsorted flags synchronized with
// record membership: a document is unsorted iff it belongs to zero records
// in the archive, recomputed incrementally on every membership change.
type RecordService struct {
	repo       recordStore
	archives   archiveDirectory
	archivists archivistChecker
	documents  documentCatalog
	queries    queryInvalidator
	logger     *zap.Logger
}

// NewRecordService constructs the service. The query invalidator may be nil
// when result caching is disabled.
func NewRecordService(repo recordStore, archives archiveDirectory, archivists archivistChecker, documents documentCatalog, queries queryInvalidator, logger *zap.Logger) *RecordService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecordService{
		repo:       repo,
		archives:   archives,
		archivists: archivists,
		documents:  documents,
		queries:    queries,
		logger:     logger,
	}
}

// Create makes an empty record in the archive.
func (s *RecordService) Create(ctx context.Context, archive, name, creator string) (*models.Record, error) {
	creator = NormalizeUsername(creator)
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "record name is required")
	}
	if err := s.requireArchive(ctx, archive); err != nil {
		return nil, err
	}
	if err := s.requireArchivist(ctx, creator); err != nil {
		return nil, err
	}

	s.logger.Info("creating record", zap.String("archive", archive), zap.String("name", name), zap.String("creator", creator))

	record := &models.Record{Archive: archive, Name: name, Creator: creator}
	if err := s.repo.Create(ctx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create record")
	}
	s.invalidate(ctx, archive)
	return record, nil
}

// Get returns one record.
func (s *RecordService) Get(ctx context.Context, archive, id string) (*models.Record, error) {
	if err := validateRecordID(id); err != nil {
		return nil, err
	}
	if err := s.requireArchive(ctx, archive); err != nil {
		return nil, err
	}
	return s.getRecord(ctx, archive, id)
}

// Delete removes the record. Unsorted flags of formerly referenced
// documents are intentionally not recomputed here, matching the reference
// behavior; the reconcile operation restores the invariant on demand.
func (s *RecordService) Delete(ctx context.Context, archive, id string) error {
	if err := validateRecordID(id); err != nil {
		return err
	}
	if err := s.requireArchive(ctx, archive); err != nil {
		return err
	}

	s.logger.Info("deleting record", zap.String("archive", archive), zap.String("record", id))

	if err := s.repo.Delete(ctx, archive, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrRecordNotFound
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete record")
	}
	s.invalidate(ctx, archive)
	return nil
}

// AddDocument appends the hash to the end of the record's document sequence.
// Duplicates are allowed: the sequence is ordered, not a set. The document's
// unsorted flag is unconditionally cleared afterwards.
func (s *RecordService) AddDocument(ctx context.Context, archive, id, hash, archivist string) (*models.Record, error) {
	archivist = NormalizeUsername(archivist)
	if err := validateRecordID(id); err != nil {
		return nil, err
	}
	if err := s.requireArchive(ctx, archive); err != nil {
		return nil, err
	}
	if _, err := s.getRecord(ctx, archive, id); err != nil {
		return nil, err
	}
	if err := s.requireDocument(ctx, archive, hash); err != nil {
		return nil, err
	}
	if err := s.requireArchivist(ctx, archivist); err != nil {
		return nil, err
	}

	record, err := s.mutate(ctx, archive, id, archivist, func(r *models.Record) error {
		r.Documents = append(r.Documents, hash)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.documents.SetUnsorted(ctx, archive, hash, false); err != nil {
		return nil, err
	}
	s.invalidate(ctx, archive)
	return record, nil
}

// RemoveDocumentAt removes the element at index. Removal is positional, not
// by value, because duplicates are allowed. When the removed hash is no
// longer referenced by any record in the archive, the document becomes
// unsorted again.
func (s *RecordService) RemoveDocumentAt(ctx context.Context, archive, id string, index int, archivist string) (*models.Record, error) {
	archivist = NormalizeUsername(archivist)
	if err := validateRecordID(id); err != nil {
		return nil, err
	}
	if err := s.requireArchive(ctx, archive); err != nil {
		return nil, err
	}
	if _, err := s.getRecord(ctx, archive, id); err != nil {
		return nil, err
	}
	if err := s.requireArchivist(ctx, archivist); err != nil {
		return nil, err
	}

	var removed string
	record, err := s.mutate(ctx, archive, id, archivist, func(r *models.Record) error {
		if index < 0 || index >= len(r.Documents) {
			return appErrors.ErrIndexOutOfBounds
		}
		removed = r.Documents[index]
		r.Documents = append(r.Documents[:index], r.Documents[index+1:]...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	count, err := s.repo.CountContainingHash(ctx, archive, removed)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count document references")
	}
	if count == 0 {
		if err := s.documents.SetUnsorted(ctx, archive, removed, true); err != nil {
			return nil, err
		}
	}
	s.invalidate(ctx, archive)
	return record, nil
}

// Reorder moves the element at index to newIndex: splice out, then splice
// into the already-shortened sequence. The same-index check short-circuits
// before any existence check, so callers get a deterministic error order.
func (s *RecordService) Reorder(ctx context.Context, archive, id string, index, newIndex int, archivist string) (*models.Record, error) {
	if index == newIndex {
		return nil, appErrors.ErrSameIndex
	}
	archivist = NormalizeUsername(archivist)
	if err := validateRecordID(id); err != nil {
		return nil, err
	}
	if err := s.requireArchive(ctx, archive); err != nil {
		return nil, err
	}
	if _, err := s.getRecord(ctx, archive, id); err != nil {
		return nil, err
	}
	if err := s.requireArchivist(ctx, archivist); err != nil {
		return nil, err
	}

	record, err := s.mutate(ctx, archive, id, archivist, func(r *models.Record) error {
		if index < 0 || index >= len(r.Documents) {
			return appErrors.ErrIndexOutOfBounds
		}
		if newIndex < 0 || newIndex >= len(r.Documents) {
			return appErrors.ErrNewIndexOutOfBounds
		}
		moved := r.Documents[index]
		rest := append(r.Documents[:index], r.Documents[index+1:]...)
		r.Documents = append(rest[:newIndex], append([]string{moved}, rest[newIndex:]...)...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, archive)
	return record, nil
}

// AddTag adds the tag to the record's tag set. A no-op when already present.
func (s *RecordService) AddTag(ctx context.Context, archive, id, archivist, tag string) (*models.Record, error) {
	archivist = NormalizeUsername(archivist)
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "tag is required")
	}
	if err := validateRecordID(id); err != nil {
		return nil, err
	}
	if err := s.requireArchive(ctx, archive); err != nil {
		return nil, err
	}
	if _, err := s.getRecord(ctx, archive, id); err != nil {
		return nil, err
	}
	if err := s.requireArchivist(ctx, archivist); err != nil {
		return nil, err
	}

	record, err := s.mutate(ctx, archive, id, archivist, func(r *models.Record) error {
		if !r.HasTag(tag) {
			r.Tags = append(r.Tags, tag)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, archive)
	return record, nil
}

// RemoveTag removes the tag from the record's tag set. A no-op when absent.
func (s *RecordService) RemoveTag(ctx context.Context, archive, id, archivist, tag string) (*models.Record, error) {
	archivist = NormalizeUsername(archivist)
	if err := validateRecordID(id); err != nil {
		return nil, err
	}
	if err := s.requireArchive(ctx, archive); err != nil {
		return nil, err
	}
	if _, err := s.getRecord(ctx, archive, id); err != nil {
		return nil, err
	}
	if err := s.requireArchivist(ctx, archivist); err != nil {
		return nil, err
	}

	record, err := s.mutate(ctx, archive, id, archivist, func(r *models.Record) error {
		for i, t := range r.Tags {
			if t == tag {
				r.Tags = append(r.Tags[:i], r.Tags[i+1:]...)
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, archive)
	return record, nil
}

// mutate runs the read-modify-write cycle under optimistic concurrency:
// read the record, apply fn, append the acting archivist to maintainers,
// then compare-and-swap on the revision. A stale revision re-reads and
// replays; exhaustion surfaces as a conflict.
func (s *RecordService) mutate(ctx context.Context, archive, id, archivist string, fn func(*models.Record) error) (*models.Record, error) {
	for attempt := 0; attempt < saveRetries; attempt++ {
		record, err := s.getRecord(ctx, archive, id)
		if err != nil {
			return nil, err
		}
		if err := fn(record); err != nil {
			return nil, err
		}
		if archivist != "" && !record.HasMaintainer(archivist) {
			record.Maintainers = append(record.Maintainers, archivist)
		}
		err = s.repo.Save(ctx, record)
		if err == nil {
			return record, nil
		}
		if errors.Is(err, repository.ErrStaleRevision) {
			s.logger.Debug("record revision conflict, retrying",
				zap.String("archive", archive),
				zap.String("record", id),
				zap.Int("attempt", attempt+1))
			continue
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save record")
	}
	return nil, appErrors.ErrRevisionConflict
}

func (s *RecordService) getRecord(ctx context.Context, archive, id string) (*models.Record, error) {
	record, err := s.repo.Get(ctx, archive, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrRecordNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load record")
	}
	return record, nil
}

func (s *RecordService) invalidate(ctx context.Context, archive string) {
	if s.queries == nil {
		return
	}
	// Bounded so a slow cache cannot stall the mutation path.
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	s.queries.InvalidateArchive(ctx, archive)
}

func (s *RecordService) requireArchive(ctx context.Context, archive string) error {
	exists, err := s.archives.Exists(ctx, archive)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check archive")
	}
	if !exists {
		return appErrors.ErrArchiveNotFound
	}
	return nil
}

func (s *RecordService) requireArchivist(ctx context.Context, username string) error {
	exists, err := s.archivists.Exists(ctx, username)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check archivist")
	}
	if !exists {
		return appErrors.ErrArchivistNotFound
	}
	return nil
}

func (s *RecordService) requireDocument(ctx context.Context, archive, hash string) error {
	exists, err := s.documents.Exists(ctx, archive, hash)
	if err != nil {
		return err
	}
	if !exists {
		return appErrors.ErrDocumentNotFound
	}
	return nil
}

func validateRecordID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return appErrors.ErrInvalidID
	}
	return nil
}

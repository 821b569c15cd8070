package service

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/arkival/arkive-api/internal/models"
	appErrors "github.com/arkival/arkive-api/pkg/errors"
	"github.com/arkival/arkive-api/pkg/storage"
)

type documentStore interface {
	Exists(ctx context.Context, archive, hash string) (bool, error)
	Create(ctx context.Context, doc *models.Document) error
	Get(ctx context.Context, archive, hash string) (*models.Document, error)
	ListUnsortedHashes(ctx context.Context, archive string) ([]string, error)
	CountByHash(ctx context.Context, hash string) (int, error)
	Rename(ctx context.Context, archive, hash, newName string) error
	AddMaintainer(ctx context.Context, archive, hash, archivist string) error
	SetUnsorted(ctx context.Context, archive, hash string, unsorted bool) error
	Delete(ctx context.Context, archive, hash string) error
}

type archiveDirectory interface {
	Exists(ctx context.Context, name string) (bool, error)
	AddMaintainer(ctx context.Context, name, archivist string) error
}

type objectStore interface {
	Put(stagingPath, hash string) (string, error)
	Exists(hash string) bool
	Open(hash string) (*os.File, error)
	Delete(hash string) error
}

// DocumentService is the document catalog: it owns the (archive, hash)
// metadata rows, the unsorted flag lifecycle and the object-store blob
// lifecycle. Blobs are deduplicated globally on hash; a blob is deleted only
// when the last metadata row anywhere referencing its hash is removed.
type DocumentService struct {
	repo       documentStore
	archives   archiveDirectory
	archivists archivistChecker
	objects    objectStore
	metrics    *MetricsService
	logger     *zap.Logger
}

// NewDocumentService constructs the service.
func NewDocumentService(repo documentStore, archives archiveDirectory, archivists archivistChecker, objects objectStore, metrics *MetricsService, logger *zap.Logger) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentService{
		repo:       repo,
		archives:   archives,
		archivists: archivists,
		objects:    objects,
		metrics:    metrics,
		logger:     logger,
	}
}

// Exists reports whether the archive holds a document with the hash.
func (s *DocumentService) Exists(ctx context.Context, archive, hash string) (bool, error) {
	exists, err := s.repo.Exists(ctx, archive, hash)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check document")
	}
	return exists, nil
}

// Create ingests a staged upload: the file is streaming-hashed, the blob is
// moved into the object store (a no-op when the content already exists from
// another archive) and the metadata row is inserted with unsorted = true.
// The caller owns the staged file on failure.
func (s *DocumentService) Create(ctx context.Context, archive, creator, filename, mimeType string, size int64, stagingPath string) (*models.Document, error) {
	creator = NormalizeUsername(creator)
	if err := s.requireArchive(ctx, archive); err != nil {
		return nil, err
	}
	if err := s.requireArchivist(ctx, creator); err != nil {
		return nil, err
	}

	hash, err := storage.HashFile(stagingPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash upload")
	}

	exists, err := s.Exists(ctx, archive, hash)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, appErrors.ErrDocumentExists
	}

	s.logger.Info("creating document",
		zap.String("archive", archive),
		zap.String("hash", hash),
		zap.String("name", filename),
		zap.String("creator", creator))

	// The blob lands before the metadata row so a reference can never point
	// at a missing object. A blob without a row is a safe leak swept by
	// reconciliation.
	if _, err := s.objects.Put(stagingPath, hash); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store object")
	}
	s.metrics.RecordObjectOperation("ingest")
	s.metrics.RecordObjectIngest(size)

	doc := &models.Document{
		Archive:  archive,
		Hash:     hash,
		Name:     filename,
		FileType: mimeType,
		FileSize: size,
		Creator:  creator,
		Unsorted: true,
	}
	if err := s.repo.Create(ctx, doc); err != nil {
		s.collectBlob(ctx, hash)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create document metadata")
	}

	if err := s.archives.AddMaintainer(ctx, archive, creator); err != nil {
		s.logger.Warn("failed to record archive maintainer", zap.Error(err), zap.String("archive", archive))
	}

	return doc, nil
}

// GetMeta returns the metadata row for (archive, hash).
func (s *DocumentService) GetMeta(ctx context.Context, archive, hash string) (*models.Document, error) {
	if err := s.requireArchive(ctx, archive); err != nil {
		return nil, err
	}
	doc, err := s.repo.Get(ctx, archive, hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrDocumentNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	return doc, nil
}

// GetObject opens the content blob for a document. The missing-blob branch
// should be unreachable while catalog invariants hold.
func (s *DocumentService) GetObject(ctx context.Context, archive, hash string) (*os.File, *models.Document, error) {
	doc, err := s.GetMeta(ctx, archive, hash)
	if err != nil {
		return nil, nil, err
	}
	if !s.objects.Exists(hash) {
		return nil, nil, appErrors.ErrObjectNotFound
	}
	file, err := s.objects.Open(hash)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open object")
	}
	s.metrics.RecordObjectOperation("open")
	return file, doc, nil
}

// GetUnsorted returns the hashes of documents in the archive belonging to
// zero records.
func (s *DocumentService) GetUnsorted(ctx context.Context, archive string) ([]string, error) {
	if err := s.requireArchive(ctx, archive); err != nil {
		return nil, err
	}
	hashes, err := s.repo.ListUnsortedHashes(ctx, archive)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list unsorted documents")
	}
	if hashes == nil {
		hashes = []string{}
	}
	return hashes, nil
}

// SetUnsorted flips the unsorted flag. Internal: invoked by the record
// ledger when membership crosses zero.
func (s *DocumentService) SetUnsorted(ctx context.Context, archive, hash string, unsorted bool) error {
	if err := s.repo.SetUnsorted(ctx, archive, hash, unsorted); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrDocumentNotFound
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update unsorted flag")
	}
	return nil
}

// Rename changes the document's display name and records the archivist as a
// maintainer of both the document and the archive.
func (s *DocumentService) Rename(ctx context.Context, archive, hash, newName, archivist string) error {
	archivist = NormalizeUsername(archivist)
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return appErrors.Clone(appErrors.ErrValidation, "new name is required")
	}
	if err := s.requireArchive(ctx, archive); err != nil {
		return err
	}
	if err := s.requireArchivist(ctx, archivist); err != nil {
		return err
	}
	if err := s.requireDocument(ctx, archive, hash); err != nil {
		return err
	}

	if err := s.repo.AddMaintainer(ctx, archive, hash, archivist); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record document maintainer")
	}
	if err := s.repo.Rename(ctx, archive, hash, newName); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to rename document")
	}
	if err := s.archives.AddMaintainer(ctx, archive, archivist); err != nil {
		s.logger.Warn("failed to record archive maintainer", zap.Error(err), zap.String("archive", archive))
	}
	return nil
}

// Delete removes the metadata row, then garbage-collects the blob when no
// other row in any archive still references the hash. The row goes first:
// if the blob delete fails the leak is safe, whereas the reverse order
// could leave a row pointing at nothing.
func (s *DocumentService) Delete(ctx context.Context, archive, hash, archivist string) error {
	archivist = NormalizeUsername(archivist)
	if err := s.requireArchive(ctx, archive); err != nil {
		return err
	}
	if err := s.requireArchivist(ctx, archivist); err != nil {
		return err
	}
	if err := s.requireDocument(ctx, archive, hash); err != nil {
		return err
	}

	s.logger.Info("deleting document",
		zap.String("archive", archive),
		zap.String("hash", hash),
		zap.String("archivist", archivist))

	if err := s.repo.Delete(ctx, archive, hash); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete document metadata")
	}

	s.collectBlob(ctx, hash)

	if err := s.archives.AddMaintainer(ctx, archive, archivist); err != nil {
		s.logger.Warn("failed to record archive maintainer", zap.Error(err), zap.String("archive", archive))
	}
	return nil
}

// collectBlob deletes the blob when the global reference count is zero. A
// failed delete is logged and left for reconciliation to sweep.
func (s *DocumentService) collectBlob(ctx context.Context, hash string) {
	count, err := s.repo.CountByHash(ctx, hash)
	if err != nil {
		s.logger.Warn("failed to count blob references", zap.Error(err), zap.String("hash", hash))
		return
	}
	if count > 0 {
		return
	}
	if err := s.objects.Delete(hash); err != nil {
		s.logger.Warn("failed to delete orphaned blob", zap.Error(err), zap.String("hash", hash))
		return
	}
	s.metrics.RecordObjectOperation("collect")
}

func (s *DocumentService) requireArchive(ctx context.Context, archive string) error {
	exists, err := s.archives.Exists(ctx, archive)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check archive")
	}
	if !exists {
		return appErrors.ErrArchiveNotFound
	}
	return nil
}

func (s *DocumentService) requireArchivist(ctx context.Context, username string) error {
	exists, err := s.archivists.Exists(ctx, username)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check archivist")
	}
	if !exists {
		return appErrors.ErrArchivistNotFound
	}
	return nil
}

func (s *DocumentService) requireDocument(ctx context.Context, archive, hash string) error {
	exists, err := s.Exists(ctx, archive, hash)
	if err != nil {
		return err
	}
	if !exists {
		return appErrors.ErrDocumentNotFound
	}
	return nil
}

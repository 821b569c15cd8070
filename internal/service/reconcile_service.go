package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/arkival/arkive-api/internal/models"
	appErrors "github.com/arkival/arkive-api/pkg/errors"
)

type reconcileDocumentStore interface {
	ListByArchive(ctx context.Context, archive string) ([]models.Document, error)
	CountByHash(ctx context.Context, hash string) (int, error)
	SetUnsorted(ctx context.Context, archive, hash string, unsorted bool) error
}

type blobSweeper interface {
	ListHashes() ([]string, error)
	Delete(hash string) error
}

// ReconcileReport summarizes the drift repaired by a reconciliation pass.
type ReconcileReport struct {
	Archive        string   `json:"archive"`
	MarkedSorted   []string `json:"markedSorted"`
	MarkedUnsorted []string `json:"markedUnsorted"`
	OrphanedBlobs  []string `json:"orphanedBlobs"`
}

// ReconcileService repairs the drift the write paths can leave behind:
// record deletion does not recompute unsorted flags, archive deletion does
// not cascade, and a crash between metadata delete and blob delete can leak
// a blob. A reconciliation pass recomputes every document's
// unsorted flag from actual record membership and sweeps blobs that no
// metadata row anywhere references.
type ReconcileService struct {
	documents reconcileDocumentStore
	records   recordLister
	archives  archiveDirectory
	objects   blobSweeper
	logger    *zap.Logger
}

// NewReconcileService constructs the service.
func NewReconcileService(documents reconcileDocumentStore, records recordLister, archives archiveDirectory, objects blobSweeper, logger *zap.Logger) *ReconcileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReconcileService{
		documents: documents,
		records:   records,
		archives:  archives,
		objects:   objects,
		logger:    logger,
	}
}

// Reconcile repairs unsorted-flag drift in the archive and sweeps orphaned
// blobs from the object store.
func (s *ReconcileService) Reconcile(ctx context.Context, archive string) (*ReconcileReport, error) {
	exists, err := s.archives.Exists(ctx, archive)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check archive")
	}
	if !exists {
		return nil, appErrors.ErrArchiveNotFound
	}

	records, err := s.records.ListByArchive(ctx, archive)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list records")
	}
	referenced := make(map[string]struct{})
	for _, record := range records {
		for _, hash := range record.Documents {
			referenced[hash] = struct{}{}
		}
	}

	docs, err := s.documents.ListByArchive(ctx, archive)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list documents")
	}

	report := &ReconcileReport{
		Archive:        archive,
		MarkedSorted:   []string{},
		MarkedUnsorted: []string{},
		OrphanedBlobs:  []string{},
	}
	for _, doc := range docs {
		_, inRecord := referenced[doc.Hash]
		wantUnsorted := !inRecord
		if doc.Unsorted == wantUnsorted {
			continue
		}
		if err := s.documents.SetUnsorted(ctx, archive, doc.Hash, wantUnsorted); err != nil {
			return nil, err
		}
		if wantUnsorted {
			report.MarkedUnsorted = append(report.MarkedUnsorted, doc.Hash)
		} else {
			report.MarkedSorted = append(report.MarkedSorted, doc.Hash)
		}
	}

	// Blob sweep is global: the object store is shared across archives, so
	// only hashes with zero metadata rows anywhere are collected.
	hashes, err := s.objects.ListHashes()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list stored blobs")
	}
	for _, hash := range hashes {
		count, err := s.documents.CountByHash(ctx, hash)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count blob references")
		}
		if count > 0 {
			continue
		}
		if err := s.objects.Delete(hash); err != nil {
			s.logger.Warn("failed to sweep orphaned blob", zap.Error(err), zap.String("hash", hash))
			continue
		}
		report.OrphanedBlobs = append(report.OrphanedBlobs, hash)
	}

	s.logger.Info("reconciled archive",
		zap.String("archive", archive),
		zap.Int("marked_sorted", len(report.MarkedSorted)),
		zap.Int("marked_unsorted", len(report.MarkedUnsorted)),
		zap.Int("orphaned_blobs", len(report.OrphanedBlobs)))

	return report, nil
}

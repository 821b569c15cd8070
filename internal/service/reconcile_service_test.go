package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arkival/arkive-api/internal/models"
	appErrors "github.com/arkival/arkive-api/pkg/errors"
)

func (s *documentRepoStub) ListByArchive(ctx context.Context, archive string) ([]models.Document, error) {
	var docs []models.Document
	for _, doc := range s.items {
		if doc.Archive == archive {
			docs = append(docs, *doc)
		}
	}
	return docs, nil
}

type blobSweeperStub struct {
	hashes  []string
	deleted []string
}

func (s *blobSweeperStub) ListHashes() ([]string, error) {
	return s.hashes, nil
}

func (s *blobSweeperStub) Delete(hash string) error {
	s.deleted = append(s.deleted, hash)
	return nil
}

func TestReconcileRepairsUnsortedDrift(t *testing.T) {
	docs := newDocumentRepoStub()
	// hash-a is referenced but flagged unsorted; hash-b is unreferenced but
	// flagged sorted, as happens after a record delete.
	docs.items[docKey("lab", "hash-a")] = &models.Document{Archive: "lab", Hash: "hash-a", Unsorted: true}
	docs.items[docKey("lab", "hash-b")] = &models.Document{Archive: "lab", Hash: "hash-b", Unsorted: false}
	docs.items[docKey("lab", "hash-c")] = &models.Document{Archive: "lab", Hash: "hash-c", Unsorted: true}

	records := &recordListerStub{records: []models.Record{
		{ID: "1", Archive: "lab", Documents: []string{"hash-a"}},
	}}
	sweeper := &blobSweeperStub{hashes: []string{"hash-a", "hash-b", "hash-c"}}

	svc := NewReconcileService(docs, records, knownArchives("lab"), sweeper, zap.NewNop())
	report, err := svc.Reconcile(context.Background(), "lab")
	require.NoError(t, err)

	assert.Equal(t, []string{"hash-a"}, report.MarkedSorted)
	assert.Equal(t, []string{"hash-b"}, report.MarkedUnsorted)
	assert.False(t, docs.items[docKey("lab", "hash-a")].Unsorted)
	assert.True(t, docs.items[docKey("lab", "hash-b")].Unsorted)
	// hash-c already satisfied the invariant and is untouched.
	assert.True(t, docs.items[docKey("lab", "hash-c")].Unsorted)
	assert.Empty(t, report.OrphanedBlobs)
}

func TestReconcileSweepsOrphanedBlobs(t *testing.T) {
	docs := newDocumentRepoStub()
	docs.items[docKey("lab", "hash-a")] = &models.Document{Archive: "lab", Hash: "hash-a", Unsorted: true}
	// hash-leak has a blob but no metadata row in any archive.
	sweeper := &blobSweeperStub{hashes: []string{"hash-a", "hash-leak"}}

	svc := NewReconcileService(docs, &recordListerStub{}, knownArchives("lab"), sweeper, zap.NewNop())
	report, err := svc.Reconcile(context.Background(), "lab")
	require.NoError(t, err)

	assert.Equal(t, []string{"hash-leak"}, report.OrphanedBlobs)
	assert.Equal(t, []string{"hash-leak"}, sweeper.deleted)
}

func TestReconcileKeepsBlobsReferencedElsewhere(t *testing.T) {
	docs := newDocumentRepoStub()
	// The hash only has a row in another archive; the blob must survive a
	// reconcile of lab.
	docs.items[docKey("attic", "hash-a")] = &models.Document{Archive: "attic", Hash: "hash-a", Unsorted: true}
	sweeper := &blobSweeperStub{hashes: []string{"hash-a"}}

	svc := NewReconcileService(docs, &recordListerStub{}, knownArchives("lab"), sweeper, zap.NewNop())
	report, err := svc.Reconcile(context.Background(), "lab")
	require.NoError(t, err)

	assert.Empty(t, report.OrphanedBlobs)
	assert.Empty(t, sweeper.deleted)
}

func TestReconcileUnknownArchive(t *testing.T) {
	svc := NewReconcileService(newDocumentRepoStub(), &recordListerStub{}, knownArchives(), &blobSweeperStub{}, zap.NewNop())

	_, err := svc.Reconcile(context.Background(), "ghost")
	require.ErrorIs(t, err, appErrors.ErrArchiveNotFound)
}

package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/arkival/arkive-api/internal/models"
	appErrors "github.com/arkival/arkive-api/pkg/errors"
)

type archiveStore interface {
	Exists(ctx context.Context, name string) (bool, error)
	ListNames(ctx context.Context) ([]string, error)
	Create(ctx context.Context, archive *models.Archive) error
	GetByName(ctx context.Context, name string) (*models.Archive, error)
	Rename(ctx context.Context, name, newName string) error
	UpdateDescription(ctx context.Context, name, description string) error
	AddMaintainer(ctx context.Context, name, archivist string) error
	Delete(ctx context.Context, name string) error
}

type archivistChecker interface {
	Exists(ctx context.Context, username string) (bool, error)
}

// ArchiveService manages the archive directory. The owner is fixed at
// creation and exclusively authorizes deletion; maintainer status is an
// accumulate-only audit trail with no authorization weight.
type ArchiveService struct {
	repo       archiveStore
	archivists archivistChecker
	logger     *zap.Logger
}

// NewArchiveService constructs the service.
func NewArchiveService(repo archiveStore, archivists archivistChecker, logger *zap.Logger) *ArchiveService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArchiveService{repo: repo, archivists: archivists, logger: logger}
}

// Exists reports whether the archive is present.
func (s *ArchiveService) Exists(ctx context.Context, name string) (bool, error) {
	exists, err := s.repo.Exists(ctx, name)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check archive")
	}
	return exists, nil
}

// List returns every archive name.
func (s *ArchiveService) List(ctx context.Context) ([]string, error) {
	names, err := s.repo.ListNames(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list archives")
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

// Create makes a new archive owned by the creator.
func (s *ArchiveService) Create(ctx context.Context, name, description, creator string) (*models.Archive, error) {
	name = strings.TrimSpace(name)
	creator = NormalizeUsername(creator)
	if name == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "archive name is required")
	}
	taken, err := s.Exists(ctx, name)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, appErrors.ErrArchiveExists
	}
	if err := s.requireArchivist(ctx, creator); err != nil {
		return nil, err
	}

	s.logger.Info("creating archive", zap.String("archive", name), zap.String("owner", creator))

	archive := &models.Archive{Name: name, Description: description, Owner: creator}
	if err := s.repo.Create(ctx, archive); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create archive")
	}
	return archive, nil
}

// Get returns one archive.
func (s *ArchiveService) Get(ctx context.Context, name string) (*models.Archive, error) {
	archive, err := s.repo.GetByName(ctx, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrArchiveNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load archive")
	}
	return archive, nil
}

// Rename changes the archive name. Ownership is not checked here: any
// known archivist may rename. Deletion is the only owner-gated operation.
func (s *ArchiveService) Rename(ctx context.Context, name, newName, archivist string) error {
	newName = strings.TrimSpace(newName)
	archivist = NormalizeUsername(archivist)
	if newName == "" {
		return appErrors.Clone(appErrors.ErrValidation, "new archive name is required")
	}
	exists, err := s.Exists(ctx, name)
	if err != nil {
		return err
	}
	if !exists {
		return appErrors.ErrArchiveNotFound
	}
	taken, err := s.Exists(ctx, newName)
	if err != nil {
		return err
	}
	if taken {
		return appErrors.ErrArchiveExists
	}
	if err := s.requireArchivist(ctx, archivist); err != nil {
		return err
	}

	s.logger.Info("renaming archive", zap.String("archive", name), zap.String("new_name", newName), zap.String("archivist", archivist))

	if err := s.repo.Rename(ctx, name, newName); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to rename archive")
	}
	if err := s.repo.AddMaintainer(ctx, newName, archivist); err != nil {
		s.logger.Warn("failed to record archive maintainer", zap.Error(err), zap.String("archive", newName))
	}
	return nil
}

// ChangeDescription replaces the description.
func (s *ArchiveService) ChangeDescription(ctx context.Context, name, description, archivist string) error {
	archivist = NormalizeUsername(archivist)
	exists, err := s.Exists(ctx, name)
	if err != nil {
		return err
	}
	if !exists {
		return appErrors.ErrArchiveNotFound
	}
	if err := s.requireArchivist(ctx, archivist); err != nil {
		return err
	}
	if err := s.repo.UpdateDescription(ctx, name, description); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update archive description")
	}
	if err := s.repo.AddMaintainer(ctx, name, archivist); err != nil {
		s.logger.Warn("failed to record archive maintainer", zap.Error(err), zap.String("archive", name))
	}
	return nil
}

// AddMaintainer appends the archivist to the archive's maintainer set.
// Idempotent; a no-op when already present.
func (s *ArchiveService) AddMaintainer(ctx context.Context, name, archivist string) error {
	if err := s.repo.AddMaintainer(ctx, name, archivist); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add archive maintainer")
	}
	return nil
}

// Delete removes the archive. Only the owner may delete. Contained
// documents and records are not cascade-deleted; the reconcile operation
// exists to clean up after this.
func (s *ArchiveService) Delete(ctx context.Context, name, archivist string) error {
	archivist = NormalizeUsername(archivist)
	archive, err := s.Get(ctx, name)
	if err != nil {
		return err
	}
	if err := s.requireArchivist(ctx, archivist); err != nil {
		return err
	}
	if archive.Owner != archivist {
		return appErrors.ErrNotAuthorized
	}

	s.logger.Info("deleting archive", zap.String("archive", name), zap.String("archivist", archivist))

	if err := s.repo.Delete(ctx, name); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete archive")
	}
	return nil
}

func (s *ArchiveService) requireArchivist(ctx context.Context, username string) error {
	exists, err := s.archivists.Exists(ctx, username)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check archivist")
	}
	if !exists {
		return appErrors.ErrArchivistNotFound
	}
	return nil
}

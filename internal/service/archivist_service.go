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

type archivistStore interface {
	Exists(ctx context.Context, username string) (bool, error)
	Create(ctx context.Context, archivist *models.Archivist) error
	GetByUsername(ctx context.Context, username string) (*models.Archivist, error)
	Rename(ctx context.Context, username, newUsername string) error
	UpdateBio(ctx context.Context, username, bio string) error
	Delete(ctx context.Context, username string) error
}

// ArchivistService manages archivist identities. Usernames are normalized
// (lowercase, trimmed) once here; every lookup and write below this layer
// sees the normalized form.
type ArchivistService struct {
	repo   archivistStore
	logger *zap.Logger
}

// NewArchivistService constructs the service.
func NewArchivistService(repo archivistStore, logger *zap.Logger) *ArchivistService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArchivistService{repo: repo, logger: logger}
}

// NormalizeUsername lowercases and trims a username.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// Exists reports whether the archivist is registered.
func (s *ArchivistService) Exists(ctx context.Context, username string) (bool, error) {
	exists, err := s.repo.Exists(ctx, NormalizeUsername(username))
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check archivist")
	}
	return exists, nil
}

// Create registers a new archivist.
func (s *ArchivistService) Create(ctx context.Context, username, bio string) (*models.Archivist, error) {
	username = NormalizeUsername(username)
	if username == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "username is required")
	}
	exists, err := s.Exists(ctx, username)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, appErrors.ErrArchivistExists
	}

	s.logger.Info("creating archivist", zap.String("username", username))

	archivist := &models.Archivist{Username: username, Bio: bio}
	if err := s.repo.Create(ctx, archivist); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create archivist")
	}
	return archivist, nil
}

// Get returns one archivist.
func (s *ArchivistService) Get(ctx context.Context, username string) (*models.Archivist, error) {
	archivist, err := s.repo.GetByUsername(ctx, NormalizeUsername(username))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrArchivistNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load archivist")
	}
	return archivist, nil
}

// Rename changes an archivist's username.
func (s *ArchivistService) Rename(ctx context.Context, username, newUsername string) error {
	username = NormalizeUsername(username)
	newUsername = NormalizeUsername(newUsername)
	if newUsername == "" {
		return appErrors.Clone(appErrors.ErrValidation, "new username is required")
	}
	exists, err := s.Exists(ctx, username)
	if err != nil {
		return err
	}
	if !exists {
		return appErrors.ErrArchivistNotFound
	}
	taken, err := s.Exists(ctx, newUsername)
	if err != nil {
		return err
	}
	if taken {
		return appErrors.ErrArchivistExists
	}

	s.logger.Info("renaming archivist", zap.String("username", username), zap.String("new_username", newUsername))

	if err := s.repo.Rename(ctx, username, newUsername); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to rename archivist")
	}
	return nil
}

// UpdateBio replaces an archivist's bio.
func (s *ArchivistService) UpdateBio(ctx context.Context, username, bio string) error {
	username = NormalizeUsername(username)
	if err := s.repo.UpdateBio(ctx, username, bio); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrArchivistNotFound
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update archivist bio")
	}
	return nil
}

// Delete removes an archivist. Archives owned by the archivist are left in
// place; ownership is recorded by username and is not reassigned.
func (s *ArchivistService) Delete(ctx context.Context, username string) error {
	username = NormalizeUsername(username)

	s.logger.Info("deleting archivist", zap.String("username", username))

	if err := s.repo.Delete(ctx, username); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrArchivistNotFound
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete archivist")
	}
	return nil
}

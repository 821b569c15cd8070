package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/arkival/arkive-api/internal/dto"
	"github.com/arkival/arkive-api/internal/models"
	"github.com/arkival/arkive-api/internal/service"
	appErrors "github.com/arkival/arkive-api/pkg/errors"
	"github.com/arkival/arkive-api/pkg/response"
)

type archivistService interface {
	Create(ctx context.Context, username, bio string) (*models.Archivist, error)
	Get(ctx context.Context, username string) (*models.Archivist, error)
	Rename(ctx context.Context, username, newUsername string) error
	UpdateBio(ctx context.Context, username, bio string) error
	Delete(ctx context.Context, username string) error
}

// ArchivistHandler exposes archivist endpoints.
type ArchivistHandler struct {
	archivists archivistService
	validate   *validator.Validate
}

// NewArchivistHandler constructs ArchivistHandler.
func NewArchivistHandler(archivists archivistService, validate *validator.Validate) *ArchivistHandler {
	if validate == nil {
		validate = validator.New()
	}
	return &ArchivistHandler{archivists: archivists, validate: validate}
}

// Create registers a new archivist.
func (h *ArchivistHandler) Create(c *gin.Context) {
	var req dto.CreateArchivistRequest
	if !bindJSON(c, h.validate, &req) {
		return
	}
	archivist, err := h.archivists.Create(c.Request.Context(), req.Username, req.Bio)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, archivist)
}

// Get returns one archivist.
func (h *ArchivistHandler) Get(c *gin.Context) {
	archivist, err := h.archivists.Get(c.Request.Context(), c.Param("username"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, archivist)
}

// Rename changes an archivist's username.
func (h *ArchivistHandler) Rename(c *gin.Context) {
	var req dto.RenameArchivistRequest
	if !bindJSON(c, h.validate, &req) {
		return
	}
	username := c.Param("username")
	if service.NormalizeUsername(username) == service.NormalizeUsername(req.NewUsername) {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "new username cannot be the same as the current username"))
		return
	}
	if err := h.archivists.Rename(c.Request.Context(), username, req.NewUsername); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// UpdateBio replaces an archivist's bio.
func (h *ArchivistHandler) UpdateBio(c *gin.Context) {
	var req dto.UpdateBioRequest
	if !bindJSON(c, h.validate, &req) {
		return
	}
	if err := h.archivists.UpdateBio(c.Request.Context(), c.Param("username"), req.Bio); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Delete removes an archivist.
func (h *ArchivistHandler) Delete(c *gin.Context) {
	if err := h.archivists.Delete(c.Request.Context(), c.Param("username")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/arkival/arkive-api/internal/dto"
	"github.com/arkival/arkive-api/internal/models"
	appErrors "github.com/arkival/arkive-api/pkg/errors"
	"github.com/arkival/arkive-api/pkg/response"
)

type archiveService interface {
	List(ctx context.Context) ([]string, error)
	Create(ctx context.Context, name, description, creator string) (*models.Archive, error)
	Get(ctx context.Context, name string) (*models.Archive, error)
	Rename(ctx context.Context, name, newName, archivist string) error
	ChangeDescription(ctx context.Context, name, description, archivist string) error
	Delete(ctx context.Context, name, archivist string) error
}

// ArchiveHandler exposes archive endpoints.
type ArchiveHandler struct {
	archives archiveService
	validate *validator.Validate
}

// NewArchiveHandler constructs ArchiveHandler.
func NewArchiveHandler(archives archiveService, validate *validator.Validate) *ArchiveHandler {
	if validate == nil {
		validate = validator.New()
	}
	return &ArchiveHandler{archives: archives, validate: validate}
}

// List returns the names of all archives.
func (h *ArchiveHandler) List(c *gin.Context) {
	names, err := h.archives.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, names)
}

// Create creates a named archive owned by the requesting archivist.
func (h *ArchiveHandler) Create(c *gin.Context) {
	var req dto.CreateArchiveRequest
	if !bindJSON(c, h.validate, &req) {
		return
	}
	archive, err := h.archives.Create(c.Request.Context(), req.Name, req.Description, req.Archivist)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, archive)
}

// Get returns one archive.
func (h *ArchiveHandler) Get(c *gin.Context) {
	archive, err := h.archives.Get(c.Request.Context(), c.Param("archive"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, archive)
}

// Rename renames an archive. The new name must differ from the current one.
func (h *ArchiveHandler) Rename(c *gin.Context) {
	var req dto.RenameArchiveRequest
	if !bindJSON(c, h.validate, &req) {
		return
	}
	name := c.Param("archive")
	if name == req.NewName {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "new name cannot be the same as the old name"))
		return
	}
	if err := h.archives.Rename(c.Request.Context(), name, req.NewName, req.Archivist); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ChangeDescription replaces an archive's description.
func (h *ArchiveHandler) ChangeDescription(c *gin.Context) {
	var req dto.ChangeDescriptionRequest
	if !bindJSON(c, h.validate, &req) {
		return
	}
	if err := h.archives.ChangeDescription(c.Request.Context(), c.Param("archive"), req.Description, req.Archivist); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Delete removes an archive. Only the owner may delete it.
func (h *ArchiveHandler) Delete(c *gin.Context) {
	var req dto.ActorRequest
	if !bindJSON(c, h.validate, &req) {
		return
	}
	if err := h.archives.Delete(c.Request.Context(), c.Param("archive"), req.Archivist); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

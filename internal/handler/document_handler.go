package handler

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/arkival/arkive-api/internal/dto"
	"github.com/arkival/arkive-api/internal/models"
	appErrors "github.com/arkival/arkive-api/pkg/errors"
	"github.com/arkival/arkive-api/pkg/response"
)

type documentService interface {
	Create(ctx context.Context, archive, creator, filename, mimeType string, size int64, stagingPath string) (*models.Document, error)
	GetMeta(ctx context.Context, archive, hash string) (*models.Document, error)
	GetObject(ctx context.Context, archive, hash string) (*os.File, *models.Document, error)
	GetUnsorted(ctx context.Context, archive string) ([]string, error)
	Rename(ctx context.Context, archive, hash, newName, archivist string) error
	Delete(ctx context.Context, archive, hash, archivist string) error
}

// DocumentHandler exposes document endpoints, including multipart ingest.
type DocumentHandler struct {
	documents   documentService
	validate    *validator.Validate
	uploadDir   string
	maxFileSize int64
}

// NewDocumentHandler constructs DocumentHandler. Uploads are staged under
// uploadDir before being handed to the service; maxFileSize of zero disables
// the size check.
func NewDocumentHandler(documents documentService, validate *validator.Validate, uploadDir string, maxFileSize int64) *DocumentHandler {
	if validate == nil {
		validate = validator.New()
	}
	return &DocumentHandler{documents: documents, validate: validate, uploadDir: uploadDir, maxFileSize: maxFileSize}
}

// Create ingests one or more uploaded files into an archive. Files whose
// content already exists in the archive are skipped; any other failure aborts
// the batch. Responds with the hashes of the ingested files.
func (h *DocumentHandler) Create(c *gin.Context) {
	archive := strings.TrimSpace(c.PostForm("archive"))
	archivist := strings.TrimSpace(c.PostForm("archivist"))
	if archive == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "archive is required"))
		return
	}
	if archivist == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "archivist is required"))
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid multipart form"))
		return
	}
	files := form.File["files"]
	if len(files) == 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "no file uploaded"))
		return
	}

	hashes := make([]string, 0, len(files))
	for _, file := range files {
		if h.maxFileSize > 0 && file.Size > h.maxFileSize {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file %s exceeds the size limit", file.Filename)))
			return
		}
		stagingPath := filepath.Join(h.uploadDir, uuid.NewString())
		if err := c.SaveUploadedFile(file, stagingPath); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to stage upload"))
			return
		}
		doc, err := h.documents.Create(c.Request.Context(), archive, archivist, file.Filename, file.Header.Get("Content-Type"), file.Size, stagingPath)
		if err != nil {
			os.Remove(stagingPath)
			if appErrors.FromError(err).Code == appErrors.ErrDocumentExists.Code {
				continue
			}
			response.Error(c, err)
			return
		}
		hashes = append(hashes, doc.Hash)
	}
	response.Created(c, hashes)
}

// GetMeta returns a document's metadata.
func (h *DocumentHandler) GetMeta(c *gin.Context) {
	doc, err := h.documents.GetMeta(c.Request.Context(), c.Param("archive"), c.Param("hash"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doc)
}

// GetObject streams a document's content.
func (h *DocumentHandler) GetObject(c *gin.Context) {
	object, doc, err := h.documents.GetObject(c.Request.Context(), c.Param("archive"), c.Param("hash"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer object.Close()

	contentType := doc.FileType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", doc.Name))
	c.DataFromReader(http.StatusOK, doc.FileSize, contentType, object, nil)
}

// GetUnsorted lists the hashes of unsorted documents in an archive.
func (h *DocumentHandler) GetUnsorted(c *gin.Context) {
	hashes, err := h.documents.GetUnsorted(c.Request.Context(), c.Param("archive"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, hashes)
}

// Rename changes a document's display name.
func (h *DocumentHandler) Rename(c *gin.Context) {
	var req dto.RenameDocumentRequest
	if !bindJSON(c, h.validate, &req) {
		return
	}
	if err := h.documents.Rename(c.Request.Context(), c.Param("archive"), c.Param("hash"), req.NewName, req.Archivist); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Delete removes a document and collects its blob when no other archive
// references the content.
func (h *DocumentHandler) Delete(c *gin.Context) {
	var req dto.ActorRequest
	if !bindJSON(c, h.validate, &req) {
		return
	}
	if err := h.documents.Delete(c.Request.Context(), c.Param("archive"), c.Param("hash"), req.Archivist); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

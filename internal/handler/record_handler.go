package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/arkival/arkive-api/internal/dto"
	"github.com/arkival/arkive-api/internal/models"
	appErrors "github.com/arkival/arkive-api/pkg/errors"
	"github.com/arkival/arkive-api/pkg/response"
)

type recordService interface {
	Create(ctx context.Context, archive, name, creator string) (*models.Record, error)
	Get(ctx context.Context, archive, id string) (*models.Record, error)
	Delete(ctx context.Context, archive, id string) error
	AddDocument(ctx context.Context, archive, id, hash, archivist string) (*models.Record, error)
	RemoveDocumentAt(ctx context.Context, archive, id string, index int, archivist string) (*models.Record, error)
	Reorder(ctx context.Context, archive, id string, index, newIndex int, archivist string) (*models.Record, error)
	AddTag(ctx context.Context, archive, id, archivist, tag string) (*models.Record, error)
	RemoveTag(ctx context.Context, archive, id, archivist, tag string) (*models.Record, error)
}

type recordFinder interface {
	Find(ctx context.Context, archive string, query models.RecordQuery) ([]models.Record, error)
}

// RecordHandler exposes record endpoints, including the search surface.
type RecordHandler struct {
	records  recordService
	queries  recordFinder
	validate *validator.Validate
}

// NewRecordHandler constructs RecordHandler.
func NewRecordHandler(records recordService, queries recordFinder, validate *validator.Validate) *RecordHandler {
	if validate == nil {
		validate = validator.New()
	}
	return &RecordHandler{records: records, queries: queries, validate: validate}
}

// Create creates an empty record in an archive.
func (h *RecordHandler) Create(c *gin.Context) {
	var req dto.CreateRecordRequest
	if !bindJSON(c, h.validate, &req) {
		return
	}
	record, err := h.records.Create(c.Request.Context(), c.Param("archive"), req.Name, req.Creator)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, record)
}

// Get returns one record.
func (h *RecordHandler) Get(c *gin.Context) {
	record, err := h.records.Get(c.Request.Context(), c.Param("archive"), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record)
}

// Delete removes a record.
func (h *RecordHandler) Delete(c *gin.Context) {
	if err := h.records.Delete(c.Request.Context(), c.Param("archive"), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// AddDocument appends a document hash to the record's sequence.
func (h *RecordHandler) AddDocument(c *gin.Context) {
	var req dto.AddDocumentRequest
	if !bindJSON(c, h.validate, &req) {
		return
	}
	record, err := h.records.AddDocument(c.Request.Context(), c.Param("archive"), c.Param("id"), req.Document, req.Archivist)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record)
}

// RemoveDocument removes the document at the given position in the record's
// sequence.
func (h *RecordHandler) RemoveDocument(c *gin.Context) {
	var req dto.ActorRequest
	if !bindJSON(c, h.validate, &req) {
		return
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid index"))
		return
	}
	record, err := h.records.RemoveDocumentAt(c.Request.Context(), c.Param("archive"), c.Param("id"), index, req.Archivist)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record)
}

// Reorder moves a document within the record's sequence.
func (h *RecordHandler) Reorder(c *gin.Context) {
	var req dto.ReorderRequest
	if !bindJSON(c, h.validate, &req) {
		return
	}
	record, err := h.records.Reorder(c.Request.Context(), c.Param("archive"), c.Param("id"), req.Index, req.NewIndex, req.Archivist)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record)
}

// AddTag attaches a tag to a record. Adding a tag the record already carries
// is a no-op.
func (h *RecordHandler) AddTag(c *gin.Context) {
	var req dto.TagRequest
	if !bindJSON(c, h.validate, &req) {
		return
	}
	record, err := h.records.AddTag(c.Request.Context(), c.Param("archive"), c.Param("id"), req.Archivist, req.Tag)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record)
}

// RemoveTag detaches a tag from a record.
func (h *RecordHandler) RemoveTag(c *gin.Context) {
	var req dto.ActorRequest
	if !bindJSON(c, h.validate, &req) {
		return
	}
	record, err := h.records.RemoveTag(c.Request.Context(), c.Param("archive"), c.Param("id"), req.Archivist, c.Param("tag"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record)
}

// Find searches an archive's records. Filters combine with AND: name is a
// case-insensitive substring match, includeTags matches records carrying at
// least one of the tags, excludeTags rejects records carrying any, and
// filterTags requires all.
func (h *RecordHandler) Find(c *gin.Context) {
	query := models.RecordQuery{
		Name:        strings.TrimSpace(c.Query("name")),
		IncludeTags: splitTags(c.Query("includeTags")),
		ExcludeTags: splitTags(c.Query("excludeTags")),
		FilterTags:  splitTags(c.Query("filterTags")),
	}
	records, err := h.queries.Find(c.Request.Context(), c.Param("archive"), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records)
}

func splitTags(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	for _, part := range parts {
		if tag := strings.TrimSpace(part); tag != "" {
			tags = append(tags, tag)
		}
	}
	if len(tags) == 0 {
		return nil
	}
	return tags
}

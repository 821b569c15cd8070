package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arkival/arkive-api/internal/service"
	"github.com/arkival/arkive-api/pkg/response"
)

type reconciler interface {
	Reconcile(ctx context.Context, archive string) (*service.ReconcileReport, error)
}

// ReconcileHandler exposes the administrative repair endpoint.
type ReconcileHandler struct {
	reconcile reconciler
}

// NewReconcileHandler constructs ReconcileHandler.
func NewReconcileHandler(reconcile reconciler) *ReconcileHandler {
	return &ReconcileHandler{reconcile: reconcile}
}

// Reconcile recomputes unsorted flags for an archive from actual record
// membership and sweeps blobs no longer referenced by any document. It
// returns a report of everything it changed.
func (h *ReconcileHandler) Reconcile(c *gin.Context) {
	report, err := h.reconcile.Reconcile(c.Request.Context(), c.Param("archive"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report)
}

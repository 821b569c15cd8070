package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arkival/arkive-api/internal/service"
	appErrors "github.com/arkival/arkive-api/pkg/errors"
)

type reconcilerMock struct {
	resp        *service.ReconcileReport
	err         error
	lastArchive string
}

func (m *reconcilerMock) Reconcile(ctx context.Context, archive string) (*service.ReconcileReport, error) {
	m.lastArchive = archive
	return m.resp, m.err
}

func TestReconcileHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &reconcilerMock{
		resp: &service.ReconcileReport{Archive: "library", MarkedUnsorted: []string{"aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d"}},
	}
	handler := NewReconcileHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/admin/reconcile/library", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "archive", Value: "library"}}

	handler.Reconcile(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "library", mockSvc.lastArchive)
	assert.Contains(t, w.Body.String(), "aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d")
}

func TestReconcileHandlerUnknownArchive(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewReconcileHandler(&reconcilerMock{err: appErrors.ErrArchiveNotFound})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/admin/reconcile/ghost", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "archive", Value: "ghost"}}

	handler.Reconcile(c)
	require.Equal(t, http.StatusNotFound, w.Code)
}

package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arkival/arkive-api/internal/dto"
	"github.com/arkival/arkive-api/internal/models"
	appErrors "github.com/arkival/arkive-api/pkg/errors"
)

type archivistServiceMock struct {
	createResp   *models.Archivist
	createErr    error
	getResp      *models.Archivist
	getErr       error
	renameErr    error
	bioErr       error
	deleteErr    error
	renameCalled bool
	lastUsername string
}

func (m *archivistServiceMock) Create(ctx context.Context, username, bio string) (*models.Archivist, error) {
	m.lastUsername = username
	return m.createResp, m.createErr
}

func (m *archivistServiceMock) Get(ctx context.Context, username string) (*models.Archivist, error) {
	m.lastUsername = username
	return m.getResp, m.getErr
}

func (m *archivistServiceMock) Rename(ctx context.Context, username, newUsername string) error {
	m.renameCalled = true
	return m.renameErr
}

func (m *archivistServiceMock) UpdateBio(ctx context.Context, username, bio string) error {
	return m.bioErr
}

func (m *archivistServiceMock) Delete(ctx context.Context, username string) error {
	m.lastUsername = username
	return m.deleteErr
}

func TestArchivistHandlerCreate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &archivistServiceMock{
		createResp: &models.Archivist{Username: "alice"},
	}
	handler := NewArchivistHandler(mockSvc, nil)

	payload, _ := json.Marshal(dto.CreateArchivistRequest{Username: "alice", Bio: "keeper of the stacks"})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/archivist", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "alice", mockSvc.lastUsername)
}

func TestArchivistHandlerCreateMissingUsername(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &archivistServiceMock{}
	handler := NewArchivistHandler(mockSvc, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/archivist", bytes.NewBufferString(`{"bio":"no name"}`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Create(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, mockSvc.lastUsername)
}

func TestArchivistHandlerGetNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewArchivistHandler(&archivistServiceMock{getErr: appErrors.ErrArchivistNotFound}, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/archivist/ghost", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "username", Value: "ghost"}}

	handler.Get(c)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestArchivistHandlerRenameSameUsername(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &archivistServiceMock{}
	handler := NewArchivistHandler(mockSvc, nil)

	// Normalization happens before the comparison, so a case-only change
	// is still the same username.
	payload, _ := json.Marshal(dto.RenameArchivistRequest{NewUsername: "Alice"})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/archivist/alice/rename", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "username", Value: "alice"}}

	handler.Rename(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, mockSvc.renameCalled)
}

func TestArchivistHandlerRenameConflict(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &archivistServiceMock{renameErr: appErrors.ErrArchivistExists}
	handler := NewArchivistHandler(mockSvc, nil)

	payload, _ := json.Marshal(dto.RenameArchivistRequest{NewUsername: "bob"})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/archivist/alice/rename", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "username", Value: "alice"}}

	handler.Rename(c)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.True(t, mockSvc.renameCalled)
}

func TestArchivistHandlerUpdateBio(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewArchivistHandler(&archivistServiceMock{}, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPut, "/archivist/alice/bio", bytes.NewBufferString(`{"bio":"updated"}`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "username", Value: "alice"}}

	handler.UpdateBio(c)
	require.Equal(t, http.StatusNoContent, w.Code)
}

func TestArchivistHandlerDelete(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &archivistServiceMock{}
	handler := NewArchivistHandler(mockSvc, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodDelete, "/archivist/alice", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "username", Value: "alice"}}

	handler.Delete(c)
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "alice", mockSvc.lastUsername)
}

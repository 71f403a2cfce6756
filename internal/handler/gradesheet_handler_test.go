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

	"github.com/noah-isme/sma-grade-workflow/internal/dto"
	"github.com/noah-isme/sma-grade-workflow/internal/middleware"
	"github.com/noah-isme/sma-grade-workflow/internal/models"
	appErrors "github.com/noah-isme/sma-grade-workflow/pkg/errors"
)

type gradesheetServiceMock struct {
	view       *dto.TeacherSheetView
	err        error
	lastSheet  string
	lastColumn string
	lastValue  *float64
	lastName   string
	lastMax    int
	called     string
}

func (m *gradesheetServiceMock) ListTeacherSheets(ctx context.Context, actor *models.JWTClaims) ([]dto.TeacherSheetView, error) {
	m.called = "list"
	if m.view == nil {
		return []dto.TeacherSheetView{}, m.err
	}
	return []dto.TeacherSheetView{*m.view}, m.err
}

func (m *gradesheetServiceMock) GetSheet(ctx context.Context, actor *models.JWTClaims, sheetID string) (*dto.TeacherSheetView, error) {
	m.called, m.lastSheet = "get", sheetID
	return m.view, m.err
}

func (m *gradesheetServiceMock) SetScore(ctx context.Context, actor *models.JWTClaims, sheetID, studentID, columnID string, value *float64) (*dto.TeacherSheetView, error) {
	m.called, m.lastSheet, m.lastColumn, m.lastValue = "set_score", sheetID, columnID, value
	return m.view, m.err
}

func (m *gradesheetServiceMock) AddColumn(ctx context.Context, actor *models.JWTClaims, sheetID, name string, maxScore int) (*dto.TeacherSheetView, error) {
	m.called, m.lastSheet, m.lastName, m.lastMax = "add_column", sheetID, name, maxScore
	return m.view, m.err
}

func (m *gradesheetServiceMock) EditColumn(ctx context.Context, actor *models.JWTClaims, sheetID, columnID, name string, maxScore int) (*dto.TeacherSheetView, error) {
	m.called, m.lastSheet, m.lastColumn, m.lastName, m.lastMax = "edit_column", sheetID, columnID, name, maxScore
	return m.view, m.err
}

func (m *gradesheetServiceMock) DeleteColumn(ctx context.Context, actor *models.JWTClaims, sheetID, columnID string) (*dto.TeacherSheetView, error) {
	m.called, m.lastSheet, m.lastColumn = "delete_column", sheetID, columnID
	return m.view, m.err
}

func (m *gradesheetServiceMock) Submit(ctx context.Context, actor *models.JWTClaims, sheetID string) (*dto.TeacherSheetView, error) {
	m.called, m.lastSheet = "submit", sheetID
	return m.view, m.err
}

func (m *gradesheetServiceMock) Reset(ctx context.Context, actor *models.JWTClaims, sheetID string) (*dto.TeacherSheetView, error) {
	m.called, m.lastSheet = "reset", sheetID
	return m.view, m.err
}

func newTeacherContext(method, target, body string, params gin.Params) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, target, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = params
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "teacher-math", Role: models.RoleTeacher})
	return c, w
}

type envelope struct {
	Data  json.RawMessage        `json:"data"`
	Error *appErrors.Error       `json:"error"`
	Meta  map[string]interface{} `json:"meta"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestGradesheetHandlerSetScore(t *testing.T) {
	mockSvc := &gradesheetServiceMock{view: &dto.TeacherSheetView{SheetID: "sheet-math", Status: models.SheetDraft}}
	handler := NewGradesheetHandler(mockSvc, nil)

	c, w := newTeacherContext(http.MethodPut, "/gradesheets/sheet-math/scores",
		`{"studentId":"stu-1","columnId":"c1","value":87.5}`, gin.Params{{Key: "sheetId", Value: "sheet-math"}})
	handler.SetScore(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "sheet-math", mockSvc.lastSheet)
	assert.Equal(t, "c1", mockSvc.lastColumn)
	require.NotNil(t, mockSvc.lastValue)
	assert.Equal(t, 87.5, *mockSvc.lastValue)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

func TestGradesheetHandlerSetScoreNullClears(t *testing.T) {
	mockSvc := &gradesheetServiceMock{view: &dto.TeacherSheetView{SheetID: "sheet-math"}}
	handler := NewGradesheetHandler(mockSvc, nil)

	c, w := newTeacherContext(http.MethodPut, "/", `{"studentId":"stu-1","columnId":"c1","value":null}`, gin.Params{{Key: "sheetId", Value: "sheet-math"}})
	handler.SetScore(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "set_score", mockSvc.called)
	assert.Nil(t, mockSvc.lastValue)
}

func TestGradesheetHandlerSetScoreInvalidBody(t *testing.T) {
	mockSvc := &gradesheetServiceMock{}
	handler := NewGradesheetHandler(mockSvc, nil)

	c, w := newTeacherContext(http.MethodPut, "/", `{"studentId":"stu-1"`, nil)
	handler.SetScore(c)
	require.Equal(t, http.StatusBadRequest, w.Code)

	c, w = newTeacherContext(http.MethodPut, "/", `{"studentId":"stu-1"}`, nil)
	handler.SetScore(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, appErrors.CodeValidationFailed, decodeEnvelope(t, w).Error.Code)
	assert.Empty(t, mockSvc.called)
}

func TestGradesheetHandlerRejectionCarriesView(t *testing.T) {
	mockSvc := &gradesheetServiceMock{
		view: &dto.TeacherSheetView{SheetID: "sheet-math", Status: models.SheetSubmitted},
		err:  appErrors.Clone(appErrors.ErrWrongStatus, "gradesheet is submitted"),
	}
	handler := NewGradesheetHandler(mockSvc, nil)

	c, w := newTeacherContext(http.MethodPost, "/", "", gin.Params{{Key: "sheetId", Value: "sheet-math"}})
	handler.Submit(c)

	require.Equal(t, http.StatusConflict, w.Code)
	env := decodeEnvelope(t, w)
	assert.Equal(t, appErrors.CodeWrongStatus, env.Error.Code)
	var view dto.TeacherSheetView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, models.SheetSubmitted, view.Status)
}

func TestGradesheetHandlerNotFoundHasNoData(t *testing.T) {
	mockSvc := &gradesheetServiceMock{err: appErrors.Clone(appErrors.ErrNotFound, "gradesheet not found")}
	handler := NewGradesheetHandler(mockSvc, nil)

	c, w := newTeacherContext(http.MethodPost, "/", "", gin.Params{{Key: "sheetId", Value: "missing"}})
	handler.Reset(c)

	require.Equal(t, http.StatusNotFound, w.Code)
	env := decodeEnvelope(t, w)
	assert.Empty(t, env.Data)
	assert.Equal(t, "reset", mockSvc.called)
}

func TestGradesheetHandlerColumns(t *testing.T) {
	mockSvc := &gradesheetServiceMock{view: &dto.TeacherSheetView{SheetID: "sheet-math"}}
	handler := NewGradesheetHandler(mockSvc, nil)
	params := gin.Params{{Key: "sheetId", Value: "sheet-math"}, {Key: "columnId", Value: "c2"}}

	c, w := newTeacherContext(http.MethodPost, "/", `{"name":"Project","maxScore":50}`, params)
	handler.AddColumn(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "Project", mockSvc.lastName)
	assert.Equal(t, 50, mockSvc.lastMax)

	c, w = newTeacherContext(http.MethodPut, "/", `{"name":"Final"}`, params)
	handler.EditColumn(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "c2", mockSvc.lastColumn)
	assert.Equal(t, "Final", mockSvc.lastName)

	c, w = newTeacherContext(http.MethodDelete, "/", "", params)
	handler.DeleteColumn(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "delete_column", mockSvc.called)
}

func TestGradesheetHandlerList(t *testing.T) {
	mockSvc := &gradesheetServiceMock{view: &dto.TeacherSheetView{SheetID: "sheet-math"}}
	handler := NewGradesheetHandler(mockSvc, nil)

	c, w := newTeacherContext(http.MethodGet, "/gradesheets", "", nil)
	handler.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	env := decodeEnvelope(t, w)
	assert.Equal(t, float64(1), env.Meta["total"])
}

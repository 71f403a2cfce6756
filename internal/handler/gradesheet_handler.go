package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/sma-grade-workflow/internal/dto"
	"github.com/noah-isme/sma-grade-workflow/internal/models"
	appErrors "github.com/noah-isme/sma-grade-workflow/pkg/errors"
	"github.com/noah-isme/sma-grade-workflow/pkg/response"
)

type gradesheetService interface {
	ListTeacherSheets(ctx context.Context, actor *models.JWTClaims) ([]dto.TeacherSheetView, error)
	GetSheet(ctx context.Context, actor *models.JWTClaims, sheetID string) (*dto.TeacherSheetView, error)
	SetScore(ctx context.Context, actor *models.JWTClaims, sheetID, studentID, columnID string, value *float64) (*dto.TeacherSheetView, error)
	AddColumn(ctx context.Context, actor *models.JWTClaims, sheetID, name string, maxScore int) (*dto.TeacherSheetView, error)
	EditColumn(ctx context.Context, actor *models.JWTClaims, sheetID, columnID, name string, maxScore int) (*dto.TeacherSheetView, error)
	DeleteColumn(ctx context.Context, actor *models.JWTClaims, sheetID, columnID string) (*dto.TeacherSheetView, error)
	Submit(ctx context.Context, actor *models.JWTClaims, sheetID string) (*dto.TeacherSheetView, error)
	Reset(ctx context.Context, actor *models.JWTClaims, sheetID string) (*dto.TeacherSheetView, error)
}

// GradesheetHandler exposes the teacher gradesheet endpoints.
type GradesheetHandler struct {
	service   gradesheetService
	validator *validator.Validate
}

// NewGradesheetHandler builds a new handler.
func NewGradesheetHandler(service gradesheetService, validate *validator.Validate) *GradesheetHandler {
	if validate == nil {
		validate = validator.New()
	}
	return &GradesheetHandler{service: service, validator: validate}
}

// List godoc
// @Summary List the caller's gradesheets
// @Tags Gradesheets
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /gradesheets [get]
func (h *GradesheetHandler) List(c *gin.Context) {
	views, err := h.service.ListTeacherSheets(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, views, map[string]interface{}{"total": len(views)})
}

// Get godoc
// @Summary Get a gradesheet
// @Tags Gradesheets
// @Produce json
// @Param sheetId path string true "Gradesheet ID"
// @Success 200 {object} response.Envelope
// @Router /gradesheets/{sheetId} [get]
func (h *GradesheetHandler) Get(c *gin.Context) {
	view, err := h.service.GetSheet(c.Request.Context(), claimsFromContext(c), c.Param("sheetId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view)
}

// SetScore godoc
// @Summary Enter or clear one score
// @Tags Gradesheets
// @Accept json
// @Produce json
// @Param sheetId path string true "Gradesheet ID"
// @Param payload body dto.SetScoreRequest true "Score payload; null value clears the cell"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /gradesheets/{sheetId}/scores [put]
func (h *GradesheetHandler) SetScore(c *gin.Context) {
	var req dto.SetScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid score payload"))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "studentId and columnId are required"))
		return
	}
	view, err := h.service.SetScore(c.Request.Context(), claimsFromContext(c), c.Param("sheetId"), req.StudentID, req.ColumnID, req.Value)
	writeSheet(c, http.StatusOK, view, err)
}

// AddColumn godoc
// @Summary Add an assessment column
// @Tags Gradesheets
// @Accept json
// @Produce json
// @Param sheetId path string true "Gradesheet ID"
// @Param payload body dto.ColumnRequest true "Column payload"
// @Success 201 {object} response.Envelope
// @Router /gradesheets/{sheetId}/columns [post]
func (h *GradesheetHandler) AddColumn(c *gin.Context) {
	var req dto.ColumnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid column payload"))
		return
	}
	view, err := h.service.AddColumn(c.Request.Context(), claimsFromContext(c), c.Param("sheetId"), req.Name, req.MaxScore)
	writeSheet(c, http.StatusCreated, view, err)
}

// EditColumn godoc
// @Summary Rename or rescale a column
// @Tags Gradesheets
// @Accept json
// @Produce json
// @Param sheetId path string true "Gradesheet ID"
// @Param columnId path string true "Column ID"
// @Param payload body dto.ColumnRequest true "Column payload; blank fields are kept"
// @Success 200 {object} response.Envelope
// @Router /gradesheets/{sheetId}/columns/{columnId} [put]
func (h *GradesheetHandler) EditColumn(c *gin.Context) {
	var req dto.ColumnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid column payload"))
		return
	}
	view, err := h.service.EditColumn(c.Request.Context(), claimsFromContext(c), c.Param("sheetId"), c.Param("columnId"), req.Name, req.MaxScore)
	writeSheet(c, http.StatusOK, view, err)
}

// DeleteColumn godoc
// @Summary Delete a column and its scores
// @Tags Gradesheets
// @Produce json
// @Param sheetId path string true "Gradesheet ID"
// @Param columnId path string true "Column ID"
// @Success 200 {object} response.Envelope
// @Router /gradesheets/{sheetId}/columns/{columnId} [delete]
func (h *GradesheetHandler) DeleteColumn(c *gin.Context) {
	view, err := h.service.DeleteColumn(c.Request.Context(), claimsFromContext(c), c.Param("sheetId"), c.Param("columnId"))
	writeSheet(c, http.StatusOK, view, err)
}

// Submit godoc
// @Summary Submit a draft gradesheet to the head of class
// @Tags Gradesheets
// @Produce json
// @Param sheetId path string true "Gradesheet ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /gradesheets/{sheetId}/submit [post]
func (h *GradesheetHandler) Submit(c *gin.Context) {
	view, err := h.service.Submit(c.Request.Context(), claimsFromContext(c), c.Param("sheetId"))
	writeSheet(c, http.StatusOK, view, err)
}

// Reset godoc
// @Summary Return a gradesheet to draft
// @Tags Gradesheets
// @Produce json
// @Param sheetId path string true "Gradesheet ID"
// @Success 200 {object} response.Envelope
// @Router /gradesheets/{sheetId}/reset [post]
func (h *GradesheetHandler) Reset(c *gin.Context) {
	view, err := h.service.Reset(c.Request.Context(), claimsFromContext(c), c.Param("sheetId"))
	writeSheet(c, http.StatusOK, view, err)
}

// writeSheet answers a sheet operation; a rejection still carries the unchanged sheet when known.
func writeSheet(c *gin.Context, status int, view *dto.TeacherSheetView, err error) {
	if err != nil {
		if view != nil {
			response.Rejected(c, view, err)
			return
		}
		response.Error(c, err)
		return
	}
	response.JSON(c, status, view)
}

package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-grade-workflow/internal/dto"
	"github.com/noah-isme/sma-grade-workflow/internal/models"
	"github.com/noah-isme/sma-grade-workflow/internal/service"
	appErrors "github.com/noah-isme/sma-grade-workflow/pkg/errors"
	"github.com/noah-isme/sma-grade-workflow/pkg/export"
	"github.com/noah-isme/sma-grade-workflow/pkg/response"
)

type classResultService interface {
	ClassSummary(ctx context.Context, actor *models.JWTClaims, classID string) (*dto.HeadClassSummary, error)
	Approve(ctx context.Context, actor *models.JWTClaims, classID string) (*dto.HeadClassSummary, error)
	RankingExport(ctx context.Context, actor *models.JWTClaims, classID string) (*models.ClassDefinition, []models.RankingEntry, bool, error)
	StudentResult(ctx context.Context, actor *models.JWTClaims, classID, studentID string) (*dto.StudentResult, error)
}

type rankingExporter interface {
	ExportRanking(ctx context.Context, actor *models.JWTClaims, classID string, format export.Format) (*service.ExportResult, error)
}

// ClassHandler exposes head-of-class approval and result endpoints.
type ClassHandler struct {
	service  classResultService
	exporter rankingExporter
}

// NewClassHandler builds a new handler. A nil exporter disables ranking downloads.
func NewClassHandler(service classResultService, exporter rankingExporter) *ClassHandler {
	return &ClassHandler{service: service, exporter: exporter}
}

// Summary godoc
// @Summary Head-of-class dashboard
// @Tags Classes
// @Produce json
// @Param classId path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{classId}/summary [get]
func (h *ClassHandler) Summary(c *gin.Context) {
	summary, err := h.service.ClassSummary(c.Request.Context(), claimsFromContext(c), c.Param("classId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary)
}

// Rankings godoc
// @Summary Class ranking, frozen once approved
// @Tags Classes
// @Produce json
// @Param classId path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{classId}/rankings [get]
func (h *ClassHandler) Rankings(c *gin.Context) {
	_, rankings, approved, err := h.service.RankingExport(c.Request.Context(), claimsFromContext(c), c.Param("classId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rankings, map[string]interface{}{"approved": approved, "total": len(rankings)})
}

// Approve godoc
// @Summary Approve class results
// @Tags Classes
// @Produce json
// @Param classId path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /classes/{classId}/approve [post]
func (h *ClassHandler) Approve(c *gin.Context) {
	summary, err := h.service.Approve(c.Request.Context(), claimsFromContext(c), c.Param("classId"))
	if err != nil {
		if summary != nil {
			response.Rejected(c, summary, err)
			return
		}
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary)
}

// Export godoc
// @Summary Download the class ranking
// @Tags Classes
// @Produce octet-stream
// @Param classId path string true "Class ID"
// @Param format query string false "csv, pdf or xlsx" default(csv)
// @Success 200 {file} file
// @Router /classes/{classId}/rankings/export [get]
func (h *ClassHandler) Export(c *gin.Context) {
	if h.exporter == nil {
		response.Error(c, appErrors.ErrFeatureDisabled)
		return
	}
	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "format must be csv, pdf or xlsx"))
		return
	}
	result, err := h.exporter.ExportRanking(c.Request.Context(), claimsFromContext(c), c.Param("classId"), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, result.Filename, result.ContentType, result.Payload)
}

// StudentResult godoc
// @Summary A student's result in a class
// @Tags Results
// @Produce json
// @Param classId path string true "Class ID"
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{classId}/students/{studentId}/result [get]
func (h *ClassHandler) StudentResult(c *gin.Context) {
	result, err := h.service.StudentResult(c.Request.Context(), claimsFromContext(c), c.Param("classId"), c.Param("studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// MyResult godoc
// @Summary The signed-in student's own result
// @Tags Results
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /me/result [get]
func (h *ClassHandler) MyResult(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if claims.ClassID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "no class assignment in token"))
		return
	}
	result, err := h.service.StudentResult(c.Request.Context(), claims, claims.ClassID, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

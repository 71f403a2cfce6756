package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-grade-workflow/internal/dto"
	"github.com/noah-isme/sma-grade-workflow/internal/models"
	appErrors "github.com/noah-isme/sma-grade-workflow/pkg/errors"
	"github.com/noah-isme/sma-grade-workflow/pkg/response"
)

type rosterService interface {
	UpsertRoster(ctx context.Context, actor *models.JWTClaims, class models.ClassDefinition) (*dto.RosterResult, error)
}

// RosterHandler exposes roster administration.
type RosterHandler struct {
	service rosterService
}

// NewRosterHandler builds a new handler.
func NewRosterHandler(service rosterService) *RosterHandler {
	return &RosterHandler{service: service}
}

// Upsert godoc
// @Summary Register or update a class roster
// @Tags Admin
// @Accept json
// @Produce json
// @Param payload body dto.RosterRequest true "Roster payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope "class already approved"
// @Router /admin/rosters [put]
func (h *RosterHandler) Upsert(c *gin.Context) {
	var req dto.RosterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid roster payload"))
		return
	}
	result, err := h.service.UpsertRoster(c.Request.Context(), claimsFromContext(c), req.Class)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

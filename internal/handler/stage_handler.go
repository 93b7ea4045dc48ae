package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/matriculapp/enrollment-api/internal/dto"
	"github.com/matriculapp/enrollment-api/internal/models"
	appErrors "github.com/matriculapp/enrollment-api/pkg/errors"
	"github.com/matriculapp/enrollment-api/pkg/response"
)

type stageService interface {
	Advance(ctx context.Context, studentID string, req dto.AdvanceStageRequest, actor *models.JWTClaims) (*models.Student, error)
}

// StageHandler exposes the enrollment stage pipeline.
type StageHandler struct {
	service stageService
}

// NewStageHandler constructs the handler.
func NewStageHandler(service stageService) *StageHandler {
	return &StageHandler{service: service}
}

// Advance godoc
// @Summary Move a student to another enrollment stage
// @Tags Stages
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body dto.AdvanceStageRequest true "Target stage"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/stage [post]
func (h *StageHandler) Advance(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "stage service not configured"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.AdvanceStageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid stage payload"))
		return
	}
	student, err := h.service.Advance(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	result := dto.StageResponse{
		StudentID:    student.ID,
		CurrentStage: student.EnrollmentStage,
	}
	if next, ok := models.NextStage(student.EnrollmentStage); ok {
		result.NextStage = next
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Stages godoc
// @Summary List the ordered enrollment stages
// @Tags Stages
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /stages [get]
func (h *StageHandler) Stages(c *gin.Context) {
	response.JSON(c, http.StatusOK, models.Stages(), nil)
}

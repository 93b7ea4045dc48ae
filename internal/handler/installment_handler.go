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

type installmentService interface {
	Create(ctx context.Context, req dto.CreateInstallmentRequest, actor *models.JWTClaims) (*models.Installment, error)
	ListByStudent(ctx context.Context, studentID string, actor *models.JWTClaims) ([]models.Installment, error)
}

// InstallmentHandler exposes the payment schedule.
type InstallmentHandler struct {
	service installmentService
}

// NewInstallmentHandler constructs the handler.
func NewInstallmentHandler(service installmentService) *InstallmentHandler {
	return &InstallmentHandler{service: service}
}

// Create godoc
// @Summary Schedule a payment installment
// @Tags Installments
// @Accept json
// @Produce json
// @Param payload body dto.CreateInstallmentRequest true "Installment payload"
// @Success 201 {object} response.Envelope
// @Router /installments [post]
func (h *InstallmentHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CreateInstallmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid installment payload"))
		return
	}
	installment, err := h.service.Create(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, installment, nil)
}

// ListByStudent godoc
// @Summary List a student's installments
// @Tags Installments
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/installments [get]
func (h *InstallmentHandler) ListByStudent(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	installments, err := h.service.ListByStudent(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, installments, nil)
}

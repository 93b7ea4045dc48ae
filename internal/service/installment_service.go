package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/matriculapp/enrollment-api/internal/dto"
	"github.com/matriculapp/enrollment-api/internal/models"
	"github.com/matriculapp/enrollment-api/internal/repository"
	appErrors "github.com/matriculapp/enrollment-api/pkg/errors"
)

// InstallmentService manages the payment schedule. Installment status is
// driven by the review engine once supports start flowing; this service
// only schedules and lists.
type InstallmentService struct {
	uow       repository.UnitOfWork
	validator *validator.Validate
	logger    *zap.Logger
}

// NewInstallmentService constructs InstallmentService.
func NewInstallmentService(uow repository.UnitOfWork, validate *validator.Validate, logger *zap.Logger) *InstallmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InstallmentService{uow: uow, validator: validate, logger: logger}
}

// Create schedules a new installment for a student. Staff only.
func (s *InstallmentService) Create(ctx context.Context, req dto.CreateInstallmentRequest, actor *models.JWTClaims) (*models.Installment, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid installment payload")
	}

	var created *models.Installment
	err := s.uow.WithinTx(ctx, func(r repository.Repos) error {
		if _, err := r.Students.FindByID(ctx, req.StudentID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "student not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
		}
		installment := &models.Installment{
			StudentID: req.StudentID,
			Number:    req.Number,
			Amount:    req.Amount,
			DueDate:   req.DueDate,
			Status:    models.InstallmentPendiente,
		}
		if err := r.Installments.Create(ctx, installment); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create installment")
		}
		created = installment
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// ListByStudent returns a student's installments in schedule order.
// Students only see their own schedule.
func (s *InstallmentService) ListByStudent(ctx context.Context, studentID string, actor *models.JWTClaims) ([]models.Installment, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}

	var installments []models.Installment
	err := s.uow.WithinTx(ctx, func(r repository.Repos) error {
		student, err := r.Students.FindByID(ctx, studentID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "student not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
		}
		if actor.Role == models.RoleEstudiante && student.UserID != actor.UserID {
			return appErrors.ErrForbidden
		}
		installments, err = r.Installments.ListByStudent(ctx, student.ID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list installments")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Overdue status is derived at read time; the stored row stays
	// PENDIENTE until a support is approved.
	now := time.Now().UTC()
	for i := range installments {
		if installments[i].Overdue(now) {
			installments[i].Status = models.InstallmentVencida
		}
	}
	return installments, nil
}

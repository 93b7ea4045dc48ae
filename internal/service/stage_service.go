package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/matriculapp/enrollment-api/internal/dto"
	"github.com/matriculapp/enrollment-api/internal/models"
	"github.com/matriculapp/enrollment-api/internal/repository"
	appErrors "github.com/matriculapp/enrollment-api/pkg/errors"
)

type stageNotifier interface {
	Dispatch(ctx context.Context, r repository.Repos, notification *models.Notification) error
}

type stageMetrics interface {
	ObserveStageTransition(from, to models.EnrollmentStage, overridden bool)
}

// StageService owns the authoritative enrollment stage per student and
// enforces valid transitions. Every transition runs inside one database
// transaction: precondition reads, the conditional stage write, the
// history append, and the notification all commit or roll back together.
type StageService struct {
	uow       repository.UnitOfWork
	notifier  stageNotifier
	metrics   stageMetrics
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStageService constructs StageService.
func NewStageService(uow repository.UnitOfWork, notifier stageNotifier, metrics stageMetrics, validate *validator.Validate, logger *zap.Logger) *StageService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StageService{uow: uow, notifier: notifier, metrics: metrics, validator: validate, logger: logger}
}

// Advance moves a student to the target stage. Non-override transitions
// must target the immediate successor; SUPERUSER may jump forward or
// backward, tagged OVERRIDDEN. Backward jumps are reverts and always
// require override capability.
func (s *StageService) Advance(ctx context.Context, studentID string, req dto.AdvanceStageRequest, actor *models.JWTClaims) (*models.Student, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !actor.Role.IsStaff() {
		return nil, appErrors.ErrForbidden
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid stage payload")
	}
	if !models.IsValidStage(req.TargetStage) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown stage: %s", req.TargetStage))
	}

	var updated *models.Student
	err := s.uow.WithinTx(ctx, func(r repository.Repos) error {
		student, err := r.Students.FindByID(ctx, studentID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "student not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
		}

		currentIdx := models.StageIndex(student.EnrollmentStage)
		targetIdx := models.StageIndex(req.TargetStage)
		forwardByOne := targetIdx == currentIdx+1
		reverted := targetIdx < currentIdx

		if !forwardByOne && !actor.Role.CanOverride() {
			return appErrors.Clone(appErrors.ErrOutOfOrderTransition,
				fmt.Sprintf("cannot move from %s to %s", student.EnrollmentStage, req.TargetStage))
		}
		if targetIdx == currentIdx {
			return appErrors.Clone(appErrors.ErrOutOfOrderTransition,
				fmt.Sprintf("student already in stage %s", req.TargetStage))
		}

		overridden := !forwardByOne

		// Non-overridden entry into DOCUMENTOS_COMPLETOS requires the
		// full document checklist approved, read in this transaction.
		if !overridden && req.TargetStage == models.StageDocumentosCompletos {
			missing, err := missingDocumentTypes(ctx, r, student.ID)
			if err != nil {
				return err
			}
			if len(missing) > 0 {
				return appErrors.Clone(appErrors.ErrPreconditionNotMet,
					fmt.Sprintf("documents not yet approved: %s", joinDocumentTypes(missing)))
			}
		}

		if err := s.commitTransition(ctx, r, student, req.TargetStage, actor.UserID, req.Comments, overridden, reverted); err != nil {
			return err
		}

		student.EnrollmentStage = req.TargetStage
		updated = student
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// TryAutoAdvance is called by the review engine, inside its transaction,
// after a document approval. When the full checklist is approved and the
// student is still at SUSCRITO, the student advances to
// DOCUMENTOS_COMPLETOS automatically. Students already past that stage are
// left alone.
func (s *StageService) TryAutoAdvance(ctx context.Context, r repository.Repos, student *models.Student, changedBy string) error {
	if student.EnrollmentStage != models.StageSuscrito {
		return nil
	}
	missing, err := missingDocumentTypes(ctx, r, student.ID)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return nil
	}
	if err := s.commitTransition(ctx, r, student, models.StageDocumentosCompletos, changedBy,
		"all required documents approved", false, false); err != nil {
		return err
	}
	student.EnrollmentStage = models.StageDocumentosCompletos
	return nil
}

// commitTransition performs the conditional stage write, appends the
// ledger entry, and dispatches the stage notification.
func (s *StageService) commitTransition(ctx context.Context, r repository.Repos, student *models.Student, target models.EnrollmentStage, changedBy, comments string, overridden, reverted bool) error {
	ok, err := r.Students.UpdateStageIf(ctx, student.ID, student.EnrollmentStage, target)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update stage")
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrConflict, "stage changed concurrently")
	}

	validation := models.ValidationApproved
	if overridden {
		validation = models.ValidationOverridden
	}
	entry := &models.StageHistoryEntry{
		StudentID:        student.ID,
		PreviousStage:    student.EnrollmentStage,
		NewStage:         target,
		ChangedBy:        changedBy,
		Comments:         comments,
		ValidationStatus: validation,
		Reverted:         reverted,
	}
	if err := r.History.Append(ctx, entry); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to write stage history")
	}

	if s.notifier != nil {
		title := fmt.Sprintf("Tu etapa de matrícula cambió a %s", target)
		if reverted {
			title = fmt.Sprintf("Tu etapa de matrícula fue revertida a %s", target)
		}
		notification := &models.Notification{
			UserID: student.UserID,
			Title:  title,
			Body:   comments,
			Type:   models.NotificationStage,
			Link:   fmt.Sprintf("/students/%s/stage", student.ID),
		}
		if err := s.notifier.Dispatch(ctx, r, notification); err != nil {
			return err
		}
	}

	if s.metrics != nil {
		s.metrics.ObserveStageTransition(student.EnrollmentStage, target, overridden)
	}
	return nil
}

// missingDocumentTypes returns required document kinds without an approved
// submission, in checklist order.
func missingDocumentTypes(ctx context.Context, r repository.Repos, studentID string) ([]models.DocumentType, error) {
	approved, err := r.Submissions.ApprovedDocumentTypes(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load approved documents")
	}
	var missing []models.DocumentType
	for _, t := range models.RequiredDocumentTypes {
		if !approved[t] {
			missing = append(missing, t)
		}
	}
	return missing, nil
}

func joinDocumentTypes(types []models.DocumentType) string {
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = string(t)
	}
	return strings.Join(parts, ", ")
}

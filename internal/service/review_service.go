package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/matriculapp/enrollment-api/internal/dto"
	"github.com/matriculapp/enrollment-api/internal/models"
	"github.com/matriculapp/enrollment-api/internal/repository"
	appErrors "github.com/matriculapp/enrollment-api/pkg/errors"
)

type reviewNotifier interface {
	Dispatch(ctx context.Context, r repository.Repos, notification *models.Notification) error
}

type stageAdvancer interface {
	TryAutoAdvance(ctx context.Context, r repository.Repos, student *models.Student, changedBy string) error
}

type reviewMetrics interface {
	ObserveReview(kind models.SubmissionKind, outcome models.ReviewStatus)
}

// ReviewService applies the shared submission lifecycle to every kind:
// pending → in_review → approved | rejected, plus the resubmission path
// that replaces a rejected record with a fresh pending one. All decisions
// run inside one transaction together with their side effects.
type ReviewService struct {
	uow       repository.UnitOfWork
	notifier  reviewNotifier
	stages    stageAdvancer
	metrics   reviewMetrics
	validator *validator.Validate
	logger    *zap.Logger
}

// NewReviewService constructs ReviewService.
func NewReviewService(uow repository.UnitOfWork, notifier reviewNotifier, stages stageAdvancer, metrics reviewMetrics, validate *validator.Validate, logger *zap.Logger) *ReviewService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReviewService{uow: uow, notifier: notifier, stages: stages, metrics: metrics, validator: validate, logger: logger}
}

// SubmitDocument creates a pending document submission for the actor's
// student record.
func (s *ReviewService) SubmitDocument(ctx context.Context, req dto.CreateDocumentRequest, actor *models.JWTClaims) (*models.Submission, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid document payload")
	}
	if !models.IsValidDocumentType(req.DocumentType) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown document type: %s", req.DocumentType))
	}

	var created *models.Submission
	err := s.uow.WithinTx(ctx, func(r repository.Repos) error {
		student, err := s.studentForActor(ctx, r, actor)
		if err != nil {
			return err
		}
		docType := req.DocumentType
		fileRef := req.FileRef
		submission := &models.Submission{
			StudentID:    student.ID,
			Kind:         models.KindDocument,
			Status:       models.StatusPending,
			DocumentType: &docType,
			FileRef:      &fileRef,
		}
		if err := r.Submissions.Create(ctx, submission); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create document submission")
		}
		created = submission
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// SubmitSupport creates a pending payment-support submission tied to an
// installment and moves the installment to EN_VERIFICACION.
func (s *ReviewService) SubmitSupport(ctx context.Context, req dto.CreateSupportRequest, actor *models.JWTClaims) (*models.Submission, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid support payload")
	}

	var created *models.Submission
	err := s.uow.WithinTx(ctx, func(r repository.Repos) error {
		student, err := s.studentForActor(ctx, r, actor)
		if err != nil {
			return err
		}
		installment, err := r.Installments.FindByID(ctx, req.InstallmentID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "installment not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load installment")
		}
		if installment.StudentID != student.ID {
			return appErrors.ErrForbidden
		}
		if installment.Status == models.InstallmentPagada {
			return appErrors.Clone(appErrors.ErrConflict, "installment already paid")
		}

		installmentID := installment.ID
		amount := req.Amount
		dueDate := installment.DueDate
		fileRef := req.FileRef
		submission := &models.Submission{
			StudentID:     student.ID,
			Kind:          models.KindInstallmentSupport,
			Status:        models.StatusPending,
			InstallmentID: &installmentID,
			Amount:        &amount,
			DueDate:       &dueDate,
			FileRef:       &fileRef,
		}
		if err := r.Submissions.Create(ctx, submission); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create support submission")
		}
		if err := r.Installments.UpdateStatus(ctx, installment.ID, models.InstallmentEnVerificacion, nil); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update installment")
		}
		created = submission
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// SubmitRequest creates a pending administrative request.
func (s *ReviewService) SubmitRequest(ctx context.Context, req dto.CreateRequestRequest, actor *models.JWTClaims) (*models.Submission, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request payload")
	}

	var created *models.Submission
	err := s.uow.WithinTx(ctx, func(r repository.Repos) error {
		student, err := s.studentForActor(ctx, r, actor)
		if err != nil {
			return err
		}
		subject := strings.TrimSpace(req.Subject)
		message := strings.TrimSpace(req.Message)
		submission := &models.Submission{
			StudentID: student.ID,
			Kind:      models.KindRequest,
			Status:    models.StatusPending,
			Subject:   &subject,
			Message:   &message,
		}
		if err := r.Submissions.Create(ctx, submission); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create request submission")
		}
		created = submission
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Open moves a pending submission into the transient IN_REVIEW state. The
// state is optional: approve and reject accept pending records directly.
func (s *ReviewService) Open(ctx context.Context, id string, actor *models.JWTClaims) (*models.Submission, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}

	var opened *models.Submission
	err := s.uow.WithinTx(ctx, func(r repository.Repos) error {
		submission, err := s.loadSubmission(ctx, r, id)
		if err != nil {
			return err
		}
		if submission.Status != models.StatusPending {
			return appErrors.Clone(appErrors.ErrInvalidStateTransition,
				fmt.Sprintf("cannot open submission in status %s", submission.Status))
		}
		now := time.Now().UTC()
		ok, err := r.Submissions.UpdateReview(ctx, repository.ReviewUpdateParams{
			ID:         submission.ID,
			Status:     models.StatusInReview,
			ReviewedBy: actor.UserID,
			ReviewedAt: now,
		})
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open submission")
		}
		if !ok {
			return appErrors.ErrInvalidStateTransition
		}
		submission.Status = models.StatusInReview
		submission.ReviewedBy = &actor.UserID
		submission.ReviewedAt = &now
		opened = submission
		return nil
	})
	if err != nil {
		return nil, err
	}
	return opened, nil
}

// Approve applies an approving review decision. Approving the final
// missing document kind triggers the automatic DOCUMENTOS_COMPLETOS
// advancement inside the same transaction; approving a payment support
// marks its installment PAGADA.
func (s *ReviewService) Approve(ctx context.Context, id string, req dto.ApproveSubmissionRequest, actor *models.JWTClaims) (*models.Submission, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}

	var approved *models.Submission
	err := s.uow.WithinTx(ctx, func(r repository.Repos) error {
		submission, err := s.loadSubmission(ctx, r, id)
		if err != nil {
			return err
		}
		if !submission.Reviewable() {
			return appErrors.Clone(appErrors.ErrInvalidStateTransition,
				fmt.Sprintf("submission already in terminal status %s", submission.Status))
		}

		now := time.Now().UTC()
		params := repository.ReviewUpdateParams{
			ID:         submission.ID,
			Status:     models.StatusApproved,
			ReviewedBy: actor.UserID,
			ReviewedAt: now,
		}
		if submission.Kind == models.KindRequest && strings.TrimSpace(req.Response) != "" {
			response := strings.TrimSpace(req.Response)
			params.Response = &response
		}
		ok, err := r.Submissions.UpdateReview(ctx, params)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve submission")
		}
		if !ok {
			return appErrors.ErrInvalidStateTransition
		}
		submission.Status = models.StatusApproved
		submission.ReviewedBy = &actor.UserID
		submission.ReviewedAt = &now
		submission.Response = params.Response

		student, err := r.Students.FindByID(ctx, submission.StudentID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
		}

		if err := s.notifier.Dispatch(ctx, r, &models.Notification{
			UserID: student.UserID,
			Title:  approvalTitle(submission),
			Body:   approvalBody(submission),
			Type:   notificationTypeFor(submission.Kind),
			Link:   fmt.Sprintf("/submissions/%s", submission.ID),
		}); err != nil {
			return err
		}

		switch submission.Kind {
		case models.KindDocument:
			if s.stages != nil {
				if err := s.stages.TryAutoAdvance(ctx, r, student, actor.UserID); err != nil {
					return err
				}
			}
		case models.KindInstallmentSupport:
			if submission.InstallmentID != nil {
				if err := r.Installments.UpdateStatus(ctx, *submission.InstallmentID, models.InstallmentPagada, &now); err != nil {
					return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update installment")
				}
			}
		}

		approved = submission
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.ObserveReview(approved.Kind, models.StatusApproved)
	}
	return approved, nil
}

// Reject applies a rejecting review decision. A non-empty reason is
// mandatory and travels verbatim in the student's notification.
func (s *ReviewService) Reject(ctx context.Context, id string, req dto.RejectSubmissionRequest, actor *models.JWTClaims) (*models.Submission, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "rejection reason is required")
	}

	var rejected *models.Submission
	err := s.uow.WithinTx(ctx, func(r repository.Repos) error {
		submission, err := s.loadSubmission(ctx, r, id)
		if err != nil {
			return err
		}
		if !submission.Reviewable() {
			return appErrors.Clone(appErrors.ErrInvalidStateTransition,
				fmt.Sprintf("submission already in terminal status %s", submission.Status))
		}

		now := time.Now().UTC()
		ok, err := r.Submissions.UpdateReview(ctx, repository.ReviewUpdateParams{
			ID:              submission.ID,
			Status:          models.StatusRejected,
			RejectionReason: &reason,
			ReviewedBy:      actor.UserID,
			ReviewedAt:      now,
		})
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reject submission")
		}
		if !ok {
			return appErrors.ErrInvalidStateTransition
		}
		submission.Status = models.StatusRejected
		submission.RejectionReason = &reason
		submission.ReviewedBy = &actor.UserID
		submission.ReviewedAt = &now

		student, err := r.Students.FindByID(ctx, submission.StudentID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
		}

		if err := s.notifier.Dispatch(ctx, r, &models.Notification{
			UserID: student.UserID,
			Title:  rejectionTitle(submission),
			Body:   fmt.Sprintf("Motivo: %s", reason),
			Type:   notificationTypeFor(submission.Kind),
			Link:   fmt.Sprintf("/submissions/%s", submission.ID),
		}); err != nil {
			return err
		}

		if submission.Kind == models.KindInstallmentSupport && submission.InstallmentID != nil {
			if err := r.Installments.UpdateStatus(ctx, *submission.InstallmentID, models.InstallmentPendiente, nil); err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update installment")
			}
		}

		rejected = submission
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.ObserveReview(rejected.Kind, models.StatusRejected)
	}
	return rejected, nil
}

// Resubmit replaces a rejected submission with a fresh pending record of
// the same kind. The rejected original keeps its status and rejection
// reason and is flagged superseded; each rejected record may be replaced
// exactly once.
func (s *ReviewService) Resubmit(ctx context.Context, id string, req dto.ResubmitRequest, actor *models.JWTClaims) (*models.Submission, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}

	var created *models.Submission
	err := s.uow.WithinTx(ctx, func(r repository.Repos) error {
		original, err := s.loadSubmission(ctx, r, id)
		if err != nil {
			return err
		}
		student, err := s.studentForActor(ctx, r, actor)
		if err != nil {
			return err
		}
		if original.StudentID != student.ID {
			return appErrors.ErrForbidden
		}
		if original.Status != models.StatusRejected {
			return appErrors.Clone(appErrors.ErrInvalidStateTransition,
				fmt.Sprintf("only rejected submissions can be resubmitted, status is %s", original.Status))
		}
		if original.Superseded {
			return appErrors.Clone(appErrors.ErrConflict, "submission already resubmitted")
		}

		successor := &models.Submission{
			StudentID:      original.StudentID,
			Kind:           original.Kind,
			Status:         models.StatusPending,
			ResubmissionOf: &original.ID,
		}
		switch original.Kind {
		case models.KindDocument:
			if req.FileRef == "" {
				return appErrors.Clone(appErrors.ErrValidation, "replacement file is required")
			}
			fileRef := req.FileRef
			successor.DocumentType = original.DocumentType
			successor.FileRef = &fileRef
		case models.KindInstallmentSupport:
			if req.FileRef == "" {
				return appErrors.Clone(appErrors.ErrValidation, "replacement file is required")
			}
			fileRef := req.FileRef
			successor.InstallmentID = original.InstallmentID
			successor.Amount = original.Amount
			successor.DueDate = original.DueDate
			successor.FileRef = &fileRef
			if original.InstallmentID != nil {
				if err := r.Installments.UpdateStatus(ctx, *original.InstallmentID, models.InstallmentEnVerificacion, nil); err != nil {
					return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update installment")
				}
			}
		case models.KindRequest:
			message := strings.TrimSpace(req.Message)
			if message == "" {
				return appErrors.Clone(appErrors.ErrValidation, "message is required")
			}
			successor.Subject = original.Subject
			successor.Message = &message
		}

		if err := r.Submissions.Create(ctx, successor); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create resubmission")
		}
		if err := r.Submissions.MarkSuperseded(ctx, original.ID); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark original superseded")
		}
		created = successor
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.ObserveReview(created.Kind, models.StatusResubmitted)
	}
	return created, nil
}

// Get returns one submission. Students only see their own records.
func (s *ReviewService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.Submission, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}

	var found *models.Submission
	err := s.uow.WithinTx(ctx, func(r repository.Repos) error {
		submission, err := s.loadSubmission(ctx, r, id)
		if err != nil {
			return err
		}
		if actor.Role == models.RoleEstudiante {
			student, err := s.studentForActor(ctx, r, actor)
			if err != nil {
				return err
			}
			if submission.StudentID != student.ID {
				return appErrors.ErrForbidden
			}
		}
		found = submission
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// List returns submissions visible to the actor. Students are always
// scoped to their own records.
func (s *ReviewService) List(ctx context.Context, query dto.SubmissionQuery, actor *models.JWTClaims) ([]models.Submission, *models.Pagination, error) {
	if actor == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}

	var submissions []models.Submission
	var total int
	err := s.uow.WithinTx(ctx, func(r repository.Repos) error {
		filter := models.SubmissionFilter{
			StudentID: query.StudentID,
			Kind:      query.Kind,
			Status:    query.Status,
			Page:      query.Page,
			PageSize:  query.PageSize,
		}
		if actor.Role == models.RoleEstudiante {
			student, err := s.studentForActor(ctx, r, actor)
			if err != nil {
				return err
			}
			filter.StudentID = student.ID
		}
		var err error
		submissions, total, err = r.Submissions.List(ctx, filter)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list submissions")
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	page := query.Page
	if page < 1 {
		page = 1
	}
	size := query.PageSize
	if size <= 0 {
		size = 20
	}
	return submissions, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Checklist reports review progress for the fixed document checklist.
func (s *ReviewService) Checklist(ctx context.Context, studentID string, actor *models.JWTClaims) ([]dto.SubmissionChecklistItem, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}

	var items []dto.SubmissionChecklistItem
	err := s.uow.WithinTx(ctx, func(r repository.Repos) error {
		if actor.Role == models.RoleEstudiante {
			student, err := s.studentForActor(ctx, r, actor)
			if err != nil {
				return err
			}
			if student.ID != studentID {
				return appErrors.ErrForbidden
			}
		}
		rows, err := r.Submissions.DocumentChecklist(ctx, studentID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load checklist")
		}
		byType := make(map[models.DocumentType]repository.DocumentChecklistRow, len(rows))
		for _, row := range rows {
			byType[row.DocumentType] = row
		}
		items = make([]dto.SubmissionChecklistItem, 0, len(models.RequiredDocumentTypes))
		for _, t := range models.RequiredDocumentTypes {
			item := dto.SubmissionChecklistItem{DocumentType: t}
			if row, ok := byType[t]; ok {
				item.Status = row.Status
				item.SubmissionID = row.SubmissionID
				item.ReviewedAt = row.ReviewedAt
			}
			items = append(items, item)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *ReviewService) loadSubmission(ctx context.Context, r repository.Repos, id string) (*models.Submission, error) {
	submission, err := r.Submissions.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}
	return submission, nil
}

func (s *ReviewService) studentForActor(ctx context.Context, r repository.Repos, actor *models.JWTClaims) (*models.Student, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	student, err := r.Students.FindByUserID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student profile not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

func requireStaff(actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if !actor.Role.IsStaff() {
		return appErrors.ErrForbidden
	}
	return nil
}

func notificationTypeFor(kind models.SubmissionKind) models.NotificationType {
	switch kind {
	case models.KindDocument, models.KindInstallmentSupport:
		return models.NotificationDocument
	case models.KindRequest:
		return models.NotificationRequest
	default:
		return models.NotificationGeneral
	}
}

func approvalTitle(submission *models.Submission) string {
	switch submission.Kind {
	case models.KindDocument:
		if submission.DocumentType != nil {
			return fmt.Sprintf("Documento %s aprobado", *submission.DocumentType)
		}
		return "Documento aprobado"
	case models.KindInstallmentSupport:
		return "Soporte de pago aprobado"
	default:
		if submission.Subject != nil {
			return fmt.Sprintf("Solicitud completada: %s", *submission.Subject)
		}
		return "Solicitud completada"
	}
}

func approvalBody(submission *models.Submission) string {
	if submission.Kind == models.KindRequest && submission.Response != nil {
		return *submission.Response
	}
	return "Tu envío fue aprobado."
}

func rejectionTitle(submission *models.Submission) string {
	switch submission.Kind {
	case models.KindDocument:
		if submission.DocumentType != nil {
			return fmt.Sprintf("Documento %s rechazado", *submission.DocumentType)
		}
		return "Documento rechazado"
	case models.KindInstallmentSupport:
		return "Soporte de pago rechazado"
	default:
		if submission.Subject != nil {
			return fmt.Sprintf("Solicitud rechazada: %s", *submission.Subject)
		}
		return "Solicitud rechazada"
	}
}

package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/matriculapp/enrollment-api/internal/dto"
	"github.com/matriculapp/enrollment-api/internal/models"
	"github.com/matriculapp/enrollment-api/internal/repository"
	appErrors "github.com/matriculapp/enrollment-api/pkg/errors"
)

// StudentService manages enrollee profiles and their read models.
type StudentService struct {
	uow       repository.UnitOfWork
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs StudentService.
func NewStudentService(uow repository.UnitOfWork, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{uow: uow, validator: validate, logger: logger}
}

// Register creates the identity and the student profile in one transaction.
// New students always start at the SUSCRITO stage.
func (s *StudentService) Register(ctx context.Context, req dto.CreateStudentRequest, actor *models.JWTClaims) (*models.Student, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	var created *models.Student
	err = s.uow.WithinTx(ctx, func(r repository.Repos) error {
		user := &models.User{
			Email:        strings.ToLower(strings.TrimSpace(req.Email)),
			PasswordHash: string(hash),
			FullName:     req.FullName,
			Role:         models.RoleEstudiante,
			Active:       true,
		}
		if err := r.Users.Create(ctx, user); err != nil {
			if isUniqueViolation(err) {
				return appErrors.Clone(appErrors.ErrConflict, "email already registered")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
		}
		student := &models.Student{
			UserID:          user.ID,
			FullName:        req.FullName,
			DocumentNumber:  req.DocumentNumber,
			Phone:           req.Phone,
			Program:         req.Program,
			EnrollmentStage: models.StageSuscrito,
			Active:          true,
		}
		if err := r.Students.Create(ctx, student); err != nil {
			if isUniqueViolation(err) {
				return appErrors.Clone(appErrors.ErrConflict, "document number already registered")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
		}
		created = student
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("student registered",
		zap.String("student_id", created.ID),
		zap.String("program", created.Program))
	return created, nil
}

// Get returns one student. Students only see their own profile.
func (s *StudentService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.Student, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}

	var found *models.Student
	err := s.uow.WithinTx(ctx, func(r repository.Repos) error {
		student, err := r.Students.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "student not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
		}
		if actor.Role == models.RoleEstudiante && student.UserID != actor.UserID {
			return appErrors.ErrForbidden
		}
		found = student
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// Me returns the student profile anchored to the actor's identity.
func (s *StudentService) Me(ctx context.Context, actor *models.JWTClaims) (*models.Student, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}

	var found *models.Student
	err := s.uow.WithinTx(ctx, func(r repository.Repos) error {
		student, err := r.Students.FindByUserID(ctx, actor.UserID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "student profile not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
		}
		found = student
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// List returns students matching the filter. Staff only.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter, actor *models.JWTClaims) ([]models.Student, *models.Pagination, error) {
	if err := requireStaff(actor); err != nil {
		return nil, nil, err
	}

	var students []models.Student
	var total int
	err := s.uow.WithinTx(ctx, func(r repository.Repos) error {
		var err error
		students, total, err = r.Students.List(ctx, filter)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return students, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Summary returns the stage plus open/rejected submission counts, the
// numbers a reviewer needs before opening the full record.
func (s *StudentService) Summary(ctx context.Context, studentID string, actor *models.JWTClaims) (*models.StudentSummary, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}

	var summary *models.StudentSummary
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
		pending, err := r.Submissions.CountByStatus(ctx, student.ID, models.StatusPending)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count pending submissions")
		}
		rejected, err := r.Submissions.CountByStatus(ctx, student.ID, models.StatusRejected)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count rejected submissions")
		}
		summary = &models.StudentSummary{
			StudentID:       student.ID,
			FullName:        student.FullName,
			EnrollmentStage: student.EnrollmentStage,
			PendingCount:    pending,
			RejectedCount:   rejected,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return summary, nil
}

// History returns the student's stage ledger, newest first.
func (s *StudentService) History(ctx context.Context, studentID string, actor *models.JWTClaims) ([]models.StageHistoryEntry, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}

	var entries []models.StageHistoryEntry
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
		entries, err = r.History.ListByStudent(ctx, student.ID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load stage history")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/matriculapp/enrollment-api/internal/models"
)

// StudentStore persists students. The stage column is only written through
// UpdateStageIf so concurrent transitions cannot clobber each other.
type StudentStore interface {
	Create(ctx context.Context, student *models.Student) error
	FindByID(ctx context.Context, id string) (*models.Student, error)
	FindByUserID(ctx context.Context, userID string) (*models.Student, error)
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	UpdateStageIf(ctx context.Context, id string, from, to models.EnrollmentStage) (bool, error)
}

// SubmissionStore persists the polymorphic submission family.
type SubmissionStore interface {
	Create(ctx context.Context, submission *models.Submission) error
	FindByID(ctx context.Context, id string) (*models.Submission, error)
	List(ctx context.Context, filter models.SubmissionFilter) ([]models.Submission, int, error)
	UpdateReview(ctx context.Context, params ReviewUpdateParams) (bool, error)
	MarkSuperseded(ctx context.Context, id string) error
	ApprovedDocumentTypes(ctx context.Context, studentID string) (map[models.DocumentType]bool, error)
	DocumentChecklist(ctx context.Context, studentID string) ([]DocumentChecklistRow, error)
	CountByStatus(ctx context.Context, studentID string, status models.ReviewStatus) (int, error)
}

// InstallmentStore persists payment installments.
type InstallmentStore interface {
	Create(ctx context.Context, installment *models.Installment) error
	FindByID(ctx context.Context, id string) (*models.Installment, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.Installment, error)
	UpdateStatus(ctx context.Context, id string, status models.InstallmentStatus, paidAt *time.Time) error
}

// StageHistoryStore is the append-only stage ledger. There is deliberately
// no update or delete operation.
type StageHistoryStore interface {
	Append(ctx context.Context, entry *models.StageHistoryEntry) error
	ListByStudent(ctx context.Context, studentID string) ([]models.StageHistoryEntry, error)
}

// UserStore persists application users.
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id string, ts time.Time) error
}

// NotificationStore persists per-user notifications.
type NotificationStore interface {
	Create(ctx context.Context, notification *models.Notification) error
	FindByID(ctx context.Context, id string) (*models.Notification, error)
	ListByUser(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error)
	MarkRead(ctx context.Context, id, userID string) (bool, error)
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	CountUnread(ctx context.Context, userID string) (int, error)
}

// Repos bundles the stores participating in a unit of work. Inside
// UnitOfWork.WithinTx every store runs on the same transaction, so
// precondition reads and dependent writes are atomic.
type Repos struct {
	Users         UserStore
	Students      StudentStore
	Submissions   SubmissionStore
	Installments  InstallmentStore
	History       StageHistoryStore
	Notifications NotificationStore
}

// UnitOfWork executes a function with transaction-bound repositories.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(r Repos) error) error
}

// SqlxUnitOfWork implements UnitOfWork over a sqlx database handle.
type SqlxUnitOfWork struct {
	db *sqlx.DB
}

// NewSqlxUnitOfWork constructs the unit of work.
func NewSqlxUnitOfWork(db *sqlx.DB) *SqlxUnitOfWork {
	return &SqlxUnitOfWork{db: db}
}

// WithinTx begins a transaction, builds tx-bound repos, and commits when fn
// succeeds. Any error rolls the whole transaction back; no partial writes
// survive.
func (u *SqlxUnitOfWork) WithinTx(ctx context.Context, fn func(r Repos) error) error {
	tx, err := u.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	repos := NewRepos(tx)
	if err := fn(repos); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// NewRepos builds the repository bundle over any sqlx executor (database
// handle or transaction).
func NewRepos(ext sqlx.ExtContext) Repos {
	return Repos{
		Users:         &UserRepository{ext: ext},
		Students:      &StudentRepository{ext: ext},
		Submissions:   &SubmissionRepository{ext: ext},
		Installments:  &InstallmentRepository{ext: ext},
		History:       &StageHistoryRepository{ext: ext},
		Notifications: &NotificationRepository{ext: ext},
	}
}

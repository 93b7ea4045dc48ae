package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/matriculapp/enrollment-api/internal/models"
)

// SubmissionRepository handles persistence of the submission family.
type SubmissionRepository struct {
	ext sqlx.ExtContext
}

// NewSubmissionRepository constructs the repository.
func NewSubmissionRepository(db *sqlx.DB) *SubmissionRepository {
	return &SubmissionRepository{ext: db}
}

const submissionColumns = `id, student_id, kind, status, document_type, file_ref, installment_id, amount, due_date,
        subject, message, response, rejection_reason, reviewed_by, reviewed_at, resubmission_of, superseded, created_at`

// ReviewUpdateParams captures a review decision write. The update is
// conditional on the record still being reviewable, so terminal records
// cannot be reviewed twice.
type ReviewUpdateParams struct {
	ID              string
	Status          models.ReviewStatus
	RejectionReason *string
	Response        *string
	ReviewedBy      string
	ReviewedAt      time.Time
}

// Create persists a new submission record.
func (r *SubmissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	if submission.ID == "" {
		submission.ID = uuid.NewString()
	}
	if submission.CreatedAt.IsZero() {
		submission.CreatedAt = time.Now().UTC()
	}
	if submission.Status == "" {
		submission.Status = models.StatusPending
	}
	const query = `INSERT INTO submissions (id, student_id, kind, status, document_type, file_ref, installment_id, amount, due_date,
        subject, message, response, rejection_reason, reviewed_by, reviewed_at, resubmission_of, superseded, created_at)
        VALUES (:id, :student_id, :kind, :status, :document_type, :file_ref, :installment_id, :amount, :due_date,
        :subject, :message, :response, :rejection_reason, :reviewed_by, :reviewed_at, :resubmission_of, :superseded, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.ext, query, submission); err != nil {
		return fmt.Errorf("create submission: %w", err)
	}
	return nil
}

// FindByID returns a submission by its ID.
func (r *SubmissionRepository) FindByID(ctx context.Context, id string) (*models.Submission, error) {
	query := fmt.Sprintf(`SELECT %s FROM submissions WHERE id = $1`, submissionColumns)
	var submission models.Submission
	if err := sqlx.GetContext(ctx, r.ext, &submission, query, id); err != nil {
		return nil, err
	}
	return &submission, nil
}

// List returns submissions filtered by the provided criteria.
func (r *SubmissionRepository) List(ctx context.Context, filter models.SubmissionFilter) ([]models.Submission, int, error) {
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.Kind != "" {
		conditions = append(conditions, fmt.Sprintf("kind = $%d", len(args)+1))
		args = append(args, filter.Kind)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s FROM submissions%s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		submissionColumns, clause, size, offset)

	var submissions []models.Submission
	if err := sqlx.SelectContext(ctx, r.ext, &submissions, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list submissions: %w", err)
	}

	countQuery := "SELECT COUNT(*) FROM submissions" + clause
	var total int
	if err := sqlx.GetContext(ctx, r.ext, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count submissions: %w", err)
	}
	return submissions, total, nil
}

// UpdateReview writes a review decision. The WHERE clause restricts the
// update to reviewable statuses; a false return means the record was
// already terminal.
func (r *SubmissionRepository) UpdateReview(ctx context.Context, params ReviewUpdateParams) (bool, error) {
	const query = `UPDATE submissions
        SET status = $2, rejection_reason = $3, response = $4, reviewed_by = $5, reviewed_at = $6
        WHERE id = $1 AND status IN ($7, $8)`
	result, err := r.ext.ExecContext(ctx, query,
		params.ID, params.Status, params.RejectionReason, params.Response, params.ReviewedBy, params.ReviewedAt,
		models.StatusPending, models.StatusInReview)
	if err != nil {
		return false, fmt.Errorf("update submission review: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update submission review: %w", err)
	}
	return affected == 1, nil
}

// MarkSuperseded flags a rejected submission as replaced by a resubmission.
// Status and rejection reason are left untouched so the audit trail
// survives.
func (r *SubmissionRepository) MarkSuperseded(ctx context.Context, id string) error {
	const query = `UPDATE submissions SET superseded = TRUE WHERE id = $1`
	if _, err := r.ext.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("mark submission superseded: %w", err)
	}
	return nil
}

// ApprovedDocumentTypes returns the set of document kinds currently in
// approved status for the student.
func (r *SubmissionRepository) ApprovedDocumentTypes(ctx context.Context, studentID string) (map[models.DocumentType]bool, error) {
	const query = `SELECT DISTINCT document_type FROM submissions
        WHERE student_id = $1 AND kind = $2 AND status = $3 AND document_type IS NOT NULL`
	var types []models.DocumentType
	if err := sqlx.SelectContext(ctx, r.ext, &types, query, studentID, models.KindDocument, models.StatusApproved); err != nil {
		return nil, fmt.Errorf("approved document types: %w", err)
	}
	approved := make(map[models.DocumentType]bool, len(types))
	for _, t := range types {
		approved[t] = true
	}
	return approved, nil
}

// DocumentChecklistRow is one checklist line for a required document kind.
type DocumentChecklistRow struct {
	DocumentType models.DocumentType `db:"document_type"`
	Status       models.ReviewStatus `db:"status"`
	SubmissionID string              `db:"id"`
	ReviewedAt   *time.Time          `db:"reviewed_at"`
}

// DocumentChecklist returns the latest submission per document kind for the
// student, most recent wins.
func (r *SubmissionRepository) DocumentChecklist(ctx context.Context, studentID string) ([]DocumentChecklistRow, error) {
	const query = `SELECT DISTINCT ON (document_type) document_type, status, id, reviewed_at
        FROM submissions
        WHERE student_id = $1 AND kind = $2 AND document_type IS NOT NULL
        ORDER BY document_type, created_at DESC`
	var rows []DocumentChecklistRow
	if err := sqlx.SelectContext(ctx, r.ext, &rows, query, studentID, models.KindDocument); err != nil {
		return nil, fmt.Errorf("document checklist: %w", err)
	}
	return rows, nil
}

// CountByStatus counts the student's submissions in a given status.
func (r *SubmissionRepository) CountByStatus(ctx context.Context, studentID string, status models.ReviewStatus) (int, error) {
	const query = `SELECT COUNT(*) FROM submissions WHERE student_id = $1 AND status = $2`
	var count int
	if err := sqlx.GetContext(ctx, r.ext, &count, query, studentID, status); err != nil {
		return 0, fmt.Errorf("count submissions by status: %w", err)
	}
	return count, nil
}

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

// StudentRepository handles persistence of students.
type StudentRepository struct {
	ext sqlx.ExtContext
}

// NewStudentRepository constructs the repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{ext: db}
}

const studentColumns = `id, user_id, full_name, document_number, phone, program, enrollment_stage, active, created_at, updated_at`

// Create persists a new student anchored at the first pipeline stage.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if student.CreatedAt.IsZero() {
		student.CreatedAt = now
	}
	student.UpdatedAt = now
	if student.EnrollmentStage == "" {
		student.EnrollmentStage = models.StageSuscrito
	}
	const query = `INSERT INTO students (id, user_id, full_name, document_number, phone, program, enrollment_stage, active, created_at, updated_at)
        VALUES (:id, :user_id, :full_name, :document_number, :phone, :program, :enrollment_stage, :active, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.ext, query, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// FindByID returns a student by its ID.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	query := fmt.Sprintf(`SELECT %s FROM students WHERE id = $1`, studentColumns)
	var student models.Student
	if err := sqlx.GetContext(ctx, r.ext, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// FindByUserID returns the student anchored to an identity.
func (r *StudentRepository) FindByUserID(ctx context.Context, userID string) (*models.Student, error) {
	query := fmt.Sprintf(`SELECT %s FROM students WHERE user_id = $1`, studentColumns)
	var student models.Student
	if err := sqlx.GetContext(ctx, r.ext, &student, query, userID); err != nil {
		return nil, err
	}
	return &student, nil
}

// List returns students filtered by the provided criteria.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	var conditions []string
	var args []interface{}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(full_name ILIKE $%d OR document_number ILIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}
	if filter.Stage != "" {
		conditions = append(conditions, fmt.Sprintf("enrollment_stage = $%d", len(args)+1))
		args = append(args, filter.Stage)
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"full_name":  "full_name",
		"created_at": "created_at",
	}
	sortBy := allowedSorts[filter.SortBy]
	if sortBy == "" {
		sortBy = "created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
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

	query := fmt.Sprintf(`SELECT %s FROM students%s ORDER BY %s %s LIMIT %d OFFSET %d`,
		studentColumns, clause, sortBy, order, size, offset)

	var students []models.Student
	if err := sqlx.SelectContext(ctx, r.ext, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	countQuery := "SELECT COUNT(*) FROM students" + clause
	var total int
	if err := sqlx.GetContext(ctx, r.ext, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// UpdateStageIf moves the student's stage with a conditional write keyed on
// the expected previous stage. A false return means another transition won
// the race and nothing was written.
func (r *StudentRepository) UpdateStageIf(ctx context.Context, id string, from, to models.EnrollmentStage) (bool, error) {
	const query = `UPDATE students SET enrollment_stage = $2, updated_at = $3 WHERE id = $1 AND enrollment_stage = $4`
	result, err := r.ext.ExecContext(ctx, query, id, to, time.Now().UTC(), from)
	if err != nil {
		return false, fmt.Errorf("update student stage: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update student stage: %w", err)
	}
	return affected == 1, nil
}

package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/matriculapp/enrollment-api/internal/models"
)

// InstallmentRepository handles persistence of payment installments.
type InstallmentRepository struct {
	ext sqlx.ExtContext
}

// NewInstallmentRepository constructs the repository.
func NewInstallmentRepository(db *sqlx.DB) *InstallmentRepository {
	return &InstallmentRepository{ext: db}
}

const installmentColumns = `id, student_id, number, amount, due_date, status, paid_at, created_at`

// Create persists a new installment.
func (r *InstallmentRepository) Create(ctx context.Context, installment *models.Installment) error {
	if installment.ID == "" {
		installment.ID = uuid.NewString()
	}
	if installment.CreatedAt.IsZero() {
		installment.CreatedAt = time.Now().UTC()
	}
	if installment.Status == "" {
		installment.Status = models.InstallmentPendiente
	}
	const query = `INSERT INTO installments (id, student_id, number, amount, due_date, status, paid_at, created_at)
        VALUES (:id, :student_id, :number, :amount, :due_date, :status, :paid_at, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.ext, query, installment); err != nil {
		return fmt.Errorf("create installment: %w", err)
	}
	return nil
}

// FindByID returns an installment by its ID.
func (r *InstallmentRepository) FindByID(ctx context.Context, id string) (*models.Installment, error) {
	query := fmt.Sprintf(`SELECT %s FROM installments WHERE id = $1`, installmentColumns)
	var installment models.Installment
	if err := sqlx.GetContext(ctx, r.ext, &installment, query, id); err != nil {
		return nil, err
	}
	return &installment, nil
}

// ListByStudent returns the student's installments ordered by number.
func (r *InstallmentRepository) ListByStudent(ctx context.Context, studentID string) ([]models.Installment, error) {
	query := fmt.Sprintf(`SELECT %s FROM installments WHERE student_id = $1 ORDER BY number ASC`, installmentColumns)
	var installments []models.Installment
	if err := sqlx.SelectContext(ctx, r.ext, &installments, query, studentID); err != nil {
		return nil, fmt.Errorf("list installments: %w", err)
	}
	return installments, nil
}

// UpdateStatus updates status and paid_at for an installment.
func (r *InstallmentRepository) UpdateStatus(ctx context.Context, id string, status models.InstallmentStatus, paidAt *time.Time) error {
	const query = `UPDATE installments SET status = $2, paid_at = $3 WHERE id = $1`
	if _, err := r.ext.ExecContext(ctx, query, id, status, paidAt); err != nil {
		return fmt.Errorf("update installment status: %w", err)
	}
	return nil
}

package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/matriculapp/enrollment-api/internal/models"
)

// StageHistoryRepository is the append-only stage ledger writer and reader.
// It deliberately exposes no update or delete operation.
type StageHistoryRepository struct {
	ext sqlx.ExtContext
}

// NewStageHistoryRepository constructs the repository.
func NewStageHistoryRepository(db *sqlx.DB) *StageHistoryRepository {
	return &StageHistoryRepository{ext: db}
}

// Append writes one immutable history entry.
func (r *StageHistoryRepository) Append(ctx context.Context, entry *models.StageHistoryEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO stage_history (id, student_id, previous_stage, new_stage, changed_by, comments, validation_status, reverted, created_at)
        VALUES (:id, :student_id, :previous_stage, :new_stage, :changed_by, :comments, :validation_status, :reverted, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.ext, query, entry); err != nil {
		return fmt.Errorf("append stage history: %w", err)
	}
	return nil
}

// ListByStudent returns entries most recent first. The presentation layer
// depends on this ordering.
func (r *StageHistoryRepository) ListByStudent(ctx context.Context, studentID string) ([]models.StageHistoryEntry, error) {
	const query = `SELECT id, student_id, previous_stage, new_stage, changed_by, comments, validation_status, reverted, created_at
        FROM stage_history WHERE student_id = $1 ORDER BY created_at DESC`
	var entries []models.StageHistoryEntry
	if err := sqlx.SelectContext(ctx, r.ext, &entries, query, studentID); err != nil {
		return nil, fmt.Errorf("list stage history: %w", err)
	}
	return entries, nil
}

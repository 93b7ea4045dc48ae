package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/matriculapp/enrollment-api/internal/models"
)

func TestStageHistoryRepositoryAppend(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewStageHistoryRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO stage_history")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	entry := &models.StageHistoryEntry{
		StudentID:        "student-1",
		PreviousStage:    models.StageSuscrito,
		NewStage:         models.StageDocumentosCompletos,
		ChangedBy:        "staff-1",
		ValidationStatus: models.ValidationApproved,
	}
	require.NoError(t, repo.Append(context.Background(), entry))
	require.NotEmpty(t, entry.ID)
	require.False(t, entry.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStageHistoryRepositoryListNewestFirst(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewStageHistoryRepository(db)
	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "student_id", "previous_stage", "new_stage", "changed_by", "comments", "validation_status", "reverted", "created_at",
	}).
		AddRow("hist-2", "student-1", "DOCUMENTOS_COMPLETOS", "REGISTRO_VALIDADO", "staff-1", "", "APPROVED", false, now).
		AddRow("hist-1", "student-1", "SUSCRITO", "DOCUMENTOS_COMPLETOS", "staff-1", "", "APPROVED", false, now.Add(-time.Hour))
	mock.ExpectQuery(regexp.QuoteMeta("FROM stage_history WHERE student_id = $1 ORDER BY created_at DESC")).
		WithArgs("student-1").
		WillReturnRows(rows)

	entries, err := repo.ListByStudent(context.Background(), "student-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "hist-2", entries[0].ID)
	require.Equal(t, models.StageRegistroValidado, entries[0].NewStage)
	require.NoError(t, mock.ExpectationsWereMet())
}

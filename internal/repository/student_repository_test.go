package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/matriculapp/enrollment-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func studentRows(id, userID string, stage models.EnrollmentStage) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "user_id", "full_name", "document_number", "phone", "program", "enrollment_stage", "active", "created_at", "updated_at"}).
		AddRow(id, userID, "Ana Morales", "100200300", "3001112233", "Ingeniería", string(stage), true, time.Now(), time.Now())
}

func TestStudentRepositoryCreateAndFind(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewStudentRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO students")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	student := &models.Student{
		UserID:         "user-1",
		FullName:       "Ana Morales",
		DocumentNumber: "100200300",
		Program:        "Ingeniería",
		Active:         true,
	}
	require.NoError(t, repo.Create(context.Background(), student))
	require.NotEmpty(t, student.ID)
	require.Equal(t, models.StageSuscrito, student.EnrollmentStage)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, user_id, full_name")).
		WithArgs(student.ID).
		WillReturnRows(studentRows(student.ID, "user-1", models.StageSuscrito))

	found, err := repo.FindByID(context.Background(), student.ID)
	require.NoError(t, err)
	require.Equal(t, student.ID, found.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryUpdateStageIf(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewStudentRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE students SET enrollment_stage")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.UpdateStageIf(context.Background(), "student-1", models.StageSuscrito, models.StageDocumentosCompletos)
	require.NoError(t, err)
	require.True(t, ok)

	// A concurrent transition already moved the student: zero rows match.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE students SET enrollment_stage")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err = repo.UpdateStageIf(context.Background(), "student-1", models.StageSuscrito, models.StageDocumentosCompletos)
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewStudentRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, user_id, full_name")).
		WithArgs("%Ana%", "SUSCRITO").
		WillReturnRows(studentRows("student-1", "user-1", models.StageSuscrito))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM students")).
		WithArgs("%Ana%", "SUSCRITO").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	students, total, err := repo.List(context.Background(), models.StudentFilter{
		Search: "Ana",
		Stage:  models.StageSuscrito,
	})
	require.NoError(t, err)
	require.Len(t, students, 1)
	require.Equal(t, 1, total)
	require.NoError(t, mock.ExpectationsWereMet())
}

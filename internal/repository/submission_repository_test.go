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

func submissionRows(id, studentID string, status models.ReviewStatus) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "student_id", "kind", "status", "document_type", "file_ref", "installment_id", "amount", "due_date",
		"subject", "message", "response", "rejection_reason", "reviewed_by", "reviewed_at", "resubmission_of", "superseded", "created_at",
	}).AddRow(id, studentID, "DOCUMENT", string(status), "FOTO", "documents/a.jpg", nil, nil, nil,
		nil, nil, nil, nil, nil, nil, nil, false, time.Now())
}

func TestSubmissionRepositoryCreateAndFind(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewSubmissionRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO submissions")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	docType := models.DocFoto
	fileRef := "documents/a.jpg"
	submission := &models.Submission{
		StudentID:    "student-1",
		Kind:         models.KindDocument,
		DocumentType: &docType,
		FileRef:      &fileRef,
	}
	require.NoError(t, repo.Create(context.Background(), submission))
	require.NotEmpty(t, submission.ID)
	require.Equal(t, models.StatusPending, submission.Status)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, student_id, kind, status")).
		WithArgs(submission.ID).
		WillReturnRows(submissionRows(submission.ID, "student-1", models.StatusPending))

	found, err := repo.FindByID(context.Background(), submission.ID)
	require.NoError(t, err)
	require.Equal(t, models.KindDocument, found.Kind)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryUpdateReviewConditional(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewSubmissionRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE submissions")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.UpdateReview(context.Background(), ReviewUpdateParams{
		ID:         "sub-1",
		Status:     models.StatusApproved,
		ReviewedBy: "staff-1",
		ReviewedAt: time.Now(),
	})
	require.NoError(t, err)
	require.True(t, ok)

	// A terminal record matches no rows under the status guard.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE submissions")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err = repo.UpdateReview(context.Background(), ReviewUpdateParams{
		ID:         "sub-1",
		Status:     models.StatusRejected,
		ReviewedBy: "staff-1",
		ReviewedAt: time.Now(),
	})
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryApprovedDocumentTypes(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewSubmissionRepository(db)
	rows := sqlmock.NewRows([]string{"document_type"}).AddRow("CEDULA").AddRow("FOTO")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT document_type FROM submissions")).
		WithArgs("student-1", "DOCUMENT", "APPROVED").
		WillReturnRows(rows)

	approved, err := repo.ApprovedDocumentTypes(context.Background(), "student-1")
	require.NoError(t, err)
	require.True(t, approved[models.DocCedula])
	require.True(t, approved[models.DocFoto])
	require.False(t, approved[models.DocDiploma])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryDocumentChecklist(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewSubmissionRepository(db)
	rows := sqlmock.NewRows([]string{"document_type", "status", "id", "reviewed_at"}).
		AddRow("CEDULA", "APPROVED", "sub-1", time.Now()).
		AddRow("FOTO", "REJECTED", "sub-2", time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT ON (document_type)")).
		WithArgs("student-1", "DOCUMENT").
		WillReturnRows(rows)

	checklist, err := repo.DocumentChecklist(context.Background(), "student-1")
	require.NoError(t, err)
	require.Len(t, checklist, 2)
	require.Equal(t, models.StatusApproved, checklist[0].Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryMarkSuperseded(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewSubmissionRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE submissions SET superseded = TRUE")).
		WithArgs("sub-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkSuperseded(context.Background(), "sub-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

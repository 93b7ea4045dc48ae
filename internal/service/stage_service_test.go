package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/matriculapp/enrollment-api/internal/dto"
	"github.com/matriculapp/enrollment-api/internal/models"
	appErrors "github.com/matriculapp/enrollment-api/pkg/errors"
)

func newStageFixture(t *testing.T) (*StageService, *stubState) {
	t.Helper()
	st := newStubState()
	uow := newStubUOW(st)
	notifier := NewNotificationService(&stubNotifications{st: st}, nil, 0, nil, nil)
	return NewStageService(uow, notifier, nil, nil, nil), st
}

func approveDocuments(st *stubState, studentID string, types ...models.DocumentType) {
	for _, docType := range types {
		dt := docType
		id := st.nextID("sub")
		st.submissions[id] = &models.Submission{
			ID:           id,
			StudentID:    studentID,
			Kind:         models.KindDocument,
			Status:       models.StatusApproved,
			DocumentType: &dt,
		}
	}
}

func TestStageAdvanceSequential(t *testing.T) {
	svc, st := newStageFixture(t)
	seedStudent(st, "student-1", "user-1", models.StageDocumentosCompletos)

	student, err := svc.Advance(context.Background(), "student-1", dto.AdvanceStageRequest{
		TargetStage: models.StageRegistroValidado,
		Comments:    "documentación revisada",
	}, staffClaims(models.RoleAdmin))
	require.NoError(t, err)
	require.Equal(t, models.StageRegistroValidado, student.EnrollmentStage)

	require.Len(t, st.history, 1)
	entry := st.history[0]
	require.Equal(t, models.StageDocumentosCompletos, entry.PreviousStage)
	require.Equal(t, models.StageRegistroValidado, entry.NewStage)
	require.Equal(t, models.ValidationApproved, entry.ValidationStatus)
	require.False(t, entry.Reverted)

	require.Len(t, st.notifications, 1)
	for _, n := range st.notifications {
		require.Equal(t, "user-1", n.UserID)
		require.Equal(t, models.NotificationStage, n.Type)
	}
}

func TestStageAdvanceRequiresStaff(t *testing.T) {
	svc, st := newStageFixture(t)
	seedStudent(st, "student-1", "user-1", models.StageSuscrito)

	_, err := svc.Advance(context.Background(), "student-1", dto.AdvanceStageRequest{
		TargetStage: models.StageDocumentosCompletos,
	}, studentClaims("user-1"))
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestStageAdvanceChecklistIncomplete(t *testing.T) {
	svc, st := newStageFixture(t)
	seedStudent(st, "student-1", "user-1", models.StageSuscrito)
	approveDocuments(st, "student-1", models.DocCedula, models.DocDiploma)

	_, err := svc.Advance(context.Background(), "student-1", dto.AdvanceStageRequest{
		TargetStage: models.StageDocumentosCompletos,
	}, staffClaims(models.RoleAdmin))
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, appErrors.ErrPreconditionNotMet.Code, appErr.Code)
	require.Contains(t, appErr.Message, string(models.DocActa))

	// Nothing committed: stage, ledger and inbox untouched.
	require.Equal(t, models.StageSuscrito, st.students["student-1"].EnrollmentStage)
	require.Empty(t, st.history)
	require.Empty(t, st.notifications)
}

func TestStageAdvanceOutOfOrder(t *testing.T) {
	svc, st := newStageFixture(t)
	seedStudent(st, "student-1", "user-1", models.StageSuscrito)

	_, err := svc.Advance(context.Background(), "student-1", dto.AdvanceStageRequest{
		TargetStage: models.StageMatriculado,
	}, staffClaims(models.RoleAdmin))
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, appErrors.ErrOutOfOrderTransition.Code, appErr.Code)
	require.Empty(t, st.history)
}

func TestStageSuperuserJumpIsOverridden(t *testing.T) {
	svc, st := newStageFixture(t)
	seedStudent(st, "student-1", "user-1", models.StageSuscrito)

	student, err := svc.Advance(context.Background(), "student-1", dto.AdvanceStageRequest{
		TargetStage: models.StageMatriculado,
		Comments:    "convalidación externa",
	}, staffClaims(models.RoleSuperuser))
	require.NoError(t, err)
	require.Equal(t, models.StageMatriculado, student.EnrollmentStage)

	require.Len(t, st.history, 1)
	require.Equal(t, models.ValidationOverridden, st.history[0].ValidationStatus)
	require.False(t, st.history[0].Reverted)
}

func TestStageSuperuserRevert(t *testing.T) {
	svc, st := newStageFixture(t)
	seedStudent(st, "student-1", "user-1", models.StageMatriculado)

	student, err := svc.Advance(context.Background(), "student-1", dto.AdvanceStageRequest{
		TargetStage: models.StageRegistroValidado,
		Comments:    "pago anulado por el banco",
	}, staffClaims(models.RoleSuperuser))
	require.NoError(t, err)
	require.Equal(t, models.StageRegistroValidado, student.EnrollmentStage)

	require.Len(t, st.history, 1)
	entry := st.history[0]
	require.Equal(t, models.StageMatriculado, entry.PreviousStage)
	require.Equal(t, models.StageRegistroValidado, entry.NewStage)
	require.Equal(t, models.ValidationOverridden, entry.ValidationStatus)
	require.True(t, entry.Reverted)
}

func TestStageRevertRequiresSuperuser(t *testing.T) {
	svc, st := newStageFixture(t)
	seedStudent(st, "student-1", "user-1", models.StageMatriculado)

	_, err := svc.Advance(context.Background(), "student-1", dto.AdvanceStageRequest{
		TargetStage: models.StageRegistroValidado,
	}, staffClaims(models.RoleAdmin))
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, appErrors.ErrOutOfOrderTransition.Code, appErr.Code)
}

func TestStageSameStageRejected(t *testing.T) {
	svc, st := newStageFixture(t)
	seedStudent(st, "student-1", "user-1", models.StageSuscrito)

	_, err := svc.Advance(context.Background(), "student-1", dto.AdvanceStageRequest{
		TargetStage: models.StageSuscrito,
	}, staffClaims(models.RoleSuperuser))
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, appErrors.ErrOutOfOrderTransition.Code, appErr.Code)
}

func TestStageUnknownTarget(t *testing.T) {
	svc, st := newStageFixture(t)
	seedStudent(st, "student-1", "user-1", models.StageSuscrito)

	_, err := svc.Advance(context.Background(), "student-1", dto.AdvanceStageRequest{
		TargetStage: "GRADUADO",
	}, staffClaims(models.RoleAdmin))
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestStageAdvanceChecklistComplete(t *testing.T) {
	svc, st := newStageFixture(t)
	seedStudent(st, "student-1", "user-1", models.StageSuscrito)
	approveDocuments(st, "student-1", models.RequiredDocumentTypes...)

	student, err := svc.Advance(context.Background(), "student-1", dto.AdvanceStageRequest{
		TargetStage: models.StageDocumentosCompletos,
	}, staffClaims(models.RoleAdmin))
	require.NoError(t, err)
	require.Equal(t, models.StageDocumentosCompletos, student.EnrollmentStage)
	require.Len(t, st.history, 1)
	require.Equal(t, models.ValidationApproved, st.history[0].ValidationStatus)
}

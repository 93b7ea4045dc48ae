package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/matriculapp/enrollment-api/internal/dto"
	"github.com/matriculapp/enrollment-api/internal/models"
)

func newInstallmentFixture(t *testing.T) (*InstallmentService, *stubState) {
	t.Helper()
	st := newStubState()
	return NewInstallmentService(newStubUOW(st), nil, nil), st
}

func TestInstallmentCreateRequiresStaff(t *testing.T) {
	svc, st := newInstallmentFixture(t)
	seedStudent(st, "student-1", "user-1", models.StageMatriculado)

	_, err := svc.Create(context.Background(), dto.CreateInstallmentRequest{
		StudentID: "student-1",
		Number:    1,
		Amount:    250,
		DueDate:   time.Now().Add(30 * 24 * time.Hour),
	}, studentClaims("user-1"))
	require.Error(t, err)
}

func TestInstallmentListMarksOverdue(t *testing.T) {
	svc, st := newInstallmentFixture(t)
	seedStudent(st, "student-1", "user-1", models.StageMatriculado)
	now := time.Now()
	st.installments["inst-1"] = &models.Installment{
		ID: "inst-1", StudentID: "student-1", Number: 1, Amount: 250,
		DueDate: now.Add(-48 * time.Hour), Status: models.InstallmentPendiente,
	}
	st.installments["inst-2"] = &models.Installment{
		ID: "inst-2", StudentID: "student-1", Number: 2, Amount: 250,
		DueDate: now.Add(-48 * time.Hour), Status: models.InstallmentEnVerificacion,
	}
	st.installments["inst-3"] = &models.Installment{
		ID: "inst-3", StudentID: "student-1", Number: 3, Amount: 250,
		DueDate: now.Add(48 * time.Hour), Status: models.InstallmentPendiente,
	}

	installments, err := svc.ListByStudent(context.Background(), "student-1", studentClaims("user-1"))
	require.NoError(t, err)
	require.Len(t, installments, 3)

	byID := make(map[string]models.Installment, len(installments))
	for _, installment := range installments {
		byID[installment.ID] = installment
	}
	require.Equal(t, models.InstallmentVencida, byID["inst-1"].Status)
	require.Equal(t, models.InstallmentEnVerificacion, byID["inst-2"].Status)
	require.Equal(t, models.InstallmentPendiente, byID["inst-3"].Status)

	// The stored row is untouched; VENCIDA is a read-time view.
	require.Equal(t, models.InstallmentPendiente, st.installments["inst-1"].Status)
}

func TestInstallmentListOwnershipEnforced(t *testing.T) {
	svc, st := newInstallmentFixture(t)
	seedStudent(st, "student-1", "user-1", models.StageMatriculado)

	_, err := svc.ListByStudent(context.Background(), "student-1", studentClaims("user-2"))
	require.Error(t, err)
}

package models

import "time"

// InstallmentStatus tracks a payment installment independently of the
// review lifecycle of its supports.
type InstallmentStatus string

const (
	InstallmentPendiente      InstallmentStatus = "PENDIENTE"
	InstallmentEnVerificacion InstallmentStatus = "EN_VERIFICACION"
	InstallmentPagada         InstallmentStatus = "PAGADA"
	InstallmentVencida        InstallmentStatus = "VENCIDA"
)

// Overdue reports whether an unpaid installment has passed its due date.
// Installments awaiting verification are not overdue; a support is already
// in flight.
func (i *Installment) Overdue(now time.Time) bool {
	return i.Status == InstallmentPendiente && i.DueDate.Before(now)
}

// Installment is one scheduled payment owed by a student. A student proves
// payment by submitting an InstallmentSupport, whose approval marks the
// installment PAGADA.
type Installment struct {
	ID        string            `db:"id" json:"id"`
	StudentID string            `db:"student_id" json:"student_id"`
	Number    int               `db:"number" json:"number"`
	Amount    float64           `db:"amount" json:"amount"`
	DueDate   time.Time         `db:"due_date" json:"due_date"`
	Status    InstallmentStatus `db:"status" json:"status"`
	PaidAt    *time.Time        `db:"paid_at" json:"paid_at,omitempty"`
	CreatedAt time.Time         `db:"created_at" json:"created_at"`
}

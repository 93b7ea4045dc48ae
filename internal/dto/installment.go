package dto

import "time"

// CreateInstallmentRequest payload for scheduling a payment installment.
type CreateInstallmentRequest struct {
	StudentID string    `json:"student_id" validate:"required,uuid"`
	Number    int       `json:"number" validate:"required,min=1"`
	Amount    float64   `json:"amount" validate:"required,gt=0"`
	DueDate   time.Time `json:"due_date" validate:"required"`
}

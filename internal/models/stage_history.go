package models

import "time"

// ValidationStatus records how a stage transition was validated.
type ValidationStatus string

const (
	ValidationApproved   ValidationStatus = "APPROVED"
	ValidationOverridden ValidationStatus = "OVERRIDDEN"
	ValidationRejected   ValidationStatus = "REJECTED"
)

// StageHistoryEntry is one immutable row of the stage ledger. Entries are
// append-only; no code path updates or deletes them.
type StageHistoryEntry struct {
	ID               string           `db:"id" json:"id"`
	StudentID        string           `db:"student_id" json:"student_id"`
	PreviousStage    EnrollmentStage  `db:"previous_stage" json:"previous_stage"`
	NewStage         EnrollmentStage  `db:"new_stage" json:"new_stage"`
	ChangedBy        string           `db:"changed_by" json:"changed_by"`
	Comments         string           `db:"comments" json:"comments"`
	ValidationStatus ValidationStatus `db:"validation_status" json:"validation_status"`
	Reverted         bool             `db:"reverted" json:"reverted"`
	CreatedAt        time.Time        `db:"created_at" json:"created_at"`
}

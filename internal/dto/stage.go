package dto

import "github.com/matriculapp/enrollment-api/internal/models"

// AdvanceStageRequest payload for moving a student through the pipeline.
// Reverts use the same payload with a target stage behind the current one.
type AdvanceStageRequest struct {
	TargetStage models.EnrollmentStage `json:"target_stage" validate:"required"`
	Comments    string                 `json:"comments"`
}

// StageResponse reports the student's position after a transition.
type StageResponse struct {
	StudentID    string                 `json:"student_id"`
	CurrentStage models.EnrollmentStage `json:"current_stage"`
	NextStage    models.EnrollmentStage `json:"next_stage,omitempty"`
}

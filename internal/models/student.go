package models

import "time"

// EnrollmentStage represents one step of the fixed enrollment pipeline.
type EnrollmentStage string

// The nine ordered stages of the enrollment pipeline.
const (
	StageSuscrito             EnrollmentStage = "SUSCRITO"
	StageDocumentosCompletos  EnrollmentStage = "DOCUMENTOS_COMPLETOS"
	StageRegistroValidado     EnrollmentStage = "REGISTRO_VALIDADO"
	StageProcesoUniversitario EnrollmentStage = "PROCESO_UNIVERSITARIO"
	StageMatriculado          EnrollmentStage = "MATRICULADO"
	StageInicioClases         EnrollmentStage = "INICIO_CLASES"
	StageEstudianteActivo     EnrollmentStage = "ESTUDIANTE_ACTIVO"
	StagePagosAlDia           EnrollmentStage = "PAGOS_AL_DIA"
	StageProcesoFinalizado    EnrollmentStage = "PROCESO_FINALIZADO"
)

// stageOrder is the single source of truth for stage ordering. Comparisons
// go through indices, never string comparison.
var stageOrder = []EnrollmentStage{
	StageSuscrito,
	StageDocumentosCompletos,
	StageRegistroValidado,
	StageProcesoUniversitario,
	StageMatriculado,
	StageInicioClases,
	StageEstudianteActivo,
	StagePagosAlDia,
	StageProcesoFinalizado,
}

// StageIndex returns the position of the stage in the pipeline, or -1 for
// unknown values.
func StageIndex(s EnrollmentStage) int {
	for i, stage := range stageOrder {
		if stage == s {
			return i
		}
	}
	return -1
}

// NextStage returns the immediate successor of the given stage. The final
// stage has no successor.
func NextStage(s EnrollmentStage) (EnrollmentStage, bool) {
	idx := StageIndex(s)
	if idx < 0 || idx >= len(stageOrder)-1 {
		return "", false
	}
	return stageOrder[idx+1], true
}

// IsValidStage reports whether the value is one of the nine known stages.
func IsValidStage(s EnrollmentStage) bool {
	return StageIndex(s) >= 0
}

// Stages returns the full ordered pipeline.
func Stages() []EnrollmentStage {
	out := make([]EnrollmentStage, len(stageOrder))
	copy(out, stageOrder)
	return out
}

// Student represents an enrollee progressing through the pipeline. The
// enrollment stage is only ever mutated by the stage machine.
type Student struct {
	ID              string          `db:"id" json:"id"`
	UserID          string          `db:"user_id" json:"user_id"`
	FullName        string          `db:"full_name" json:"full_name"`
	DocumentNumber  string          `db:"document_number" json:"document_number"`
	Phone           string          `db:"phone" json:"phone"`
	Program         string          `db:"program" json:"program"`
	EnrollmentStage EnrollmentStage `db:"enrollment_stage" json:"enrollment_stage"`
	Active          bool            `db:"active" json:"active"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// StudentSummary is the read model consumed by dashboards.
type StudentSummary struct {
	StudentID       string          `json:"student_id"`
	FullName        string          `json:"full_name"`
	EnrollmentStage EnrollmentStage `json:"enrollment_stage"`
	PendingCount    int             `json:"pending_count"`
	RejectedCount   int             `json:"rejected_count"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search    string
	Stage     EnrollmentStage
	Active    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

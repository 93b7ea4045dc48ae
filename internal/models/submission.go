package models

import "time"

// SubmissionKind discriminates the tagged submission variant.
type SubmissionKind string

const (
	KindDocument           SubmissionKind = "DOCUMENT"
	KindInstallmentSupport SubmissionKind = "INSTALLMENT_SUPPORT"
	KindRequest            SubmissionKind = "REQUEST"
)

// IsValidKind reports whether the value is a known submission kind.
func IsValidKind(k SubmissionKind) bool {
	switch k {
	case KindDocument, KindInstallmentSupport, KindRequest:
		return true
	}
	return false
}

// ReviewStatus is the internal lifecycle shared by every submission kind.
// Request-specific vocabulary (pendiente, en_proceso, completada, rechazada)
// is normalized to this enum at the DTO boundary.
type ReviewStatus string

const (
	StatusPending     ReviewStatus = "PENDING"
	StatusInReview    ReviewStatus = "IN_REVIEW"
	StatusApproved    ReviewStatus = "APPROVED"
	StatusRejected    ReviewStatus = "REJECTED"
	StatusResubmitted ReviewStatus = "RESUBMITTED"
)

// DocumentType enumerates the fixed checklist of enrollment documents.
type DocumentType string

const (
	DocCedula     DocumentType = "CEDULA"
	DocDiploma    DocumentType = "DIPLOMA"
	DocActa       DocumentType = "ACTA"
	DocFoto       DocumentType = "FOTO"
	DocRecibo     DocumentType = "RECIBO"
	DocFormulario DocumentType = "FORMULARIO"
)

// RequiredDocumentTypes is the checklist that gates the
// DOCUMENTOS_COMPLETOS stage transition.
var RequiredDocumentTypes = []DocumentType{
	DocCedula,
	DocDiploma,
	DocActa,
	DocFoto,
	DocRecibo,
	DocFormulario,
}

// IsValidDocumentType reports whether the value belongs to the checklist.
func IsValidDocumentType(d DocumentType) bool {
	for _, t := range RequiredDocumentTypes {
		if t == d {
			return true
		}
	}
	return false
}

// Submission is the polymorphic record reviewed by the review engine.
// Exactly one payload group is populated depending on Kind; the review
// sub-structure (status, rejection reason, reviewer fields, resubmission
// link) is shared by all kinds.
type Submission struct {
	ID        string         `db:"id" json:"id"`
	StudentID string         `db:"student_id" json:"student_id"`
	Kind      SubmissionKind `db:"kind" json:"kind"`
	Status    ReviewStatus   `db:"status" json:"status"`

	// Document payload.
	DocumentType *DocumentType `db:"document_type" json:"document_type,omitempty"`
	FileRef      *string       `db:"file_ref" json:"file_ref,omitempty"`

	// Installment support payload.
	InstallmentID *string    `db:"installment_id" json:"installment_id,omitempty"`
	Amount        *float64   `db:"amount" json:"amount,omitempty"`
	DueDate       *time.Time `db:"due_date" json:"due_date,omitempty"`

	// Request payload.
	Subject  *string `db:"subject" json:"subject,omitempty"`
	Message  *string `db:"message" json:"message,omitempty"`
	Response *string `db:"response" json:"response,omitempty"`

	// Review sub-structure.
	RejectionReason *string    `db:"rejection_reason" json:"rejection_reason,omitempty"`
	ReviewedBy      *string    `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time `db:"reviewed_at" json:"reviewed_at,omitempty"`
	ResubmissionOf  *string    `db:"resubmission_of" json:"resubmission_of,omitempty"`
	Superseded      bool       `db:"superseded" json:"superseded"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Reviewable reports whether the record may still receive a review decision.
func (s *Submission) Reviewable() bool {
	return s.Status == StatusPending || s.Status == StatusInReview
}

// SubmissionFilter constrains listing queries.
type SubmissionFilter struct {
	StudentID string
	Kind      SubmissionKind
	Status    ReviewStatus
	Page      int
	PageSize  int
}

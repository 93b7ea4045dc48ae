package dto

import (
	"time"

	"github.com/matriculapp/enrollment-api/internal/models"
)

// CreateDocumentRequest payload for uploading an enrollment document.
// The file itself travels as multipart content; the handler stores it and
// fills FileRef before the service sees the request.
type CreateDocumentRequest struct {
	DocumentType models.DocumentType `json:"document_type" validate:"required"`
	FileRef      string              `json:"-" validate:"required"`
}

// CreateSupportRequest payload for attaching a payment support to an
// installment.
type CreateSupportRequest struct {
	InstallmentID string  `json:"installment_id" validate:"required"`
	Amount        float64 `json:"amount" validate:"required,gt=0"`
	FileRef       string  `json:"-" validate:"required"`
}

// CreateRequestRequest payload for an administrative request.
type CreateRequestRequest struct {
	Subject string `json:"subject" validate:"required"`
	Message string `json:"message" validate:"required"`
}

// RejectSubmissionRequest carries the mandatory rejection reason.
type RejectSubmissionRequest struct {
	Reason string `json:"reason"`
}

// ApproveSubmissionRequest carries the optional staff response (used by
// request submissions).
type ApproveSubmissionRequest struct {
	Response string `json:"response"`
}

// ResubmitRequest payload for replacing a rejected submission. For
// documents and supports the handler fills FileRef from the uploaded
// replacement file.
type ResubmitRequest struct {
	FileRef string `json:"-"`
	Message string `json:"message"`
}

// SubmissionQuery mirrors supported listing filters.
type SubmissionQuery struct {
	StudentID string
	Kind      models.SubmissionKind
	Status    models.ReviewStatus
	Page      int
	PageSize  int
}

// External request-status vocabulary. The portal's request flows speak
// Spanish statuses; they map onto the internal review enum here and
// nowhere else.
const (
	RequestStatusPendiente  = "pendiente"
	RequestStatusEnProceso  = "en_proceso"
	RequestStatusCompletada = "completada"
	RequestStatusRechazada  = "rechazada"
)

// NormalizeRequestStatus converts the external request vocabulary to the
// internal review enum. Unknown values report false.
func NormalizeRequestStatus(raw string) (models.ReviewStatus, bool) {
	switch raw {
	case RequestStatusPendiente:
		return models.StatusPending, true
	case RequestStatusEnProceso:
		return models.StatusInReview, true
	case RequestStatusCompletada:
		return models.StatusApproved, true
	case RequestStatusRechazada:
		return models.StatusRejected, true
	}
	return "", false
}

// RequestStatusLabel converts the internal review enum back to the external
// request vocabulary.
func RequestStatusLabel(status models.ReviewStatus) string {
	switch status {
	case models.StatusInReview:
		return RequestStatusEnProceso
	case models.StatusApproved:
		return RequestStatusCompletada
	case models.StatusRejected:
		return RequestStatusRechazada
	default:
		return RequestStatusPendiente
	}
}

// SubmissionResponse is the outward shape of a submission. Requests carry
// the external status label alongside the internal one, and a rejected
// record that has been replaced presents as RESUBMITTED while its stored
// status and rejection reason stay untouched.
type SubmissionResponse struct {
	models.Submission
	DisplayStatus models.ReviewStatus `json:"display_status"`
	RequestStatus string              `json:"request_status,omitempty"`
	FileURL       string              `json:"file_url,omitempty"`
}

// NewSubmissionResponse decorates a submission for the presentation layer.
func NewSubmissionResponse(s models.Submission, fileURL string) SubmissionResponse {
	resp := SubmissionResponse{Submission: s, DisplayStatus: s.Status, FileURL: fileURL}
	if s.Status == models.StatusRejected && s.Superseded {
		resp.DisplayStatus = models.StatusResubmitted
	}
	if s.Kind == models.KindRequest {
		resp.RequestStatus = RequestStatusLabel(s.Status)
	}
	return resp
}

// SubmissionChecklistItem reports review progress for one required document
// kind.
type SubmissionChecklistItem struct {
	DocumentType models.DocumentType `json:"document_type"`
	Status       models.ReviewStatus `json:"status"`
	SubmissionID string              `json:"submission_id,omitempty"`
	ReviewedAt   *time.Time          `json:"reviewed_at,omitempty"`
}

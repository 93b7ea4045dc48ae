package handler

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/matriculapp/enrollment-api/internal/dto"
	"github.com/matriculapp/enrollment-api/internal/models"
	appErrors "github.com/matriculapp/enrollment-api/pkg/errors"
	"github.com/matriculapp/enrollment-api/pkg/response"
	"github.com/matriculapp/enrollment-api/pkg/storage"
)

type reviewService interface {
	SubmitDocument(ctx context.Context, req dto.CreateDocumentRequest, actor *models.JWTClaims) (*models.Submission, error)
	SubmitSupport(ctx context.Context, req dto.CreateSupportRequest, actor *models.JWTClaims) (*models.Submission, error)
	SubmitRequest(ctx context.Context, req dto.CreateRequestRequest, actor *models.JWTClaims) (*models.Submission, error)
	Open(ctx context.Context, id string, actor *models.JWTClaims) (*models.Submission, error)
	Approve(ctx context.Context, id string, req dto.ApproveSubmissionRequest, actor *models.JWTClaims) (*models.Submission, error)
	Reject(ctx context.Context, id string, req dto.RejectSubmissionRequest, actor *models.JWTClaims) (*models.Submission, error)
	Resubmit(ctx context.Context, id string, req dto.ResubmitRequest, actor *models.JWTClaims) (*models.Submission, error)
	Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.Submission, error)
	List(ctx context.Context, query dto.SubmissionQuery, actor *models.JWTClaims) ([]models.Submission, *models.Pagination, error)
	Checklist(ctx context.Context, studentID string, actor *models.JWTClaims) ([]dto.SubmissionChecklistItem, error)
}

// SubmissionHandler exposes REST endpoints for the submission lifecycle.
type SubmissionHandler struct {
	service reviewService
	uploads *storage.LocalStorage
	signer  *storage.SignedURLSigner
}

// NewSubmissionHandler constructs the handler.
func NewSubmissionHandler(service reviewService, uploads *storage.LocalStorage, signer *storage.SignedURLSigner) *SubmissionHandler {
	return &SubmissionHandler{service: service, uploads: uploads, signer: signer}
}

// CreateDocument godoc
// @Summary Upload an enrollment document
// @Tags Submissions
// @Accept multipart/form-data
// @Produce json
// @Param document_type formData string true "Document kind"
// @Param file formData file true "Document file"
// @Success 201 {object} response.Envelope
// @Router /submissions/documents [post]
func (h *SubmissionHandler) CreateDocument(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	fileRef, err := h.storeUpload(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	req := dto.CreateDocumentRequest{
		DocumentType: models.DocumentType(strings.ToUpper(strings.TrimSpace(c.PostForm("document_type")))),
		FileRef:      fileRef,
	}
	submission, err := h.service.SubmitDocument(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, h.decorate(*submission), nil)
}

// CreateSupport godoc
// @Summary Upload a payment support for an installment
// @Tags Submissions
// @Accept multipart/form-data
// @Produce json
// @Param installment_id formData string true "Installment ID"
// @Param amount formData number true "Paid amount"
// @Param file formData file true "Support file"
// @Success 201 {object} response.Envelope
// @Router /submissions/supports [post]
func (h *SubmissionHandler) CreateSupport(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	amount, err := strconv.ParseFloat(c.PostForm("amount"), 64)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid amount"))
		return
	}
	fileRef, err := h.storeUpload(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	req := dto.CreateSupportRequest{
		InstallmentID: strings.TrimSpace(c.PostForm("installment_id")),
		Amount:        amount,
		FileRef:       fileRef,
	}
	submission, err := h.service.SubmitSupport(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, h.decorate(*submission), nil)
}

// CreateRequest godoc
// @Summary File an administrative request
// @Tags Submissions
// @Accept json
// @Produce json
// @Param payload body dto.CreateRequestRequest true "Request payload"
// @Success 201 {object} response.Envelope
// @Router /submissions/requests [post]
func (h *SubmissionHandler) CreateRequest(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CreateRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request payload"))
		return
	}
	submission, err := h.service.SubmitRequest(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, h.decorate(*submission), nil)
}

// Open godoc
// @Summary Take a pending submission into review
// @Tags Submissions
// @Produce json
// @Param id path string true "Submission ID"
// @Success 200 {object} response.Envelope
// @Router /submissions/{id}/open [post]
func (h *SubmissionHandler) Open(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	submission, err := h.service.Open(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, h.decorate(*submission), nil)
}

// Approve godoc
// @Summary Approve a submission
// @Tags Submissions
// @Accept json
// @Produce json
// @Param id path string true "Submission ID"
// @Param payload body dto.ApproveSubmissionRequest false "Optional staff response"
// @Success 200 {object} response.Envelope
// @Router /submissions/{id}/approve [post]
func (h *SubmissionHandler) Approve(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.ApproveSubmissionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid approval payload"))
			return
		}
	}
	submission, err := h.service.Approve(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, h.decorate(*submission), nil)
}

// Reject godoc
// @Summary Reject a submission with a mandatory reason
// @Tags Submissions
// @Accept json
// @Produce json
// @Param id path string true "Submission ID"
// @Param payload body dto.RejectSubmissionRequest true "Rejection reason"
// @Success 200 {object} response.Envelope
// @Router /submissions/{id}/reject [post]
func (h *SubmissionHandler) Reject(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.RejectSubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid rejection payload"))
		return
	}
	submission, err := h.service.Reject(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, h.decorate(*submission), nil)
}

// Resubmit godoc
// @Summary Replace a rejected submission
// @Tags Submissions
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Rejected submission ID"
// @Param file formData file false "Replacement file (documents and supports)"
// @Param message formData string false "Replacement message (requests)"
// @Success 201 {object} response.Envelope
// @Router /submissions/{id}/resubmit [post]
func (h *SubmissionHandler) Resubmit(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	req := dto.ResubmitRequest{Message: c.PostForm("message")}
	if _, err := c.FormFile("file"); err == nil {
		fileRef, err := h.storeUpload(c)
		if err != nil {
			response.Error(c, err)
			return
		}
		req.FileRef = fileRef
	}
	submission, err := h.service.Resubmit(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, h.decorate(*submission), nil)
}

// Get godoc
// @Summary Get submission detail
// @Tags Submissions
// @Produce json
// @Param id path string true "Submission ID"
// @Success 200 {object} response.Envelope
// @Router /submissions/{id} [get]
func (h *SubmissionHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	submission, err := h.service.Get(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, h.decorate(*submission), nil)
}

// List godoc
// @Summary List submissions
// @Tags Submissions
// @Produce json
// @Param student_id query string false "Student ID (staff only)"
// @Param kind query string false "Submission kind"
// @Param status query string false "Review status"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /submissions [get]
func (h *SubmissionHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	query := dto.SubmissionQuery{
		StudentID: strings.TrimSpace(c.Query("student_id")),
		Page:      parseIntDefault(c.Query("page"), 1),
		PageSize:  parseIntDefault(c.Query("page_size"), 20),
	}
	if raw := c.Query("kind"); raw != "" {
		query.Kind = models.SubmissionKind(strings.ToUpper(raw))
	}
	if raw := c.Query("status"); raw != "" {
		status := models.ReviewStatus(strings.ToUpper(raw))
		// The request flows also accept the Spanish vocabulary.
		if normalized, ok := dto.NormalizeRequestStatus(strings.ToLower(raw)); ok {
			status = normalized
		}
		query.Status = status
	}
	submissions, pagination, err := h.service.List(c.Request.Context(), query, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	decorated := make([]dto.SubmissionResponse, 0, len(submissions))
	for _, s := range submissions {
		decorated = append(decorated, h.decorate(s))
	}
	response.JSON(c, http.StatusOK, decorated, pagination)
}

// Checklist godoc
// @Summary Document checklist progress for a student
// @Tags Submissions
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/checklist [get]
func (h *SubmissionHandler) Checklist(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	items, err := h.service.Checklist(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Download godoc
// @Summary Download a stored document via signed token
// @Tags Submissions
// @Produce octet-stream
// @Param token query string true "Signed token"
// @Success 200 {file} binary
// @Router /files [get]
func (h *SubmissionHandler) Download(c *gin.Context) {
	if h.signer == nil || h.uploads == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "file storage not configured"))
		return
	}
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	reference, _, err := h.signer.Parse(token)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired file token"))
		return
	}
	file, err := h.uploads.Open(reference)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "file not found"))
		return
	}
	defer file.Close() //nolint:errcheck
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(reference)))
	c.File(h.uploads.Path(reference))
}

func (h *SubmissionHandler) storeUpload(c *gin.Context) (string, error) {
	if h.uploads == nil {
		return "", appErrors.Clone(appErrors.ErrInternal, "file storage not configured")
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return "", appErrors.Clone(appErrors.ErrValidation, "file is required")
	}
	file, err := fileHeader.Open()
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open upload")
	}
	defer file.Close() //nolint:errcheck

	reference, err := h.uploads.Save(file, fileHeader.Filename, fileHeader.Header.Get("Content-Type"), fileHeader.Size)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	return reference, nil
}

func (h *SubmissionHandler) decorate(s models.Submission) dto.SubmissionResponse {
	var fileURL string
	if h.signer != nil && s.FileRef != nil && *s.FileRef != "" {
		if token, _, err := h.signer.Generate(*s.FileRef); err == nil {
			fileURL = fmt.Sprintf("/api/v1/files?token=%s", token)
		}
	}
	return dto.NewSubmissionResponse(s, fileURL)
}

func parseIntDefault(raw string, def int) int {
	if raw == "" {
		return def
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return def
	}
	return value
}

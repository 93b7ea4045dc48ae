package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/matriculapp/enrollment-api/internal/models"
	"github.com/matriculapp/enrollment-api/internal/repository"
)

// stubState is a shared in-memory backing store for the repository stubs.
type stubState struct {
	students      map[string]*models.Student
	submissions   map[string]*models.Submission
	installments  map[string]*models.Installment
	history       []models.StageHistoryEntry
	notifications map[string]*models.Notification
	users         map[string]*models.User
	seq           int
}

func newStubState() *stubState {
	return &stubState{
		students:      make(map[string]*models.Student),
		submissions:   make(map[string]*models.Submission),
		installments:  make(map[string]*models.Installment),
		notifications: make(map[string]*models.Notification),
		users:         make(map[string]*models.User),
	}
}

// nextID skips identifiers already taken by seeded fixtures.
func (st *stubState) nextID(prefix string) string {
	for {
		st.seq++
		id := fmt.Sprintf("%s-%d", prefix, st.seq)
		if st.taken(id) {
			continue
		}
		return id
	}
}

func (st *stubState) taken(id string) bool {
	if _, ok := st.students[id]; ok {
		return true
	}
	if _, ok := st.submissions[id]; ok {
		return true
	}
	if _, ok := st.installments[id]; ok {
		return true
	}
	if _, ok := st.notifications[id]; ok {
		return true
	}
	if _, ok := st.users[id]; ok {
		return true
	}
	return false
}

type stubUOW struct {
	repos repository.Repos
}

func newStubUOW(st *stubState) *stubUOW {
	return &stubUOW{repos: repository.Repos{
		Users:         &stubUsers{st: st},
		Students:      &stubStudents{st: st},
		Submissions:   &stubSubmissions{st: st},
		Installments:  &stubInstallments{st: st},
		History:       &stubHistory{st: st},
		Notifications: &stubNotifications{st: st},
	}}
}

func (u *stubUOW) WithinTx(ctx context.Context, fn func(r repository.Repos) error) error {
	return fn(u.repos)
}

type stubStudents struct{ st *stubState }

func (s *stubStudents) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = s.st.nextID("student")
	}
	s.st.students[student.ID] = student
	return nil
}

func (s *stubStudents) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if student, ok := s.st.students[id]; ok {
		clone := *student
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

func (s *stubStudents) FindByUserID(ctx context.Context, userID string) (*models.Student, error) {
	for _, student := range s.st.students {
		if student.UserID == userID {
			clone := *student
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *stubStudents) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	var result []models.Student
	for _, student := range s.st.students {
		if filter.Stage != "" && student.EnrollmentStage != filter.Stage {
			continue
		}
		if filter.Search != "" && !strings.Contains(student.FullName, filter.Search) {
			continue
		}
		result = append(result, *student)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, len(result), nil
}

func (s *stubStudents) UpdateStageIf(ctx context.Context, id string, from, to models.EnrollmentStage) (bool, error) {
	student, ok := s.st.students[id]
	if !ok || student.EnrollmentStage != from {
		return false, nil
	}
	student.EnrollmentStage = to
	return true, nil
}

type stubSubmissions struct{ st *stubState }

func (s *stubSubmissions) Create(ctx context.Context, submission *models.Submission) error {
	if submission.ID == "" {
		submission.ID = s.st.nextID("sub")
	}
	if submission.CreatedAt.IsZero() {
		submission.CreatedAt = time.Now().Add(time.Duration(s.st.seq) * time.Millisecond)
	}
	s.st.submissions[submission.ID] = submission
	return nil
}

func (s *stubSubmissions) FindByID(ctx context.Context, id string) (*models.Submission, error) {
	if submission, ok := s.st.submissions[id]; ok {
		clone := *submission
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

func (s *stubSubmissions) List(ctx context.Context, filter models.SubmissionFilter) ([]models.Submission, int, error) {
	var result []models.Submission
	for _, submission := range s.st.submissions {
		if filter.StudentID != "" && submission.StudentID != filter.StudentID {
			continue
		}
		if filter.Kind != "" && submission.Kind != filter.Kind {
			continue
		}
		if filter.Status != "" && submission.Status != filter.Status {
			continue
		}
		result = append(result, *submission)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, len(result), nil
}

func (s *stubSubmissions) UpdateReview(ctx context.Context, params repository.ReviewUpdateParams) (bool, error) {
	submission, ok := s.st.submissions[params.ID]
	if !ok || !submission.Reviewable() {
		return false, nil
	}
	submission.Status = params.Status
	submission.RejectionReason = params.RejectionReason
	if params.Response != nil {
		submission.Response = params.Response
	}
	reviewedBy := params.ReviewedBy
	reviewedAt := params.ReviewedAt
	submission.ReviewedBy = &reviewedBy
	submission.ReviewedAt = &reviewedAt
	return true, nil
}

func (s *stubSubmissions) MarkSuperseded(ctx context.Context, id string) error {
	submission, ok := s.st.submissions[id]
	if !ok {
		return sql.ErrNoRows
	}
	submission.Superseded = true
	return nil
}

func (s *stubSubmissions) ApprovedDocumentTypes(ctx context.Context, studentID string) (map[models.DocumentType]bool, error) {
	approved := make(map[models.DocumentType]bool)
	for _, submission := range s.st.submissions {
		if submission.StudentID != studentID || submission.Kind != models.KindDocument {
			continue
		}
		if submission.Status == models.StatusApproved && submission.DocumentType != nil {
			approved[*submission.DocumentType] = true
		}
	}
	return approved, nil
}

func (s *stubSubmissions) DocumentChecklist(ctx context.Context, studentID string) ([]repository.DocumentChecklistRow, error) {
	latest := make(map[models.DocumentType]*models.Submission)
	for _, submission := range s.st.submissions {
		if submission.StudentID != studentID || submission.Kind != models.KindDocument || submission.DocumentType == nil {
			continue
		}
		current, ok := latest[*submission.DocumentType]
		if !ok || submission.CreatedAt.After(current.CreatedAt) {
			latest[*submission.DocumentType] = submission
		}
	}
	var rows []repository.DocumentChecklistRow
	for docType, submission := range latest {
		rows = append(rows, repository.DocumentChecklistRow{
			DocumentType: docType,
			Status:       submission.Status,
			SubmissionID: submission.ID,
			ReviewedAt:   submission.ReviewedAt,
		})
	}
	return rows, nil
}

func (s *stubSubmissions) CountByStatus(ctx context.Context, studentID string, status models.ReviewStatus) (int, error) {
	count := 0
	for _, submission := range s.st.submissions {
		if submission.StudentID == studentID && submission.Status == status {
			count++
		}
	}
	return count, nil
}

type stubInstallments struct{ st *stubState }

func (s *stubInstallments) Create(ctx context.Context, installment *models.Installment) error {
	if installment.ID == "" {
		installment.ID = s.st.nextID("inst")
	}
	s.st.installments[installment.ID] = installment
	return nil
}

func (s *stubInstallments) FindByID(ctx context.Context, id string) (*models.Installment, error) {
	if installment, ok := s.st.installments[id]; ok {
		clone := *installment
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

func (s *stubInstallments) ListByStudent(ctx context.Context, studentID string) ([]models.Installment, error) {
	var result []models.Installment
	for _, installment := range s.st.installments {
		if installment.StudentID == studentID {
			result = append(result, *installment)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Number < result[j].Number })
	return result, nil
}

func (s *stubInstallments) UpdateStatus(ctx context.Context, id string, status models.InstallmentStatus, paidAt *time.Time) error {
	installment, ok := s.st.installments[id]
	if !ok {
		return sql.ErrNoRows
	}
	installment.Status = status
	installment.PaidAt = paidAt
	return nil
}

type stubHistory struct{ st *stubState }

func (s *stubHistory) Append(ctx context.Context, entry *models.StageHistoryEntry) error {
	if entry.ID == "" {
		entry.ID = s.st.nextID("hist")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	s.st.history = append(s.st.history, *entry)
	return nil
}

func (s *stubHistory) ListByStudent(ctx context.Context, studentID string) ([]models.StageHistoryEntry, error) {
	var result []models.StageHistoryEntry
	for i := len(s.st.history) - 1; i >= 0; i-- {
		if s.st.history[i].StudentID == studentID {
			result = append(result, s.st.history[i])
		}
	}
	return result, nil
}

type stubNotifications struct{ st *stubState }

func (s *stubNotifications) Create(ctx context.Context, notification *models.Notification) error {
	if notification.ID == "" {
		notification.ID = s.st.nextID("notif")
	}
	s.st.notifications[notification.ID] = notification
	return nil
}

func (s *stubNotifications) FindByID(ctx context.Context, id string) (*models.Notification, error) {
	if notification, ok := s.st.notifications[id]; ok {
		clone := *notification
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

func (s *stubNotifications) ListByUser(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error) {
	var result []models.Notification
	for _, notification := range s.st.notifications {
		if notification.UserID != filter.UserID {
			continue
		}
		if filter.UnreadOnly && notification.IsRead {
			continue
		}
		result = append(result, *notification)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, len(result), nil
}

func (s *stubNotifications) MarkRead(ctx context.Context, id, userID string) (bool, error) {
	notification, ok := s.st.notifications[id]
	if !ok || notification.UserID != userID {
		return false, nil
	}
	notification.IsRead = true
	return true, nil
}

func (s *stubNotifications) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	var affected int64
	for _, notification := range s.st.notifications {
		if notification.UserID == userID && !notification.IsRead {
			notification.IsRead = true
			affected++
		}
	}
	return affected, nil
}

func (s *stubNotifications) CountUnread(ctx context.Context, userID string) (int, error) {
	count := 0
	for _, notification := range s.st.notifications {
		if notification.UserID == userID && !notification.IsRead {
			count++
		}
	}
	return count, nil
}

type stubUsers struct{ st *stubState }

func (s *stubUsers) Create(ctx context.Context, user *models.User) error {
	for _, existing := range s.st.users {
		if existing.Email == user.Email {
			return fmt.Errorf("duplicate email")
		}
	}
	if user.ID == "" {
		user.ID = s.st.nextID("user")
	}
	s.st.users[user.ID] = user
	return nil
}

func (s *stubUsers) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, user := range s.st.users {
		if user.Email == email {
			clone := *user
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *stubUsers) FindByID(ctx context.Context, id string) (*models.User, error) {
	if user, ok := s.st.users[id]; ok {
		clone := *user
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

func (s *stubUsers) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	if user, ok := s.st.users[id]; ok {
		user.LastLogin = &ts
	}
	return nil
}

func staffClaims(role models.UserRole) *models.JWTClaims {
	return &models.JWTClaims{UserID: "staff-1", Role: role, Email: "staff@example.com"}
}

func studentClaims(userID string) *models.JWTClaims {
	return &models.JWTClaims{UserID: userID, Role: models.RoleEstudiante, Email: "student@example.com"}
}

func seedStudent(st *stubState, id, userID string, stage models.EnrollmentStage) *models.Student {
	student := &models.Student{
		ID:              id,
		UserID:          userID,
		FullName:        "Ana Morales",
		DocumentNumber:  "100200300",
		Program:         "Ingeniería",
		EnrollmentStage: stage,
		Active:          true,
	}
	st.students[id] = student
	return student
}

package dto

// CreateStudentRequest payload for registering a new enrollee.
type CreateStudentRequest struct {
	Email          string `json:"email" validate:"required,email"`
	Password       string `json:"password" validate:"required,min=6"`
	FullName       string `json:"full_name" validate:"required"`
	DocumentNumber string `json:"document_number" validate:"required"`
	Phone          string `json:"phone"`
	Program        string `json:"program" validate:"required"`
}

package models

type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email" example:"ada@example.com"`
	Password string `json:"password" binding:"required,min=8"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type CreateProjectRequest struct {
	Name        string  `json:"name" binding:"required"`
	Description *string `json:"description,omitempty"`
	// Defaults to "active" when omitted.
	Status string `json:"status,omitempty"`
}

// UpdateProjectRequest only applies the fields that are present.
type UpdateProjectRequest struct {
	Name   *string `json:"name,omitempty"`
	Status *string `json:"status,omitempty"`
}

type RefreshOutcomeRequest struct {
	// Optional description override; replaces the stored description.
	Description *string `json:"description,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

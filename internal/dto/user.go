package dto

import "github.com/pharmedu/training-api/internal/models"

// CreateUserRequest payload for provisioning an account.
type CreateUserRequest struct {
	Email    string          `json:"email" validate:"required,email"`
	Password string          `json:"password" validate:"required,min=6"`
	FullName string          `json:"fullName" validate:"required"`
	Role     models.UserRole `json:"role" validate:"required,oneof=ADMIN TEACHER STUDENT"`
}

// UpdateUserRequest payload for editing an account.
type UpdateUserRequest struct {
	FullName string          `json:"fullName"`
	Role     models.UserRole `json:"role" validate:"omitempty,oneof=ADMIN TEACHER STUDENT"`
	Active   *bool           `json:"active"`
}

// UserListResponse wraps a user page with pagination metadata.
type UserListResponse struct {
	Users      []models.User      `json:"users"`
	Pagination *models.Pagination `json:"pagination,omitempty"`
}

package dto

import (
	"time"

	"github.com/spec-kit/user-service/internal/domain"
)

// RegisterRequest payload for POST /auth/register and POST /users.
type RegisterRequest struct {
	Name     string  `json:"name" validate:"required,max=100"`
	Email    string  `json:"email" validate:"required,email,max=150"`
	Password string  `json:"password" validate:"required,pwd"`
	Phone    *string `json:"phone" validate:"omitempty,max=20"`
}

// ToNewUser converts the payload to service input.
func (r RegisterRequest) ToNewUser() domain.NewUser {
	return domain.NewUser{Name: r.Name, Email: r.Email, Password: r.Password, Phone: r.Phone}
}

// CreateUserRequest shares the registration shape.
type CreateUserRequest = RegisterRequest

// LoginRequest payload for login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=150"`
	Password string `json:"password" validate:"required"`
}

// UpdateUserRequest payload for PUT /users/:id; absent fields are unchanged.
type UpdateUserRequest struct {
	Name   *string `json:"name" validate:"omitempty,min=1,max=100"`
	Email  *string `json:"email" validate:"omitempty,email,max=150"`
	Phone  *string `json:"phone" validate:"omitempty,max=20"`
	Active *bool   `json:"active"`
}

// ToPatch converts the payload to a store patch.
func (r UpdateUserRequest) ToPatch() domain.UserPatch {
	return domain.UserPatch{Name: r.Name, Email: r.Email, Phone: r.Phone, Active: r.Active}
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AuthPayload is the data body of register and login.
type AuthPayload struct {
	User domain.PublicUser `json:"user"`
	Auth AuthResponse      `json:"auth"`
}

// Package dto defines request and response payloads for the user endpoints.
package dto

import (
	"time"

	"github.com/splitrx/splitrx/internal/user/domain"
	"github.com/splitrx/splitrx/internal/user/usecase"
)

// RegisterRequest is the payload for account registration.
type RegisterRequest struct {
	Email         string `json:"email"`
	Password      string `json:"password"`
	FullName      string `json:"full_name"`
	Role          string `json:"role"`
	LicenseNumber string `json:"license_number,omitempty"`
}

// ToInput converts the request to a use case input.
func (r *RegisterRequest) ToInput() usecase.RegisterInput {
	return usecase.RegisterInput{
		Email:         r.Email,
		Password:      r.Password,
		FullName:      r.FullName,
		Role:          r.Role,
		LicenseNumber: r.LicenseNumber,
	}
}

// LoginRequest is the payload for authentication.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RotateKeysRequest is the payload for key rotation.
type RotateKeysRequest struct {
	Reason string `json:"reason"`
}

// UserResponse is the public view of a user. The encrypted private key never
// leaves the server.
type UserResponse struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	FullName      string    `json:"full_name"`
	Role          string    `json:"role"`
	LicenseNumber string    `json:"license_number,omitempty"`
	PublicKeyPEM  string    `json:"public_key"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
}

// NewUserResponse maps a user to its public view.
func NewUserResponse(user *domain.User) UserResponse {
	response := UserResponse{
		ID:           user.ID.String(),
		Email:        user.Email,
		FullName:     user.FullName,
		Role:         string(user.Role),
		PublicKeyPEM: user.PublicKeyPEM,
		IsActive:     user.IsActive,
		CreatedAt:    user.CreatedAt,
	}
	if user.LicenseNumber != nil {
		response.LicenseNumber = *user.LicenseNumber
	}
	return response
}

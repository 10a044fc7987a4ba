package account

import "time"

// User is the authenticated account as returned by the auth endpoints.
type User struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	IsEmailVerified bool      `json:"isEmailVerified"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// LoginRequest holds the credentials for POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignupRequest holds the fields for POST /api/auth/signup.
type SignupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ForgotPasswordRequest holds the email a reset link is sent to.
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// ResetPasswordRequest carries the reset token from the emailed link and the
// new password.
type ResetPasswordRequest struct {
	ResetToken string `json:"-"`
	Password   string `json:"password"`
}

// AuthResponse is the body of login, signup and reset-password responses.
type AuthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    *User  `json:"data"`
	Token   string `json:"token,omitempty"`
}

// SimpleResponse is a response without a payload.
type SimpleResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

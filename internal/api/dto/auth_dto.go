package dto

import "time"

// RegisterRequest payload for new users.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest payload for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshRequest carries the refresh token when it travels in the body.
type RefreshRequest struct {
	Token string `json:"token"`
}

// UserResponse is the public view of an account.
type UserResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// TokenResponse standard response for session endpoints. RefreshToken is
// omitted when it is delivered as a cookie.
type TokenResponse struct {
	AccessToken     string        `json:"accessToken"`
	AccessExpiresAt time.Time     `json:"accessExpiresAt"`
	RefreshToken    string        `json:"refreshToken,omitempty"`
	User            *UserResponse `json:"user,omitempty"`
}

// MessageResponse is a plain acknowledgement.
type MessageResponse struct {
	Message string `json:"message"`
}

// AccessResponse describes the caller's standing on the list owning a resource.
type AccessResponse struct {
	Kind    string   `json:"kind"`
	ID      string   `json:"id"`
	Role    string   `json:"role"`
	Actions []string `json:"actions"`
}

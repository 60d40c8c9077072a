package dto

import "time"

// CustomerRegisterRequest payload for customer self-registration.
type CustomerRegisterRequest struct {
	Email              string `json:"email"`
	Password           string `json:"password"`
	FullName           string `json:"full_name"`
	FullNameAr         string `json:"full_name_ar"`
	Phone              string `json:"phone"`
	CustomerType       string `json:"customer_type"`
	NationalID         string `json:"national_id"`
	OrganizationName   string `json:"organization_name"`
	OrganizationNameAr string `json:"organization_name_ar"`
	CommercialRegister string `json:"commercial_register"`
	Address            string `json:"address"`
	City               string `json:"city"`
}

// LoginRequest payload for both login flows.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshRequest carries a refresh token for rotation or logout.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// PasswordResetRequest payload for initiating reset.
type PasswordResetRequest struct {
	Email    string `json:"email"`
	UserType string `json:"user_type"`
}

// PasswordResetConfirmRequest payload for confirming reset.
type PasswordResetConfirmRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

// PasswordChangeRequest payload for authenticated password changes.
type PasswordChangeRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// VerifyEmailRequest carries an email verification token.
type VerifyEmailRequest struct {
	Token string `json:"token"`
}

// TokenResponse is the access/refresh pair issued on login.
type TokenResponse struct {
	AccessToken      string    `json:"access_token"`
	TokenType        string    `json:"token_type"`
	ExpiresAt        time.Time `json:"expires_at"`
	RefreshToken     string    `json:"refresh_token"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// AuthResponse standard response for login and registration.
type AuthResponse struct {
	Tokens   TokenResponse     `json:"tokens"`
	Customer *CustomerResponse `json:"customer,omitempty"`
	Employee *EmployeeResponse `json:"employee,omitempty"`
}

// MeResponse describes the caller and its effective permissions.
type MeResponse struct {
	Kind        string            `json:"kind"`
	Customer    *CustomerResponse `json:"customer,omitempty"`
	Employee    *EmployeeResponse `json:"employee,omitempty"`
	Permissions []string          `json:"permissions"`
}

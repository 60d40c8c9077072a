package domain

import "time"

// SubjectType differentiates customer vs employee principals.
type SubjectType string

const (
	SubjectTypeCustomer SubjectType = "CUSTOMER"
	SubjectTypeEmployee SubjectType = "EMPLOYEE"
)

// Valid reports whether the subject type is a known principal kind.
func (s SubjectType) Valid() bool {
	return s == SubjectTypeCustomer || s == SubjectTypeEmployee
}

// Subject is the capability shared by every authenticated principal.
type Subject interface {
	SubjectID() string
	SubjectType() SubjectType
}

// Actor is a value Subject used where only the identity matters.
type Actor struct {
	ID   string
	Type SubjectType
}

func (a Actor) SubjectID() string        { return a.ID }
func (a Actor) SubjectType() SubjectType { return a.Type }

// PrincipalStatus gates login for both principal kinds.
type PrincipalStatus string

const (
	PrincipalStatusActive   PrincipalStatus = "ACTIVE"
	PrincipalStatusInactive PrincipalStatus = "INACTIVE"
)

// RefreshToken is a stored, hashed refresh capability. It points at its
// owner by (UserID, UserType) only.
type RefreshToken struct {
	ID        string
	UserID    string
	UserType  SubjectType
	TokenHash string
	ExpiresAt time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
}

// Valid reports whether the token is unexpired and not revoked.
func (t *RefreshToken) Valid(now time.Time) bool {
	return t.RevokedAt == nil && now.Before(t.ExpiresAt)
}

// PasswordResetToken is a single-use token keyed by (Email, UserType).
type PasswordResetToken struct {
	ID        string
	Email     string
	UserType  SubjectType
	TokenHash string
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

// Valid reports whether the token is unexpired and unused.
func (t *PasswordResetToken) Valid(now time.Time) bool {
	return t.UsedAt == nil && now.Before(t.ExpiresAt)
}

// EmailVerificationToken is a single-use token keyed by (Email, UserType).
type EmailVerificationToken struct {
	ID        string
	Email     string
	UserType  SubjectType
	TokenHash string
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

// Valid reports whether the token is unexpired and unused.
func (t *EmailVerificationToken) Valid(now time.Time) bool {
	return t.UsedAt == nil && now.Before(t.ExpiresAt)
}

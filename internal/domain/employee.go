package domain

import "time"

// Employee is an internal principal whose authority comes from its Role.
type Employee struct {
	ID           string
	EmployeeCode string
	Email        string
	PasswordHash string
	FullName     string
	FullNameAr   string
	Phone        string
	Department   string
	JobTitle     string
	RoleID       string
	Status       PrincipalStatus
	LastLoginAt  *time.Time
	LoginCount   int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (e *Employee) SubjectID() string        { return e.ID }
func (e *Employee) SubjectType() SubjectType { return SubjectTypeEmployee }

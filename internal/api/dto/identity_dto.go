package dto

import "time"

// CustomerProfileRequest is a partial profile update.
type CustomerProfileRequest struct {
	FullName           *string `json:"full_name"`
	FullNameAr         *string `json:"full_name_ar"`
	Phone              *string `json:"phone"`
	NationalID         *string `json:"national_id"`
	OrganizationName   *string `json:"organization_name"`
	OrganizationNameAr *string `json:"organization_name_ar"`
	CommercialRegister *string `json:"commercial_register"`
	Address            *string `json:"address"`
	City               *string `json:"city"`
}

// StatusRequest sets an account status.
type StatusRequest struct {
	Status string `json:"status"`
}

// CustomerResponse is the public view of a customer.
type CustomerResponse struct {
	ID                 string     `json:"id"`
	Email              string     `json:"email"`
	FullName           string     `json:"full_name"`
	FullNameAr         string     `json:"full_name_ar"`
	Phone              string     `json:"phone"`
	CustomerType       string     `json:"customer_type"`
	NationalID         string     `json:"national_id,omitempty"`
	OrganizationName   string     `json:"organization_name,omitempty"`
	OrganizationNameAr string     `json:"organization_name_ar,omitempty"`
	CommercialRegister string     `json:"commercial_register,omitempty"`
	Address            string     `json:"address"`
	City               string     `json:"city"`
	Status             string     `json:"status"`
	EmailVerifiedAt    *time.Time `json:"email_verified_at"`
	LastLoginAt        *time.Time `json:"last_login_at"`
	LoginCount         int        `json:"login_count"`
	CreatedAt          time.Time  `json:"created_at"`
}

// EmployeeCreateRequest payload.
type EmployeeCreateRequest struct {
	EmployeeCode string `json:"employee_code"`
	Email        string `json:"email"`
	Password     string `json:"password"`
	FullName     string `json:"full_name"`
	FullNameAr   string `json:"full_name_ar"`
	Phone        string `json:"phone"`
	Department   string `json:"department"`
	JobTitle     string `json:"job_title"`
	RoleID       string `json:"role_id"`
}

// EmployeeUpdateRequest is a partial employee update.
type EmployeeUpdateRequest struct {
	FullName   *string `json:"full_name"`
	FullNameAr *string `json:"full_name_ar"`
	Phone      *string `json:"phone"`
	Department *string `json:"department"`
	JobTitle   *string `json:"job_title"`
	RoleID     *string `json:"role_id"`
	Status     *string `json:"status"`
}

// EmployeeResponse is the public view of an employee.
type EmployeeResponse struct {
	ID           string     `json:"id"`
	EmployeeCode string     `json:"employee_code"`
	Email        string     `json:"email"`
	FullName     string     `json:"full_name"`
	FullNameAr   string     `json:"full_name_ar"`
	Phone        string     `json:"phone"`
	Department   string     `json:"department"`
	JobTitle     string     `json:"job_title"`
	RoleID       string     `json:"role_id"`
	Status       string     `json:"status"`
	LastLoginAt  *time.Time `json:"last_login_at"`
	LoginCount   int        `json:"login_count"`
	CreatedAt    time.Time  `json:"created_at"`
}

// RoleCreateRequest payload.
type RoleCreateRequest struct {
	Name          string   `json:"name"`
	NameAr        string   `json:"name_ar"`
	Description   string   `json:"description"`
	PermissionIDs []string `json:"permission_ids"`
}

// RoleUpdateRequest payload. A present permission_ids list replaces the
// role's permissions entirely.
type RoleUpdateRequest struct {
	Name          *string   `json:"name"`
	NameAr        *string   `json:"name_ar"`
	Description   *string   `json:"description"`
	PermissionIDs *[]string `json:"permission_ids"`
}

// RoleResponse includes the role's permissions and employee count.
type RoleResponse struct {
	ID            string               `json:"id"`
	Name          string               `json:"name"`
	NameAr        string               `json:"name_ar"`
	Description   string               `json:"description"`
	IsAdmin       bool                 `json:"is_admin"`
	Permissions   []PermissionResponse `json:"permissions"`
	EmployeeCount int                  `json:"employee_count"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

// PermissionCreateRequest payload.
type PermissionCreateRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// PermissionResponse describes one registry entry.
type PermissionResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Module      string `json:"module"`
	Action      string `json:"action"`
	Description string `json:"description"`
}

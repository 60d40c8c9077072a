package domain

import "time"

// AdminRoleName is the name of the single role that holds every permission.
const AdminRoleName = "Admin"

// Role bundles permissions for employees. For the admin role Permissions is
// synthesized from the registry when read, never stored.
type Role struct {
	ID            string
	Name          string
	NameAr        string
	Description   string
	IsAdmin       bool
	Permissions   []Permission
	EmployeeCount int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// PermissionNames returns the names of the role's permissions.
func (r *Role) PermissionNames() []string {
	names := make([]string, 0, len(r.Permissions))
	for _, p := range r.Permissions {
		names = append(names, p.Name)
	}
	return names
}

package auth

import (
	"context"
	"sort"

	"github.com/spec-kit/request-service/internal/domain"
	apperrors "github.com/spec-kit/request-service/pkg/util/errorutil"
)

// PermissionSet is the effective set of permission names of a principal.
type PermissionSet map[string]struct{}

// NewPermissionSet builds a set from names.
func NewPermissionSet(names ...string) PermissionSet {
	set := make(PermissionSet, len(names))
	for _, name := range names {
		set[name] = struct{}{}
	}
	return set
}

// Has reports whether name is in the set.
func (s PermissionSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Names returns the sorted members.
func (s PermissionSet) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasAll reports whether every required permission is in effective. An
// empty requirement list is always satisfied.
func HasAll(required []string, effective PermissionSet) bool {
	return len(Missing(required, effective)) == 0
}

// Missing lists the required permissions absent from effective.
func Missing(required []string, effective PermissionSet) []string {
	var missing []string
	for _, name := range required {
		if !effective.Has(name) {
			missing = append(missing, name)
		}
	}
	return missing
}

// RoleLookup loads a role by id.
type RoleLookup interface {
	GetByID(ctx context.Context, id string) (*domain.Role, error)
}

// PermissionNameLister returns every permission name in the registry.
type PermissionNameLister interface {
	ListNames(ctx context.Context) ([]string, error)
}

// Gate resolves effective permissions. Nothing is cached: an admin sees a
// newly registered permission on the very next check.
type Gate struct {
	roles RoleLookup
	perms PermissionNameLister
}

// NewGate constructs the gate.
func NewGate(roles RoleLookup, perms PermissionNameLister) *Gate {
	return &Gate{roles: roles, perms: perms}
}

// AllPermissionNames returns the current registry contents.
func (g *Gate) AllPermissionNames(ctx context.Context) (PermissionSet, error) {
	names, err := g.perms.ListNames(ctx)
	if err != nil {
		return nil, err
	}
	return NewPermissionSet(names...), nil
}

// ResolveEffectivePermissions computes the permission set for a principal.
// Customers get the static capability set. An employee whose role no longer
// exists resolves to an empty set.
func (g *Gate) ResolveEffectivePermissions(ctx context.Context, kind domain.SubjectType, roleID string) (PermissionSet, error) {
	switch kind {
	case domain.SubjectTypeCustomer:
		return CustomerCapabilities(), nil
	case domain.SubjectTypeEmployee:
	default:
		return PermissionSet{}, nil
	}
	if roleID == "" {
		return PermissionSet{}, nil
	}

	role, err := g.roles.GetByID(ctx, roleID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return PermissionSet{}, nil
		}
		return nil, err
	}
	if role.IsAdmin {
		return g.AllPermissionNames(ctx)
	}
	return NewPermissionSet(role.PermissionNames()...), nil
}

// Authorize resolves the principal's permissions and fails with a forbidden
// error naming the missing permissions.
func (g *Gate) Authorize(ctx context.Context, kind domain.SubjectType, roleID string, required ...string) error {
	effective, err := g.ResolveEffectivePermissions(ctx, kind, roleID)
	if err != nil {
		return apperrors.MapError(err)
	}
	if missing := Missing(required, effective); len(missing) > 0 {
		return apperrors.NewForbidden("insufficient permissions", "صلاحيات غير كافية",
			map[string]any{"required": required, "missing": missing})
	}
	return nil
}

package auth

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/request-service/internal/domain"
	apperrors "github.com/spec-kit/request-service/pkg/util/errorutil"
)

type fakeRoles map[string]*domain.Role

func (f fakeRoles) GetByID(_ context.Context, id string) (*domain.Role, error) {
	role, ok := f[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return role, nil
}

type fakeRegistry struct{ names []string }

func (f *fakeRegistry) ListNames(context.Context) ([]string, error) {
	return append([]string(nil), f.names...), nil
}

func newTestGate() (*Gate, *fakeRegistry) {
	registry := &fakeRegistry{names: []string{PermRequestsRead, PermRequestsAssign, PermRolesRead}}
	roles := fakeRoles{
		"admin": {ID: "admin", Name: domain.AdminRoleName, IsAdmin: true},
		"agent": {ID: "agent", Name: "Agent", Permissions: []domain.Permission{{Name: PermRequestsRead}}},
		"empty": {ID: "empty", Name: "Empty"},
	}
	return NewGate(roles, registry), registry
}

func TestResolveEffectivePermissions(t *testing.T) {
	gate, _ := newTestGate()
	ctx := context.Background()

	tests := []struct {
		name   string
		kind   domain.SubjectType
		roleID string
		want   []string
	}{
		{name: "customer gets capabilities", kind: domain.SubjectTypeCustomer, want: CustomerCapabilities().Names()},
		{name: "admin gets registry", kind: domain.SubjectTypeEmployee, roleID: "admin", want: []string{PermRequestsAssign, PermRequestsRead, PermRolesRead}},
		{name: "role permissions", kind: domain.SubjectTypeEmployee, roleID: "agent", want: []string{PermRequestsRead}},
		{name: "role without permissions", kind: domain.SubjectTypeEmployee, roleID: "empty", want: []string{}},
		{name: "missing role", kind: domain.SubjectTypeEmployee, roleID: "gone", want: []string{}},
		{name: "employee without role", kind: domain.SubjectTypeEmployee, want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set, err := gate.ResolveEffectivePermissions(ctx, tt.kind, tt.roleID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, set.Names())
		})
	}
}

func TestAdminSeesNewPermissionImmediately(t *testing.T) {
	gate, registry := newTestGate()
	ctx := context.Background()

	require.Error(t, gate.Authorize(ctx, domain.SubjectTypeEmployee, "admin", "reports:export"))

	registry.names = append(registry.names, "reports:export")
	assert.NoError(t, gate.Authorize(ctx, domain.SubjectTypeEmployee, "admin", "reports:export"))
}

func TestAuthorizeReportsMissing(t *testing.T) {
	gate, _ := newTestGate()

	err := gate.Authorize(context.Background(), domain.SubjectTypeEmployee, "agent", PermRequestsRead, PermRequestsAssign)
	require.Error(t, err)

	de := apperrors.ToDomainError(err)
	assert.Equal(t, "FORBIDDEN", de.Code)
	assert.Equal(t, []string{PermRequestsAssign}, de.Details["missing"])
}

func TestHasAll(t *testing.T) {
	set := NewPermissionSet("a:read", "b:write")
	assert.True(t, HasAll(nil, set))
	assert.True(t, HasAll([]string{"a:read"}, set))
	assert.False(t, HasAll([]string{"a:read", "c:delete"}, set))
	assert.Equal(t, []string{"c:delete"}, Missing([]string{"a:read", "c:delete"}, set))
}

func TestCustomerCapabilitiesStayOutOfRegistry(t *testing.T) {
	caps := CustomerCapabilities()
	for _, p := range BuiltinPermissions() {
		assert.False(t, caps.Has(p.Name), p.Name)
		_, _, ok := domain.ParsePermissionName(p.Name)
		assert.True(t, ok, p.Name)
	}
}

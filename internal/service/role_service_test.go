package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/request-service/internal/auth"
	"github.com/spec-kit/request-service/internal/domain"
	"github.com/spec-kit/request-service/internal/events"
)

func TestBootstrapIsIdempotent(t *testing.T) {
	h := newHarness(t)
	before, err := h.permissions.List(h.ctx)
	require.NoError(t, err)
	assert.Len(t, before, len(auth.BuiltinPermissions()))

	cfg := testConfig().Auth
	cfg.BootstrapAdminEmail = "admin@example.com"
	cfg.BootstrapAdminPassword = "admin-pass-1"
	require.NoError(t, Bootstrap(h.ctx, cfg, BootstrapDependencies{
		Permissions: h.permissions, RoleRepo: h.repos.Roles, EmployeeRepo: h.repos.Employees,
	}))

	after, err := h.permissions.List(h.ctx)
	require.NoError(t, err)
	assert.Len(t, after, len(before))
	roles, err := h.roles.List(h.ctx)
	require.NoError(t, err)
	assert.Len(t, roles, 1)
	count, err := h.repos.Employees.CountByRole(h.ctx, h.adminRole.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRolePermissionRoundTrip(t *testing.T) {
	h := newHarness(t)
	role := h.role(t, "Reviewer", auth.PermRequestsRead, auth.PermRequestsUpdateStatus)
	assert.ElementsMatch(t, []string{auth.PermRequestsRead, auth.PermRequestsUpdateStatus}, role.PermissionNames())

	all, err := h.permissions.List(h.ctx)
	require.NoError(t, err)
	var assignID string
	for _, p := range all {
		if p.Name == auth.PermRequestsAssign {
			assignID = p.ID
		}
	}
	ids := []string{assignID, assignID}
	updated, err := h.roles.Update(h.ctx, h.admin, role.ID, RoleUpdateInput{PermissionIDs: &ids})
	require.NoError(t, err)
	assert.Equal(t, []string{auth.PermRequestsAssign}, updated.PermissionNames())

	fetched, err := h.roles.Get(h.ctx, role.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{auth.PermRequestsAssign}, fetched.PermissionNames())

	name := "Senior Reviewer"
	renamed, err := h.roles.Update(h.ctx, h.admin, role.ID, RoleUpdateInput{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, name, renamed.Name)
	assert.Equal(t, []string{auth.PermRequestsAssign}, renamed.PermissionNames())
}

func TestRoleRejectsUnknownPermissionsAndDuplicates(t *testing.T) {
	h := newHarness(t)

	_, err := h.roles.Create(h.ctx, h.admin, RoleCreateInput{Name: "Bad", PermissionIDs: []string{"not-a-uuid"}})
	requireCode(t, err, "NOT_FOUND")

	_, err = h.roles.Create(h.ctx, h.admin, RoleCreateInput{Name: "Bad", PermissionIDs: []string{"7a0b1f0e-0000-4000-8000-000000000000"}})
	requireCode(t, err, "NOT_FOUND")

	h.role(t, "Agent")
	_, err = h.roles.Create(h.ctx, h.admin, RoleCreateInput{Name: "Agent"})
	requireCode(t, err, "CONFLICT")
}

func TestRoleDeleteBlockedWhileAssigned(t *testing.T) {
	h := newHarness(t)
	agent := h.role(t, "Agent", auth.PermRequestsRead)
	backup := h.role(t, "Backup", auth.PermRequestsRead)
	employee := h.employee(t, agent.ID)

	err := h.roles.Delete(h.ctx, h.admin, agent.ID)
	de := requireCode(t, err, "BAD_REQUEST")
	assert.Equal(t, 1, de.Details["employee_count"])

	_, err = h.employees.Update(h.ctx, h.admin, employee.ID, EmployeeUpdateInput{RoleID: &backup.ID})
	require.NoError(t, err)

	require.NoError(t, h.roles.Delete(h.ctx, h.admin, agent.ID))
	_, err = h.roles.Get(h.ctx, agent.ID)
	requireCode(t, err, "NOT_FOUND")
}

func TestAdminRoleIsProtected(t *testing.T) {
	h := newHarness(t)

	err := h.roles.Delete(h.ctx, h.admin, h.adminRole.ID)
	requireCode(t, err, "BAD_REQUEST")

	name := "Root"
	_, err = h.roles.Update(h.ctx, h.admin, h.adminRole.ID, RoleUpdateInput{Name: &name})
	requireCode(t, err, "BAD_REQUEST")

	ids := []string{}
	_, err = h.roles.Update(h.ctx, h.admin, h.adminRole.ID, RoleUpdateInput{PermissionIDs: &ids})
	requireCode(t, err, "BAD_REQUEST")
}

func TestAdminHoldsNewPermissionsImmediately(t *testing.T) {
	h := newHarness(t)
	gate := auth.NewGate(h.repos.Roles, h.repos.Permissions)

	err := gate.Authorize(h.ctx, domain.SubjectTypeEmployee, h.adminRole.ID, "reports:export")
	requireCode(t, err, "FORBIDDEN")

	perm, err := h.permissions.Create(h.ctx, h.admin, "reports:export", "Export reports")
	require.NoError(t, err)
	assert.Equal(t, "reports", perm.Module)
	assert.Equal(t, "export", perm.Action)

	assert.NoError(t, gate.Authorize(h.ctx, domain.SubjectTypeEmployee, h.adminRole.ID, "reports:export"))

	adminRole, err := h.roles.Get(h.ctx, h.adminRole.ID)
	require.NoError(t, err)
	assert.Contains(t, adminRole.PermissionNames(), "reports:export")

	agent := h.role(t, "Agent", auth.PermRequestsRead)
	err = gate.Authorize(h.ctx, domain.SubjectTypeEmployee, agent.ID, "reports:export")
	requireCode(t, err, "FORBIDDEN")

	_, err = h.permissions.Create(h.ctx, h.admin, "reports:export", "")
	requireCode(t, err, "CONFLICT")
	_, err = h.permissions.Create(h.ctx, h.admin, "Reports-Export", "")
	requireCode(t, err, "VALIDATION_FAILED")
}

func TestRoleChangeTakesEffectWithoutNewToken(t *testing.T) {
	h := newHarness(t)
	gate := auth.NewGate(h.repos.Roles, h.repos.Permissions)
	role := h.role(t, "Agent", auth.PermRequestsRead)

	require.NoError(t, gate.Authorize(h.ctx, domain.SubjectTypeEmployee, role.ID, auth.PermRequestsRead))

	ids := []string{}
	_, err := h.roles.Update(h.ctx, h.admin, role.ID, RoleUpdateInput{PermissionIDs: &ids})
	require.NoError(t, err)

	err = gate.Authorize(h.ctx, domain.SubjectTypeEmployee, role.ID, auth.PermRequestsRead)
	requireCode(t, err, "FORBIDDEN")
}

func TestDoubleAssignmentOverwrites(t *testing.T) {
	h := newHarness(t)
	agent := h.role(t, "Agent", auth.PermRequestsRead)
	first := h.employee(t, agent.ID)
	second := h.employee(t, agent.ID)
	req := h.advanceTo(t, h.draft(t, h.customer(t, "owner@example.com")), domain.RequestStatusSubmitted)

	assigned, err := h.assignments.AssignEmployee(h.ctx, h.admin, req.ID, first.ID, "please review")
	require.NoError(t, err)
	require.NotNil(t, assigned.AssignedToID)
	assert.Equal(t, first.ID, *assigned.AssignedToID)
	firstAt := *assigned.AssignedAt

	h.advance(time.Hour)
	reassigned, err := h.assignments.AssignEmployee(h.ctx, h.admin, req.ID, second.ID, "")
	require.NoError(t, err)
	assert.Equal(t, second.ID, *reassigned.AssignedToID)
	assert.True(t, reassigned.AssignedAt.After(firstAt))
	assert.Equal(t, domain.RequestStatusSubmitted, reassigned.Status)

	assigns := h.eventsOf(events.EventRequestAssigned)
	require.Len(t, assigns, 2)
	assert.Equal(t, second.ID, assigns[1].Payload.(events.RequestAssignedPayload).AssigneeID)

	inbox, total, err := h.notifications.List(h.ctx, second, false, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, domain.NotificationRequestAssigned, inbox[0].Type)
}

func TestAssignmentRejectsInactiveOrClosed(t *testing.T) {
	h := newHarness(t)
	agent := h.role(t, "Agent")
	employee := h.employee(t, agent.ID)
	req := h.draft(t, h.customer(t, "owner@example.com"))

	_, err := h.assignments.AssignEmployee(h.ctx, h.admin, req.ID, "00000000-0000-4000-8000-000000000000", "")
	requireCode(t, err, "NOT_FOUND")

	inactive := domain.PrincipalStatusInactive
	_, err = h.employees.Update(h.ctx, h.admin, employee.ID, EmployeeUpdateInput{Status: &inactive})
	require.NoError(t, err)
	_, err = h.assignments.AssignEmployee(h.ctx, h.admin, req.ID, employee.ID, "")
	requireCode(t, err, "BAD_REQUEST")

	closed := h.advanceTo(t, h.draft(t, h.customer(t, "late@example.com")), domain.RequestStatusCancelled)
	_, err = h.assignments.AssignEmployee(h.ctx, h.admin, closed.ID, h.admin.ID, "")
	requireCode(t, err, "BAD_REQUEST")
}

func TestEmployeeCreateValidation(t *testing.T) {
	h := newHarness(t)
	agent := h.role(t, "Agent")

	_, err := h.employees.Create(h.ctx, h.admin, EmployeeCreateInput{
		EmployeeCode: "E-1", Email: "x@example.com", Password: "short", FullName: "X", RoleID: agent.ID,
	})
	requireCode(t, err, "VALIDATION_FAILED")

	_, err = h.employees.Create(h.ctx, h.admin, EmployeeCreateInput{
		EmployeeCode: "E-1", Email: "x@example.com", Password: "long-enough", FullName: "X",
		RoleID: "00000000-0000-4000-8000-000000000000",
	})
	requireCode(t, err, "NOT_FOUND")

	_, err = h.employees.Create(h.ctx, h.admin, EmployeeCreateInput{
		EmployeeCode: "E-2", Email: "ADMIN@example.com", Password: "long-enough", FullName: "X", RoleID: agent.ID,
	})
	requireCode(t, err, "CONFLICT")
}

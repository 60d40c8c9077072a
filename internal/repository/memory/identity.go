package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/spec-kit/request-service/internal/domain"
	"github.com/spec-kit/request-service/internal/repository"
)

type permissionRepo struct{ s *Store }

func (r *permissionRepo) Seed(ctx context.Context, perms []domain.Permission) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	inserted := 0
	for _, p := range perms {
		if r.s.permissionByNameLocked(p.Name) != nil {
			continue
		}
		p.ID = newID()
		p.CreatedAt = r.s.now()
		r.s.permissions[p.ID] = p
		inserted++
	}
	return inserted, nil
}

func (r *permissionRepo) Create(ctx context.Context, perm *domain.Permission) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.permissionByNameLocked(perm.Name) != nil {
		return uniqueViolation("permissions_name_key")
	}
	perm.ID = newID()
	perm.CreatedAt = r.s.now()
	r.s.permissions[perm.ID] = *perm
	return nil
}

func (r *permissionRepo) List(ctx context.Context) ([]domain.Permission, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.sortedPermissionsLocked(nil), nil
}

func (r *permissionRepo) ListNames(ctx context.Context) ([]string, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	names := make([]string, 0, len(r.s.permissions))
	for _, p := range r.s.permissions {
		names = append(names, p.Name)
	}
	return names, nil
}

func (r *permissionRepo) GetByIDs(ctx context.Context, ids []string) ([]domain.Permission, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	return r.s.sortedPermissionsLocked(wanted), nil
}

func (s *Store) permissionByNameLocked(name string) *domain.Permission {
	for _, p := range s.permissions {
		if p.Name == name {
			return &p
		}
	}
	return nil
}

func (s *Store) sortedPermissionsLocked(only map[string]struct{}) []domain.Permission {
	out := []domain.Permission{}
	for id, p := range s.permissions {
		if only != nil {
			if _, ok := only[id]; !ok {
				continue
			}
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Module != out[j].Module {
			return out[i].Module < out[j].Module
		}
		return out[i].Action < out[j].Action
	})
	return out
}

type roleRepo struct{ s *Store }

func (r *roleRepo) Create(ctx context.Context, role *domain.Role, permissionIDs []string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.roles {
		if strings.EqualFold(existing.Name, role.Name) {
			return uniqueViolation("roles_name_key")
		}
		if role.IsAdmin && existing.IsAdmin {
			return uniqueViolation("roles_single_admin")
		}
	}
	if err := r.s.checkPermissionIDsLocked(permissionIDs); err != nil {
		return err
	}
	now := r.s.now()
	role.ID = newID()
	role.CreatedAt = now
	role.UpdatedAt = now
	stored := *role
	stored.Permissions = nil
	r.s.roles[role.ID] = stored
	r.s.setRolePermissionsLocked(role.ID, permissionIDs)
	return nil
}

func (r *roleRepo) Update(ctx context.Context, role *domain.Role, permissionIDs []string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.roles[role.ID]
	if !ok {
		return errNoRows
	}
	for id, existing := range r.s.roles {
		if id != role.ID && strings.EqualFold(existing.Name, role.Name) {
			return uniqueViolation("roles_name_key")
		}
	}
	if err := r.s.checkPermissionIDsLocked(permissionIDs); err != nil {
		return err
	}
	stored.Name = role.Name
	stored.NameAr = role.NameAr
	stored.Description = role.Description
	stored.UpdatedAt = r.s.now()
	role.UpdatedAt = stored.UpdatedAt
	r.s.roles[stored.ID] = stored
	r.s.setRolePermissionsLocked(stored.ID, permissionIDs)
	return nil
}

func (s *Store) checkPermissionIDsLocked(ids []string) error {
	for _, id := range ids {
		if _, ok := s.permissions[id]; !ok {
			return foreignKeyViolation("role_permissions_permission_id_fkey")
		}
	}
	return nil
}

func (s *Store) setRolePermissionsLocked(roleID string, ids []string) {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	s.rolePerms[roleID] = set
}

func (s *Store) hydrateRoleLocked(role domain.Role) domain.Role {
	role.Permissions = s.sortedPermissionsLocked(s.rolePermsOrEmptyLocked(role.ID))
	role.EmployeeCount = 0
	for _, e := range s.employees {
		if e.RoleID == role.ID {
			role.EmployeeCount++
		}
	}
	return role
}

func (s *Store) rolePermsOrEmptyLocked(roleID string) map[string]struct{} {
	if set, ok := s.rolePerms[roleID]; ok {
		return set
	}
	return map[string]struct{}{}
}

func (r *roleRepo) GetByID(ctx context.Context, id string) (*domain.Role, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	role, ok := r.s.roles[id]
	if !ok {
		return nil, errNoRows
	}
	hydrated := r.s.hydrateRoleLocked(role)
	return &hydrated, nil
}

func (r *roleRepo) GetByName(ctx context.Context, name string) (*domain.Role, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, role := range r.s.roles {
		if strings.EqualFold(role.Name, name) {
			hydrated := r.s.hydrateRoleLocked(role)
			return &hydrated, nil
		}
	}
	return nil, errNoRows
}

func (r *roleRepo) GetAdmin(ctx context.Context) (*domain.Role, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, role := range r.s.roles {
		if role.IsAdmin {
			hydrated := r.s.hydrateRoleLocked(role)
			return &hydrated, nil
		}
	}
	return nil, errNoRows
}

func (r *roleRepo) List(ctx context.Context) ([]domain.Role, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]domain.Role, 0, len(r.s.roles))
	for _, role := range r.s.roles {
		out = append(out, r.s.hydrateRoleLocked(role))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsAdmin != out[j].IsAdmin {
			return out[i].IsAdmin
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// Delete mirrors the schema: employees.role_id has no cascade.
func (r *roleRepo) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.roles[id]; !ok {
		return errNoRows
	}
	for _, e := range r.s.employees {
		if e.RoleID == id {
			return foreignKeyViolation("employees_role_id_fkey")
		}
	}
	delete(r.s.roles, id)
	delete(r.s.rolePerms, id)
	return nil
}

type customerRepo struct{ s *Store }

func (r *customerRepo) Create(ctx context.Context, c *domain.Customer) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c.Email = strings.ToLower(c.Email)
	for _, existing := range r.s.customers {
		if existing.Email == c.Email {
			return uniqueViolation("customers_email_key")
		}
	}
	now := r.s.now()
	c.ID = newID()
	c.CreatedAt = now
	c.UpdatedAt = now
	r.s.track(c.ID)
	r.s.customers[c.ID] = *c
	return nil
}

func (r *customerRepo) Update(ctx context.Context, c *domain.Customer) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.customers[c.ID]
	if !ok {
		return errNoRows
	}
	stored.PasswordHash = c.PasswordHash
	stored.FullName = c.FullName
	stored.FullNameAr = c.FullNameAr
	stored.Phone = c.Phone
	stored.NationalID = c.NationalID
	stored.OrganizationName = c.OrganizationName
	stored.OrganizationNameAr = c.OrganizationNameAr
	stored.CommercialRegister = c.CommercialRegister
	stored.Address = c.Address
	stored.City = c.City
	stored.Status = c.Status
	stored.EmailVerifiedAt = c.EmailVerifiedAt
	stored.UpdatedAt = r.s.now()
	r.s.customers[stored.ID] = stored
	return nil
}

func (r *customerRepo) GetByID(ctx context.Context, id string) (*domain.Customer, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.customers[id]
	if !ok {
		return nil, errNoRows
	}
	return &c, nil
}

func (r *customerRepo) GetByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	email = strings.ToLower(email)
	for _, c := range r.s.customers {
		if c.Email == email {
			return &c, nil
		}
	}
	return nil, errNoRows
}

func (r *customerRepo) List(ctx context.Context, filter repository.CustomerFilter) ([]domain.Customer, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	term := searchTerm(filter.SearchTerm)
	matched := []domain.Customer{}
	for _, c := range r.s.customers {
		if filter.Status != nil && c.Status != *filter.Status {
			continue
		}
		if filter.Type != nil && c.CustomerType != *filter.Type {
			continue
		}
		if term != "" && !contains(c.FullName, term) && !contains(c.Email, term) && !contains(c.OrganizationName, term) {
			continue
		}
		matched = append(matched, c)
	}
	sort.Slice(matched, func(i, j int) bool {
		return r.s.newerFirst(matched[i].ID, matched[i].CreatedAt, matched[j].ID, matched[j].CreatedAt)
	})
	return page(matched, filter.Limit, filter.Offset), len(matched), nil
}

func (r *customerRepo) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.customers[id]; !ok {
		return errNoRows
	}
	for _, inv := range r.s.invoices {
		if inv.CustomerID == id {
			return foreignKeyViolation("invoices_customer_id_fkey")
		}
	}
	delete(r.s.customers, id)
	for reqID, req := range r.s.requests {
		if req.CustomerID == id {
			r.s.deleteRequestLocked(reqID)
		}
	}
	return nil
}

func (r *customerRepo) RecordLogin(ctx context.Context, id string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.customers[id]
	if !ok {
		return errNoRows
	}
	c.LastLoginAt = &at
	c.LoginCount++
	r.s.customers[c.ID] = c
	return nil
}

func (r *customerRepo) Count(ctx context.Context) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return len(r.s.customers), nil
}

type employeeRepo struct{ s *Store }

func (r *employeeRepo) Create(ctx context.Context, e *domain.Employee) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e.Email = strings.ToLower(e.Email)
	for _, existing := range r.s.employees {
		if existing.Email == e.Email {
			return uniqueViolation("employees_email_key")
		}
		if existing.EmployeeCode == e.EmployeeCode {
			return uniqueViolation("employees_employee_code_key")
		}
	}
	if _, ok := r.s.roles[e.RoleID]; !ok {
		return foreignKeyViolation("employees_role_id_fkey")
	}
	now := r.s.now()
	e.ID = newID()
	e.CreatedAt = now
	e.UpdatedAt = now
	r.s.track(e.ID)
	r.s.employees[e.ID] = *e
	return nil
}

func (r *employeeRepo) Update(ctx context.Context, e *domain.Employee) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.employees[e.ID]
	if !ok {
		return errNoRows
	}
	if _, ok := r.s.roles[e.RoleID]; !ok {
		return foreignKeyViolation("employees_role_id_fkey")
	}
	stored.PasswordHash = e.PasswordHash
	stored.FullName = e.FullName
	stored.FullNameAr = e.FullNameAr
	stored.Phone = e.Phone
	stored.Department = e.Department
	stored.JobTitle = e.JobTitle
	stored.RoleID = e.RoleID
	stored.Status = e.Status
	stored.UpdatedAt = r.s.now()
	r.s.employees[stored.ID] = stored
	return nil
}

func (r *employeeRepo) GetByID(ctx context.Context, id string) (*domain.Employee, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	e, ok := r.s.employees[id]
	if !ok {
		return nil, errNoRows
	}
	return &e, nil
}

func (r *employeeRepo) GetByEmail(ctx context.Context, email string) (*domain.Employee, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	email = strings.ToLower(email)
	for _, e := range r.s.employees {
		if e.Email == email {
			return &e, nil
		}
	}
	return nil, errNoRows
}

func (r *employeeRepo) List(ctx context.Context, filter repository.EmployeeFilter) ([]domain.Employee, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	term := searchTerm(filter.SearchTerm)
	matched := []domain.Employee{}
	for _, e := range r.s.employees {
		if filter.RoleID != nil && e.RoleID != *filter.RoleID {
			continue
		}
		if filter.Status != nil && e.Status != *filter.Status {
			continue
		}
		if filter.Department != nil && e.Department != *filter.Department {
			continue
		}
		if term != "" && !contains(e.FullName, term) && !contains(e.Email, term) && !contains(e.EmployeeCode, term) {
			continue
		}
		matched = append(matched, e)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].FullName < matched[j].FullName })
	return page(matched, filter.Limit, filter.Offset), len(matched), nil
}

func (r *employeeRepo) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.employees[id]; !ok {
		return errNoRows
	}
	delete(r.s.employees, id)
	for reqID, req := range r.s.requests {
		if req.AssignedToID != nil && *req.AssignedToID == id {
			req.AssignedToID = nil
			r.s.requests[reqID] = req
		}
	}
	return nil
}

func (r *employeeRepo) RecordLogin(ctx context.Context, id string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.employees[id]
	if !ok {
		return errNoRows
	}
	e.LastLoginAt = &at
	e.LoginCount++
	r.s.employees[e.ID] = e
	return nil
}

func (r *employeeRepo) CountByRole(ctx context.Context, roleID string) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	n := 0
	for _, e := range r.s.employees {
		if e.RoleID == roleID {
			n++
		}
	}
	return n, nil
}

func (r *employeeRepo) CountActive(ctx context.Context) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	n := 0
	for _, e := range r.s.employees {
		if e.Status == domain.PrincipalStatusActive {
			n++
		}
	}
	return n, nil
}

type refreshRepo struct{ s *Store }

func (r *refreshRepo) Create(ctx context.Context, token *domain.RefreshToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.insertRefreshLocked(token)
	return nil
}

func (s *Store) insertRefreshLocked(token *domain.RefreshToken) {
	token.ID = newID()
	token.CreatedAt = s.now()
	s.refresh[token.ID] = *token
}

func (r *refreshRepo) GetByHash(ctx context.Context, hash string) (*domain.RefreshToken, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, t := range r.s.refresh {
		if t.TokenHash == hash {
			return &t, nil
		}
	}
	return nil, errNoRows
}

func (r *refreshRepo) Rotate(ctx context.Context, oldID string, next *domain.RefreshToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	old, ok := r.s.refresh[oldID]
	if !ok || old.RevokedAt != nil {
		return errNoRows
	}
	now := r.s.now()
	old.RevokedAt = &now
	r.s.refresh[old.ID] = old
	r.s.insertRefreshLocked(next)
	return nil
}

func (r *refreshRepo) Revoke(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if t, ok := r.s.refresh[id]; ok && t.RevokedAt == nil {
		now := r.s.now()
		t.RevokedAt = &now
		r.s.refresh[id] = t
	}
	return nil
}

func (r *refreshRepo) RevokeAllForUser(ctx context.Context, userID string, userType domain.SubjectType) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := r.s.now()
	for _, t := range r.s.refresh {
		if t.UserID == userID && t.UserType == userType && t.RevokedAt == nil {
			t.RevokedAt = &now
			r.s.refresh[t.ID] = t
		}
	}
	return nil
}

func (r *refreshRepo) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for id, t := range r.s.refresh {
		if t.ExpiresAt.Before(now) || t.RevokedAt != nil {
			delete(r.s.refresh, id)
			n++
		}
	}
	return n, nil
}

type oneTimeRepo struct {
	store  *Store
	tokens func(*Store) map[string]repository.OneTimeToken
}

func (r *oneTimeRepo) Create(ctx context.Context, token *repository.OneTimeToken) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	token.ID = newID()
	token.CreatedAt = r.store.now()
	r.tokens(r.store)[token.ID] = *token
	return nil
}

func (r *oneTimeRepo) GetByHash(ctx context.Context, hash string) (*repository.OneTimeToken, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	for _, t := range r.tokens(r.store) {
		if t.TokenHash == hash {
			return &t, nil
		}
	}
	return nil, errNoRows
}

func (r *oneTimeRepo) MarkUsed(ctx context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	tokens := r.tokens(r.store)
	t, ok := tokens[id]
	if !ok || t.UsedAt != nil {
		return errNoRows
	}
	now := r.store.now()
	t.UsedAt = &now
	tokens[t.ID] = t
	return nil
}

func (r *oneTimeRepo) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	tokens := r.tokens(r.store)
	n := 0
	for id, t := range tokens {
		if t.ExpiresAt.Before(now) || t.UsedAt != nil {
			delete(tokens, id)
			n++
		}
	}
	return n, nil
}

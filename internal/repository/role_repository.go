package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/request-service/internal/domain"
)

// RoleRepository persists roles and their permission associations.
type RoleRepository interface {
	Create(ctx context.Context, role *domain.Role, permissionIDs []string) error
	Update(ctx context.Context, role *domain.Role, permissionIDs []string) error
	GetByID(ctx context.Context, id string) (*domain.Role, error)
	GetByName(ctx context.Context, name string) (*domain.Role, error)
	GetAdmin(ctx context.Context) (*domain.Role, error)
	List(ctx context.Context) ([]domain.Role, error)
	Delete(ctx context.Context, id string) error
}

type roleRepository struct {
	pool DB
}

// NewRoleRepository returns a Postgres-backed implementation.
func NewRoleRepository(pool DB) RoleRepository {
	return &roleRepository{pool: pool}
}

const roleColumns = `r.id, r.name, r.name_ar, r.description, r.is_admin, r.created_at, r.updated_at,
               (SELECT COUNT(*) FROM employees e WHERE e.role_id = r.id)`

func (r *roleRepository) Create(ctx context.Context, role *domain.Role, permissionIDs []string) error {
	const query = `
        INSERT INTO roles (name, name_ar, description, is_admin)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at, updated_at`
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, query, role.Name, role.NameAr, role.Description, role.IsAdmin).
			Scan(&role.ID, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return err
		}
		return replaceRolePermissions(ctx, tx, role.ID, permissionIDs)
	})
}

// Update writes name/description and sets the permission set to exactly permissionIDs.
func (r *roleRepository) Update(ctx context.Context, role *domain.Role, permissionIDs []string) error {
	const query = `
        UPDATE roles SET name=$1, name_ar=$2, description=$3, updated_at=NOW()
        WHERE id=$4
        RETURNING updated_at`
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, query, role.Name, role.NameAr, role.Description, role.ID).
			Scan(&role.UpdatedAt); err != nil {
			return err
		}
		return replaceRolePermissions(ctx, tx, role.ID, permissionIDs)
	})
}

// replaceRolePermissions sets the permission set of roleID to exactly permissionIDs.
func replaceRolePermissions(ctx context.Context, tx querier, roleID string, permissionIDs []string) error {
	if _, err := tx.Exec(ctx, `DELETE FROM role_permissions WHERE role_id=$1`, roleID); err != nil {
		return err
	}
	if len(permissionIDs) == 0 {
		return nil
	}
	const insert = `
        INSERT INTO role_permissions (role_id, permission_id)
        SELECT $1, unnest($2::uuid[])
        ON CONFLICT DO NOTHING`
	_, err := tx.Exec(ctx, insert, roleID, permissionIDs)
	return err
}

func (r *roleRepository) GetByID(ctx context.Context, id string) (*domain.Role, error) {
	return r.getOne(ctx, `SELECT `+roleColumns+` FROM roles r WHERE r.id=$1`, id)
}

func (r *roleRepository) GetByName(ctx context.Context, name string) (*domain.Role, error) {
	return r.getOne(ctx, `SELECT `+roleColumns+` FROM roles r WHERE LOWER(r.name)=LOWER($1)`, name)
}

func (r *roleRepository) GetAdmin(ctx context.Context) (*domain.Role, error) {
	return r.getOne(ctx, `SELECT `+roleColumns+` FROM roles r WHERE r.is_admin`)
}

func (r *roleRepository) getOne(ctx context.Context, query string, args ...any) (*domain.Role, error) {
	var role domain.Role
	if err := r.pool.QueryRow(ctx, query, args...).Scan(
		&role.ID,
		&role.Name,
		&role.NameAr,
		&role.Description,
		&role.IsAdmin,
		&role.CreatedAt,
		&role.UpdatedAt,
		&role.EmployeeCount,
	); err != nil {
		return nil, err
	}
	perms, err := r.permissionsFor(ctx, []string{role.ID})
	if err != nil {
		return nil, err
	}
	role.Permissions = perms[role.ID]
	if role.Permissions == nil {
		role.Permissions = []domain.Permission{}
	}
	return &role, nil
}

func (r *roleRepository) List(ctx context.Context) ([]domain.Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+roleColumns+` FROM roles r ORDER BY r.is_admin DESC, r.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []domain.Role
	var ids []string
	for rows.Next() {
		var role domain.Role
		if err := rows.Scan(
			&role.ID,
			&role.Name,
			&role.NameAr,
			&role.Description,
			&role.IsAdmin,
			&role.CreatedAt,
			&role.UpdatedAt,
			&role.EmployeeCount,
		); err != nil {
			return nil, err
		}
		roles = append(roles, role)
		ids = append(ids, role.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	perms, err := r.permissionsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range roles {
		roles[i].Permissions = perms[roles[i].ID]
		if roles[i].Permissions == nil {
			roles[i].Permissions = []domain.Permission{}
		}
	}
	return roles, nil
}

func (r *roleRepository) permissionsFor(ctx context.Context, roleIDs []string) (map[string][]domain.Permission, error) {
	out := make(map[string][]domain.Permission, len(roleIDs))
	if len(roleIDs) == 0 {
		return out, nil
	}
	const query = `
        SELECT rp.role_id, p.id, p.name, p.module, p.action, p.description, p.created_at
        FROM role_permissions rp
        JOIN permissions p ON p.id = rp.permission_id
        WHERE rp.role_id = ANY($1::uuid[])
        ORDER BY p.module, p.action`
	rows, err := r.pool.Query(ctx, query, roleIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var roleID string
		var p domain.Permission
		if err := rows.Scan(&roleID, &p.ID, &p.Name, &p.Module, &p.Action, &p.Description, &p.CreatedAt); err != nil {
			return nil, err
		}
		out[roleID] = append(out[roleID], p)
	}
	return out, rows.Err()
}

func (r *roleRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM roles WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

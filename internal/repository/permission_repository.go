package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/request-service/internal/domain"
)

// PermissionRepository persists the permission registry.
type PermissionRepository interface {
	Seed(ctx context.Context, perms []domain.Permission) (int, error)
	Create(ctx context.Context, perm *domain.Permission) error
	List(ctx context.Context) ([]domain.Permission, error)
	ListNames(ctx context.Context) ([]string, error)
	GetByIDs(ctx context.Context, ids []string) ([]domain.Permission, error)
}

type permissionRepository struct {
	pool DB
}

// NewPermissionRepository returns a Postgres-backed implementation.
func NewPermissionRepository(pool DB) PermissionRepository {
	return &permissionRepository{pool: pool}
}

// Seed inserts missing permissions and returns how many were new.
func (r *permissionRepository) Seed(ctx context.Context, perms []domain.Permission) (int, error) {
	const query = `
        INSERT INTO permissions (name, module, action, description)
        VALUES ($1,$2,$3,$4)
        ON CONFLICT (name) DO NOTHING`

	inserted := 0
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		for _, p := range perms {
			cmd, err := tx.Exec(ctx, query, p.Name, p.Module, p.Action, p.Description)
			if err != nil {
				return err
			}
			inserted += int(cmd.RowsAffected())
		}
		return nil
	})
	return inserted, err
}

func (r *permissionRepository) Create(ctx context.Context, perm *domain.Permission) error {
	const query = `
        INSERT INTO permissions (name, module, action, description)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query, perm.Name, perm.Module, perm.Action, perm.Description).
		Scan(&perm.ID, &perm.CreatedAt)
}

func (r *permissionRepository) List(ctx context.Context) ([]domain.Permission, error) {
	const query = `
        SELECT id, name, module, action, description, created_at
        FROM permissions ORDER BY module, action`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPermissions(rows)
}

func (r *permissionRepository) ListNames(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT name FROM permissions`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (r *permissionRepository) GetByIDs(ctx context.Context, ids []string) ([]domain.Permission, error) {
	if len(ids) == 0 {
		return []domain.Permission{}, nil
	}
	const query = `
        SELECT id, name, module, action, description, created_at
        FROM permissions WHERE id = ANY($1::uuid[]) ORDER BY module, action`
	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPermissions(rows)
}

func scanPermissions(rows pgx.Rows) ([]domain.Permission, error) {
	result := []domain.Permission{}
	for rows.Next() {
		var p domain.Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.Module, &p.Action, &p.Description, &p.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

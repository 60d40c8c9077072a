package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/request-service/internal/domain"
)

// EmployeeFilter defines query params for employee listing.
type EmployeeFilter struct {
	RoleID     *string
	Status     *domain.PrincipalStatus
	Department *string
	SearchTerm *string
	Limit      int
	Offset     int
}

// EmployeeRepository handles persistence for employees.
type EmployeeRepository interface {
	Create(ctx context.Context, employee *domain.Employee) error
	Update(ctx context.Context, employee *domain.Employee) error
	GetByID(ctx context.Context, id string) (*domain.Employee, error)
	GetByEmail(ctx context.Context, email string) (*domain.Employee, error)
	List(ctx context.Context, filter EmployeeFilter) ([]domain.Employee, int, error)
	Delete(ctx context.Context, id string) error
	RecordLogin(ctx context.Context, id string, at time.Time) error
	CountByRole(ctx context.Context, roleID string) (int, error)
	CountActive(ctx context.Context) (int, error)
}

type employeeRepository struct {
	pool DB
}

// NewEmployeeRepository instantiates the repository.
func NewEmployeeRepository(pool DB) EmployeeRepository {
	return &employeeRepository{pool: pool}
}

const employeeColumns = `id, employee_code, email, password_hash, full_name, full_name_ar, phone, department,
               job_title, role_id, status, last_login_at, login_count, created_at, updated_at`

func (r *employeeRepository) Create(ctx context.Context, e *domain.Employee) error {
	const query = `
        INSERT INTO employees (employee_code, email, password_hash, full_name, full_name_ar, phone, department,
            job_title, role_id, status)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		e.EmployeeCode,
		strings.ToLower(e.Email),
		e.PasswordHash,
		e.FullName,
		e.FullNameAr,
		e.Phone,
		e.Department,
		e.JobTitle,
		e.RoleID,
		e.Status,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
}

func (r *employeeRepository) Update(ctx context.Context, e *domain.Employee) error {
	const query = `
        UPDATE employees SET password_hash=$1, full_name=$2, full_name_ar=$3, phone=$4, department=$5,
            job_title=$6, role_id=$7, status=$8, updated_at=NOW()
        WHERE id=$9`
	cmd, err := r.pool.Exec(ctx, query,
		e.PasswordHash,
		e.FullName,
		e.FullNameAr,
		e.Phone,
		e.Department,
		e.JobTitle,
		e.RoleID,
		e.Status,
		e.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *employeeRepository) GetByID(ctx context.Context, id string) (*domain.Employee, error) {
	return scanEmployee(r.pool.QueryRow(ctx, `SELECT `+employeeColumns+` FROM employees WHERE id=$1`, id))
}

func (r *employeeRepository) GetByEmail(ctx context.Context, email string) (*domain.Employee, error) {
	return scanEmployee(r.pool.QueryRow(ctx, `SELECT `+employeeColumns+` FROM employees WHERE email=$1`, strings.ToLower(email)))
}

func (r *employeeRepository) List(ctx context.Context, filter EmployeeFilter) ([]domain.Employee, int, error) {
	where := newWhere()
	if filter.RoleID != nil {
		where.add("role_id=?", *filter.RoleID)
	}
	if filter.Status != nil {
		where.add("status=?", *filter.Status)
	}
	if filter.Department != nil {
		where.add("department=?", *filter.Department)
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		where.add("(LOWER(full_name) LIKE ? OR email LIKE ? OR LOWER(employee_code) LIKE ?)", search)
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM employees WHERE `+where.sql(), where.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit, offset := NormalizePage(filter.Limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM employees WHERE %s ORDER BY full_name LIMIT %d OFFSET %d`,
		employeeColumns, where.sql(), limit, offset)
	rows, err := r.pool.Query(ctx, query, where.args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	result := []domain.Employee{}
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, *e)
	}
	return result, total, rows.Err()
}

func (r *employeeRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM employees WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *employeeRepository) RecordLogin(ctx context.Context, id string, at time.Time) error {
	cmd, err := r.pool.Exec(ctx, `UPDATE employees SET last_login_at=$1, login_count=login_count+1 WHERE id=$2`, at, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *employeeRepository) CountByRole(ctx context.Context, roleID string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM employees WHERE role_id=$1`, roleID).Scan(&n)
	return n, err
}

func (r *employeeRepository) CountActive(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM employees WHERE status=$1`, domain.PrincipalStatusActive).Scan(&n)
	return n, err
}

func scanEmployee(row pgx.Row) (*domain.Employee, error) {
	var e domain.Employee
	if err := row.Scan(
		&e.ID,
		&e.EmployeeCode,
		&e.Email,
		&e.PasswordHash,
		&e.FullName,
		&e.FullNameAr,
		&e.Phone,
		&e.Department,
		&e.JobTitle,
		&e.RoleID,
		&e.Status,
		&e.LastLoginAt,
		&e.LoginCount,
		&e.CreatedAt,
		&e.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &e, nil
}

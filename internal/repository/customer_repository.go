package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/request-service/internal/domain"
)

// CustomerFilter captures admin search parameters.
type CustomerFilter struct {
	Status     *domain.PrincipalStatus
	Type       *domain.CustomerType
	SearchTerm *string
	Limit      int
	Offset     int
}

// CustomerRepository defines persistence access for customers.
type CustomerRepository interface {
	Create(ctx context.Context, customer *domain.Customer) error
	Update(ctx context.Context, customer *domain.Customer) error
	GetByID(ctx context.Context, id string) (*domain.Customer, error)
	GetByEmail(ctx context.Context, email string) (*domain.Customer, error)
	List(ctx context.Context, filter CustomerFilter) ([]domain.Customer, int, error)
	Delete(ctx context.Context, id string) error
	RecordLogin(ctx context.Context, id string, at time.Time) error
	Count(ctx context.Context) (int, error)
}

type customerRepository struct {
	pool DB
}

// NewCustomerRepository returns a Postgres-backed implementation.
func NewCustomerRepository(pool DB) CustomerRepository {
	return &customerRepository{pool: pool}
}

const customerColumns = `id, email, password_hash, full_name, full_name_ar, phone, customer_type, national_id,
               organization_name, organization_name_ar, commercial_register, address, city, status,
               email_verified_at, last_login_at, login_count, created_at, updated_at`

func (r *customerRepository) Create(ctx context.Context, c *domain.Customer) error {
	const query = `
        INSERT INTO customers (email, password_hash, full_name, full_name_ar, phone, customer_type, national_id,
            organization_name, organization_name_ar, commercial_register, address, city, status)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		strings.ToLower(c.Email),
		c.PasswordHash,
		c.FullName,
		c.FullNameAr,
		c.Phone,
		c.CustomerType,
		c.NationalID,
		c.OrganizationName,
		c.OrganizationNameAr,
		c.CommercialRegister,
		c.Address,
		c.City,
		c.Status,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
}

func (r *customerRepository) Update(ctx context.Context, c *domain.Customer) error {
	const query = `
        UPDATE customers SET password_hash=$1, full_name=$2, full_name_ar=$3, phone=$4, national_id=$5,
            organization_name=$6, organization_name_ar=$7, commercial_register=$8, address=$9, city=$10,
            status=$11, email_verified_at=$12, updated_at=NOW()
        WHERE id=$13`
	cmd, err := r.pool.Exec(ctx, query,
		c.PasswordHash,
		c.FullName,
		c.FullNameAr,
		c.Phone,
		c.NationalID,
		c.OrganizationName,
		c.OrganizationNameAr,
		c.CommercialRegister,
		c.Address,
		c.City,
		c.Status,
		c.EmailVerifiedAt,
		c.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *customerRepository) GetByID(ctx context.Context, id string) (*domain.Customer, error) {
	return r.fetchSingle(ctx, `SELECT `+customerColumns+` FROM customers WHERE id=$1`, id)
}

func (r *customerRepository) GetByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	return r.fetchSingle(ctx, `SELECT `+customerColumns+` FROM customers WHERE email=$1`, strings.ToLower(email))
}

func (r *customerRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Customer, error) {
	row := r.pool.QueryRow(ctx, query, arg)
	c, err := scanCustomer(row)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *customerRepository) List(ctx context.Context, filter CustomerFilter) ([]domain.Customer, int, error) {
	where := newWhere()
	if filter.Status != nil {
		where.add("status=?", *filter.Status)
	}
	if filter.Type != nil {
		where.add("customer_type=?", *filter.Type)
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		where.add("(LOWER(full_name) LIKE ? OR email LIKE ? OR LOWER(organization_name) LIKE ?)", search)
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM customers WHERE `+where.sql(), where.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit, offset := NormalizePage(filter.Limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM customers WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		customerColumns, where.sql(), limit, offset)
	rows, err := r.pool.Query(ctx, query, where.args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	result := []domain.Customer{}
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, *c)
	}
	return result, total, rows.Err()
}

func (r *customerRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM customers WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *customerRepository) RecordLogin(ctx context.Context, id string, at time.Time) error {
	const query = `
        UPDATE customers SET last_login_at=$1, login_count=login_count+1
        WHERE id=$2`
	cmd, err := r.pool.Exec(ctx, query, at, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *customerRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM customers`).Scan(&n)
	return n, err
}

func scanCustomer(row pgx.Row) (*domain.Customer, error) {
	var c domain.Customer
	if err := row.Scan(
		&c.ID,
		&c.Email,
		&c.PasswordHash,
		&c.FullName,
		&c.FullNameAr,
		&c.Phone,
		&c.CustomerType,
		&c.NationalID,
		&c.OrganizationName,
		&c.OrganizationNameAr,
		&c.CommercialRegister,
		&c.Address,
		&c.City,
		&c.Status,
		&c.EmailVerifiedAt,
		&c.LastLoginAt,
		&c.LoginCount,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &c, nil
}

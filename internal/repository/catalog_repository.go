package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/request-service/internal/domain"
)

// CatalogRepository persists the service catalog.
type CatalogRepository interface {
	Create(ctx context.Context, svc *domain.Service) error
	Update(ctx context.Context, svc *domain.Service) error
	GetByID(ctx context.Context, id string) (*domain.Service, error)
	List(ctx context.Context, includeInactive bool) ([]domain.Service, error)
	Delete(ctx context.Context, id string) error
	CountRequests(ctx context.Context, id string) (int, error)
}

type catalogRepository struct {
	pool DB
}

// NewCatalogRepository returns a Postgres-backed implementation.
func NewCatalogRepository(pool DB) CatalogRepository {
	return &catalogRepository{pool: pool}
}

const serviceColumns = `id, code, name, name_ar, description, description_ar, category, base_price, currency,
               estimated_days, is_active, created_at, updated_at`

func (r *catalogRepository) Create(ctx context.Context, s *domain.Service) error {
	const query = `
        INSERT INTO services (code, name, name_ar, description, description_ar, category, base_price, currency,
            estimated_days, is_active)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		s.Code, s.Name, s.NameAr, s.Description, s.DescriptionAr, s.Category, s.BasePrice, s.Currency,
		s.EstimatedDays, s.IsActive,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
}

func (r *catalogRepository) Update(ctx context.Context, s *domain.Service) error {
	const query = `
        UPDATE services SET code=$1, name=$2, name_ar=$3, description=$4, description_ar=$5, category=$6,
            base_price=$7, currency=$8, estimated_days=$9, is_active=$10, updated_at=NOW()
        WHERE id=$11`
	cmd, err := r.pool.Exec(ctx, query,
		s.Code, s.Name, s.NameAr, s.Description, s.DescriptionAr, s.Category, s.BasePrice, s.Currency,
		s.EstimatedDays, s.IsActive, s.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *catalogRepository) GetByID(ctx context.Context, id string) (*domain.Service, error) {
	return scanService(r.pool.QueryRow(ctx, `SELECT `+serviceColumns+` FROM services WHERE id=$1`, id))
}

func (r *catalogRepository) List(ctx context.Context, includeInactive bool) ([]domain.Service, error) {
	query := `SELECT ` + serviceColumns + ` FROM services`
	if !includeInactive {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY category, name`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.Service{}
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}
	return result, rows.Err()
}

func (r *catalogRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM services WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *catalogRepository) CountRequests(ctx context.Context, id string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM service_requests WHERE service_id=$1`, id).Scan(&n)
	return n, err
}

func scanService(row pgx.Row) (*domain.Service, error) {
	var s domain.Service
	if err := row.Scan(
		&s.ID,
		&s.Code,
		&s.Name,
		&s.NameAr,
		&s.Description,
		&s.DescriptionAr,
		&s.Category,
		&s.BasePrice,
		&s.Currency,
		&s.EstimatedDays,
		&s.IsActive,
		&s.CreatedAt,
		&s.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &s, nil
}

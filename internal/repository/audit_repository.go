package repository

import (
	"context"
	"fmt"
	"time"


	"github.com/spec-kit/request-service/internal/domain"
)

// AuditFilter narrows the audit trail.
type AuditFilter struct {
	ActorID    *string
	EntityType *string
	EntityID   *string
	Action     *string
	From       *time.Time
	To         *time.Time
	Limit      int
	Offset     int
}

// AuditRepository is append-only.
type AuditRepository interface {
	Create(ctx context.Context, entry *domain.AuditEntry) error
	List(ctx context.Context, filter AuditFilter) ([]domain.AuditEntry, int, error)
}

type auditRepository struct {
	pool DB
}

// NewAuditRepository constructs repository.
func NewAuditRepository(pool DB) AuditRepository {
	return &auditRepository{pool: pool}
}

func (r *auditRepository) Create(ctx context.Context, entry *domain.AuditEntry) error {
	const query = `
        INSERT INTO audit_logs (actor_id, actor_type, action, entity_type, entity_id, old_values, new_values,
            ip_address, user_agent)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		entry.ActorID,
		entry.ActorType,
		entry.Action,
		entry.EntityType,
		entry.EntityID,
		entry.OldValues,
		entry.NewValues,
		entry.IPAddress,
		entry.UserAgent,
	).Scan(&entry.ID, &entry.CreatedAt)
}

func (r *auditRepository) List(ctx context.Context, filter AuditFilter) ([]domain.AuditEntry, int, error) {
	where := newWhere()
	if filter.ActorID != nil {
		where.add("actor_id=?", *filter.ActorID)
	}
	if filter.EntityType != nil {
		where.add("entity_type=?", *filter.EntityType)
	}
	if filter.EntityID != nil {
		where.add("entity_id=?", *filter.EntityID)
	}
	if filter.Action != nil {
		where.add("action=?", *filter.Action)
	}
	if filter.From != nil {
		where.add("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		where.add("created_at <= ?", *filter.To)
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM audit_logs WHERE `+where.sql(), where.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit, offset := NormalizePage(filter.Limit, filter.Offset)
	query := fmt.Sprintf(`
        SELECT id, actor_id, actor_type, action, entity_type, entity_id, old_values, new_values,
               ip_address, user_agent, created_at
        FROM audit_logs WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`, where.sql(), limit, offset)
	rows, err := r.pool.Query(ctx, query, where.args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	result := []domain.AuditEntry{}
	for rows.Next() {
		var e domain.AuditEntry
		if err := rows.Scan(
			&e.ID,
			&e.ActorID,
			&e.ActorType,
			&e.Action,
			&e.EntityType,
			&e.EntityID,
			&e.OldValues,
			&e.NewValues,
			&e.IPAddress,
			&e.UserAgent,
			&e.CreatedAt,
		); err != nil {
			return nil, 0, err
		}
		result = append(result, e)
	}
	return result, total, rows.Err()
}

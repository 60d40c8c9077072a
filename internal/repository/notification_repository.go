package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/request-service/internal/domain"
)

// NotificationFilter selects one recipient's notifications.
type NotificationFilter struct {
	RecipientID   string
	RecipientType domain.SubjectType
	UnreadOnly    bool
	Limit         int
	Offset        int
}

// NotificationRepository persists in-app notifications.
type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) error
	List(ctx context.Context, filter NotificationFilter) ([]domain.Notification, int, error)
	CountUnread(ctx context.Context, recipient domain.Subject) (int, error)
	MarkRead(ctx context.Context, id string, recipient domain.Subject, at time.Time) error
	MarkAllRead(ctx context.Context, recipient domain.Subject, at time.Time) (int, error)
}

type notificationRepository struct {
	pool DB
}

// NewNotificationRepository constructs repository.
func NewNotificationRepository(pool DB) NotificationRepository {
	return &notificationRepository{pool: pool}
}

const notificationColumns = `id, recipient_id, recipient_type, type, title, title_ar, message, message_ar,
               entity_type, entity_id, read_at, created_at`

func (r *notificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	const query = `
        INSERT INTO notifications (recipient_id, recipient_type, type, title, title_ar, message, message_ar,
            entity_type, entity_id)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		n.RecipientID,
		n.RecipientType,
		n.Type,
		n.Title,
		n.TitleAr,
		n.Message,
		n.MessageAr,
		n.EntityType,
		n.EntityID,
	).Scan(&n.ID, &n.CreatedAt)
}

func (r *notificationRepository) List(ctx context.Context, filter NotificationFilter) ([]domain.Notification, int, error) {
	where := newWhere()
	where.add("recipient_id=?", filter.RecipientID)
	where.add("recipient_type=?", filter.RecipientType)
	if filter.UnreadOnly {
		where.clauses = append(where.clauses, "read_at IS NULL")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE `+where.sql(), where.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit, offset := NormalizePage(filter.Limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM notifications WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		notificationColumns, where.sql(), limit, offset)
	rows, err := r.pool.Query(ctx, query, where.args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	result := []domain.Notification{}
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(
			&n.ID,
			&n.RecipientID,
			&n.RecipientType,
			&n.Type,
			&n.Title,
			&n.TitleAr,
			&n.Message,
			&n.MessageAr,
			&n.EntityType,
			&n.EntityID,
			&n.ReadAt,
			&n.CreatedAt,
		); err != nil {
			return nil, 0, err
		}
		result = append(result, n)
	}
	return result, total, rows.Err()
}

func (r *notificationRepository) CountUnread(ctx context.Context, recipient domain.Subject) (int, error) {
	const query = `
        SELECT COUNT(*) FROM notifications
        WHERE recipient_id=$1 AND recipient_type=$2 AND read_at IS NULL`
	var n int
	err := r.pool.QueryRow(ctx, query, recipient.SubjectID(), recipient.SubjectType()).Scan(&n)
	return n, err
}

// MarkRead only touches notifications owned by recipient. Marking an already
// read notification succeeds.
func (r *notificationRepository) MarkRead(ctx context.Context, id string, recipient domain.Subject, at time.Time) error {
	const query = `
        UPDATE notifications SET read_at=COALESCE(read_at, $1)
        WHERE id=$2 AND recipient_id=$3 AND recipient_type=$4`
	cmd, err := r.pool.Exec(ctx, query, at, id, recipient.SubjectID(), recipient.SubjectType())
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, recipient domain.Subject, at time.Time) (int, error) {
	const query = `
        UPDATE notifications SET read_at=$1
        WHERE recipient_id=$2 AND recipient_type=$3 AND read_at IS NULL`
	cmd, err := r.pool.Exec(ctx, query, at, recipient.SubjectID(), recipient.SubjectType())
	if err != nil {
		return 0, err
	}
	return int(cmd.RowsAffected()), nil
}

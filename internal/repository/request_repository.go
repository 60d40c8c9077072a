package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/request-service/internal/domain"
)

// RequestNumberPrefix prefixes every service request number.
const RequestNumberPrefix = "REQ"

// RequestFilter captures list parameters for service requests.
type RequestFilter struct {
	CustomerID   *string
	ServiceID    *string
	AssignedToID *string
	Statuses     []domain.RequestStatus
	Priorities   []domain.RequestPriority
	SearchTerm   *string
	CreatedFrom  *time.Time
	CreatedTo    *time.Time
	Limit        int
	Offset       int
}

// RequestMutation inspects and changes a request loaded under a row lock.
// Returning an error aborts the write.
type RequestMutation func(req *domain.ServiceRequest) error

// RequestRepository encapsulates service request persistence. Status is only
// written by Transition.
type RequestRepository interface {
	Create(ctx context.Context, req *domain.ServiceRequest) error
	GetByID(ctx context.Context, id string) (*domain.ServiceRequest, error)
	List(ctx context.Context, filter RequestFilter) ([]domain.ServiceRequest, int, error)
	UpdateDetails(ctx context.Context, id string, mutate RequestMutation) (*domain.ServiceRequest, error)
	Transition(ctx context.Context, id string, mutate RequestMutation) (*domain.ServiceRequest, error)
	Assign(ctx context.Context, id string, mutate RequestMutation) (*domain.ServiceRequest, error)
	Delete(ctx context.Context, id string) error
	CountByStatus(ctx context.Context) (map[domain.RequestStatus]int, error)
	CountCreatedSince(ctx context.Context, since time.Time) (int, error)
}

type requestRepository struct {
	pool DB
}

// NewRequestRepository instantiates repository.
func NewRequestRepository(pool DB) RequestRepository {
	return &requestRepository{pool: pool}
}

const requestColumns = `id, request_number, customer_id, service_id, assigned_to_id, status, priority, title, title_ar,
               description, description_ar, notes, notes_ar, assignment_notes, rejection_reason,
               rejection_reason_ar, cancellation_reason, cancellation_reason_ar, assigned_at, completed_at,
               delivered_at, version, created_at, updated_at`

// Create allocates the request number and inserts the row in one transaction.
func (r *requestRepository) Create(ctx context.Context, req *domain.ServiceRequest) error {
	const query = `
        INSERT INTO service_requests (request_number, customer_id, service_id, status, priority, title, title_ar,
            description, description_ar, notes, notes_ar, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$12)
        RETURNING id, version, created_at, updated_at`
	createdAt := creationTime(req.CreatedAt)
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		number, err := nextNumber(ctx, tx, RequestNumberPrefix, createdAt)
		if err != nil {
			return err
		}
		req.RequestNumber = number
		return tx.QueryRow(ctx, query,
			req.RequestNumber,
			req.CustomerID,
			req.ServiceID,
			req.Status,
			req.Priority,
			req.Title,
			req.TitleAr,
			req.Description,
			req.DescriptionAr,
			req.Notes,
			req.NotesAr,
			createdAt,
		).Scan(&req.ID, &req.Version, &req.CreatedAt, &req.UpdatedAt)
	})
}

func (r *requestRepository) GetByID(ctx context.Context, id string) (*domain.ServiceRequest, error) {
	return scanRequest(r.pool.QueryRow(ctx, `SELECT `+requestColumns+` FROM service_requests WHERE id=$1`, id))
}

func (r *requestRepository) List(ctx context.Context, filter RequestFilter) ([]domain.ServiceRequest, int, error) {
	where := newWhere()
	if filter.CustomerID != nil {
		where.add("customer_id=?", *filter.CustomerID)
	}
	if filter.ServiceID != nil {
		where.add("service_id=?", *filter.ServiceID)
	}
	if filter.AssignedToID != nil {
		where.add("assigned_to_id=?", *filter.AssignedToID)
	}
	where.in("status", anySlice(filter.Statuses))
	where.in("priority", anySlice(filter.Priorities))
	if filter.CreatedFrom != nil {
		where.add("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		where.add("created_at <= ?", *filter.CreatedTo)
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		where.add("(LOWER(request_number) LIKE ? OR LOWER(title) LIKE ? OR title_ar LIKE ?)", search)
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM service_requests WHERE `+where.sql(), where.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit, offset := NormalizePage(filter.Limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM service_requests WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		requestColumns, where.sql(), limit, offset)
	rows, err := r.pool.Query(ctx, query, where.args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	result := []domain.ServiceRequest{}
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, *req)
	}
	return result, total, rows.Err()
}

// UpdateDetails locks the row and writes editable text and priority. Status,
// owner and workflow timestamps are not part of this statement.
func (r *requestRepository) UpdateDetails(ctx context.Context, id string, mutate RequestMutation) (*domain.ServiceRequest, error) {
	const update = `
        UPDATE service_requests SET priority=$1, title=$2, title_ar=$3, description=$4, description_ar=$5,
            notes=$6, notes_ar=$7, version=version+1, updated_at=NOW()
        WHERE id=$8 AND version=$9
        RETURNING version, updated_at`
	return r.lockAndWrite(ctx, id, mutate, func(tx pgx.Tx, req *domain.ServiceRequest, version int) error {
		return tx.QueryRow(ctx, update,
			req.Priority,
			req.Title,
			req.TitleAr,
			req.Description,
			req.DescriptionAr,
			req.Notes,
			req.NotesAr,
			req.ID,
			version,
		).Scan(&req.Version, &req.UpdatedAt)
	})
}

// Transition locks the row, lets mutate validate and apply the move, then
// writes status and its side-effect columns.
func (r *requestRepository) Transition(ctx context.Context, id string, mutate RequestMutation) (*domain.ServiceRequest, error) {
	const update = `
        UPDATE service_requests SET status=$1, rejection_reason=$2, rejection_reason_ar=$3,
            cancellation_reason=$4, cancellation_reason_ar=$5, completed_at=$6, delivered_at=$7,
            version=version+1, updated_at=NOW()
        WHERE id=$8 AND version=$9
        RETURNING version, updated_at`
	return r.lockAndWrite(ctx, id, mutate, func(tx pgx.Tx, req *domain.ServiceRequest, version int) error {
		return tx.QueryRow(ctx, update,
			req.Status,
			req.RejectionReason,
			req.RejectionReasonAr,
			req.CancellationReason,
			req.CancellationReasonAr,
			req.CompletedAt,
			req.DeliveredAt,
			req.ID,
			version,
		).Scan(&req.Version, &req.UpdatedAt)
	})
}

// Assign locks the row and writes only the assignment columns.
func (r *requestRepository) Assign(ctx context.Context, id string, mutate RequestMutation) (*domain.ServiceRequest, error) {
	const update = `
        UPDATE service_requests SET assigned_to_id=$1, assigned_at=$2, assignment_notes=$3,
            version=version+1, updated_at=NOW()
        WHERE id=$4 AND version=$5
        RETURNING version, updated_at`
	return r.lockAndWrite(ctx, id, mutate, func(tx pgx.Tx, req *domain.ServiceRequest, version int) error {
		return tx.QueryRow(ctx, update,
			req.AssignedToID,
			req.AssignedAt,
			req.AssignmentNotes,
			req.ID,
			version,
		).Scan(&req.Version, &req.UpdatedAt)
	})
}

func (r *requestRepository) lockAndWrite(
	ctx context.Context,
	id string,
	mutate RequestMutation,
	write func(tx pgx.Tx, req *domain.ServiceRequest, version int) error,
) (*domain.ServiceRequest, error) {
	var result *domain.ServiceRequest
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		req, err := scanRequest(tx.QueryRow(ctx, `SELECT `+requestColumns+` FROM service_requests WHERE id=$1 FOR UPDATE`, id))
		if err != nil {
			return err
		}
		version := req.Version
		if err := mutate(req); err != nil {
			return err
		}
		if err := write(tx, req, version); err != nil {
			return err
		}
		result = req
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *requestRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM service_requests WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *requestRepository) CountByStatus(ctx context.Context) (map[domain.RequestStatus]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM service_requests GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[domain.RequestStatus]int)
	for rows.Next() {
		var status domain.RequestStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[status] = n
	}
	return out, rows.Err()
}

func (r *requestRepository) CountCreatedSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM service_requests WHERE created_at >= $1`, since).Scan(&n)
	return n, err
}

func scanRequest(row pgx.Row) (*domain.ServiceRequest, error) {
	var req domain.ServiceRequest
	if err := row.Scan(
		&req.ID,
		&req.RequestNumber,
		&req.CustomerID,
		&req.ServiceID,
		&req.AssignedToID,
		&req.Status,
		&req.Priority,
		&req.Title,
		&req.TitleAr,
		&req.Description,
		&req.DescriptionAr,
		&req.Notes,
		&req.NotesAr,
		&req.AssignmentNotes,
		&req.RejectionReason,
		&req.RejectionReasonAr,
		&req.CancellationReason,
		&req.CancellationReasonAr,
		&req.AssignedAt,
		&req.CompletedAt,
		&req.DeliveredAt,
		&req.Version,
		&req.CreatedAt,
		&req.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &req, nil
}

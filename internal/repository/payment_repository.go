package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/request-service/internal/domain"
)

// PaymentRepository persists payments recorded against invoices.
type PaymentRepository interface {
	Create(ctx context.Context, payment *domain.Payment) error
	GetByID(ctx context.Context, id string) (*domain.Payment, error)
	ListByInvoice(ctx context.Context, invoiceID string) ([]domain.Payment, error)
	UpdateStatus(ctx context.Context, payment *domain.Payment) error
}

type paymentRepository struct {
	pool DB
}

// NewPaymentRepository instantiates repository.
func NewPaymentRepository(pool DB) PaymentRepository {
	return &paymentRepository{pool: pool}
}

const paymentColumns = `id, invoice_id, amount, method, reference, status, paid_at, recorded_by_id, submitted_by,
               notes, created_at, updated_at`

func (r *paymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	return insertPayment(ctx, r.pool, payment)
}

func insertPayment(ctx context.Context, q querier, payment *domain.Payment) error {
	const query = `
        INSERT INTO payments (invoice_id, amount, method, reference, status, paid_at, recorded_by_id, submitted_by, notes)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        RETURNING id, created_at, updated_at`
	return q.QueryRow(ctx, query,
		payment.InvoiceID,
		payment.Amount,
		payment.Method,
		payment.Reference,
		payment.Status,
		payment.PaidAt,
		payment.RecordedByID,
		payment.SubmittedBy,
		payment.Notes,
	).Scan(&payment.ID, &payment.CreatedAt, &payment.UpdatedAt)
}

// completePendingPayment writes the new status of a payment that is still
// PENDING; a payment already decided yields pgx.ErrNoRows.
func completePendingPayment(ctx context.Context, q querier, payment *domain.Payment) error {
	const query = `
        UPDATE payments SET status=$1, paid_at=$2, recorded_by_id=$3, notes=$4, updated_at=NOW()
        WHERE id=$5 AND status='PENDING'
        RETURNING updated_at`
	return q.QueryRow(ctx, query,
		payment.Status,
		payment.PaidAt,
		payment.RecordedByID,
		payment.Notes,
		payment.ID,
	).Scan(&payment.UpdatedAt)
}

func (r *paymentRepository) GetByID(ctx context.Context, id string) (*domain.Payment, error) {
	return scanPayment(r.pool.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id=$1`, id))
}

func (r *paymentRepository) ListByInvoice(ctx context.Context, invoiceID string) ([]domain.Payment, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+paymentColumns+` FROM payments WHERE invoice_id=$1 ORDER BY created_at`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.Payment{}
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *payment)
	}
	return result, rows.Err()
}

// UpdateStatus writes status, paid_at, recorder and notes.
func (r *paymentRepository) UpdateStatus(ctx context.Context, payment *domain.Payment) error {
	const query = `
        UPDATE payments SET status=$1, paid_at=$2, recorded_by_id=$3, notes=$4, updated_at=NOW()
        WHERE id=$5
        RETURNING updated_at`
	return r.pool.QueryRow(ctx, query,
		payment.Status,
		payment.PaidAt,
		payment.RecordedByID,
		payment.Notes,
		payment.ID,
	).Scan(&payment.UpdatedAt)
}

func scanPayment(row pgx.Row) (*domain.Payment, error) {
	var p domain.Payment
	if err := row.Scan(
		&p.ID,
		&p.InvoiceID,
		&p.Amount,
		&p.Method,
		&p.Reference,
		&p.Status,
		&p.PaidAt,
		&p.RecordedByID,
		&p.SubmittedBy,
		&p.Notes,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &p, nil
}

package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/request-service/internal/domain"
)

// InvoiceNumberPrefix prefixes every invoice number.
const InvoiceNumberPrefix = "INV"

// InvoiceFilter captures list parameters for invoices.
type InvoiceFilter struct {
	CustomerID *string
	RequestID  *string
	Statuses   []domain.InvoiceStatus
	Limit      int
	Offset     int
}

// BillingTotals aggregates money over issued invoices.
type BillingTotals struct {
	Invoiced    int64
	Collected   int64
	Outstanding int64
}

// InvoiceMutation changes an invoice loaded under a row lock. paid is the
// current sum of completed payments.
type InvoiceMutation func(inv *domain.Invoice, paid int64) error

// InvoiceRepository encapsulates invoice persistence.
type InvoiceRepository interface {
	Create(ctx context.Context, inv *domain.Invoice) error
	GetByID(ctx context.Context, id string) (*domain.Invoice, error)
	List(ctx context.Context, filter InvoiceFilter) ([]domain.Invoice, int, error)
	Modify(ctx context.Context, id string, mutate InvoiceMutation) (*domain.Invoice, error)
	ApplyPayment(ctx context.Context, payment *domain.Payment, mutate InvoiceMutation) (*domain.Invoice, error)
	CountByRequest(ctx context.Context, requestID string) (int, error)
	Totals(ctx context.Context) (BillingTotals, error)
	MarkOverdue(ctx context.Context, now time.Time) (int, error)
}

type invoiceRepository struct {
	pool DB
}

// NewInvoiceRepository instantiates repository.
func NewInvoiceRepository(pool DB) InvoiceRepository {
	return &invoiceRepository{pool: pool}
}

const invoiceColumns = `id, invoice_number, request_id, customer_id, subtotal, tax_amount, total, amount_paid, currency,
               status, issued_at, due_date, paid_at, notes, notes_ar, created_by_id, created_at, updated_at`

func (r *invoiceRepository) Create(ctx context.Context, inv *domain.Invoice) error {
	const query = `
        INSERT INTO invoices (invoice_number, request_id, customer_id, subtotal, tax_amount, total, amount_paid,
            currency, status, issued_at, due_date, notes, notes_ar, created_by_id, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$15)
        RETURNING id, created_at, updated_at`
	createdAt := creationTime(inv.CreatedAt)
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		number, err := nextNumber(ctx, tx, InvoiceNumberPrefix, createdAt)
		if err != nil {
			return err
		}
		inv.InvoiceNumber = number
		return tx.QueryRow(ctx, query,
			inv.InvoiceNumber,
			inv.RequestID,
			inv.CustomerID,
			inv.Subtotal,
			inv.TaxAmount,
			inv.Total,
			inv.AmountPaid,
			inv.Currency,
			inv.Status,
			inv.IssuedAt,
			inv.DueDate,
			inv.Notes,
			inv.NotesAr,
			inv.CreatedByID,
			createdAt,
		).Scan(&inv.ID, &inv.CreatedAt, &inv.UpdatedAt)
	})
}

func (r *invoiceRepository) GetByID(ctx context.Context, id string) (*domain.Invoice, error) {
	return scanInvoice(r.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id=$1`, id))
}

func (r *invoiceRepository) List(ctx context.Context, filter InvoiceFilter) ([]domain.Invoice, int, error) {
	where := newWhere()
	if filter.CustomerID != nil {
		where.add("customer_id=?", *filter.CustomerID)
	}
	if filter.RequestID != nil {
		where.add("request_id=?", *filter.RequestID)
	}
	where.in("status", anySlice(filter.Statuses))

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM invoices WHERE `+where.sql(), where.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit, offset := NormalizePage(filter.Limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM invoices WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		invoiceColumns, where.sql(), limit, offset)
	rows, err := r.pool.Query(ctx, query, where.args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	result := []domain.Invoice{}
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, *inv)
	}
	return result, total, rows.Err()
}

// Modify locks the invoice, sums its completed payments and writes back the
// mutable columns after mutate runs.
func (r *invoiceRepository) Modify(ctx context.Context, id string, mutate InvoiceMutation) (*domain.Invoice, error) {
	return r.modify(ctx, id, mutate, nil)
}

// ApplyPayment runs mutate against the locked invoice and the completed total
// without payment, then stores payment and the invoice in the same
// transaction. A payment without an ID is inserted; otherwise it must still
// be PENDING and is completed in place, or pgx.ErrNoRows is returned.
func (r *invoiceRepository) ApplyPayment(ctx context.Context, payment *domain.Payment, mutate InvoiceMutation) (*domain.Invoice, error) {
	return r.modify(ctx, payment.InvoiceID, mutate, func(tx pgx.Tx) error {
		if payment.ID == "" {
			return insertPayment(ctx, tx, payment)
		}
		return completePendingPayment(ctx, tx, payment)
	})
}

func (r *invoiceRepository) modify(ctx context.Context, id string, mutate InvoiceMutation, before func(tx pgx.Tx) error) (*domain.Invoice, error) {
	const sumQuery = `
        SELECT COALESCE(SUM(amount), 0) FROM payments
        WHERE invoice_id=$1 AND status='COMPLETED'`
	const update = `
        UPDATE invoices SET subtotal=$1, tax_amount=$2, total=$3, amount_paid=$4, status=$5, issued_at=$6,
            due_date=$7, paid_at=$8, notes=$9, notes_ar=$10, updated_at=NOW()
        WHERE id=$11
        RETURNING updated_at`
	var result *domain.Invoice
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		inv, err := scanInvoice(tx.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id=$1 FOR UPDATE`, id))
		if err != nil {
			return err
		}
		var paid int64
		if err := tx.QueryRow(ctx, sumQuery, id).Scan(&paid); err != nil {
			return err
		}
		if err := mutate(inv, paid); err != nil {
			return err
		}
		if before != nil {
			if err := before(tx); err != nil {
				return err
			}
		}
		if err := tx.QueryRow(ctx, update,
			inv.Subtotal,
			inv.TaxAmount,
			inv.Total,
			inv.AmountPaid,
			inv.Status,
			inv.IssuedAt,
			inv.DueDate,
			inv.PaidAt,
			inv.Notes,
			inv.NotesAr,
			inv.ID,
		).Scan(&inv.UpdatedAt); err != nil {
			return err
		}
		result = inv
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *invoiceRepository) CountByRequest(ctx context.Context, requestID string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM invoices WHERE request_id=$1`, requestID).Scan(&n)
	return n, err
}

// Totals ignores draft and cancelled invoices.
func (r *invoiceRepository) Totals(ctx context.Context) (BillingTotals, error) {
	const query = `
        SELECT COALESCE(SUM(total), 0), COALESCE(SUM(LEAST(amount_paid, total)), 0)
        FROM invoices WHERE status NOT IN ('DRAFT', 'CANCELLED')`
	var totals BillingTotals
	if err := r.pool.QueryRow(ctx, query).Scan(&totals.Invoiced, &totals.Collected); err != nil {
		return BillingTotals{}, err
	}
	totals.Outstanding = totals.Invoiced - totals.Collected
	return totals, nil
}

// MarkOverdue flips unpaid invoices past their due date to OVERDUE.
func (r *invoiceRepository) MarkOverdue(ctx context.Context, now time.Time) (int, error) {
	const query = `
        UPDATE invoices SET status='OVERDUE', updated_at=NOW()
        WHERE status IN ('ISSUED', 'PARTIALLY_PAID') AND due_date < $1`
	cmd, err := r.pool.Exec(ctx, query, now)
	if err != nil {
		return 0, err
	}
	return int(cmd.RowsAffected()), nil
}

func scanInvoice(row pgx.Row) (*domain.Invoice, error) {
	var inv domain.Invoice
	if err := row.Scan(
		&inv.ID,
		&inv.InvoiceNumber,
		&inv.RequestID,
		&inv.CustomerID,
		&inv.Subtotal,
		&inv.TaxAmount,
		&inv.Total,
		&inv.AmountPaid,
		&inv.Currency,
		&inv.Status,
		&inv.IssuedAt,
		&inv.DueDate,
		&inv.PaidAt,
		&inv.Notes,
		&inv.NotesAr,
		&inv.CreatedByID,
		&inv.CreatedAt,
		&inv.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &inv, nil
}

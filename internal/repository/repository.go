package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DB is the part of *pgxpool.Pool the repositories use.
type DB interface {
	querier
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Set bundles every repository over one backing store.
type Set struct {
	Permissions        PermissionRepository
	Roles              RoleRepository
	Customers          CustomerRepository
	Employees          EmployeeRepository
	Catalog            CatalogRepository
	Requests           RequestRepository
	Invoices           InvoiceRepository
	Payments           PaymentRepository
	Documents          DocumentRepository
	Notifications      NotificationRepository
	Audit              AuditRepository
	RefreshTokens      RefreshTokenRepository
	PasswordResets     OneTimeTokenRepository
	EmailVerifications OneTimeTokenRepository
}

// NewPostgresSet builds the Postgres-backed repositories.
func NewPostgresSet(pool DB) Set {
	return Set{
		Permissions:        NewPermissionRepository(pool),
		Roles:              NewRoleRepository(pool),
		Customers:          NewCustomerRepository(pool),
		Employees:          NewEmployeeRepository(pool),
		Catalog:            NewCatalogRepository(pool),
		Requests:           NewRequestRepository(pool),
		Invoices:           NewInvoiceRepository(pool),
		Payments:           NewPaymentRepository(pool),
		Documents:          NewDocumentRepository(pool),
		Notifications:      NewNotificationRepository(pool),
		Audit:              NewAuditRepository(pool),
		RefreshTokens:      NewRefreshTokenRepository(pool),
		PasswordResets:     NewPasswordResetRepository(pool),
		EmailVerifications: NewEmailVerificationRepository(pool),
	}
}

// NormalizePage clamps limit/offset to sane bounds.
func NormalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// FormatNumber renders a yearly document number such as REQ-2026-0007.
func FormatNumber(prefix string, year, seq int) string {
	return fmt.Sprintf("%s-%d-%04d", prefix, year, seq)
}

// nextNumber allocates the next per-year sequence value for prefix. Must run
// inside the transaction that inserts the numbered row. at is the creation
// time of that row.
func nextNumber(ctx context.Context, tx querier, prefix string, at time.Time) (string, error) {
	const query = `
        INSERT INTO number_sequences (prefix, year, last_value)
        VALUES ($1, $2, 1)
        ON CONFLICT (prefix, year) DO UPDATE SET last_value = number_sequences.last_value + 1
        RETURNING last_value`
	year := at.UTC().Year()
	var seq int
	if err := tx.QueryRow(ctx, query, prefix, year).Scan(&seq); err != nil {
		return "", err
	}
	return FormatNumber(prefix, year, seq), nil
}

// creationTime returns at, or the current time when the caller left it unset.
func creationTime(at time.Time) time.Time {
	if at.IsZero() {
		return time.Now().UTC()
	}
	return at.UTC()
}

// whereBuilder accumulates positional SQL predicates.
type whereBuilder struct {
	clauses []string
	args    []any
}

func newWhere() *whereBuilder {
	return &whereBuilder{clauses: []string{"1=1"}}
}

// add appends a clause whose single placeholder is written as ?.
func (w *whereBuilder) add(clause string, arg any) {
	w.args = append(w.args, arg)
	w.clauses = append(w.clauses, strings.Replace(clause, "?", fmt.Sprintf("$%d", len(w.args)), -1))
}

// in appends "column IN (...)" for the given values.
func (w *whereBuilder) in(column string, values []any) {
	if len(values) == 0 {
		return
	}
	placeholders := make([]string, len(values))
	for i, v := range values {
		w.args = append(w.args, v)
		placeholders[i] = fmt.Sprintf("$%d", len(w.args))
	}
	w.clauses = append(w.clauses, fmt.Sprintf("%s IN (%s)", column, strings.Join(placeholders, ",")))
}

func (w *whereBuilder) sql() string {
	return strings.Join(w.clauses, " AND ")
}

func anySlice[T any](values []T) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

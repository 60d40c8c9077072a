// Package memory implements the repository interfaces over process memory.
// It backs the service tests and development runs without POSTGRES_DSN, and
// reports missing rows and unique violations with the same errors pgx does.
package memory

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/spec-kit/request-service/internal/domain"
	"github.com/spec-kit/request-service/internal/repository"
)

// Store holds every table. All repositories created from one Store share it.
type Store struct {
	mu sync.RWMutex

	permissions   map[string]domain.Permission
	roles         map[string]domain.Role
	rolePerms     map[string]map[string]struct{}
	customers     map[string]domain.Customer
	employees     map[string]domain.Employee
	services      map[string]domain.Service
	requests      map[string]domain.ServiceRequest
	invoices      map[string]domain.Invoice
	payments      map[string]domain.Payment
	documents     map[string]domain.Document
	notifications map[string]domain.Notification
	audit         []domain.AuditEntry
	refresh       map[string]domain.RefreshToken
	resets        map[string]repository.OneTimeToken
	verifications map[string]repository.OneTimeToken
	sequences     map[string]int
	serials       map[string]int64
	serial        int64

	now func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		permissions:   make(map[string]domain.Permission),
		roles:         make(map[string]domain.Role),
		rolePerms:     make(map[string]map[string]struct{}),
		customers:     make(map[string]domain.Customer),
		employees:     make(map[string]domain.Employee),
		services:      make(map[string]domain.Service),
		requests:      make(map[string]domain.ServiceRequest),
		invoices:      make(map[string]domain.Invoice),
		payments:      make(map[string]domain.Payment),
		documents:     make(map[string]domain.Document),
		notifications: make(map[string]domain.Notification),
		refresh:       make(map[string]domain.RefreshToken),
		resets:        make(map[string]repository.OneTimeToken),
		verifications: make(map[string]repository.OneTimeToken),
		sequences:     make(map[string]int),
		serials:       make(map[string]int64),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the time source used for generated timestamps.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Repositories returns repository views over the store.
func (s *Store) Repositories() repository.Set {
	return repository.Set{
		Permissions:        &permissionRepo{s},
		Roles:              &roleRepo{s},
		Customers:          &customerRepo{s},
		Employees:          &employeeRepo{s},
		Catalog:            &catalogRepo{s},
		Requests:           &requestRepo{s},
		Invoices:           &invoiceRepo{s},
		Payments:           &paymentRepo{s},
		Documents:          &documentRepo{s},
		Notifications:      &notificationRepo{s},
		Audit:              &auditRepo{s},
		RefreshTokens:      &refreshRepo{s},
		PasswordResets:     &oneTimeRepo{store: s, tokens: func(s *Store) map[string]repository.OneTimeToken { return s.resets }},
		EmailVerifications: &oneTimeRepo{store: s, tokens: func(s *Store) map[string]repository.OneTimeToken { return s.verifications }},
	}
}

func newID() string {
	return uuid.NewString()
}

// track assigns an insertion serial to a new row. Callers hold mu.
func (s *Store) track(id string) {
	s.serial++
	s.serials[id] = s.serial
}

// newerFirst orders rows by creation time, then insertion order, descending.
func (s *Store) newerFirst(idA string, a time.Time, idB string, b time.Time) bool {
	if !a.Equal(b) {
		return a.After(b)
	}
	return s.serials[idA] > s.serials[idB]
}

// olderFirst is the ascending counterpart of newerFirst.
func (s *Store) olderFirst(idA string, a time.Time, idB string, b time.Time) bool {
	if !a.Equal(b) {
		return a.Before(b)
	}
	return s.serials[idA] < s.serials[idB]
}

// createdAt keeps a creation time chosen by the caller and falls back to the
// store clock.
func (s *Store) createdAt(at time.Time) time.Time {
	if at.IsZero() {
		return s.now()
	}
	return at.UTC()
}

func (s *Store) nextNumberLocked(prefix string, at time.Time) string {
	year := at.UTC().Year()
	key := repository.FormatNumber(prefix, year, 0)
	s.sequences[key]++
	return repository.FormatNumber(prefix, year, s.sequences[key])
}

func uniqueViolation(constraint string) error {
	return &pgconn.PgError{Code: "23505", ConstraintName: constraint, Message: "duplicate key value violates unique constraint"}
}

func foreignKeyViolation(constraint string) error {
	return &pgconn.PgError{Code: "23503", ConstraintName: constraint, Message: "violates foreign key constraint"}
}

var errNoRows = pgx.ErrNoRows

func page[T any](items []T, limit, offset int) []T {
	limit, offset = repository.NormalizePage(limit, offset)
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	out := make([]T, end-offset)
	copy(out, items[offset:end])
	return out
}

func contains(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), needle)
}

func searchTerm(term *string) string {
	if term == nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(*term))
}

package errorutil

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// DomainError standardizes application errors. Every error carries an
// English and an Arabic message.
type DomainError struct {
	Code       string
	Message    string
	MessageAr  string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message, messageAr string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, MessageAr: messageAr, HTTPStatus: status, Details: details}
}

func NewValidationError(message, messageAr string, details map[string]any) error {
	return NewDomainError("VALIDATION_FAILED", message, messageAr, http.StatusBadRequest, details)
}

func NewBadRequest(message, messageAr string, details map[string]any) error {
	return NewDomainError("BAD_REQUEST", message, messageAr, http.StatusBadRequest, details)
}

var resourceNamesAr = map[string]string{
	"audit entry":  "سجل التدقيق",
	"customer":     "العميل",
	"document":     "المستند",
	"employee":     "الموظف",
	"invoice":      "الفاتورة",
	"notification": "الإشعار",
	"payment":      "الدفعة",
	"permission":   "الصلاحية",
	"request":      "الطلب",
	"role":         "الدور",
	"service":      "الخدمة",
	"token":        "الرمز",
}

// NewNotFound builds a bilingual not-found error for the named resource.
func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	nameAr, ok := resourceNamesAr[resource]
	if !ok {
		nameAr = "المورد"
	}
	return &DomainError{
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		MessageAr:  fmt.Sprintf("%s غير موجود", nameAr),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message, messageAr string) error {
	return NewDomainError("UNAUTHORIZED", message, messageAr, http.StatusUnauthorized, nil)
}

func NewForbidden(message, messageAr string, details map[string]any) error {
	return NewDomainError("FORBIDDEN", message, messageAr, http.StatusForbidden, details)
}

func NewConflict(message, messageAr string, details map[string]any) error {
	return NewDomainError("CONFLICT", message, messageAr, http.StatusConflict, details)
}

func NewTooManyRequests(message, messageAr string) error {
	return NewDomainError("TOO_MANY_REQUESTS", message, messageAr, http.StatusTooManyRequests, nil)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		MessageAr:  "خطأ داخلي في الخادم",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// IsNotFound reports whether err means a missing row or a NOT_FOUND domain error.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) {
		return true
	}
	var domainErr *DomainError
	return errors.As(err, &domainErr) && domainErr.Code == "NOT_FOUND"
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) {
		return NewNotFound("resource", nil).(*DomainError)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return NewConflict("resource already exists", "المورد موجود مسبقاً",
				map[string]any{"constraint": pgErr.ConstraintName}).(*DomainError)
		case pgForeignKeyViolation:
			return NewConflict("resource is referenced by other records", "المورد مرتبط بسجلات أخرى",
				map[string]any{"constraint": pgErr.ConstraintName}).(*DomainError)
		}
	}
	return NewInternalError(err).(*DomainError)
}

// MapError converts generic errors to DomainError while keeping the error interface.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	return ToDomainError(err)
}

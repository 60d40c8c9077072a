package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/spec-kit/request-service/internal/events"
	apperrors "github.com/spec-kit/request-service/pkg/util/errorutil"
)

// Clock returns the current time. Services default to UTC wall time.
type Clock func() time.Time

func defaultClock(c Clock) Clock {
	if c == nil {
		return func() time.Time { return time.Now().UTC() }
	}
	return c
}

func defaultLogger(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}

// lookupError maps a missing row to a bilingual not-found for resource and
// everything else through MapError.
func lookupError(err error, resource, id string) error {
	if errors.Is(err, pgx.ErrNoRows) || isInvalidText(err) {
		return apperrors.NewNotFound(resource, map[string]any{"id": id})
	}
	return apperrors.MapError(err)
}

// isInvalidText reports a malformed uuid rejected by Postgres.
func isInvalidText(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "22P02"
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

func publish(ctx context.Context, dispatcher events.Dispatcher, logger *zap.Logger, event events.Event) {
	if dispatcher == nil {
		return
	}
	if err := dispatcher.Publish(ctx, event); err != nil {
		logger.Warn("event publish failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}

func trimPtr(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	return &t
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func requireText(fields map[string]string) error {
	var missing []string
	for name, value := range fields {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return apperrors.NewValidationError("required fields are missing", "حقول مطلوبة مفقودة",
		map[string]any{"fields": missing})
}

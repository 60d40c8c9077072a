package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/request-service/internal/domain"
)

// RefreshTokenRepository stores hashed refresh tokens.
type RefreshTokenRepository interface {
	Create(ctx context.Context, token *domain.RefreshToken) error
	GetByHash(ctx context.Context, hash string) (*domain.RefreshToken, error)
	Rotate(ctx context.Context, oldID string, next *domain.RefreshToken) error
	Revoke(ctx context.Context, id string) error
	RevokeAllForUser(ctx context.Context, userID string, userType domain.SubjectType) error
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

type refreshTokenRepository struct {
	pool DB
}

// NewRefreshTokenRepository constructs repository.
func NewRefreshTokenRepository(pool DB) RefreshTokenRepository {
	return &refreshTokenRepository{pool: pool}
}

const insertRefreshToken = `
        INSERT INTO refresh_tokens (user_id, user_type, token_hash, expires_at)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at`

func (r *refreshTokenRepository) Create(ctx context.Context, token *domain.RefreshToken) error {
	return r.pool.QueryRow(ctx, insertRefreshToken,
		token.UserID,
		token.UserType,
		token.TokenHash,
		token.ExpiresAt,
	).Scan(&token.ID, &token.CreatedAt)
}

func (r *refreshTokenRepository) GetByHash(ctx context.Context, hash string) (*domain.RefreshToken, error) {
	const query = `
        SELECT id, user_id, user_type, token_hash, expires_at, revoked_at, created_at
        FROM refresh_tokens WHERE token_hash=$1`
	var token domain.RefreshToken
	if err := r.pool.QueryRow(ctx, query, hash).Scan(
		&token.ID,
		&token.UserID,
		&token.UserType,
		&token.TokenHash,
		&token.ExpiresAt,
		&token.RevokedAt,
		&token.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &token, nil
}

// Rotate revokes oldID and stores next atomically. A token that was already
// revoked yields pgx.ErrNoRows so concurrent refreshes cannot both win.
func (r *refreshTokenRepository) Rotate(ctx context.Context, oldID string, next *domain.RefreshToken) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		cmd, err := tx.Exec(ctx, `UPDATE refresh_tokens SET revoked_at=NOW() WHERE id=$1 AND revoked_at IS NULL`, oldID)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return pgx.ErrNoRows
		}
		return tx.QueryRow(ctx, insertRefreshToken,
			next.UserID,
			next.UserType,
			next.TokenHash,
			next.ExpiresAt,
		).Scan(&next.ID, &next.CreatedAt)
	})
}

func (r *refreshTokenRepository) Revoke(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `UPDATE refresh_tokens SET revoked_at=NOW() WHERE id=$1 AND revoked_at IS NULL`, id)
	return err
}

func (r *refreshTokenRepository) RevokeAllForUser(ctx context.Context, userID string, userType domain.SubjectType) error {
	const query = `
        UPDATE refresh_tokens SET revoked_at=NOW()
        WHERE user_id=$1 AND user_type=$2 AND revoked_at IS NULL`
	_, err := r.pool.Exec(ctx, query, userID, userType)
	return err
}

func (r *refreshTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE expires_at < $1 OR revoked_at IS NOT NULL`, now)
	if err != nil {
		return 0, err
	}
	return int(cmd.RowsAffected()), nil
}

// OneTimeToken is the shared shape of password reset and email verification
// tokens.
type OneTimeToken struct {
	ID        string
	Email     string
	UserType  domain.SubjectType
	TokenHash string
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

// Valid reports whether the token is unexpired and unused.
func (t *OneTimeToken) Valid(now time.Time) bool {
	return t.UsedAt == nil && now.Before(t.ExpiresAt)
}

// OneTimeTokenRepository manages single-use tokens in one table.
type OneTimeTokenRepository interface {
	Create(ctx context.Context, token *OneTimeToken) error
	GetByHash(ctx context.Context, hash string) (*OneTimeToken, error)
	MarkUsed(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

type oneTimeTokenRepository struct {
	pool  DB
	table string
}

// NewPasswordResetRepository constructs the password reset token repository.
func NewPasswordResetRepository(pool DB) OneTimeTokenRepository {
	return &oneTimeTokenRepository{pool: pool, table: "password_reset_tokens"}
}

// NewEmailVerificationRepository constructs the email verification token repository.
func NewEmailVerificationRepository(pool DB) OneTimeTokenRepository {
	return &oneTimeTokenRepository{pool: pool, table: "email_verification_tokens"}
}

func (r *oneTimeTokenRepository) Create(ctx context.Context, token *OneTimeToken) error {
	query := `
        INSERT INTO ` + r.table + ` (email, user_type, token_hash, expires_at)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		token.Email,
		token.UserType,
		token.TokenHash,
		token.ExpiresAt,
	).Scan(&token.ID, &token.CreatedAt)
}

func (r *oneTimeTokenRepository) GetByHash(ctx context.Context, hash string) (*OneTimeToken, error) {
	query := `
        SELECT id, email, user_type, token_hash, expires_at, used_at, created_at
        FROM ` + r.table + ` WHERE token_hash=$1`
	var token OneTimeToken
	if err := r.pool.QueryRow(ctx, query, hash).Scan(
		&token.ID,
		&token.Email,
		&token.UserType,
		&token.TokenHash,
		&token.ExpiresAt,
		&token.UsedAt,
		&token.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &token, nil
}

// MarkUsed consumes the token once; a second call yields pgx.ErrNoRows.
func (r *oneTimeTokenRepository) MarkUsed(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `UPDATE `+r.table+` SET used_at=NOW() WHERE id=$1 AND used_at IS NULL`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *oneTimeTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM `+r.table+` WHERE expires_at < $1 OR used_at IS NOT NULL`, now)
	if err != nil {
		return 0, err
	}
	return int(cmd.RowsAffected()), nil
}

package persistence

import (
	"context"
	"embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

const migrationsDir = "migrations"

// MigrationCommand names a goose command exposed by the admin CLI.
type MigrationCommand string

const (
	MigrateUp     MigrationCommand = "up"
	MigrateDown   MigrationCommand = "down"
	MigrateStatus MigrationCommand = "status"
)

// RunMigrations applies all pending embedded migrations.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) error {
	return Migrate(ctx, pool, MigrateUp, logger)
}

// Migrate runs a goose command against the pool through pgx's database/sql adapter.
func Migrate(ctx context.Context, pool *pgxpool.Pool, cmd MigrationCommand, logger *zap.Logger) error {
	if pool == nil {
		logger.Warn("no postgres pool available; skipping migrations")
		return nil
	}

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(zapGooseLogger{logger.Sugar()})
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("goose set dialect: %w", err)
	}

	var err error
	switch cmd {
	case MigrateUp:
		err = goose.UpContext(ctx, db, migrationsDir)
	case MigrateDown:
		err = goose.DownContext(ctx, db, migrationsDir)
	case MigrateStatus:
		err = goose.StatusContext(ctx, db, migrationsDir)
	default:
		return fmt.Errorf("unknown migration command %q", cmd)
	}
	if err != nil {
		return fmt.Errorf("goose %s: %w", cmd, err)
	}

	version, err := goose.GetDBVersionContext(ctx, db)
	if err == nil {
		logger.Info("migrations applied", zap.String("command", string(cmd)), zap.Int64("version", version))
	}
	return nil
}

type zapGooseLogger struct {
	s *zap.SugaredLogger
}

func (l zapGooseLogger) Fatalf(format string, v ...interface{}) { l.s.Fatalf(format, v...) }
func (l zapGooseLogger) Printf(format string, v ...interface{}) { l.s.Infof(format, v...) }

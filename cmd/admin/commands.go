package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/request-service/internal/config"
	"github.com/spec-kit/request-service/internal/observability"
	"github.com/spec-kit/request-service/internal/persistence"
	"github.com/spec-kit/request-service/internal/repository"
	"github.com/spec-kit/request-service/internal/service"
)

var errNoDatabase = errors.New("POSTGRES_DSN is required for admin commands")

// env is what every command needs once config and the pool are up.
type env struct {
	cfg    *config.Config
	logger *zap.Logger
	pg     *persistence.Postgres
}

func (e *env) close() {
	e.pg.Close()
	_ = e.logger.Sync()
}

func openEnv(ctx context.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.Postgres.DSN == "" {
		return nil, errNoDatabase
	}
	logger, err := observability.NewLogger(cfg.Logger, cfg.App.Name+"-admin")
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, logger: logger, pg: pg}, nil
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "request-admin",
		Short:         "Maintenance commands for the request service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newMigrateCmd(), newSeedCmd(), newCreateAdminCmd())
	return root
}

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database schema migrations",
	}
	for _, c := range []struct {
		name  persistence.MigrationCommand
		short string
	}{
		{persistence.MigrateUp, "Apply all pending migrations"},
		{persistence.MigrateDown, "Roll back the most recent migration"},
		{persistence.MigrateStatus, "Print migration status"},
	} {
		command := c.name
		cmd.AddCommand(&cobra.Command{
			Use:   string(command),
			Short: c.short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				e, err := openEnv(cmd.Context())
				if err != nil {
					return err
				}
				defer e.close()
				return persistence.Migrate(cmd.Context(), e.pg.PoolHandle(), command, e.logger)
			},
		})
	}
	return cmd
}

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Register built-in permissions, the Admin role and the configured bootstrap admin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.close()

			repos := repository.NewPostgresSet(e.pg.PoolHandle())
			audit := service.NewAuditService(repos.Audit, e.logger)
			if err := service.Bootstrap(cmd.Context(), e.cfg.Auth, service.BootstrapDependencies{
				Permissions:  service.NewPermissionService(repos.Permissions, audit, e.logger),
				RoleRepo:     repos.Roles,
				EmployeeRepo: repos.Employees,
				Logger:       e.logger,
			}); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "seed complete")
			return nil
		},
	}
}

func newCreateAdminCmd() *cobra.Command {
	var account service.AdminAccount
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an employee holding the Admin role",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if len(account.Password) < 8 {
				return errors.New("password must be at least 8 characters")
			}
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.close()

			repos := repository.NewPostgresSet(e.pg.PoolHandle())
			admin, err := service.EnsureAdminRole(cmd.Context(), repos.Roles)
			if err != nil {
				return err
			}
			created, err := service.EnsureAdminEmployee(cmd.Context(), repos.Employees, admin, account, e.cfg.Auth.BcryptCost)
			if err != nil {
				return err
			}
			if created == nil {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "employee %s already exists\n", account.Email)
				return nil
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "created admin %s (%s)\n", created.Email, created.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&account.Email, "email", "", "admin email")
	cmd.Flags().StringVar(&account.Password, "password", "", "admin password")
	cmd.Flags().StringVar(&account.FullName, "name", "Administrator", "full name")
	cmd.Flags().StringVar(&account.EmployeeCode, "code", "ADMIN-001", "employee code")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

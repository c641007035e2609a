package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"medication-reminders/internal/adapters/auth/jwtauth"
	pg "medication-reminders/internal/adapters/storage/postgres"
	"medication-reminders/internal/app"
	"medication-reminders/internal/ports/auth"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Levanta la API HTTP (y el scheduler si scheduler.enabled)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := app.New(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.Serve(cmd.Context())
		},
	}
}

func newSchedulerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scheduler",
		Short: "Corre solo el daemon de recordatorios, sin HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := app.New(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.RunScheduler(cmd.Context())
		},
	}
}

func newProcessDueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "process-due",
		Short: "Procesa una vez los recordatorios vencidos y sale",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := app.New(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.Scheduler.ProcessDueOnce(cmd.Context())
			if err != nil {
				return err
			}
			if res.LockBusy {
				fmt.Fprintln(cmd.OutOrStdout(), "another process holds the scheduler lock, nothing done")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "due=%d notified=%d retired=%d deactivated=%d skipped=%d failed=%d\n",
				res.Due, res.Notified, res.Retired, res.Deactivated, res.Skipped, res.Failed)
			return nil
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Aplica las migraciones pendientes de Postgres",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			if strings.TrimSpace(cfg.DB.DSN) == "" {
				return errors.New("DB_DSN is required to migrate")
			}
			if err := pg.Migrate(cfg.DB.DSN); err != nil {
				return err
			}
			log.Info("migrations applied", nil)
			return nil
		},
	}
}

func newDevTokenCmd() *cobra.Command {
	var (
		userID string
		email  string
		roles  string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "dev-token",
		Short: "Firma un JWT con JWT_SECRET para pruebas locales",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			v := jwtauth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer)
			tok, err := v.Sign(auth.Claims{
				UserID:       userID,
				Email:        email,
				Capabilities: auth.ParseCapabilities(roles),
			}, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "ID del usuario (sub)")
	cmd.Flags().StringVar(&email, "email", "", "Email del usuario")
	cmd.Flags().StringVar(&roles, "roles", "patient", "Capacidades CSV: patient,doctor,family")
	cmd.Flags().DurationVar(&ttl, "ttl", jwtauth.DefaultTokenExpiry, "Vigencia del token")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

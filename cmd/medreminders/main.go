package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"medication-reminders/internal/platform/config"
	"medication-reminders/internal/platform/logger"
)

// @title           Medication Reminders API
// @version         1.0
// @description     Recordatorios de medicación y accesos compartidos con consentimiento.
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var configPath string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "medreminders",
		Short:         "Medication reminders service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "Ruta a un YAML de configuración (env tiene prioridad)")

	root.AddCommand(
		newServeCmd(),
		newSchedulerCmd(),
		newProcessDueCmd(),
		newMigrateCmd(),
		newDevTokenCmd(),
	)
	return root
}

func loadConfig() (config.Config, logger.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, nil, err
	}
	log := logger.New(logger.Options{
		Level:  logger.ParseLevel(cfg.Log.Level),
		Format: logger.ParseFormat(cfg.Log.Format),
		App:    cfg.App,
	})
	return cfg, log, nil
}

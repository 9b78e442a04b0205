package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/JustJay7/judicial-case-sync/internal/config"
	"github.com/JustJay7/judicial-case-sync/internal/consult"
	"github.com/JustJay7/judicial-case-sync/internal/database"
	"github.com/JustJay7/judicial-case-sync/internal/server"
	"github.com/JustJay7/judicial-case-sync/pkg/logger"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "judicial-case-sync",
		Short:         "Consult and mirror Rama Judicial cases",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate()
		},
	})

	consultCmd := &cobra.Command{
		Use:   "consult <case-number>",
		Short: "Consult one case and print it as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			refresh, _ := cmd.Flags().GetBool("refresh")
			return runConsult(cmd.Context(), args[0], refresh, cmd.OutOrStdout())
		},
	}
	consultCmd.Flags().BoolP("refresh", "r", false, "Scrape the portal even if the case is stored locally")
	rootCmd.AddCommand(consultCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func bootstrap() (*config.Config, *logger.Logger, *gorm.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	db, err := database.Initialize(cfg.DatabasePath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return cfg, log, db, nil
}

func runServe() error {
	cfg, log, db, err := bootstrap()
	if err != nil {
		return err
	}
	defer log.Sync()

	srv := server.New(cfg, db, log)

	log.Info("Starting judicial case sync",
		"host", cfg.Host,
		"port", cfg.Port,
		"portal", cfg.PortalAPIURL,
		"degraded_fallback", cfg.DegradedFallback,
	)

	return srv.Run()
}

func runMigrate() error {
	_, log, db, err := bootstrap()
	if err != nil {
		return err
	}
	defer log.Sync()

	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info("Database migrations completed successfully")
	return nil
}

func runConsult(ctx context.Context, caseNumber string, refresh bool, out io.Writer) error {
	cfg, log, db, err := bootstrap()
	if err != nil {
		return err
	}
	defer log.Sync()

	components := server.Wire(cfg, db, log)
	res, err := components.Service.Consult(ctx, consult.Request{
		CaseNumber:   caseNumber,
		ForceRefresh: refresh,
		UserAgent:    "cli",
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

// Package main provides the contact-api binary: the contact form HTTP
// function plus ledger maintenance commands.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	// Embedded zone database so ledger.time_zone works in slim containers.
	_ "time/tzdata"

	"contact-functions/internal/common/config"
	"contact-functions/internal/common/observability"
	"contact-functions/internal/server"

	"github.com/spf13/cobra"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "contact-api"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Contact form submission service",
		Long: `contact-api accepts contact form submissions from the website,
records each one as a row in the yearly Google Sheets ledger and
optionally notifies the owner by email or SMS.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")

	cmd.AddCommand(serveCmd(&configPath))
	cmd.AddCommand(ledgerCmd(&configPath))
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})

	return cmd
}

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(*configPath)
		},
	}
}

func ledgerCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect and prepare the inquiry ledger",
	}

	var year string
	ensure := &cobra.Command{
		Use:   "ensure",
		Short: "Create the partition for a year if it does not exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ensurePartition(cmd, *configPath, year)
		},
	}
	ensure.Flags().StringVar(&year, "year", "", "Partition to prepare (defaults to the current year in ledger.time_zone)")
	cmd.AddCommand(ensure)

	return cmd
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

func serve(configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx := context.Background()
	app, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	obs, err := observability.New(cfg.App.Name)
	if err != nil {
		app.log.Warn("OpenTelemetry metrics disabled", map[string]interface{}{"error": err.Error()})
	}
	defer obs.Shutdown()

	handler, err := app.submitHandler(ctx)
	if err != nil {
		return err
	}

	srv := server.New(server.Config{
		Addr:            fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		ReadTimeout:     config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout:    config.GetDuration(cfg.Server.WriteTimeout),
		IdleTimeout:     config.GetDuration(cfg.Server.IdleTimeout),
		ShutdownTimeout: config.GetDuration(cfg.Server.ShutdownTimeout),
		Logger:          app.log,
		Observer:        obs,
		ReadyChecks:     app.readyChecks(),
	}, handler)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	app.log.Info("contact-api started", map[string]interface{}{
		"version":     Version,
		"environment": cfg.App.Environment,
		"path":        handler.Path(),
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
	}

	app.log.Info("Shutdown signal received, draining requests", nil)
	if err := srv.Shutdown(ctx); err != nil {
		app.log.Error("Server shutdown incomplete", map[string]interface{}{"error": err.Error()})
	}
	handler.Wait()

	app.log.Info("contact-api stopped gracefully", nil)
	return nil
}

func ensurePartition(cmd *cobra.Command, configPath, year string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), config.GetDuration(cfg.Ledger.RequestTimeout))
	defer cancel()

	app, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	if year == "" {
		year = time.Now().In(app.location).Format("2006")
	}

	created, err := app.ledger.EnsurePartition(ctx, year)
	if err != nil {
		return fmt.Errorf("ensure partition %s: %w", year, err)
	}

	if created {
		fmt.Fprintf(cmd.OutOrStdout(), "partition %s created\n", year)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "partition %s exists\n", year)
	}
	return nil
}

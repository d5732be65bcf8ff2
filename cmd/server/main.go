package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/matthewbaird/lawoffice/internal/activity"
	"github.com/matthewbaird/lawoffice/internal/config"
	"github.com/matthewbaird/lawoffice/internal/event"
	"github.com/matthewbaird/lawoffice/internal/eventbus"
	"github.com/matthewbaird/lawoffice/internal/ledger"
	"github.com/matthewbaird/lawoffice/internal/server"
	"github.com/matthewbaird/lawoffice/internal/store"
	"github.com/matthewbaird/lawoffice/internal/stream"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "server",
	Short:         "Serve the law office billing API",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServer,
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "", "Path to a YAML config file (default $APP_CONFIG)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "server:", err)
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := config.NewLogger(cfg.Logging)
	window, _ := cfg.PaymentEditWindow()
	shutdown, _ := cfg.ShutdownTimeout()

	db, err := store.Open(ctx, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := store.Migrate(ctx, db); err != nil {
		return fmt.Errorf("running schema migration: %w", err)
	}
	activityStore := activity.NewSQLStore(db)
	if err := activityStore.CreateTable(ctx); err != nil {
		return fmt.Errorf("creating activity table: %w", err)
	}
	log.Info("database migrated successfully")

	l := ledger.New(ledger.WithEditWindow(window), ledger.WithLogger(log))

	bus := eventbus.New(cfg.EventBus.BufferSize, log)
	hub := stream.NewHub(64, log)
	bus.Subscribe("log", eventbus.NewLogConsumer(log))
	bus.Subscribe("drift", eventbus.NewDriftConsumer(db, l, log))
	bus.Subscribe("stream", hub)
	bus.Start(context.WithoutCancel(ctx))
	defer bus.Stop()

	recorder := event.NewActivityRecorder(activityStore, bus)

	return server.Run(ctx, server.Config{
		Port:            cfg.Server.Port,
		ShutdownTimeout: shutdown,
		DB:              db,
		Ledger:          l,
		Activity:        activityStore,
		Recorder:        recorder,
		Hub:             hub,
		Log:             log,
	})
}

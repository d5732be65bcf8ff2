// Command driftcheck compares every client's stored balance with the
// balance recomputed from live em_conta charges and realized payments.
// With --fix it overwrites drifted balances. It exits non-zero while any
// drift remains.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matthewbaird/lawoffice/internal/config"
	"github.com/matthewbaird/lawoffice/internal/ledger"
	"github.com/matthewbaird/lawoffice/internal/store"
)

var (
	configPath string
	dsn        string
	clientID   int64
	fix        bool
)

var errDrift = errors.New("balance drift detected")

var rootCmd = &cobra.Command{
	Use:           "driftcheck",
	Short:         "Report and repair client balance drift",
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runDriftcheck,
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "", "Path to a YAML config file (default $APP_CONFIG)")
	rootCmd.Flags().StringVar(&dsn, "db", "", "Database DSN (overrides config)")
	rootCmd.Flags().Int64Var(&clientID, "client", 0, "Check only this client id")
	rootCmd.Flags().BoolVar(&fix, "fix", false, "Overwrite drifted balances with the computed value")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "driftcheck:", err)
		os.Exit(1)
	}
}

func runDriftcheck(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if dsn != "" {
		cfg.Database.DSN = dsn
	}
	log := config.NewLogger(cfg.Logging)
	log.SetOutput(cmd.ErrOrStderr())

	db, err := store.Open(ctx, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := store.Migrate(ctx, db); err != nil {
		return fmt.Errorf("running schema migration: %w", err)
	}

	c := checker{db: db, ledger: ledger.New(ledger.WithLogger(log)), out: cmd.OutOrStdout()}
	var ids []int64
	if clientID > 0 {
		ids = []int64{clientID}
	}
	summary, err := c.run(ctx, ids, fix)
	if err != nil {
		return err
	}
	if summary.Remaining > 0 {
		return fmt.Errorf("%w: %d of %d clients", errDrift, summary.Remaining, summary.Checked)
	}
	return nil
}

// Package cli implements the qcal command line: schedule previews, local
// flow execution against the simulator backend, and session inspection.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/me/qcal/internal/logging"
	"github.com/me/qcal/internal/store"
)

var (
	flagDBPath    string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string

	logger *slog.Logger
)

// defaultDBPath returns the default database path, checking the QCAL_DB env
// var first.
func defaultDBPath() string {
	if p := os.Getenv("QCAL_DB"); p != "" {
		return p
	}
	return ""
}

// NewRootCmd creates the root cobra command for the qcal CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "qcal",
		Short: "qcal — calibration scheduling for superconducting processors",
		Long:  "qcal builds conflict-free calibration schedules and drives them against an instrument backend.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flagDebug {
				flagLogLevel = "debug"
			}
			logger = logging.NewLogger(logging.ParseLevel(flagLogLevel), flagLogFormat)
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagDBPath, "db", defaultDBPath(), "Database path (or QCAL_DB env; default ~/.qcal/qcal.db)")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")

	root.AddCommand(
		newScheduleCmd(),
		newRunCmd(),
		newSessionsCmd(),
	)

	return root
}

// openStore resolves the database path, opens the store, and migrates it.
func openStore(ctx context.Context) (*store.SQLiteStore, error) {
	dbPath := flagDBPath
	if dbPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("cannot determine home directory: %w", err)
		}
		dir := filepath.Join(home, ".qcal")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("cannot create %s: %w", dir, err)
		}
		dbPath = filepath.Join(dir, "qcal.db")
	}

	st, err := store.NewSQLiteStore(dbPath, logger)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return st, nil
}

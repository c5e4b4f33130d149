// Package cli implements the schedule command-line tool.
package cli

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"smart-scheduler/internal/config"
	"smart-scheduler/internal/db"
	"smart-scheduler/internal/logx"
)

var (
	flagLogLevel  string
	flagLogFormat string
	flagDriver    string
	flagDSN       string

	cfg    *config.Config
	logger zerolog.Logger
)

// NewRootCmd creates the root cobra command for the schedule CLI. Defaults
// come from the same environment variables the API server reads.
func NewRootCmd() *cobra.Command {
	cfg = config.Load()

	root := &cobra.Command{
		Use:   "schedule",
		Short: "Smart scheduler tools",
		Long:  "Run the scheduling engine offline or against the database, migrate the schema and mint API tokens.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger = logx.NewWithWriter(flagLogLevel, flagLogFormat, cmd.ErrOrStderr())
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", cfg.LogFormat, "Log format (console, json)")
	root.PersistentFlags().StringVar(&flagDriver, "driver", cfg.DBDriver, "Database driver (postgres, sqlite)")
	root.PersistentFlags().StringVar(&flagDSN, "dsn", "", "Database connection string (defaults to DB_* env)")

	root.AddCommand(
		newSuggestCmd(),
		newMigrateCmd(),
		newTokenCmd(),
	)

	return root
}

func openDB() (*db.DB, error) {
	dsn := flagDSN
	if dsn == "" {
		c := *cfg
		c.DBDriver = flagDriver
		dsn = c.ConnString()
	}
	return db.Connect(flagDriver, dsn)
}

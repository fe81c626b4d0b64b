package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"charity-service/internal/config"
	"charity-service/internal/db"
	"charity-service/internal/logger"

	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
)

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// Connector opens the database the commands operate on.
type Connector func(ctx context.Context) (*bun.DB, *config.Config, error)

// RootOptions holds global flags and the shared database connector.
type RootOptions struct {
	Format  string
	Verbose bool
	Connect Connector
}

// ConnectFromConfig loads the service configuration and opens its database.
func ConnectFromConfig(ctx context.Context) (*bun.DB, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	database, err := db.New(cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	return database, cfg, nil
}

// NewRootCommand creates the charityctl command tree.
func NewRootCommand(connect Connector) *cobra.Command {
	opts := &RootOptions{Connect: connect}

	cmd := &cobra.Command{
		Use:   "charityctl",
		Short: "Operate the charity donation ledger",
		// main reports errors itself so JSON output stays clean
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log to stderr")

	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewCreateSuperuserCommand(opts))
	cmd.AddCommand(NewReconcileCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

func (o *RootOptions) logger(w io.Writer) *slog.Logger {
	if !o.Verbose {
		return logger.Discard()
	}
	return logger.NewWithWriter(w, false, slog.LevelDebug)
}

// withDB connects, runs fn and closes the connection.
func (o *RootOptions) withDB(ctx context.Context, fn func(database *bun.DB, cfg *config.Config) error) error {
	database, cfg, err := o.Connect(ctx)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer db.Close(database)
	return fn(database, cfg)
}

package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"charity-service/internal/app"
	"charity-service/internal/auth"
	"charity-service/internal/config"
	"charity-service/internal/ledger"
	"charity-service/internal/metrics"
	"charity-service/internal/reconcile"

	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
)

// ErrUnbalanced is returned by reconcile when the ledger does not add up, so
// the process exits non-zero.
var ErrUnbalanced = errors.New("ledger is not balanced")

func NewMigrateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "migrate",
		Short:        "Create missing tables and indexes",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withDB(cmd.Context(), func(database *bun.DB, _ *config.Config) error {
				if err := app.Migrate(cmd.Context(), database); err != nil {
					return err
				}
				return opts.write(cmd.OutOrStdout(), map[string]string{"status": "migrated"}, "migrations applied\n")
			})
		},
	}
}

func NewCreateSuperuserCommand(opts *RootOptions) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:          "create-superuser",
		Short:        "Create a superuser unless the email is already registered",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withDB(cmd.Context(), func(database *bun.DB, cfg *config.Config) error {
				if email == "" {
					email = cfg.Auth.FirstSuperuserEmail
				}
				if password == "" {
					password = cfg.Auth.FirstSuperuserPassword
				}
				if email == "" || password == "" {
					return errors.New("--email and --password are required")
				}

				log := opts.logger(cmd.ErrOrStderr())
				tokens := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
				service := auth.NewService(auth.NewRepository(database, metrics.NewMock()), tokens, log)

				created, err := service.EnsureSuperuser(cmd.Context(), email, password)
				if err != nil {
					return err
				}

				text := fmt.Sprintf("superuser %s created\n", email)
				if !created {
					text = fmt.Sprintf("user %s already exists\n", email)
				}
				return opts.write(cmd.OutOrStdout(), map[string]interface{}{"email": email, "created": created}, text)
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "superuser email (defaults to auth.first_superuser_email)")
	cmd.Flags().StringVar(&password, "password", "", "superuser password (defaults to auth.first_superuser_password)")

	return cmd
}

func NewReconcileCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "reconcile",
		Short:        "Check that both sides of the ledger agree",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withDB(cmd.Context(), func(database *bun.DB, _ *config.Config) error {
				log := opts.logger(cmd.ErrOrStderr())
				checker := reconcile.NewChecker(ledger.NewStore(database, nil), nil, log)

				report, err := checker.Check(cmd.Context())
				if err != nil {
					return err
				}
				if err := opts.write(cmd.OutOrStdout(), report, formatReport(report)); err != nil {
					return err
				}
				if !report.Balanced {
					return ErrUnbalanced
				}
				return nil
			})
		},
	}
}

func formatReport(r *reconcile.Report) string {
	status := "balanced"
	if !r.Balanced {
		status = "UNBALANCED"
	}
	s := fmt.Sprintf("ledger %s\n", status)
	s += fmt.Sprintf("  projects:  %d (%d open) target %d invested %d\n",
		r.Summary.Projects.Count, r.Summary.Projects.Open, r.Summary.Projects.FullAmount, r.Summary.Projects.Invested)
	s += fmt.Sprintf("  donations: %d (%d open) donated %d invested %d\n",
		r.Summary.Donations.Count, r.Summary.Donations.Open, r.Summary.Donations.FullAmount, r.Summary.Donations.Invested)
	s += fmt.Sprintf("  unallocated: %d\n", r.Unallocated)
	for _, p := range r.Problems {
		s += fmt.Sprintf("  problem: %s\n", p)
	}
	return s
}

func (o *RootOptions) write(w io.Writer, v interface{}, text string) error {
	if o.Format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	_, err := io.WriteString(w, text)
	return err
}

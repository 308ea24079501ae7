// Package tenantctl implements the tenantctl command tree.
package tenantctl

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/dmitrymomot/tenantguard/pkg/audit"
	"github.com/dmitrymomot/tenantguard/pkg/config"
	"github.com/dmitrymomot/tenantguard/pkg/logger"
	"github.com/dmitrymomot/tenantguard/pkg/pg"
)

const (
	outputText = "text"
	outputJSON = "json"
)

// Option replaces a dependency of the command tree.
type Option func(*app)

// WithOutput redirects command output.
func WithOutput(w io.Writer) Option {
	return func(a *app) { a.out = w }
}

// WithAuditStorage makes the audit commands read s instead of connecting.
func WithAuditStorage(s audit.Storage) Option {
	return func(a *app) {
		a.openAudit = func(context.Context, string) (audit.Storage, func(), error) {
			return s, func() {}, nil
		}
	}
}

// app carries what the subcommands share.
type app struct {
	out      io.Writer
	output   string
	envFiles []string
	cfg      Config
	log      *slog.Logger

	openPG    func(ctx context.Context) (*pgxpool.Pool, pg.BinderConfig, pg.Config, error)
	openAudit func(ctx context.Context, backend string) (audit.Storage, func(), error)
}

// Execute runs tenantctl with args and returns the process exit code.
func Execute(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := NewRootCmd()
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// NewRootCmd builds the command tree.
func NewRootCmd(opts ...Option) *cobra.Command {
	a := &app{out: os.Stdout}
	a.openPG = a.connectPG
	a.openAudit = a.connectAudit
	for _, opt := range opts {
		opt(a)
	}

	root := &cobra.Command{
		Use:           "tenantctl",
		Short:         "Administer tenant isolation",
		Long:          "tenantctl applies the isolation schema, installs and verifies row policies and reads the audit trail of cross-tenant runs.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if a.output != outputText && a.output != outputJSON {
				return fmt.Errorf("unknown output format %q", a.output)
			}
			if err := config.Load(&a.cfg, a.loadOptions()...); err != nil {
				return err
			}
			a.log = logger.New(
				logger.WithConfig(a.cfg.Log),
				logger.WithOutput(cmd.ErrOrStderr()),
			)
			return nil
		},
	}
	root.SetOut(a.out)

	root.PersistentFlags().StringVarP(&a.output, "output", "o", outputText, "Output format: text or json")
	root.PersistentFlags().StringSliceVar(&a.envFiles, "env-file", nil, "Dotenv files to load before reading the environment")

	root.AddCommand(
		newMigrateCmd(a),
		newPolicyCmd(a),
		newAuditCmd(a),
		newTenantsCmd(a),
	)
	return root
}

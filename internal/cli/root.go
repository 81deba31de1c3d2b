package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joseph-ayodele/invoice-desk/internal/common"
	"github.com/joseph-ayodele/invoice-desk/internal/invoiceapi"
	"github.com/joseph-ayodele/invoice-desk/internal/output"
	"github.com/joseph-ayodele/invoice-desk/internal/repository"
	"github.com/joseph-ayodele/invoice-desk/internal/workspace"
)

// app carries what every command needs, built once flags are parsed.
type app struct {
	v       *viper.Viper
	cfgFile string
	format  string
	session string

	cfg    *common.Config
	logger *slog.Logger
	client *invoiceapi.Client
	db     *repository.DB
}

// NewRootCmd builds the invoicedesk command tree.
func NewRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:   "invoicedesk",
		Short: "Upload, review and correct extracted invoice data",
		Long: `invoicedesk talks to an invoice extraction service. It uploads PDF invoices,
lists and fetches processed invoices, edits their fields and submits the corrections.

Run "invoicedesk serve" for the browser UI, or use the commands below from a shell.
A shell session keeps its selected invoice between commands (see --session).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			a.close()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.cfgFile, "config", "c", "", "config file (yaml, json or toml)")
	flags.StringVarP(&a.format, "output", "o", "text", "output format: text, json")
	flags.StringVar(&a.session, "session", "cli", "session id under which the selected invoice is kept")
	flags.String("service", "", "extraction service base URL")
	flags.String("db", "", "database DSN (sqlite file or postgres URL)")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	_ = a.v.BindPFlag("service.base_url", flags.Lookup("service"))
	_ = a.v.BindPFlag("database.dsn", flags.Lookup("db"))
	_ = a.v.BindPFlag("log.level", flags.Lookup("log-level"))

	root.AddCommand(
		newServeCmd(a),
		newUploadCmd(a),
		newWatchCmd(a),
		newListCmd(a),
		newShowCmd(a),
		newFieldsCmd(a),
		newSetCmd(a),
		newSubmitCmd(a),
		newExportCmd(a),
	)
	return root
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", common.UserMessage(err))
		os.Exit(1)
	}
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := common.LoadConfig(a.v, a.cfgFile)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = common.NewLogger(cfg.Log, cmd.ErrOrStderr())
	slog.SetDefault(a.logger)
	a.client = invoiceapi.NewClient(invoiceapi.Config{
		BaseURL: cfg.Service.BaseURL,
		Timeout: cfg.Service.Timeout,
	}, a.logger)
	return nil
}

func (a *app) close() {
	if a.db != nil {
		a.db.Close(a.logger)
		a.db = nil
	}
}

// database opens the configured database on first use.
func (a *app) database(ctx context.Context) (*repository.DB, error) {
	if a.db != nil {
		return a.db, nil
	}
	c := a.cfg.Database
	db, err := repository.Open(ctx, repository.Config{
		DSN:              c.DSN,
		MaxConns:         c.MaxConns,
		MinConns:         c.MinConns,
		MaxConnLifetime:  c.MaxConnLifetime,
		MaxConnIdleTime:  c.MaxConnIdleTime,
		DialTimeout:      c.DialTimeout,
		StatementTimeout: c.StatementTimeout,
	}, a.logger)
	if err != nil {
		return nil, err
	}
	a.db = db
	return db, nil
}

// workspace returns the shell session's workspace with its draft restored.
func (a *app) workspace(ctx context.Context) (*workspace.Workspace, error) {
	db, err := a.database(ctx)
	if err != nil {
		return nil, err
	}
	drafts := repository.NewDraftRepository(db, a.logger)
	ws := workspace.New(a.session, a.client, a.logger, workspace.WithDrafts(drafts))
	if err := ws.Restore(ctx); err != nil {
		return nil, err
	}
	return ws, nil
}

func (a *app) renderer(w io.Writer) output.Renderer {
	return output.New(a.format, w)
}

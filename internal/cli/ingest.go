package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/invoice-desk/internal/async"
	"github.com/joseph-ayodele/invoice-desk/internal/ingest"
	"github.com/joseph-ayodele/invoice-desk/internal/repository"
)

type ingestFlags struct {
	outDir string
	force  bool
}

func (f *ingestFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.outDir, "out", "", "write each extracted invoice to DIR/<name>.json (default ingest.out_dir)")
	cmd.Flags().BoolVar(&f.force, "force", false, "upload files even if the same content was extracted before")
}

// tally counts outcomes and renders them one at a time.
type tally struct {
	mu     sync.Mutex
	ok     int
	failed int
}

// newQueue wires an uploader with upload history behind a worker queue. Results are
// rendered as they complete.
func newQueue(cmd *cobra.Command, a *app, flags *ingestFlags, t *tally) (*async.ProcessorQueue, error) {
	db, err := a.database(cmd.Context())
	if err != nil {
		return nil, err
	}
	outDir := a.cfg.Ingest.OutDir
	if cmd.Flags().Changed("out") {
		outDir = flags.outDir
	}

	out := a.renderer(cmd.OutOrStdout())
	uploader := ingest.NewUploader(a.client, a.logger,
		ingest.WithHistory(repository.NewUploadRepository(db, a.logger)),
		ingest.WithOutDir(outDir),
		ingest.WithResultHook(func(o ingest.Outcome, err error) {
			t.mu.Lock()
			defer t.mu.Unlock()
			if err != nil {
				t.failed++
			} else {
				t.ok++
			}
			if rerr := out.Outcome(o, err); rerr != nil {
				a.logger.Warn("failed to render outcome", "error", rerr)
			}
		}),
	)
	return async.NewProcessorQueue(uploader, a.logger,
		async.WithWorkers(a.cfg.Ingest.Workers),
		async.WithQueueSize(a.cfg.Ingest.QueueSize),
		async.WithProcessTimeout(a.cfg.Ingest.ProcessTimeout),
	), nil
}

func newUploadCmd(a *app) *cobra.Command {
	var flags ingestFlags
	cmd := &cobra.Command{
		Use:   "upload <file|dir|glob>...",
		Short: "Send PDF invoices to the extraction service",
		Long: `Send PDF invoices to the extraction service, one request per file, using a pool
of workers. Arguments may be files, directories (searched recursively) or globs.

Examples:
  invoicedesk upload invoice.pdf
  invoicedesk upload "inbox/**/*.pdf" --out extracted/`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer a.close()
			paths, err := ingest.Expand(args)
			if err != nil {
				return err
			}
			if len(paths) == 0 {
				return fmt.Errorf("no PDF files matched %v", args)
			}

			var t tally
			q, err := newQueue(cmd, a, &flags, &t)
			if err != nil {
				return err
			}
			for _, p := range paths {
				if err := q.Enqueue(cmd.Context(), async.Job{Path: p, Force: flags.force, TraceID: uuid.NewString()}); err != nil {
					q.Shutdown(context.Background())
					return err
				}
			}
			q.Shutdown(context.Background())

			if t.failed > 0 {
				return fmt.Errorf("%d of %d files failed", t.failed, len(paths))
			}
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newWatchCmd(a *app) *cobra.Command {
	var (
		flags   ingestFlags
		initial bool
	)
	cmd := &cobra.Command{
		Use:   "watch <dir>...",
		Short: "Upload PDFs as they appear in folders",
		Long: `Watch folders (recursively) and upload every PDF that is created or rewritten.
Combine with --out to keep a folder of extracted JSON in step with a folder of PDFs.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer a.close()
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var t tally
			q, err := newQueue(cmd, a, &flags, &t)
			if err != nil {
				return err
			}
			events, errs, err := ingest.Watch(ctx, ingest.WatchConfig{
				Roots:       args,
				InitialScan: initial,
				Debounce:    a.cfg.Ingest.Debounce,
			}, a.logger)
			if err != nil {
				q.Shutdown(context.Background())
				return err
			}
			a.logger.Info("watching folders", "roots", args, "initial_scan", initial)

		loop:
			for {
				select {
				case p, ok := <-events:
					if !ok {
						break loop
					}
					if err := q.Enqueue(ctx, async.Job{Path: p, Force: flags.force, TraceID: uuid.NewString()}); err != nil {
						a.logger.Warn("failed to queue file", "path", p, "error", err)
					}
				case err, ok := <-errs:
					if !ok {
						errs = nil
						continue
					}
					a.logger.Warn("watch error", "error", err)
				}
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Ingest.ProcessTimeout+5*time.Second)
			defer cancel()
			q.Shutdown(shutdownCtx)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&initial, "initial-scan", false, "also upload PDFs already in the folders")
	return cmd
}

package cli

import (
	"context"
	"errors"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"github.com/joseph-ayodele/invoice-desk/internal/export"
	"github.com/joseph-ayodele/invoice-desk/internal/formengine"
	"github.com/joseph-ayodele/invoice-desk/internal/health"
	"github.com/joseph-ayodele/invoice-desk/internal/repository"
	"github.com/joseph-ayodele/invoice-desk/internal/web"
	"github.com/joseph-ayodele/invoice-desk/internal/workspace"
)

func newServeCmd(a *app) *cobra.Command {
	var secure bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the browser UI and the gRPC health endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			defer a.close()
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			db, err := a.database(ctx)
			if err != nil {
				return err
			}
			if err := db.HealthCheck(ctx, 5*time.Second, a.logger); err != nil {
				return err
			}

			renderer := formengine.NewRenderer()
			manager := workspace.NewManager(a.client, a.logger,
				workspace.WithDrafts(repository.NewDraftRepository(db, a.logger)),
				workspace.WithRenderer(renderer),
			)

			grpcServer, hs := health.NewServer()
			monitor := health.NewMonitor(hs, a.cfg.Server.HealthInterval, a.logger)
			monitor.Add(health.ServiceDatabase, func(ctx context.Context) error {
				return db.HealthCheck(ctx, 0, a.logger)
			})
			monitor.Add(health.ServiceExtraction, func(ctx context.Context) error {
				_, err := a.client.ListInvoices(ctx)
				return err
			})
			go monitor.Run(ctx)

			if addr := a.cfg.Server.GRPCAddr; addr != "" {
				lis, err := net.Listen("tcp", addr)
				if err != nil {
					a.logger.Error("failed to listen on address", "addr", addr, "error", err)
					return err
				}
				go serveGRPC(a, grpcServer, lis)
				defer grpcServer.GracefulStop()
			}

			gin.SetMode(gin.ReleaseMode)
			srv := web.NewServer(manager, export.NewService(renderer, a.logger), a.logger, web.WithSecureCookies(secure))
			return srv.Run(ctx, a.cfg.Server.Addr)
		},
	}
	cmd.Flags().StringP("addr", "a", "", "HTTP listen address (default server.addr)")
	cmd.Flags().String("grpc-addr", "", "gRPC health listen address, empty to disable (default server.grpc_addr)")
	cmd.Flags().BoolVar(&secure, "secure-cookies", false, "mark session cookies Secure (serve behind TLS)")
	_ = a.v.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))
	_ = a.v.BindPFlag("server.grpc_addr", cmd.Flags().Lookup("grpc-addr"))
	return cmd
}

func serveGRPC(a *app, s *grpc.Server, lis net.Listener) {
	a.logger.Info("grpc health listening", "addr", lis.Addr().String())
	if err := s.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		a.logger.Error("grpc serve failed", "error", err)
	}
}

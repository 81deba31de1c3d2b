package web

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/joseph-ayodele/invoice-desk/internal/export"
	"github.com/joseph-ayodele/invoice-desk/internal/workspace"
)

//go:embed templates/*.html
var templateFS embed.FS

// Server is the browser front end: an HTML page and a JSON API over one workspace per
// session cookie.
type Server struct {
	engine   *gin.Engine
	sessions *workspace.Manager
	exporter *export.Service
	logger   *slog.Logger

	sessionIdle time.Duration
	secure      bool
}

type Option func(*Server)

// WithSessionIdle drops in-memory workspaces idle for longer than d.
func WithSessionIdle(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.sessionIdle = d
		}
	}
}

// WithSecureCookies marks session cookies Secure, for deployments behind TLS.
func WithSecureCookies(secure bool) Option {
	return func(s *Server) { s.secure = secure }
}

func NewServer(sessions *workspace.Manager, exporter *export.Service, logger *slog.Logger, opts ...Option) *Server {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.RedirectTrailingSlash = false
	engine.RedirectFixedPath = false
	engine.MaxMultipartMemory = 32 << 20
	engine.SetHTMLTemplate(template.Must(template.ParseFS(templateFS, "templates/*.html")))

	s := &Server{
		engine:      engine,
		sessions:    sessions,
		exporter:    exporter,
		logger:      logger,
		sessionIdle: 2 * time.Hour,
	}
	for _, o := range opts {
		o(s)
	}
	s.setupRoutes()
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) setupRoutes() {
	s.engine.Use(requestID(), s.accessLog())

	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":   "ok",
			"sessions": s.sessions.Len(),
		})
	})

	pages := s.engine.Group("/", s.session())
	pages.GET("/", s.handleIndex)
	pages.POST("/upload", s.handleUploadForm)
	pages.POST("/select", s.handleSelectForm)
	pages.POST("/edit", s.handleEditForm)
	pages.POST("/submit", s.handleSubmitForm)

	api := s.engine.Group("/api", s.session())
	api.POST("/upload", s.apiUpload)
	api.GET("/invoices", s.apiInvoices)
	api.POST("/invoices/select", s.apiSelect)
	api.GET("/fields", s.apiFields)
	api.PATCH("/fields", s.apiEdit)
	api.POST("/submit", s.apiSubmit)
	api.GET("/record", s.apiRecord)
	api.GET("/export.xlsx", s.apiExport)
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.pruneSessions(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("web.listen", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("web.shutdown")
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) pruneSessions(ctx context.Context) {
	ticker := time.NewTicker(s.sessionIdle / 4)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sessions.Prune(s.sessionIdle)
		}
	}
}

package web

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-desk/internal/common"
	"github.com/joseph-ayodele/invoice-desk/internal/workspace"
)

const (
	sessionCookie   = "invoicedesk_session"
	requestIDHeader = "X-Request-ID"
	workspaceKey    = "workspace"
)

// requestID tags the request context with the caller's X-Request-ID or a fresh uuid.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if common.ValidateAndReturnError(common.NewValidator().Field("request_id", id, common.UUID)) != nil {
			id = uuid.NewString()
		}
		c.Header(requestIDHeader, id)
		c.Request = c.Request.WithContext(common.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		ctx := c.Request.Context()
		attrs := []any{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"elapsed_ms", time.Since(start).Milliseconds(),
			"req_id", common.RequestIDFromContext(ctx),
		}
		if sid := common.SessionIDFromContext(ctx); sid != "" {
			attrs = append(attrs, "session_id", sid)
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			s.logger.Error("web.http.request", attrs...)
			return
		}
		s.logger.Info("web.http.request", attrs...)
	}
}

// session resolves the browser's workspace from its session cookie, issuing a new
// session id when the cookie is missing or malformed.
func (s *Server) session() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := c.Cookie(sessionCookie)
		if err != nil || common.ValidateAndReturnError(common.NewValidator().Field("session", id, common.UUID)) != nil {
			id = uuid.NewString()
		}
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(sessionCookie, id, int(s.sessionIdle/time.Second), "/", "", s.secure, true)

		ctx := common.WithSessionID(c.Request.Context(), id)
		c.Request = c.Request.WithContext(ctx)
		c.Set(workspaceKey, s.sessions.Get(ctx, id))
		c.Next()
	}
}

func workspaceFrom(c *gin.Context) *workspace.Workspace {
	return c.MustGet(workspaceKey).(*workspace.Workspace)
}

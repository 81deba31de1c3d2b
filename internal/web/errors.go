package web

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/joseph-ayodele/invoice-desk/internal/common"
	"github.com/joseph-ayodele/invoice-desk/internal/formengine"
)

// statusFor maps an error to an HTTP status. Paths that do not fit the record are
// the client's mistake but well formed, hence 422.
func statusFor(err error) int {
	if errors.Is(err, formengine.ErrPathNotFound) || errors.Is(err, formengine.ErrTypeMismatch) {
		return http.StatusUnprocessableEntity
	}
	return common.HTTPStatus(err)
}

func (s *Server) replyError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("web.request.failed", "path", c.FullPath(), "status", status, "error", err,
			"req_id", common.RequestIDFromContext(c.Request.Context()))
	}
	c.AbortWithStatusJSON(status, gin.H{"error": common.UserMessage(err)})
}

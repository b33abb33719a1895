package middleware

import (
	"net/http"

	"market-gateway/internal/transport/httpdto"
	"market-gateway/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorHandler logs errors attached to the context and answers with a 500
// when the handler wrote no response itself.
func ErrorHandler(l *logger.Logger) gin.HandlerFunc {
	if l == nil {
		l = logger.GetGlobalLogger()
	}
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		l.Error(c.Request.Context(), "request error", zap.String("path", c.FullPath()), zap.Error(err))
		if c.Writer.Written() {
			return
		}
		c.JSON(http.StatusInternalServerError, httpdto.NewErrorResponse("internal error", httpdto.CodeInternal))
	}
}

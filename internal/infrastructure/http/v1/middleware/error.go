package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"backoffice/internal/core/apperror"
	"backoffice/internal/infrastructure/http/v1/dto"
	"backoffice/pkg/logger"
)

// ErrorHandler middleware renders the last request error as an envelope.
// Internal causes are logged here and never sent to the client; a server
// error carries at most its request id in details.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err

		if appErr, ok := apperror.AsAppError(err); ok {
			if appErr.Err != nil || appErr.HTTPStatus >= http.StatusInternalServerError {
				logger.Error(c.Request.Context(), "request error",
					"code", appErr.Code,
					"error", err,
				)
			}

			body := dto.NewEnvelope(appErr.HTTPStatus, appErr.Message, nil)
			switch {
			case len(appErr.Details) == 0:
			case appErr.HTTPStatus < http.StatusInternalServerError:
				body.Details = appErr.Details
			default:
				// server errors expose only the request id for log correlation
				if id, ok := appErr.Details["request_id"].(string); ok && id != "" {
					body.Details = map[string]any{"request_id": id}
				}
			}
			c.JSON(appErr.HTTPStatus, body)
			return
		}

		logger.Error(c.Request.Context(), "unhandled error", "error", err)
		c.JSON(http.StatusInternalServerError,
			dto.NewEnvelope(http.StatusInternalServerError, "Internal server error", nil))
	}
}

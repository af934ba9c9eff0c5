// Package middleware provides HTTP middleware components.
package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"backoffice/internal/core/apperror"
	appctx "backoffice/internal/core/context"
	"backoffice/pkg/logger"
)

// Recovery turns a handler panic into an internal error rendered by
// ErrorHandler. The stack goes to the log; the client gets the request id.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			// net/http treats this one as a silent connection abort
			if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
				panic(rec)
			}

			ctx := c.Request.Context()
			route := c.FullPath()
			logger.Error(ctx, "panic recovered",
				"method", c.Request.Method,
				"route", route,
				"panic", rec,
				"stack", string(debug.Stack()),
			)

			_ = c.Error(
				apperror.NewInternal(fmt.Errorf("panic in %s %s: %v", c.Request.Method, route, rec)).
					WithDetail("request_id", appctx.GetRequestID(ctx)),
			)
			c.Abort()
		}()
		c.Next()
	}
}

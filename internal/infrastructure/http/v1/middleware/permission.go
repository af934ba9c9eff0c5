package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"backoffice/internal/core/apperror"
	appctx "backoffice/internal/core/context"
	"backoffice/internal/domain/rbac"
)

// Decider makes authorization decisions.
type Decider interface {
	PublicMatcher
	Authorize(ctx context.Context, principal *appctx.Principal, method, rawPath string) (rbac.Result, error)
}

// Authorize middleware enforces the caller's role permissions on the request route.
// It must run after Auth.
func Authorize(decider Decider) gin.HandlerFunc {
	return func(c *gin.Context) {
		method, path := c.Request.Method, c.Request.URL.Path
		if decider.IsPublic(method, path) {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		principal := appctx.GetPrincipal(ctx)
		if principal == nil {
			abort(c, apperror.NewUnauthorized("用户未登录"))
			return
		}

		res, err := decider.Authorize(ctx, principal, method, path)
		if err != nil {
			abort(c, err)
			return
		}
		if !res.Allowed() {
			abort(c, apperror.NewForbidden("权限不足"))
			return
		}

		c.Next()
	}
}

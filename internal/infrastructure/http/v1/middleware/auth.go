package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"backoffice/internal/core/apperror"
	appctx "backoffice/internal/core/context"
	"backoffice/internal/domain/auth"
)

// ClaimsKey is the gin context key holding the verified *auth.Claims.
const ClaimsKey = "claims"

// Authenticator verifies bearer tokens.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*auth.Claims, error)
}

// PublicMatcher reports routes that need no authentication.
type PublicMatcher interface {
	IsPublic(method, rawPath string) bool
}

// Auth middleware verifies the bearer token and puts the principal into the
// request context. On public routes a missing or bad token is tolerated.
func Auth(authn Authenticator, public PublicMatcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		isPublic := public != nil && public.IsPublic(c.Request.Method, c.Request.URL.Path)

		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			if isPublic {
				c.Next()
				return
			}
			abort(c, apperror.NewUnauthorized("用户未登录"))
			return
		}

		claims, err := authn.Authenticate(c.Request.Context(), token)
		if err != nil {
			if isPublic {
				c.Next()
				return
			}
			abort(c, err)
			return
		}

		ctx := appctx.WithPrincipal(c.Request.Context(), claims.Principal())
		c.Request = c.Request.WithContext(ctx)
		c.Set(ClaimsKey, claims)

		c.Next()
	}
}

// GetClaims returns the claims stored by Auth, or nil.
func GetClaims(c *gin.Context) *auth.Claims {
	if v, ok := c.Get(ClaimsKey); ok {
		if claims, ok := v.(*auth.Claims); ok {
			return claims
		}
	}
	return nil
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func abort(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

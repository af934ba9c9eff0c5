package handlers

import (
	"github.com/gin-gonic/gin"

	"backoffice/internal/core/apperror"
	appctx "backoffice/internal/core/context"
	"backoffice/internal/domain/auth"
	"backoffice/internal/domain/rbac"
	"backoffice/internal/infrastructure/http/v1/dto"
	"backoffice/internal/infrastructure/http/v1/middleware"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	*BaseHandler
	service *auth.Service
	trees   *rbac.TreeService
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(base *BaseHandler, service *auth.Service, trees *rbac.TreeService) *AuthHandler {
	return &AuthHandler{
		BaseHandler: base,
		service:     service,
		trees:       trees,
	}
}

// Login handles POST /api/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if !h.BindJSON(c, &req) {
		return
	}

	session, err := h.service.Login(c.Request.Context(), auth.Credentials{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, "登录成功", session)
}

// Logout handles POST /api/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.service.Logout(c.Request.Context(), middleware.GetClaims(c)); err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, "退出成功", nil)
}

// Me handles GET /api/me
func (h *AuthHandler) Me(c *gin.Context) {
	ctx := c.Request.Context()

	admin, err := h.service.Me(ctx, appctx.GetPrincipal(ctx))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, msgFetched, admin)
}

// Menu handles GET /api/permissions/menu, the caller's navigation tree.
func (h *AuthHandler) Menu(c *gin.Context) {
	ctx := c.Request.Context()

	principal := appctx.GetPrincipal(ctx)
	if principal == nil {
		h.Error(c, apperror.NewUnauthorized("用户未登录"))
		return
	}

	menu, err := h.trees.PrincipalMenu(ctx, principal)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, "获取菜单权限成功", menu)
}

package handlers

import (
	"github.com/gin-gonic/gin"

	"backoffice/internal/domain/rbac"
	"backoffice/internal/infrastructure/http/v1/dto"
)

// RoleHandler handles role endpoints and role rights.
type RoleHandler struct {
	*BaseHandler
	roles  *rbac.RoleService
	editor *rbac.Editor
	trees  *rbac.TreeService
}

// NewRoleHandler creates a new role handler.
func NewRoleHandler(base *BaseHandler, roles *rbac.RoleService, editor *rbac.Editor, trees *rbac.TreeService) *RoleHandler {
	return &RoleHandler{
		BaseHandler: base,
		roles:       roles,
		editor:      editor,
		trees:       trees,
	}
}

// List handles GET /api/roles
func (h *RoleHandler) List(c *gin.Context) {
	roles, err := h.roles.List(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, msgFetched, roles)
}

// Get handles GET /api/roles/:id
func (h *RoleHandler) Get(c *gin.Context) {
	id, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	role, err := h.roles.Get(c.Request.Context(), id)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, msgFetched, role)
}

// Create handles POST /api/roles
func (h *RoleHandler) Create(c *gin.Context) {
	var req dto.RoleRequest
	if !h.BindJSON(c, &req) {
		return
	}

	role, err := h.roles.Create(c.Request.Context(), req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, "创建角色成功", role)
}

// Update handles PUT /api/roles/:id
func (h *RoleHandler) Update(c *gin.Context) {
	id, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.RoleRequest
	if !h.BindJSON(c, &req) {
		return
	}

	role, err := h.roles.Update(c.Request.Context(), id, req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, "更新角色成功", role)
}

// Delete handles DELETE /api/roles/:id
func (h *RoleHandler) Delete(c *gin.Context) {
	id, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	if err := h.roles.Delete(c.Request.Context(), id); err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, "删除角色成功", nil)
}

// Rights handles GET /api/roles/:id/rights
func (h *RoleHandler) Rights(c *gin.Context) {
	id, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	rights, err := h.roles.Rights(c.Request.Context(), id)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, msgFetched, rights)
}

// SetRights handles POST /api/roles/:id/rights
func (h *RoleHandler) SetRights(c *gin.Context) {
	id, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.SetRightsRequest
	if !h.BindJSON(c, &req) {
		return
	}

	ids, err := rbac.ParseRightIDs(req.RightIDs, req.Rights)
	if err != nil {
		h.Error(c, err)
		return
	}

	assignment, err := h.editor.SetRolePermissions(c.Request.Context(), id, ids)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, "分配权限成功", assignment)
}

// RightsTree handles GET /api/roles/:id/rights-tree
func (h *RoleHandler) RightsTree(c *gin.Context) {
	id, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	tree, err := h.trees.RoleTree(c.Request.Context(), id)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, msgFetched, tree)
}

// AllRightsTree handles GET /api/roles/all-rights-tree, the menu catalog to pick rights from.
func (h *RoleHandler) AllRightsTree(c *gin.Context) {
	tree, err := h.trees.MenuTree(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, msgFetched, tree)
}

package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"backoffice/internal/domain/rbac"
	"backoffice/internal/infrastructure/http/v1/dto"
)

// RouteCache is the administrative surface of the route resolution cache.
type RouteCache interface {
	Stats() rbac.MatcherStats
	InvalidateAll(ctx context.Context)
}

// PermissionHandler handles the permission catalog endpoints.
type PermissionHandler struct {
	*BaseHandler
	catalog    *rbac.CatalogService
	trees      *rbac.TreeService
	cache      RouteCache
	failClosed bool
}

// NewPermissionHandler creates a new permission handler.
func NewPermissionHandler(base *BaseHandler, catalog *rbac.CatalogService, trees *rbac.TreeService, cache RouteCache, failClosed bool) *PermissionHandler {
	return &PermissionHandler{
		BaseHandler: base,
		catalog:     catalog,
		trees:       trees,
		cache:       cache,
		failClosed:  failClosed,
	}
}

// List handles GET /api/permissions
func (h *PermissionHandler) List(c *gin.Context) {
	var q dto.PermissionListQuery
	if !h.BindQuery(c, &q) {
		return
	}
	filter := q.ToFilter()

	items, total, err := h.catalog.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Page(c, items, total, filter.Page.Page, filter.Page.Limit)
}

// Tree handles GET /api/permissions/tree
func (h *PermissionHandler) Tree(c *gin.Context) {
	tree, err := h.trees.FullTree(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, msgFetched, tree)
}

// Get handles GET /api/permissions/:id
func (h *PermissionHandler) Get(c *gin.Context) {
	id, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	node, err := h.catalog.Get(c.Request.Context(), id)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, msgFetched, node)
}

// Create handles POST /api/permissions
func (h *PermissionHandler) Create(c *gin.Context) {
	var req dto.CreatePermissionRequest
	if !h.BindJSON(c, &req) {
		return
	}

	node, err := h.catalog.Create(c.Request.Context(), req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, "创建权限成功", node)
}

// Update handles PUT /api/permissions/:id
func (h *PermissionHandler) Update(c *gin.Context) {
	id, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdatePermissionRequest
	if !h.BindJSON(c, &req) {
		return
	}

	node, err := h.catalog.Update(c.Request.Context(), id, req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, "更新权限成功", node)
}

// Delete handles DELETE /api/permissions/:id. The node goes to the recycle
// bin and is detached from every role.
func (h *PermissionHandler) Delete(c *gin.Context) {
	id, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	if err := h.catalog.Retire(c.Request.Context(), id); err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, "删除权限成功", nil)
}

// BatchDelete handles POST /api/permissions/batch-delete
func (h *PermissionHandler) BatchDelete(c *gin.Context) {
	var req dto.IDsRequest
	if !h.BindJSON(c, &req) {
		return
	}

	n, err := h.catalog.BatchRetire(c.Request.Context(), req.IDs)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, "批量删除成功", dto.CountResponse{Count: n})
}

// Deleted handles GET /api/permissions/deleted
func (h *PermissionHandler) Deleted(c *gin.Context) {
	var q dto.PageQuery
	if !h.BindQuery(c, &q) {
		return
	}
	q.Defaults()

	items, total, err := h.catalog.ListDeleted(c.Request.Context(), rbac.Page{Page: q.Page, Limit: q.Limit})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Page(c, items, total, q.Page, q.Limit)
}

// Restore handles POST /api/permissions/:id/restore
func (h *PermissionHandler) Restore(c *gin.Context) {
	id, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	node, err := h.catalog.Restore(c.Request.Context(), id)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, "恢复权限成功", node)
}

// Purge handles DELETE /api/permissions/:id/purge
func (h *PermissionHandler) Purge(c *gin.Context) {
	id, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	if err := h.catalog.Purge(c.Request.Context(), id); err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, "彻底删除成功", nil)
}

// Stats handles GET /api/permissions/stats
func (h *PermissionHandler) Stats(c *gin.Context) {
	stats, err := h.catalog.Stats(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, msgFetched, stats)
}

// CacheStats handles GET /api/permissions/cache/stats
func (h *PermissionHandler) CacheStats(c *gin.Context) {
	h.OK(c, msgFetched, dto.CacheStatsResponse{
		MatcherStats: h.cache.Stats(),
		FailClosed:   h.failClosed,
	})
}

// CacheInvalidate handles POST /api/permissions/cache/invalidate
func (h *PermissionHandler) CacheInvalidate(c *gin.Context) {
	h.cache.InvalidateAll(c.Request.Context())
	h.OK(c, msgOK, h.cache.Stats())
}

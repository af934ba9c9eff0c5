// Package handlers provides HTTP request handlers.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"backoffice/internal/core/apperror"
	"backoffice/internal/infrastructure/http/v1/dto"
)

// Default success messages.
const (
	msgOK      = "操作成功"
	msgFetched = "获取成功"
)

// BaseHandler provides common handler utilities.
type BaseHandler struct{}

// NewBaseHandler creates a new base handler.
func NewBaseHandler() *BaseHandler {
	return &BaseHandler{}
}

// BindJSON binds and validates JSON request body.
func (h *BaseHandler) BindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		h.Error(c, apperror.NewValidation("请求参数错误").WithDetail("error", err.Error()))
		return false
	}
	return true
}

// BindQuery binds and validates query parameters.
func (h *BaseHandler) BindQuery(c *gin.Context, obj any) bool {
	if err := c.ShouldBindQuery(obj); err != nil {
		h.Error(c, apperror.NewValidation("查询参数错误").WithDetail("error", err.Error()))
		return false
	}
	return true
}

// ParamID parses a positive integer path parameter.
func (h *BaseHandler) ParamID(c *gin.Context, key string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(key), 10, 64)
	if err != nil || id <= 0 {
		h.Error(c, apperror.NewValidation("无效的ID").WithDetail(key, c.Param(key)))
		return 0, false
	}
	return id, true
}

// Error registers err on the gin context and aborts the request.
// The response is rendered by middleware.ErrorHandler.
func (h *BaseHandler) Error(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// OK sends a 200 envelope with data.
func (h *BaseHandler) OK(c *gin.Context, message string, data any) {
	c.JSON(http.StatusOK, dto.NewEnvelope(http.StatusOK, message, data))
}

// Created sends a 201 envelope with data.
func (h *BaseHandler) Created(c *gin.Context, message string, data any) {
	c.JSON(http.StatusCreated, dto.NewEnvelope(http.StatusCreated, message, data))
}

// Page sends a 200 envelope with a pagination block.
func (h *BaseHandler) Page(c *gin.Context, items any, total int64, page, limit int) {
	env := dto.NewEnvelope(http.StatusOK, msgFetched, items)
	env.Pagination = dto.NewPagination(total, page, limit)
	c.JSON(http.StatusOK, env)
}

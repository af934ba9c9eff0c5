package handlers

import (
	"github.com/gin-gonic/gin"

	"backoffice/internal/domain/audit"
	"backoffice/internal/infrastructure/http/v1/dto"
)

// OperationLogHandler lists the operation log.
type OperationLogHandler struct {
	*BaseHandler
	reader audit.Reader
}

// NewOperationLogHandler creates a new operation log handler.
func NewOperationLogHandler(base *BaseHandler, reader audit.Reader) *OperationLogHandler {
	return &OperationLogHandler{BaseHandler: base, reader: reader}
}

// List handles GET /api/operation-logs
func (h *OperationLogHandler) List(c *gin.Context) {
	var q dto.OperationLogQuery
	if !h.BindQuery(c, &q) {
		return
	}
	filter := q.ToFilter()

	entries, total, err := h.reader.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Page(c, entries, total, filter.Page, filter.Limit)
}

// Package dto provides Data Transfer Objects for API requests/responses.
package dto

import (
	"time"
)

// Envelope is the body of every API response. Code mirrors the HTTP status.
type Envelope struct {
	Code       int         `json:"code"`
	Message    string      `json:"message"`
	Data       any         `json:"data"`
	Details    any         `json:"details,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
	Timestamp  int64       `json:"timestamp"`
}

// NewEnvelope creates an envelope stamped with the current time.
func NewEnvelope(code int, message string, data any) Envelope {
	return Envelope{
		Code:      code,
		Message:   message,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}
}

// --- Pagination ---

// PageQuery contains pagination parameters.
type PageQuery struct {
	Page  int `form:"page" binding:"omitempty,min=1"`
	Limit int `form:"limit" binding:"omitempty,min=1,max=200"`
}

// Defaults sets default pagination values.
func (p *PageQuery) Defaults() {
	if p.Page == 0 {
		p.Page = 1
	}
	if p.Limit == 0 {
		p.Limit = 20
	}
}

// Pagination is the pagination block of a list response.
type Pagination struct {
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Pages int64 `json:"pages"`
}

// NewPagination creates pagination metadata.
func NewPagination(total int64, page, limit int) *Pagination {
	var pages int64
	if limit > 0 {
		pages = (total + int64(limit) - 1) / int64(limit)
	}
	return &Pagination{Total: total, Page: page, Limit: limit, Pages: pages}
}

// IDsRequest carries a list of ids for batch operations.
type IDsRequest struct {
	IDs []int64 `json:"ids" binding:"required,min=1"`
}

// CountResponse reports how many records a batch operation touched.
type CountResponse struct {
	Count int `json:"count"`
}

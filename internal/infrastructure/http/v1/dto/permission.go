package dto

import (
	"backoffice/internal/domain/rbac"
)

// PermissionListQuery filters the catalog listing.
type PermissionListQuery struct {
	PageQuery
	Search string `form:"search"`
	IsMenu *bool  `form:"is_menu"`
}

// ToFilter converts the query into a domain filter.
func (q PermissionListQuery) ToFilter() rbac.PermissionFilter {
	q.Defaults()
	return rbac.PermissionFilter{
		Search: q.Search,
		IsMenu: q.IsMenu,
		Page:   rbac.Page{Page: q.Page, Limit: q.Limit},
	}
}

// CreatePermissionRequest creates a catalog node.
type CreatePermissionRequest struct {
	ParentID    *int64         `json:"pid"`
	Name        string         `json:"name" binding:"required,max=100"`
	Description string         `json:"description" binding:"max=255"`
	IsMenu      bool           `json:"is_menu"`
	Sort        int            `json:"sort"`
	Method      string         `json:"method"`
	Path        string         `json:"path"`
	Menu        *rbac.MenuMeta `json:"menu"`
}

// ToInput converts the request into a domain input. A zero parent means root.
func (r CreatePermissionRequest) ToInput() rbac.CreatePermissionInput {
	return rbac.CreatePermissionInput{
		ParentID:    rootIsNil(r.ParentID),
		Name:        r.Name,
		Description: r.Description,
		IsMenu:      r.IsMenu,
		SortOrder:   r.Sort,
		RouteMethod: r.Method,
		RoutePath:   r.Path,
		Menu:        r.Menu,
	}
}

// UpdatePermissionRequest is a partial update; absent fields keep their values.
type UpdatePermissionRequest struct {
	ParentID    *int64         `json:"pid"`
	Name        *string        `json:"name" binding:"omitempty,max=100"`
	Description *string        `json:"description" binding:"omitempty,max=255"`
	IsMenu      *bool          `json:"is_menu"`
	Sort        *int           `json:"sort"`
	Method      *string        `json:"method"`
	Path        *string        `json:"path"`
	Menu        *rbac.MenuMeta `json:"menu"`
}

// ToInput converts the request into a domain input. pid 0 moves the node to the root.
func (r UpdatePermissionRequest) ToInput() rbac.UpdatePermissionInput {
	in := rbac.UpdatePermissionInput{
		Name:        r.Name,
		Description: r.Description,
		IsMenu:      r.IsMenu,
		SortOrder:   r.Sort,
		RouteMethod: r.Method,
		RoutePath:   r.Path,
		Menu:        r.Menu,
	}
	if r.ParentID != nil {
		if *r.ParentID == 0 {
			in.ClearParent = true
		} else {
			in.ParentID = r.ParentID
		}
	}
	return in
}

func rootIsNil(id *int64) *int64 {
	if id == nil || *id == 0 {
		return nil
	}
	return id
}

// CacheStatsResponse describes the route resolution cache.
type CacheStatsResponse struct {
	rbac.MatcherStats
	FailClosed bool `json:"failClosed"`
}

package dto

import (
	"encoding/json"

	"backoffice/internal/domain/rbac"
)

// RoleRequest creates or updates a role. The super flag is not part of the
// request; the super role comes from the seed command.
type RoleRequest struct {
	Name        string `json:"name" binding:"required,max=50"`
	Sort        int    `json:"sort"`
	Description string `json:"description" binding:"max=255"`
}

// ToInput converts the request into a domain input.
func (r RoleRequest) ToInput() rbac.RoleInput {
	return rbac.RoleInput{
		Name:        r.Name,
		SortOrder:   r.Sort,
		Description: r.Description,
	}
}

// SetRightsRequest replaces a role's permission set. Both fields accept an
// array of ids, numeric strings, or a comma-separated string; right_ids wins.
type SetRightsRequest struct {
	RightIDs json.RawMessage `json:"right_ids"`
	Rights   json.RawMessage `json:"rights"`
}

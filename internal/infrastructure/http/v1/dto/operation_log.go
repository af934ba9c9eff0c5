package dto

import (
	"backoffice/internal/domain/audit"
)

// OperationLogQuery filters the operation log.
type OperationLogQuery struct {
	PageQuery
	Module  string `form:"module"`
	Type    string `form:"type"`
	AdminID *int64 `form:"admin_id"`
}

// ToFilter converts the query into a domain filter.
func (q OperationLogQuery) ToFilter() audit.Filter {
	q.Defaults()
	return audit.Filter{
		Module:  q.Module,
		Action:  audit.Action(q.Type),
		AdminID: q.AdminID,
		Page:    q.Page,
		Limit:   q.Limit,
	}
}

package rbac

import (
	"context"
	"fmt"
	"strings"

	"backoffice/internal/domain/audit"
	"backoffice/pkg/logger"
)

// SyncPrefix limits synchronization to API routes.
const SyncPrefix = "/api"

var methodVerbs = map[string]string{
	"GET":    "查看",
	"POST":   "创建",
	"PUT":    "更新",
	"PATCH":  "更新",
	"DELETE": "删除",
}

// moduleDescriptions maps route prefixes to a readable description. Entries
// with a verb are prefixed by the method verb; the first matching prefix wins.
var moduleDescriptions = []struct {
	prefix string
	text   string
	verb   bool
}{
	{"/api/permissions", "权限", true},
	{"/api/roles/all-rights-tree", "查看权限树", false},
	{"/api/roles", "角色", true},
	{"/api/admins", "管理员", true},
	{"/api/operation-logs/stats", "查看操作统计", false},
	{"/api/operation-logs/clean", "清理旧日志", false},
	{"/api/operation-logs", "操作日志", true},
	{"/api/login", "用户登录", false},
	{"/api/logout", "用户登出", false},
	{"/api/refresh-token", "刷新令牌", false},
	{"/api/me", "获取我的信息", false},
	{"/api/menus", "菜单", true},
}

// DescribeRoute guesses a description for a synchronized route.
func DescribeRoute(method, path string) string {
	method = normalizeMethod(method)
	verb, ok := methodVerbs[method]
	if !ok {
		verb = method
	}
	for _, m := range moduleDescriptions {
		if strings.HasPrefix(path, m.prefix) {
			if m.verb {
				return verb + m.text
			}
			return m.text
		}
	}
	return verb + " " + path
}

// Sync makes sure every API route has a catalog node. New nodes are created
// at the root as non-menu actions named "METHOD path". Existing nodes whose
// description is empty or still the generated name get a readable one.
func (s *CatalogService) Sync(ctx context.Context, routes []Route) (*SyncReport, error) {
	report := &SyncReport{Inserted: []string{}, Updated: []string{}}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		seen := make(map[string]struct{}, len(routes))
		for _, r := range routes {
			method := normalizeMethod(r.Method)
			if _, ok := allowedMethods[method]; !ok || !strings.HasPrefix(r.Path, SyncPrefix) {
				continue
			}
			path := CanonicalRoute(r.Path)
			name := method + " " + path
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}

			if err := s.syncRoute(ctx, report, method, path, name); err != nil {
				return err
			}
		}

		if len(report.Inserted) == 0 && len(report.Updated) == 0 {
			return nil
		}
		return s.audit.Record(ctx, audit.Event{
			Action:      audit.ActionSync,
			Module:      audit.ModulePermission,
			Description: "synchronize routes",
			Params:      report,
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "route catalog synchronized",
		"inserted", len(report.Inserted),
		"updated", len(report.Updated),
		"skipped", report.Skipped,
	)
	if len(report.Inserted) > 0 || len(report.Updated) > 0 {
		s.changed(ctx)
	}
	return report, nil
}

func (s *CatalogService) syncRoute(ctx context.Context, report *SyncReport, method, path, name string) error {
	desc := DescribeRoute(method, path)

	existing, err := s.repo.FindByRoute(ctx, method, path)
	if err != nil {
		return fmt.Errorf("find route %s: %w", name, err)
	}
	if existing != nil {
		if (existing.Description != "" && existing.Description != name) || existing.Description == desc {
			report.Skipped++
			return nil
		}
		existing.Description = desc
		if err := s.repo.Update(ctx, existing); err != nil {
			return fmt.Errorf("update route %s: %w", name, err)
		}
		report.Updated = append(report.Updated, name)
		return nil
	}

	taken, err := s.repo.ExistsByName(ctx, name, 0)
	if err != nil {
		return fmt.Errorf("check permission name: %w", err)
	}
	if taken {
		logger.Warn(ctx, "route name taken by another permission", "name", name)
		report.Skipped++
		return nil
	}

	node := &PermissionNode{
		Name:        name,
		Description: desc,
		RouteMethod: &method,
		RoutePath:   &path,
	}
	if err := s.repo.Create(ctx, node); err != nil {
		return fmt.Errorf("create route %s: %w", name, err)
	}
	report.Inserted = append(report.Inserted, name)
	return nil
}

// Package main provides a CLI tool for seeding the database with the super
// role, the first administrator and the base system menu.
package main

import (
	"context"
	"fmt"
	"os"

	"backoffice/internal/app"
	"backoffice/internal/config"
	"backoffice/internal/core/apperror"
	"backoffice/internal/domain/auth"
	"backoffice/internal/domain/rbac"
	"backoffice/pkg/logger"
)

const superRoleName = "超级管理员"

// menuSeed is a menu node with its route actions and submenus.
type menuSeed struct {
	name        string
	description string
	meta        rbac.MenuMeta
	routes      []routeSeed
	children    []menuSeed
}

type routeSeed struct {
	method, path, description string
}

var baseMenu = menuSeed{
	name:        "system",
	description: "系统管理",
	meta:        rbac.MenuMeta{Path: "/system", Icon: "setting", Component: "Layout"},
	children: []menuSeed{
		{
			name:        "system.permissions",
			description: "权限管理",
			meta:        rbac.MenuMeta{Path: "/system/permission", Component: "system/permission/index"},
			routes: []routeSeed{
				{"GET", "/api/permissions", "查看权限"},
				{"POST", "/api/permissions", "创建权限"},
				{"PUT", "/api/permissions/{id}", "更新权限"},
				{"DELETE", "/api/permissions/{id}", "删除权限"},
			},
		},
		{
			name:        "system.roles",
			description: "角色管理",
			meta:        rbac.MenuMeta{Path: "/system/role", Component: "system/role/index"},
			routes: []routeSeed{
				{"GET", "/api/roles", "查看角色"},
				{"POST", "/api/roles", "创建角色"},
				{"PUT", "/api/roles/{id}", "更新角色"},
				{"DELETE", "/api/roles/{id}", "删除角色"},
				{"POST", "/api/roles/{id}/rights", "分配权限"},
			},
		},
		{
			name:        "system.operation-logs",
			description: "操作日志",
			meta:        rbac.MenuMeta{Path: "/system/operation-log", Component: "system/log/index"},
			routes: []routeSeed{
				{"GET", "/api/operation-logs", "查看操作日志"},
			},
		},
	},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{Level: "info", Development: true})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)
	ctx := logger.WithLogger(context.Background(), log)

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatalw("failed to connect", "error", err)
	}
	defer a.Close()

	s := &seeder{app: a, log: log}

	roleID, err := s.superRole(ctx)
	if err != nil {
		log.Fatalw("failed to seed super role", "error", err)
	}
	if err := s.admin(ctx, cfg.SeedAdminUsername, cfg.SeedAdminPassword, roleID); err != nil {
		log.Fatalw("failed to seed admin", "error", err)
	}
	existing, err := s.existingNodes(ctx)
	if err != nil {
		log.Fatalw("failed to load catalog", "error", err)
	}
	if err := s.menu(ctx, baseMenu, nil, existing); err != nil {
		log.Fatalw("failed to seed menu", "error", err)
	}

	log.Info("seeding completed successfully")
}

type seeder struct {
	app *app.App
	log *logger.Logger
}

func (s *seeder) superRole(ctx context.Context) (int64, error) {
	roles, err := s.app.Roles.List(ctx)
	if err != nil {
		return 0, err
	}
	for _, r := range roles {
		if r.IsSuperRole {
			s.log.Infow("super role already exists", "role_id", r.ID, "name", r.Name)
			return r.ID, nil
		}
	}

	role, err := s.app.Roles.Create(ctx, rbac.RoleInput{
		Name:        superRoleName,
		Description: "拥有全部权限",
		IsSuperRole: true,
	})
	if err != nil {
		return 0, err
	}
	s.log.Infow("super role created", "role_id", role.ID)
	return role.ID, nil
}

func (s *seeder) admin(ctx context.Context, username, password string, roleID int64) error {
	_, err := s.app.Admins.GetByUsername(ctx, username)
	if err == nil {
		s.log.Infow("admin already exists", "username", username)
		return nil
	}
	if !apperror.IsNotFound(err) {
		return fmt.Errorf("check admin exists: %w", err)
	}
	if password == "" {
		return fmt.Errorf("SEED_ADMIN_PASSWORD is required to create %q", username)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	admin := &auth.Admin{
		Username:     username,
		PasswordHash: hash,
		RoleID:       roleID,
		Status:       auth.StatusActive,
	}
	if err := s.app.Admins.Create(ctx, admin); err != nil {
		return fmt.Errorf("insert admin: %w", err)
	}
	s.log.Infow("admin created", "username", username, "admin_id", admin.ID)
	return nil
}

func (s *seeder) existingNodes(ctx context.Context) (map[string]int64, error) {
	nodes, err := s.app.Permissions.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]int64, len(nodes))
	for _, n := range nodes {
		byName[n.Name] = n.ID
	}
	return byName, nil
}

// menu creates m under parent unless a node with its name exists, then its
// routes and submenus. Route actions are hidden menu nodes so they can be granted.
func (s *seeder) menu(ctx context.Context, m menuSeed, parent *int64, existing map[string]int64) error {
	meta := m.meta
	id, err := s.ensure(ctx, existing, rbac.CreatePermissionInput{
		ParentID:    parent,
		Name:        m.name,
		Description: m.description,
		IsMenu:      true,
		Menu:        &meta,
	})
	if err != nil {
		return err
	}

	hidden := true
	for i, r := range m.routes {
		_, err := s.ensure(ctx, existing, rbac.CreatePermissionInput{
			ParentID:    &id,
			Name:        r.method + " " + rbac.CanonicalRoute(r.path),
			Description: r.description,
			IsMenu:      true,
			SortOrder:   i,
			RouteMethod: r.method,
			RoutePath:   r.path,
			Menu:        &rbac.MenuMeta{Hidden: &hidden},
		})
		if err != nil {
			return err
		}
	}
	for _, child := range m.children {
		if err := s.menu(ctx, child, &id, existing); err != nil {
			return err
		}
	}
	return nil
}

func (s *seeder) ensure(ctx context.Context, existing map[string]int64, in rbac.CreatePermissionInput) (int64, error) {
	if id, ok := existing[in.Name]; ok {
		return id, nil
	}
	node, err := s.app.Catalog.Create(ctx, in)
	if err != nil {
		return 0, fmt.Errorf("create %q: %w", in.Name, err)
	}
	existing[in.Name] = node.ID
	s.log.Infow("permission created", "id", node.ID, "name", node.Name)
	return node.ID, nil
}

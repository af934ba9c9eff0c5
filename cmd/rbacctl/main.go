// Package main provides a CLI for maintaining the permission catalog.
// Usage: rbacctl sync
//        rbacctl routes
//        rbacctl check GET /api/roles/3
//        rbacctl stats
//        rbacctl invalidate
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"backoffice/internal/app"
	"backoffice/internal/config"
	"backoffice/internal/domain/rbac"
	v1 "backoffice/internal/infrastructure/http/v1"
	"backoffice/pkg/logger"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "help", "--help", "-h":
		printUsage()
		return
	case "sync", "routes", "check", "stats", "invalidate":
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err := run(os.Args[1], os.Args[2:]); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Back office RBAC CLI

Usage:
  rbacctl <command> [args]

Commands:
  sync                   Create catalog nodes for every API route
  routes                 List API routes and the node each one matches
  check <METHOD> <path>  Show the node a request would match
  stats                  Show catalog counts
  invalidate             Tell running servers to drop their route cache
  help                   Show this help

Environment Variables:
  DATABASE_URL         Connection string (required)
  JWT_SECRET           Token signing secret (required)
  RBAC_INVALIDATION    none, postgres or redis`)
}

func run(command string, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := logger.New(logger.Config{Level: "warn"})
	if err != nil {
		return err
	}
	logger.SetDefault(log)
	ctx := logger.WithLogger(context.Background(), log)

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	switch command {
	case "sync":
		report, err := a.Catalog.Sync(ctx, v1.Routes(a.Router))
		if err != nil {
			return err
		}
		for _, name := range report.Inserted {
			fmt.Printf("+ %s\n", name)
		}
		for _, name := range report.Updated {
			fmt.Printf("~ %s\n", name)
		}
		fmt.Printf("%d inserted, %d updated, %d unchanged\n", len(report.Inserted), len(report.Updated), report.Skipped)
		return nil

	case "routes":
		for _, r := range v1.Routes(a.Router) {
			node, ok, err := a.Matcher.Resolve(ctx, rbac.CanonicalRoute(r.Path), r.Method)
			if err != nil {
				return err
			}
			match := "-"
			if ok {
				match = fmt.Sprintf("#%d %s", node.ID, node.Description)
			}
			fmt.Printf("%-7s %-40s %s\n", r.Method, r.Path, match)
		}
		return nil

	case "check":
		if len(args) != 2 {
			return fmt.Errorf("usage: rbacctl check <METHOD> <path>")
		}
		node, ok, err := a.Matcher.Resolve(ctx, args[1], strings.ToUpper(args[0]))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Printf("no node matches; unmatched policy is %q\n", cfg.RBAC.UnmatchedPolicy)
			return nil
		}
		return printJSON(node)

	case "stats":
		stats, err := a.Catalog.Stats(ctx)
		if err != nil {
			return err
		}
		return printJSON(stats)

	case "invalidate":
		if err := a.NotifyCatalogChanged(ctx); err != nil {
			return err
		}
		fmt.Println("invalidation sent")
		return nil
	}
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"backoffice/internal/core/apperror"
	appctx "backoffice/internal/core/context"
	"backoffice/internal/domain/audit"
	"backoffice/pkg/logger"
)

const msgBadCredentials = "用户名或密码错误"

// Service authenticates administrators.
type Service struct {
	admins      AdminRepository
	revocations RevocationStore
	jwtService  *JWTService
	audit       *audit.Recorder
}

// NewService creates a new auth service.
func NewService(
	admins AdminRepository,
	revocations RevocationStore,
	jwtService *JWTService,
	recorder *audit.Recorder,
) *Service {
	return &Service{
		admins:      admins,
		revocations: revocations,
		jwtService:  jwtService,
		audit:       recorder,
	}
}

// Login checks credentials and issues an access token. Both outcomes are audited.
func (s *Service) Login(ctx context.Context, creds Credentials) (*Session, error) {
	username := strings.TrimSpace(creds.Username)
	if username == "" || creds.Password == "" {
		return nil, apperror.NewValidation("username and password are required")
	}

	admin, err := s.admins.GetByUsername(ctx, username)
	if err != nil && !apperror.IsNotFound(err) {
		return nil, fmt.Errorf("find admin: %w", err)
	}
	if admin == nil || bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(creds.Password)) != nil {
		s.record(ctx, audit.Event{
			Action:      audit.ActionLogin,
			Module:      audit.ModuleAuth,
			Description: fmt.Sprintf("login %q", username),
			Err:         errors.New(msgBadCredentials),
		})
		return nil, apperror.NewUnauthorized(msgBadCredentials)
	}
	if err := admin.CanLogin(); err != nil {
		return nil, err
	}

	token, claims, err := s.jwtService.GenerateAccessToken(admin)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}

	now := time.Now().UTC()
	ip := appctx.GetRequestInfo(ctx).ClientIP
	if err := s.admins.RecordLogin(ctx, admin.ID, now, ip); err != nil {
		logger.Warn(ctx, "failed to record login", "admin_id", admin.ID, "error", err)
	}
	admin.LastLoginAt = &now
	admin.LastLoginIP = ip

	ctx = appctx.WithPrincipal(ctx, claims.Principal())
	s.record(ctx, audit.Event{
		Action:      audit.ActionLogin,
		Module:      audit.ModuleAuth,
		Description: fmt.Sprintf("login %q", username),
	})

	logger.Info(ctx, "admin logged in", "admin_id", admin.ID, "username", admin.Username)

	return &Session{
		Token:     token,
		TokenType: "Bearer",
		ExpiresAt: claims.ExpiresAt.Time,
		Admin:     admin,
	}, nil
}

// Authenticate verifies a bearer token and returns its claims.
func (s *Service) Authenticate(ctx context.Context, token string) (*Claims, error) {
	claims, err := s.jwtService.ValidateToken(token)
	if err != nil {
		return nil, apperror.NewUnauthorized("认证令牌无效或已过期").WithCause(err)
	}
	if s.revocations != nil && claims.ID != "" {
		revoked, err := s.revocations.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, fmt.Errorf("check token revocation: %w", err)
		}
		if revoked {
			return nil, apperror.NewUnauthorized("令牌已失效或已登出")
		}
	}
	return claims, nil
}

// Logout revokes the token described by claims.
func (s *Service) Logout(ctx context.Context, claims *Claims) error {
	if claims == nil {
		return apperror.NewUnauthorized("用户未登录")
	}
	if s.revocations != nil && claims.ID != "" {
		until := time.Now().Add(time.Hour)
		if claims.ExpiresAt != nil {
			until = claims.ExpiresAt.Time
		}
		if err := s.revocations.Revoke(ctx, claims.ID, until); err != nil {
			return fmt.Errorf("revoke token: %w", err)
		}
	}
	s.record(ctx, audit.Event{
		Action:      audit.ActionLogout,
		Module:      audit.ModuleAuth,
		Description: fmt.Sprintf("logout %q", claims.Username),
	})
	return nil
}

// Me returns the account behind principal.
func (s *Service) Me(ctx context.Context, principal *appctx.Principal) (*Admin, error) {
	if principal == nil {
		return nil, apperror.NewUnauthorized("用户未登录")
	}
	return s.admins.GetByID(ctx, principal.UserID)
}

// HashPassword hashes a password for storage.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// record writes an audit entry outside any transaction; a failure is logged only.
func (s *Service) record(ctx context.Context, ev audit.Event) {
	if err := s.audit.Record(ctx, ev); err != nil {
		logger.Warn(ctx, "failed to write audit entry", "module", ev.Module, "error", err)
	}
}

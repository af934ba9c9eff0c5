package logger

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	appctx "backoffice/internal/core/context"
)

func TestFromContextFallsBackToDefault(t *testing.T) {
	l := FromContext(context.Background())
	require.NotNil(t, l)
}

func TestWithLoggerIsUsed(t *testing.T) {
	nop := NewNop()
	ctx := WithLogger(context.Background(), nop)
	assert.Same(t, nop, FromContext(ctx))

	ctx = appctx.WithPrincipal(ctx, &appctx.Principal{UserID: 1, RoleID: 2})
	assert.NotSame(t, nop, FromContext(ctx))
}

func TestNewUnknownLevelDefaultsToInfo(t *testing.T) {
	out := filepath.Join(t.TempDir(), "app.log")
	l, err := New(Config{Level: "loud", OutputPaths: []string{out}})
	require.NoError(t, err)
	assert.False(t, l.Desugar().Core().Enabled(zapcore.DebugLevel))
	assert.True(t, l.Desugar().Core().Enabled(zapcore.InfoLevel))
}

func TestSetLevelAffectsDerivedLoggers(t *testing.T) {
	out := filepath.Join(t.TempDir(), "app.log")
	l, err := New(Config{Level: "info", OutputPaths: []string{out}})
	require.NoError(t, err)
	child := l.WithComponent("rbac")

	require.NoError(t, l.SetLevel("debug"))
	assert.Equal(t, "debug", l.Level())
	assert.True(t, child.Desugar().Core().Enabled(zapcore.DebugLevel))

	assert.Error(t, l.SetLevel("loud"))
}

func TestEntriesCarryServiceAndPrincipal(t *testing.T) {
	out := filepath.Join(t.TempDir(), "app.log")
	l, err := New(Config{Level: "info", OutputPaths: []string{out}, Service: "backoffice", Version: "1.2.3"})
	require.NoError(t, err)

	ctx := WithLogger(context.Background(), l)
	ctx = appctx.WithPrincipal(ctx, &appctx.Principal{UserID: 7, RoleID: 3})
	Info(ctx, "access denied", "path", "/api/roles")
	require.NoError(t, l.Sync())

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	line := string(data)
	assert.Contains(t, line, `"service":"backoffice"`)
	assert.Contains(t, line, `"version":"1.2.3"`)
	assert.Contains(t, line, `"user_id":7`)
	assert.Contains(t, line, `"path":"/api/roles"`)
}

func TestSetDefault(t *testing.T) {
	prev := Default()
	t.Cleanup(func() { SetDefault(prev) })

	nop := NewNop()
	SetDefault(nop)
	assert.Same(t, nop, Default())
	assert.Same(t, nop, FromContext(context.Background()))
}

package app

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classsync/internal/config"
	"classsync/pkg/logger"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Database.Path = filepath.Join(t.TempDir(), "test.db")
	cfg.Auth.JWTSecret = "test-secret"
	return cfg
}

func TestNewApplication(t *testing.T) {
	cfg := testConfig(t)

	application, err := NewApplication(cfg, logger.NewNop())
	require.NoError(t, err)
	defer func() { _ = application.store.Close() }()

	assert.Equal(t, "0.0.0.0:8080", application.GetAddr())
	assert.NotNil(t, application.hub)
	assert.NotNil(t, application.registry)
}

func TestNewApplication_InvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Auth.JWTSecret = ""

	_, err := NewApplication(cfg, logger.NewNop())
	assert.Error(t, err)
}

func TestNewApplication_UnwritableDatabasePath(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database.Path = filepath.Join(t.TempDir(), "missing-dir", "nested", "test.db")

	_, err := NewApplication(cfg, logger.NewNop())
	assert.Error(t, err)
}

package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, StoreDriverMemory, cfg.Workflow.StoreDriver)
	assert.Equal(t, "school-workflow-store", cfg.Workflow.StoreKey)
	assert.Equal(t, 10*time.Minute, cfg.Workflow.ResultCacheTTL)
	assert.True(t, cfg.Exports.Enabled)
}

func TestLoadWorkflowOverrides(t *testing.T) {
	chdirTemp(t)
	t.Setenv("WORKFLOW_STORE_DRIVER", " Postgres ")
	t.Setenv("WORKFLOW_STORE_KEY", "custom-key")
	t.Setenv("WORKFLOW_RESULT_CACHE_TTL", "not-a-duration")
	t.Setenv("ALLOWED_ORIGINS", "http://a.test, ,http://b.test")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StoreDriverPostgres, cfg.Workflow.StoreDriver)
	assert.Equal(t, "custom-key", cfg.Workflow.StoreKey)
	assert.Equal(t, 10*time.Minute, cfg.Workflow.ResultCacheTTL)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORS.AllowedOrigins)
}

func TestNormaliseDriverFallsBackToMemory(t *testing.T) {
	assert.Equal(t, StoreDriverMemory, normaliseDriver("sqlite"))
	assert.Equal(t, StoreDriverRedis, normaliseDriver("REDIS"))
	assert.Equal(t, StoreDriverFile, normaliseDriver("file"))
}

func chdirTemp(t *testing.T) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

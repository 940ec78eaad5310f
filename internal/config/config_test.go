package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("MASTER_EMAIL", "root@ada.local")
	t.Setenv("MASTER_PASSWORD", "root-pw")
	t.Setenv("SESSION_SECRET", "s3cret")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "memory", cfg.Store.Backend)
	assert.Equal(t, "ada_portal", cfg.Store.Namespace)
	assert.Equal(t, 3*time.Second, cfg.Store.TimeoutAccounts)
	assert.Equal(t, 1200*time.Millisecond, cfg.Store.TimeoutProgress)
	assert.Equal(t, 72*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 15*time.Minute, cfg.SummaryRefreshInterval)
	assert.Equal(t, "./data/cache.db", cfg.Cache.Path)
	assert.Equal(t, "gemini-2.5-flash", cfg.GeminiModel)
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("STORE_BACKEND", "Postgres")
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost/db")
	t.Setenv("ADMIN_CHAT_IDS", "1, 2,3")
	t.Setenv("STORE_PLACEHOLDER_CREDENTIALS", "FOO, BAR ,")
	t.Setenv("TIMEOUT_PROGRESS", "500ms")
	t.Setenv("STORE_MIGRATE", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Store.Backend)
	assert.Equal(t, []int64{1, 2, 3}, cfg.AdminChatIDs)
	assert.Equal(t, []string{"FOO", "BAR"}, cfg.Store.Placeholders)
	assert.Equal(t, 500*time.Millisecond, cfg.Store.TimeoutProgress)
	assert.True(t, cfg.Store.Migrate)
}

func TestLoad_Errors(t *testing.T) {
	setRequired(t)
	t.Setenv("TIMEOUT_WRITE", "soon")
	t.Setenv("STORE_BACKEND", "gcs")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TIMEOUT_WRITE")
	assert.Contains(t, err.Error(), "GCS_BUCKET")
}

func TestLoad_PanicsWithoutRequired(t *testing.T) {
	t.Setenv("MASTER_EMAIL", "")
	assert.Panics(t, func() { _, _ = Load() })
}

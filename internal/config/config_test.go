package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0o644))
	return dir
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	uploads := filepath.Join(t.TempDir(), "uploads")
	dir := writeConfig(t, `
server:
  port: "9090"
database:
  driver: sqlite
jwt:
  secret: short
auth:
  admin_emails:
    - Admin@Clinic.org
storage:
  type: local
  local_path: `+uploads+`
`)

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 72*time.Hour, cfg.JWT.ExpireTime)
	assert.Equal(t, "rad_sid", cfg.Session.CookieName)
	assert.Equal(t, 30*time.Minute, cfg.Session.TTL())
	assert.Equal(t, 30*time.Minute, cfg.Progress.StaleAfter())
	assert.Equal(t, 5*time.Minute, cfg.Progress.LiveWindow())
	assert.Equal(t, "@every 5m", cfg.Progress.SweepSchedule)
	assert.True(t, cfg.Access.EnforceLimits)
	assert.Equal(t, 2000, cfg.Import.MaxRows)
	assert.True(t, cfg.Auth.IsAdminEmail(" admin@clinic.org "))
	assert.False(t, cfg.Auth.IsAdminEmail("someone@clinic.org"))

	_, err = os.Stat(uploads)
	assert.NoError(t, err)
}

func TestLoadConfigRejectsShortSecretInRelease(t *testing.T) {
	dir := writeConfig(t, `
server:
  mode: release
jwt:
  secret: too-short
storage:
  type: minio
`)
	_, err := LoadConfig(dir)
	assert.Error(t, err)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(t.TempDir())
	assert.Error(t, err)
}

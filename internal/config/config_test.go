package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek-1221/korai-sub001/internal/quota"
)

// inTempDir runs the test from an empty directory so no stray config.yaml
// or .env is picked up.
func inTempDir(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	orig, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(tmp))
	t.Cleanup(func() { _ = os.Chdir(orig) })
	return tmp
}

func TestLoadDefaults(t *testing.T) {
	inTempDir(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, BlobMemory, cfg.Blob.Provider)
	assert.Equal(t, AuthSupabase, cfg.Auth.Mode)
	assert.Equal(t, QuotaRedis, cfg.Quota.Backend)
	assert.Equal(t, 30*time.Second, cfg.Server.RequestTimeout)
	assert.NotEmpty(t, cfg.Queue.Consumer)

	limits, err := cfg.Limits()
	require.NoError(t, err)
	assert.Equal(t, quota.DefaultLimits(), limits)
}

func TestHeaderAuthIsExplicit(t *testing.T) {
	inTempDir(t)
	t.Setenv("AUTH_MODE", "header")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, AuthHeader, cfg.Auth.Mode)
	assert.Equal(t, "X-User-ID", cfg.Auth.Header)
}

func TestLoadFromYAML(t *testing.T) {
	tmp := inTempDir(t)
	yml := `
server:
  port: "9000"
  request_timeout: 10s
database:
  driver: postgres
  url: postgres://localhost/korai
queue:
  reclaim_idle: 2m
quota:
  backend: sql
  limits:
    export:
      limit: 3
      window: 1h
`
	path := filepath.Join(tmp, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, "pgx", cfg.Database.Driver)
	assert.Equal(t, 2*time.Minute, cfg.Queue.ReclaimIdle)
	assert.Equal(t, QuotaSQL, cfg.Quota.Backend)

	limits, err := cfg.Limits()
	require.NoError(t, err)
	assert.Equal(t, quota.Limit{Limit: 3, Window: time.Hour}, limits[quota.ClassExport])
	assert.Equal(t, quota.DefaultLimits()[quota.ClassChat], limits[quota.ClassChat])
}

func TestEnvOverridesYAML(t *testing.T) {
	tmp := inTempDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(tmp, "config.yaml"), []byte("server:\n  port: \"9000\"\n"), 0o644))

	t.Setenv("PORT", "7000")
	t.Setenv("CLIPS_API_URL", "https://identify.example")
	t.Setenv("CLIPS_API_TOKEN", "secret")
	t.Setenv("BLOB_BUCKET", "exports")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "7000", cfg.Server.Port)
	assert.Equal(t, "https://identify.example", cfg.ClipAPI.IdentifyURL)
	assert.Equal(t, "secret", cfg.ClipAPI.Token)
	assert.Equal(t, "exports", cfg.Blob.Bucket)
}

func TestLoadExplicitPathMustExist(t *testing.T) {
	inTempDir(t)
	_, err := Load("missing.yaml")
	assert.Error(t, err)
}

func TestLoadFromDotEnv(t *testing.T) {
	tmp := inTempDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(tmp, ".env"), []byte("LOG_LEVEL=debug\n"), 0o644))
	t.Cleanup(func() { _ = os.Unsetenv("LOG_LEVEL") })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		yml  string
	}{
		{name: "driver", env: map[string]string{"DATABASE_DRIVER": "mysql"}},
		{name: "blob provider", env: map[string]string{"BLOB_PROVIDER": "s3"}},
		{name: "supabase blob without key", env: map[string]string{"BLOB_PROVIDER": "supabase"}},
		{name: "auth mode", env: map[string]string{"AUTH_MODE": "basic"}},
		{name: "unknown class", yml: "quota:\n  limits:\n    sms:\n      limit: 1\n      window: 1m\n"},
		{name: "zero window", yml: "quota:\n  limits:\n    chat:\n      limit: 1\n"},
		{name: "quota backend", yml: "quota:\n  backend: memcached\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmp := inTempDir(t)
			if tt.yml != "" {
				require.NoError(t, os.WriteFile(filepath.Join(tmp, "config.yaml"), []byte(tt.yml), 0o644))
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load("")
			assert.Error(t, err)
		})
	}
}

func TestNewLogger(t *testing.T) {
	log, err := NewLogger(LogConfig{Level: "warn", Format: "text"})
	require.NoError(t, err)
	assert.Equal(t, "warning", log.GetLevel().String())

	_, err = NewLogger(LogConfig{Level: "loud"})
	assert.Error(t, err)
	_, err = NewLogger(LogConfig{Level: "info", Format: "xml"})
	assert.Error(t, err)
}

func TestNewQuotaLedgerNeedsRedis(t *testing.T) {
	cfg := &Config{Quota: QuotaConfig{Backend: QuotaRedis}}
	_, err := NewQuotaLedger(cfg, nil, nil)
	assert.Error(t, err)
}

func TestSupabaseDisabled(t *testing.T) {
	_, err := NewSupabase(SupabaseConfig{URL: "https://x.supabase.co"})
	assert.ErrorIs(t, err, ErrSupabaseDisabled)
	_, err = NewPostgrest(SupabaseConfig{})
	assert.ErrorIs(t, err, ErrSupabaseDisabled)
}

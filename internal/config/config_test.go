package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable Load reads so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for key := range defaults {
		t.Setenv(envNameFor(key), "")
		require.NoError(t, os.Unsetenv(envNameFor(key)))
	}
	providers, err := Providers()
	require.NoError(t, err)
	for _, p := range providers {
		if p.APIKeyEnv == "" {
			continue
		}
		t.Setenv(p.APIKeyEnv, "")
		require.NoError(t, os.Unsetenv(p.APIKeyEnv))
	}
}

func testOptions(t *testing.T) Options {
	t.Helper()
	return Options{ConfigDir: t.TempDir(), WorkDir: t.TempDir()}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	opts := testOptions(t)

	cfg, err := Load(viper.New(), opts)
	require.NoError(t, err)

	assert.Equal(t, "groq", cfg.Provider)
	assert.Equal(t, StorageFile, cfg.Storage.Backend)
	assert.Equal(t, filepath.Join(opts.ConfigDir, "conversation.json"), cfg.Storage.Path)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 60*time.Second, cfg.RequestTimeout)
	assert.False(t, cfg.AuditFailOpen)
	assert.Empty(t, cfg.APIKey)
	assert.Error(t, cfg.RequireAPIKey())
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("TUTOR_PROVIDER", "anthropic")
	t.Setenv("TUTOR_MODEL", "claude-sonnet-4-5")
	t.Setenv("TUTOR_STORAGE_BACKEND", "sqlite")
	t.Setenv("TUTOR_AUDIT_FAIL_OPEN", "true")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test")
	opts := testOptions(t)

	cfg, err := Load(viper.New(), opts)
	require.NoError(t, err)

	assert.Equal(t, "anthropic", cfg.Provider)
	assert.Equal(t, "claude-sonnet-4-5", cfg.Model)
	assert.Equal(t, StorageSQLite, cfg.Storage.Backend)
	assert.Equal(t, filepath.Join(opts.ConfigDir, "conversation.db"), cfg.Storage.Path)
	assert.True(t, cfg.AuditFailOpen)
	assert.Equal(t, "sk-ant-test", cfg.APIKey)
	assert.NoError(t, cfg.RequireAPIKey())
}

func TestLoad_DotEnvFiles(t *testing.T) {
	clearEnv(t)
	opts := testOptions(t)

	require.NoError(t, os.WriteFile(filepath.Join(opts.ConfigDir, ".env"),
		[]byte("GROQ_API_KEY=from-config-dir\nTUTOR_REQUEST_TIMEOUT=30s\n"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(opts.WorkDir, ".env"),
		[]byte("GROQ_API_KEY=from-work-dir\n"), 0600))

	cfg, err := Load(viper.New(), opts)
	require.NoError(t, err)

	assert.Equal(t, "from-work-dir", cfg.APIKey)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
}

func TestLoad_EnvironmentBeatsDotEnv(t *testing.T) {
	clearEnv(t)
	opts := testOptions(t)
	require.NoError(t, os.WriteFile(filepath.Join(opts.WorkDir, ".env"),
		[]byte("TUTOR_SERVER_ADDR=:9000\n"), 0600))
	t.Setenv("TUTOR_SERVER_ADDR", ":7000")

	cfg, err := Load(viper.New(), opts)
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Server.Addr)
}

func TestLoad_ConfigFile(t *testing.T) {
	clearEnv(t)
	opts := testOptions(t)
	require.NoError(t, os.WriteFile(filepath.Join(opts.ConfigDir, "config.yaml"),
		[]byte("provider: relay\nrelay_url: http://tutor.internal:8080\nstorage:\n  backend: memory\n"), 0600))

	cfg, err := Load(viper.New(), opts)
	require.NoError(t, err)

	assert.Equal(t, "relay", cfg.Provider)
	assert.Equal(t, "http://tutor.internal:8080", cfg.RelayURL)
	assert.Equal(t, StorageMemory, cfg.Storage.Backend)
	assert.Empty(t, cfg.Storage.Path)
	assert.NoError(t, cfg.RequireAPIKey())
}

func TestLoad_FlagOverride(t *testing.T) {
	clearEnv(t)
	t.Setenv("TUTOR_PROVIDER", "openai")

	v := viper.New()
	v.Set(KeyProvider, "gemini")

	cfg, err := Load(v, testOptions(t))
	require.NoError(t, err)
	assert.Equal(t, "gemini", cfg.Provider)
}

func TestValidate(t *testing.T) {
	valid := Config{
		Provider:       "groq",
		RequestTimeout: time.Minute,
		Storage:        StorageConfig{Backend: StorageFile},
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(_ *Config) {}, ""},
		{"unknown provider", func(c *Config) { c.Provider = "bard" }, "unknown provider"},
		{"relay without url", func(c *Config) { c.Provider = "relay" }, "TUTOR_RELAY_URL"},
		{"unknown storage", func(c *Config) { c.Storage.Backend = "s3" }, "unknown storage backend"},
		{"zero timeout", func(c *Config) { c.RequestTimeout = 0 }, "TUTOR_REQUEST_TIMEOUT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestUserConfigDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	dir, err := UserConfigDir()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/xdg/mathtutor", dir)
}

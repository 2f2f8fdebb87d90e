package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonwraymond/toolify/resilience"
	"github.com/jonwraymond/toolify/secret"
)

// clearEnv blanks every variable Load reads so the host environment cannot
// leak into assertions. Empty values are treated as unset.
func clearEnv(t *testing.T) {
	t.Helper()
	for key, names := range legacyEnv {
		t.Setenv(DefaultEnvPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), "")
		for _, name := range names {
			t.Setenv(name, "")
		}
	}
}

func TestLoad(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("GOOGLE_API_KEY", "legacy")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "gemini-2.5-flash", cfg.Provider.Model)
		assert.Equal(t, 0.7, cfg.Provider.Temperature)
		assert.Equal(t, 0.5, cfg.Provider.VisionTemperature)
		assert.Equal(t, 2048, cfg.Provider.MaxOutputTokens)
		assert.Equal(t, int64(10*1024*1024), cfg.Provider.MaxUploadBytes)
		assert.Equal(t, 60*time.Second, cfg.Provider.Timeout)

		assert.Empty(t, cfg.Pool.Keys)
		assert.Equal(t, "legacy", cfg.Pool.LegacyKey)
		assert.Equal(t, time.Minute, cfg.Pool.Cooldown())

		assert.Equal(t, time.Hour, cfg.Session.TTL)
		assert.Equal(t, 100, cfg.Session.MaxMessages)

		assert.Equal(t, "toolify", cfg.Observe.ServiceName)
		assert.True(t, cfg.Observe.Metrics.Enabled)
		assert.Equal(t, "prometheus", cfg.Observe.Metrics.Exporter)
		assert.Equal(t, "info", cfg.Observe.Logging.Level)

		assert.Equal(t, StatsMemory, cfg.Stats.Backend)
		assert.Equal(t, 24*time.Hour, cfg.Stats.BucketTTL)
		assert.True(t, cfg.Stats.Buckets)
		assert.Equal(t, 250*time.Millisecond, cfg.Stats.RecordTimeout)
		assert.Equal(t, 8192, cfg.Provider.ManualMaxOutputTokens)
		assert.Empty(t, cfg.Server.Auth.JWTSecret)
		assert.Equal(t, "authenticated", cfg.Server.Auth.Audience)

		assert.Equal(t, "0.0.0.0:8000", cfg.Server.Addr())
		assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	})

	t.Run("LegacyEnvNames", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("GEMINI_API_KEYS", "k1,k2,k3")
		t.Setenv("KEY_COOLDOWN_SECONDS", "30")
		t.Setenv("GEMINI_MODEL", "gemini-2.0-pro")
		t.Setenv("TEMPERATURE", "0.2")
		t.Setenv("MAX_TOKENS", "512")
		t.Setenv("PORT", "9090")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, []string{"k1", "k2", "k3"}, cfg.Pool.Keys)
		assert.Equal(t, 30*time.Second, cfg.Pool.Cooldown())
		assert.Equal(t, "gemini-2.0-pro", cfg.Provider.Model)
		assert.Equal(t, 0.2, cfg.Provider.Temperature)
		assert.Equal(t, 512, cfg.Provider.MaxOutputTokens)
		assert.Equal(t, 9090, cfg.Server.Port)
	})

	t.Run("PrefixedEnvWins", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("GEMINI_API_KEYS", "legacy1")
		t.Setenv("TOOLIFY_POOL_KEYS", "p1,p2")
		t.Setenv("TOOLIFY_SESSION_MAX_MESSAGES", "10")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, []string{"p1", "p2"}, cfg.Pool.Keys)
		assert.Equal(t, 10, cfg.Session.MaxMessages)
	})

	t.Run("File", func(t *testing.T) {
		clearEnv(t)
		path := filepath.Join(t.TempDir(), "toolify.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
pool:
  keys: [f1, f2]
  cooldown_seconds: 5
stats:
  backend: redis
  redis:
    addr: localhost:6379
session:
  ttl: 10m
`), 0o600))
		t.Setenv("KEY_COOLDOWN_SECONDS", "7")

		cfg, err := Load(WithFile(path))
		require.NoError(t, err)
		assert.Equal(t, []string{"f1", "f2"}, cfg.Pool.Keys)
		assert.Equal(t, 7*time.Second, cfg.Pool.Cooldown(), "environment overrides the file")
		assert.Equal(t, StatsRedis, cfg.Stats.Backend)
		assert.Equal(t, "localhost:6379", cfg.Stats.Redis.Addr)
		assert.Equal(t, 10*time.Minute, cfg.Session.TTL)
	})

	t.Run("MissingFile", func(t *testing.T) {
		clearEnv(t)
		_, err := Load(WithFile(filepath.Join(t.TempDir(), "missing.yaml")))
		require.ErrorIs(t, err, ErrConfigFile)
	})

	t.Run("Override", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("GEMINI_API_KEYS", "k1")
		cfg, err := Load(WithOverride("server.port", 7000), WithOverride("observe.logging.level", "debug"))
		require.NoError(t, err)
		assert.Equal(t, 7000, cfg.Server.Port)
		assert.Equal(t, "debug", cfg.Observe.Logging.Level)
	})

	t.Run("CustomPrefix", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("ACME_POOL_KEYS", "a1")
		cfg, err := Load(WithEnvPrefix("ACME_"))
		require.NoError(t, err)
		assert.Equal(t, []string{"a1"}, cfg.Pool.Keys)
	})

	t.Run("NoCredentials", func(t *testing.T) {
		clearEnv(t)
		_, err := Load()
		require.ErrorIs(t, err, ErrNoCredentials)
		assert.True(t, errors.Is(err, resilience.ErrNoKeys))
	})
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.Pool.Keys = []string{"k1"}
		return cfg
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"blank keys", func(c *Config) { c.Pool.Keys = []string{" ", ""} }, ErrNoCredentials},
		{"zero cooldown", func(c *Config) { c.Pool.CooldownSeconds = 0 }, ErrInvalid},
		{"empty model", func(c *Config) { c.Provider.Model = "" }, ErrInvalid},
		{"temperature", func(c *Config) { c.Provider.Temperature = 3 }, ErrInvalid},
		{"vision temperature", func(c *Config) { c.Provider.VisionTemperature = -1 }, ErrInvalid},
		{"max tokens", func(c *Config) { c.Provider.MaxOutputTokens = 0 }, ErrInvalid},
		{"manual max tokens", func(c *Config) { c.Provider.ManualMaxOutputTokens = -1 }, ErrInvalid},
		{"upload size", func(c *Config) { c.Provider.MaxUploadBytes = 0 }, ErrInvalid},
		{"session", func(c *Config) { c.Session.MaxMessages = -1 }, ErrInvalid},
		{"stats backend", func(c *Config) { c.Stats.Backend = "postgres" }, ErrInvalid},
		{"redis addr", func(c *Config) { c.Stats.Backend = StatsRedis }, ErrInvalid},
		{"record timeout", func(c *Config) { c.Stats.RecordTimeout = -time.Second }, ErrInvalid},
		{"port", func(c *Config) { c.Server.Port = 70000 }, ErrInvalid},
		{"observe", func(c *Config) { c.Observe.ServiceName = "" }, ErrInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), tt.want)
		})
	}
}

func TestCredentials(t *testing.T) {
	ctx := context.Background()
	resolver := secret.NewDefaultResolver()

	t.Run("ListWins", func(t *testing.T) {
		cfg := Default()
		cfg.Pool.Keys = []string{" k1 ", "", "k2"}
		cfg.Pool.LegacyKey = "legacy"

		keys, err := cfg.Credentials(ctx, resolver)
		require.NoError(t, err)
		assert.Equal(t, []string{"k1", "k2"}, keys)
	})

	t.Run("LegacyFallback", func(t *testing.T) {
		cfg := Default()
		cfg.Pool.LegacyKey = "legacy"

		keys, err := cfg.Credentials(ctx, resolver)
		require.NoError(t, err)
		assert.Equal(t, []string{"legacy"}, keys)
	})

	t.Run("SecretRefs", func(t *testing.T) {
		t.Setenv("TOOLIFY_TEST_KEY_2", "k2")
		cfg := Default()
		cfg.Pool.Keys = []string{"k1", "secretref:env:TOOLIFY_TEST_KEY_2"}

		keys, err := cfg.Credentials(ctx, resolver)
		require.NoError(t, err)
		assert.Equal(t, []string{"k1", "k2"}, keys)
	})

	t.Run("ResolveError", func(t *testing.T) {
		cfg := Default()
		cfg.Pool.Keys = []string{"secretref:env:TOOLIFY_TEST_UNSET_VAR"}

		_, err := cfg.Credentials(ctx, resolver)
		require.ErrorIs(t, err, secret.ErrNotFound)
	})

	t.Run("NoCredentials", func(t *testing.T) {
		_, err := Default().Credentials(ctx, resolver)
		require.ErrorIs(t, err, ErrNoCredentials)
	})
}

package config

import (
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// DefaultEnvPrefix prefixes every automatically bound environment variable.
const DefaultEnvPrefix = "TOOLIFY"

// legacyEnv maps config keys to the unprefixed variable names accepted for
// compatibility. The prefixed name always wins.
var legacyEnv = map[string][]string{
	"pool.keys":                  {"GEMINI_API_KEYS"},
	"pool.legacy_key":            {"GOOGLE_API_KEY"},
	"pool.cooldown_seconds":      {"KEY_COOLDOWN_SECONDS"},
	"provider.model":             {"GEMINI_MODEL"},
	"provider.temperature":       {"TEMPERATURE"},
	"provider.max_output_tokens": {"MAX_TOKENS"},
	"provider.max_upload_bytes":  {"MAX_FILE_SIZE"},
	"stats.redis.addr":           {"REDIS_ADDR"},
	"server.host":                {"HOST"},
	"server.port":                {"PORT"},
}

type loader struct {
	file      string
	envPrefix string
	overrides map[string]any
}

// Option configures Load.
type Option func(*loader)

// WithFile reads path as a YAML (or any viper-supported) config file.
func WithFile(path string) Option {
	return func(l *loader) { l.file = path }
}

// WithEnvPrefix replaces DefaultEnvPrefix.
func WithEnvPrefix(prefix string) Option {
	return func(l *loader) { l.envPrefix = strings.TrimSuffix(prefix, "_") }
}

// WithOverride sets key above every other layer. Used for CLI flags.
func WithOverride(key string, value any) Option {
	return func(l *loader) {
		if l.overrides == nil {
			l.overrides = make(map[string]any)
		}
		l.overrides[key] = value
	}
}

// Load builds a Config from defaults, the optional file, the environment and
// overrides, then validates it.
func Load(opts ...Option) (*Config, error) {
	l := &loader{envPrefix: DefaultEnvPrefix}
	for _, opt := range opts {
		opt(l)
	}

	v := viper.New()
	setDefaults(v)

	if l.file != "" {
		v.SetConfigFile(l.file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrConfigFile, l.file, err)
		}
	}

	v.SetEnvPrefix(l.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range legacyEnv {
		prefixed := l.envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(append([]string{key, prefixed}, names...)...); err != nil {
			return nil, fmt.Errorf("config: bind %s: %w", key, err)
		}
	}

	for key, value := range l.overrides {
		v.Set(key, value)
	}

	cfg := &Config{}
	err := v.Unmarshal(cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)))
	if err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in defaults without reading the environment.
// The result has no credentials and does not pass Validate.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	_ = v.Unmarshal(cfg, viper.DecodeHook(mapstructure.StringToTimeDurationHookFunc()))
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("provider.base_url", "https://generativelanguage.googleapis.com/v1beta")
	v.SetDefault("provider.model", "gemini-2.5-flash")
	v.SetDefault("provider.temperature", 0.7)
	v.SetDefault("provider.vision_temperature", 0.5)
	v.SetDefault("provider.max_output_tokens", 2048)
	v.SetDefault("provider.manual_max_output_tokens", 8192)
	v.SetDefault("provider.timeout", "60s")
	v.SetDefault("provider.max_upload_bytes", 10*1024*1024)

	v.SetDefault("pool.keys", []string{})
	v.SetDefault("pool.legacy_key", "")
	v.SetDefault("pool.cooldown_seconds", 60)

	v.SetDefault("session.ttl", "1h")
	v.SetDefault("session.max_messages", 100)

	v.SetDefault("observe.service_name", "toolify")
	v.SetDefault("observe.version", "dev")
	v.SetDefault("observe.tracing.enabled", false)
	v.SetDefault("observe.tracing.exporter", "stdout")
	v.SetDefault("observe.tracing.sample_pct", 1.0)
	v.SetDefault("observe.metrics.enabled", true)
	v.SetDefault("observe.metrics.exporter", "prometheus")
	v.SetDefault("observe.logging.enabled", true)
	v.SetDefault("observe.logging.level", "info")

	v.SetDefault("stats.backend", StatsMemory)
	v.SetDefault("stats.buckets", true)
	v.SetDefault("stats.bucket_ttl", "24h")
	v.SetDefault("stats.record_timeout", "250ms")
	v.SetDefault("stats.redis.addr", "")
	v.SetDefault("stats.redis.password", "")
	v.SetDefault("stats.redis.db", 0)
	v.SetDefault("stats.redis.prefix", "toolify:keystats")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.auth.jwt_secret", "")
	v.SetDefault("server.auth.issuer", "")
	v.SetDefault("server.auth.audience", "authenticated")
}

// Package config loads toolify configuration.
//
// Values are layered, lowest precedence first:
//  1. built-in defaults
//  2. an optional YAML file
//  3. environment variables
//
// Every key can be set as TOOLIFY_<SECTION>_<KEY> (for example
// TOOLIFY_POOL_COOLDOWN_SECONDS). The short names used by earlier
// deployments are also honoured: GEMINI_API_KEYS, GOOGLE_API_KEY,
// KEY_COOLDOWN_SECONDS, GEMINI_MODEL, TEMPERATURE, MAX_TOKENS,
// MAX_FILE_SIZE, REDIS_ADDR, HOST and PORT.
package config

import (
	"net"
	"strconv"
	"time"

	"github.com/jonwraymond/toolify/observe"
	"github.com/jonwraymond/toolify/session"
)

// Config is the complete application configuration.
type Config struct {
	Provider ProviderConfig `mapstructure:"provider"`
	Pool     PoolConfig     `mapstructure:"pool"`
	Session  session.Policy `mapstructure:"session"`
	Observe  observe.Config `mapstructure:"observe"`
	Stats    StatsConfig    `mapstructure:"stats"`
	Server   ServerConfig   `mapstructure:"server"`
}

// ProviderConfig configures the generative model endpoint.
type ProviderConfig struct {
	BaseURL           string  `mapstructure:"base_url"`
	Model             string  `mapstructure:"model"`
	Temperature       float64 `mapstructure:"temperature"`
	VisionTemperature float64 `mapstructure:"vision_temperature"`
	MaxOutputTokens   int     `mapstructure:"max_output_tokens"`
	// ManualMaxOutputTokens caps manual, safety guide and summary output.
	ManualMaxOutputTokens int           `mapstructure:"manual_max_output_tokens"`
	Timeout               time.Duration `mapstructure:"timeout"`
	// MaxUploadBytes caps images and audio accepted by the CLI.
	MaxUploadBytes int64 `mapstructure:"max_upload_bytes"`
}

// PoolConfig configures the credential pool.
type PoolConfig struct {
	// Keys may hold literal keys, ${ENV} references or secretref values.
	Keys []string `mapstructure:"keys"`
	// LegacyKey is used only when Keys is empty.
	LegacyKey       string `mapstructure:"legacy_key"`
	CooldownSeconds int    `mapstructure:"cooldown_seconds"`
}

// Cooldown returns CooldownSeconds as a duration.
func (p PoolConfig) Cooldown() time.Duration {
	return time.Duration(p.CooldownSeconds) * time.Second
}

// StatsConfig selects the per-key usage recorder.
type StatsConfig struct {
	Backend   string        `mapstructure:"backend"` // memory|redis|none
	Buckets   bool          `mapstructure:"buckets"`
	BucketTTL time.Duration `mapstructure:"bucket_ttl"`
	// RecordTimeout bounds each usage write so a slow backend cannot
	// stall a provider call.
	RecordTimeout time.Duration `mapstructure:"record_timeout"`
	Redis         RedisConfig   `mapstructure:"redis"`
}

// RedisConfig configures the Redis stats backend.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// ServerConfig configures the ops HTTP server.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	Auth            AuthConfig    `mapstructure:"auth"`
}

// AuthConfig guards the /api routes with bearer JWTs. An empty JWTSecret
// leaves them open.
type AuthConfig struct {
	// JWTSecret may be a literal, ${ENV} reference or secretref value.
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
	Audience  string `mapstructure:"audience"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// Stats backends.
const (
	StatsMemory = "memory"
	StatsRedis  = "redis"
	StatsNone   = "none"
)

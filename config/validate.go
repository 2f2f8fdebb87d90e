package config

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/jonwraymond/toolify/secret"
)

// Validate checks the configuration for values the runtime cannot use.
func (c *Config) Validate() error {
	if len(nonBlank(c.Pool.Keys)) == 0 && strings.TrimSpace(c.Pool.LegacyKey) == "" {
		return ErrNoCredentials
	}
	if c.Pool.CooldownSeconds <= 0 {
		return fmt.Errorf("%w: pool.cooldown_seconds must be positive, got %d", ErrInvalid, c.Pool.CooldownSeconds)
	}

	p := c.Provider
	if strings.TrimSpace(p.Model) == "" {
		return fmt.Errorf("%w: provider.model is required", ErrInvalid)
	}
	if p.Temperature < 0 || p.Temperature > 2 {
		return fmt.Errorf("%w: provider.temperature must be in [0, 2], got %g", ErrInvalid, p.Temperature)
	}
	if p.VisionTemperature < 0 || p.VisionTemperature > 2 {
		return fmt.Errorf("%w: provider.vision_temperature must be in [0, 2], got %g", ErrInvalid, p.VisionTemperature)
	}
	if p.MaxOutputTokens <= 0 {
		return fmt.Errorf("%w: provider.max_output_tokens must be positive", ErrInvalid)
	}
	if p.ManualMaxOutputTokens <= 0 {
		return fmt.Errorf("%w: provider.manual_max_output_tokens must be positive", ErrInvalid)
	}
	if p.MaxUploadBytes <= 0 {
		return fmt.Errorf("%w: provider.max_upload_bytes must be positive", ErrInvalid)
	}

	if c.Session.TTL < 0 || c.Session.MaxMessages < 0 {
		return fmt.Errorf("%w: session ttl and max_messages must not be negative", ErrInvalid)
	}

	if !slices.Contains([]string{StatsMemory, StatsRedis, StatsNone}, c.Stats.Backend) {
		return fmt.Errorf("%w: stats.backend %q", ErrInvalid, c.Stats.Backend)
	}
	if c.Stats.Backend == StatsRedis && strings.TrimSpace(c.Stats.Redis.Addr) == "" {
		return fmt.Errorf("%w: stats.redis.addr is required for the redis backend", ErrInvalid)
	}
	if c.Stats.BucketTTL < 0 || c.Stats.RecordTimeout < 0 {
		return fmt.Errorf("%w: stats durations must not be negative", ErrInvalid)
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server.port %d", ErrInvalid, c.Server.Port)
	}

	if err := c.Observe.Validate(); err != nil {
		return fmt.Errorf("%w: observe: %w", ErrInvalid, err)
	}
	return nil
}

// Credentials resolves the configured keys in order. Pool.Keys wins; the
// legacy key is used only when the list is empty. Blank results are dropped.
func (c *Config) Credentials(ctx context.Context, resolver *secret.Resolver) ([]string, error) {
	raw := nonBlank(c.Pool.Keys)
	if len(raw) == 0 {
		raw = nonBlank([]string{c.Pool.LegacyKey})
	}
	if len(raw) == 0 {
		return nil, ErrNoCredentials
	}

	resolved, err := resolver.ResolveSlice(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("config: resolve credentials: %w", err)
	}
	keys := nonBlank(resolved)
	if len(keys) == 0 {
		return nil, ErrNoCredentials
	}
	return keys, nil
}

func nonBlank(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

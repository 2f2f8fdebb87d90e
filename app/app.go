// Package app wires toolify's components together.
//
// New is the only place a KeyPool is created. Everything that talks to the
// model shares that pool through one RetryExecutor.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/jonwraymond/toolify/adapter"
	"github.com/jonwraymond/toolify/auth"
	"github.com/jonwraymond/toolify/config"
	"github.com/jonwraymond/toolify/gemini"
	"github.com/jonwraymond/toolify/health"
	"github.com/jonwraymond/toolify/observe"
	"github.com/jonwraymond/toolify/resilience"
	"github.com/jonwraymond/toolify/secret"
	"github.com/jonwraymond/toolify/session"
	"github.com/jonwraymond/toolify/stats"
)

// ErrNilConfig is returned by New when cfg is nil.
var ErrNilConfig = errors.New("app: config is nil")

// App holds the wired components.
type App struct {
	Config   *config.Config
	Pool     *resilience.KeyPool
	Executor *adapter.Executor

	Chat        *adapter.Chat
	Vision      *adapter.Vision
	Transcriber *adapter.Transcriber
	Manual      *adapter.Manual

	// Auth verifies API callers. Nil when server.auth.jwt_secret is empty.
	Auth *auth.JWTAuthenticator

	Sessions session.Store
	Stats    stats.Recorder
	Health   *health.Aggregator

	// Registry holds the prometheus collectors served on /metrics.
	Registry   *prometheus.Registry
	Observer   observe.Observer
	Middleware *observe.Middleware

	now     func() time.Time
	logger  observe.Logger
	closers []func(context.Context) error
}

type options struct {
	logWriter  io.Writer
	httpClient *http.Client
	clock      func() time.Time
	resolver   *secret.Resolver
	redis      redis.UniversalClient
	stats      stats.Recorder
}

// Option configures New.
type Option func(*options)

// WithLogWriter sends logs to w.
func WithLogWriter(w io.Writer) Option {
	return func(o *options) { o.logWriter = w }
}

// WithHTTPClient sets the client used for provider calls.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithClock sets the pool clock.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.clock = now }
}

// WithResolver replaces the default secret resolver.
func WithResolver(r *secret.Resolver) Option {
	return func(o *options) { o.resolver = r }
}

// WithRedisClient supplies the client for the redis stats backend instead
// of dialing stats.redis.addr.
func WithRedisClient(c redis.UniversalClient) Option {
	return func(o *options) { o.redis = c }
}

// WithStatsRecorder replaces the recorder selected by stats.backend.
func WithStatsRecorder(r stats.Recorder) Option {
	return func(o *options) { o.stats = r }
}

// New builds an App from cfg.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.resolver == nil {
		o.resolver = secret.NewDefaultResolver()
	}

	keys, err := cfg.Credentials(ctx, o.resolver)
	if err != nil {
		return nil, err
	}

	pool, err := resilience.NewKeyPool(resilience.KeyPoolConfig{
		Keys:     keys,
		Cooldown: cfg.Pool.Cooldown(),
		Clock:    o.clock,
	})
	if err != nil {
		return nil, fmt.Errorf("app: key pool: %w", err)
	}

	a := &App{Config: cfg, Pool: pool, now: o.clock}
	if a.now == nil {
		a.now = time.Now
	}

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	obsOpts := []observe.Option{observe.WithRegisterer(a.Registry)}
	if o.logWriter != nil {
		obsOpts = append(obsOpts, observe.WithLogWriter(o.logWriter))
	}
	a.Observer, err = observe.NewObserver(ctx, cfg.Observe, obsOpts...)
	if err != nil {
		return nil, fmt.Errorf("app: observer: %w", err)
	}
	a.closers = append(a.closers, a.Observer.Shutdown)

	a.Middleware, err = observe.MiddlewareFromObserver(a.Observer)
	if err != nil {
		_ = a.Close(ctx)
		return nil, fmt.Errorf("app: middleware: %w", err)
	}
	a.logger = a.Observer.Logger()

	a.Health = health.NewAggregator()
	a.Health.Register("keypool", health.NewPoolChecker(pool))

	if o.stats != nil {
		a.Stats = o.stats
	} else if err := a.setupStats(cfg.Stats, o.redis); err != nil {
		_ = a.Close(ctx)
		return nil, err
	}

	binder := gemini.NewBinder(gemini.BinderConfig{
		BaseURL:    cfg.Provider.BaseURL,
		Model:      cfg.Provider.Model,
		HTTPClient: o.httpClient,
		Timeout:    cfg.Provider.Timeout,
	})
	a.Executor = resilience.NewRetryExecutor(pool, binder.Bind, a.executorHooks()...)

	a.Sessions = session.NewMemoryStore(cfg.Session)

	if a.Auth, err = newAuthenticator(ctx, cfg.Server.Auth, o.resolver); err != nil {
		_ = a.Close(ctx)
		return nil, err
	}

	if err := a.setupAdapters(cfg.Provider); err != nil {
		_ = a.Close(ctx)
		return nil, err
	}

	a.logger.Info(ctx, "toolify initialised",
		observe.Field{Key: "keys", Value: pool.Len()},
		observe.Field{Key: "cooldown", Value: pool.Cooldown().String()},
		observe.Field{Key: "model", Value: binder.Model()},
		observe.Field{Key: "stats_backend", Value: cfg.Stats.Backend},
		observe.Field{Key: "api_auth", Value: a.Auth != nil},
	)
	return a, nil
}

func newAuthenticator(ctx context.Context, cfg config.AuthConfig, resolver *secret.Resolver) (*auth.JWTAuthenticator, error) {
	if cfg.JWTSecret == "" {
		return nil, nil
	}
	key, err := resolver.ResolveValue(ctx, cfg.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("app: auth secret: %w", err)
	}
	authn, err := auth.NewJWTAuthenticator(auth.JWTConfig{
		Secret:   key,
		Issuer:   cfg.Issuer,
		Audience: cfg.Audience,
		Leeway:   30 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("app: auth: %w", err)
	}
	return authn, nil
}

func (a *App) setupStats(cfg config.StatsConfig, client redis.UniversalClient) error {
	switch cfg.Backend {
	case config.StatsNone:
		return nil
	case config.StatsRedis:
		if client == nil {
			c := redis.NewClient(&redis.Options{
				Addr:         cfg.Redis.Addr,
				Password:     cfg.Redis.Password,
				DB:           cfg.Redis.DB,
				DialTimeout:  time.Second,
				ReadTimeout:  500 * time.Millisecond,
				WriteTimeout: 500 * time.Millisecond,
				MaxRetries:   1,
			})
			a.closers = append(a.closers, func(context.Context) error { return c.Close() })
			client = c
		}
		rec := stats.NewRedisRecorder(client,
			stats.WithPrefix(cfg.Redis.Prefix),
			stats.WithBucketTTL(cfg.BucketTTL),
			stats.WithBuckets(cfg.Buckets),
		)
		a.Stats = rec
		a.Health.Register("stats", health.NewPingChecker("stats", rec))
	default:
		a.Stats = stats.NewMemoryRecorder(stats.WithRetention(cfg.BucketTTL))
	}
	return nil
}

func (a *App) setupAdapters(p config.ProviderConfig) error {
	var err error
	a.Chat, err = adapter.NewChat(a.Executor, a.Sessions, a.Middleware, adapter.ChatConfig{
		Model:           p.Model,
		Temperature:     p.Temperature,
		MaxOutputTokens: p.MaxOutputTokens,
	})
	if err != nil {
		return fmt.Errorf("app: chat: %w", err)
	}
	a.Vision, err = adapter.NewVision(a.Executor, a.Middleware, adapter.VisionConfig{
		Model:           p.Model,
		Temperature:     p.VisionTemperature,
		MaxOutputTokens: p.MaxOutputTokens,
	})
	if err != nil {
		return fmt.Errorf("app: vision: %w", err)
	}
	a.Transcriber, err = adapter.NewTranscriber(a.Executor, a.Middleware, adapter.TranscriberConfig{
		Model:           p.Model,
		MaxOutputTokens: p.MaxOutputTokens,
	})
	if err != nil {
		return fmt.Errorf("app: transcriber: %w", err)
	}
	a.Manual, err = adapter.NewManual(a.Executor, a.Middleware, adapter.ManualConfig{
		Model:           p.Model,
		Temperature:     p.Temperature,
		MaxOutputTokens: p.ManualMaxOutputTokens,
	})
	if err != nil {
		return fmt.Errorf("app: manual: %w", err)
	}
	return nil
}

// executorHooks log each rotation, count it and feed the stats recorder.
// Key secrets never leave the pool; only Key.ID is recorded.
func (a *App) executorHooks() []resilience.ExecutorOption {
	return []resilience.ExecutorOption{
		resilience.WithOnAttempt(func(ctx context.Context, attempt int, key resilience.Key) {
			a.logger.Debug(ctx, "provider attempt",
				observe.Field{Key: "attempt", Value: attempt},
				observe.Field{Key: "key_id", Value: key.ID()},
			)
			a.record(ctx, key, stats.KindAttempt)
		}),
		resilience.WithOnRateLimited(func(ctx context.Context, attempt int, key resilience.Key, err error) {
			a.logger.Warn(ctx, "key rate limited, rotating",
				observe.Field{Key: "attempt", Value: attempt},
				observe.Field{Key: "key_id", Value: key.ID()},
				observe.Field{Key: "cooldown", Value: a.Pool.Cooldown().String()},
				observe.Field{Key: "error", Value: err.Error()},
			)
			a.Middleware.Metrics().RecordRotation(ctx, key.ID())
			a.record(ctx, key, stats.KindRateLimited)
		}),
		resilience.WithOnSuccess(func(ctx context.Context, attempt int, key resilience.Key) {
			a.record(ctx, key, stats.KindSuccess)
		}),
	}
}

// record writes one usage event. The write gets its own deadline and
// ignores caller cancellation, so a slow stats backend costs an attempt at
// most stats.record_timeout and a cancelled request is still counted.
func (a *App) record(ctx context.Context, key resilience.Key, kind stats.Kind) {
	if a.Stats == nil {
		return
	}
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.recordTimeout())
	defer cancel()
	err := a.Stats.Record(rctx, stats.Event{KeyID: key.ID(), Kind: kind, At: a.now()})
	if err != nil {
		a.logger.Warn(ctx, "stats record failed",
			observe.Field{Key: "key_id", Value: key.ID()},
			observe.Field{Key: "error", Value: err.Error()},
		)
	}
}

func (a *App) recordTimeout() time.Duration {
	if d := a.Config.Stats.RecordTimeout; d > 0 {
		return d
	}
	return defaultRecordTimeout
}

const defaultRecordTimeout = 250 * time.Millisecond

// Logger returns the application logger.
func (a *App) Logger() observe.Logger {
	if a == nil || a.logger == nil {
		return observe.NopLogger()
	}
	return a.logger
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close(ctx context.Context) error {
	if a == nil {
		return nil
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

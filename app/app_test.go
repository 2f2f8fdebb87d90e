package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonwraymond/toolify/config"
	"github.com/jonwraymond/toolify/gemini"
	"github.com/jonwraymond/toolify/health"
	"github.com/jonwraymond/toolify/resilience"
	"github.com/jonwraymond/toolify/stats"
)

// syncBuffer guards log output written from concurrent hooks.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// newProvider fakes generateContent: the first key is always rate limited.
func newProvider(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		w.Header().Set("Content-Type", "application/json")
		if r.Header.Get("x-goog-api-key") == "secret-one" {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = io.WriteString(w, `{"error":{"code":429,"message":"quota","status":"RESOURCE_EXHAUSTED"}}`)
			return
		}
		_ = json.NewEncoder(w).Encode(gemini.GenerateResponse{Candidates: []gemini.Candidate{{
			Content: gemini.Content{Role: gemini.RoleModel, Parts: []gemini.Part{gemini.TextPart("Hammer")}},
		}}})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(baseURL string) *config.Config {
	cfg := config.Default()
	cfg.Pool.Keys = []string{"secret-one", "secret-two"}
	cfg.Provider.BaseURL = baseURL
	cfg.Observe.Logging.Level = "debug"
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config, opts ...Option) (*App, *syncBuffer) {
	t.Helper()
	logs := &syncBuffer{}
	a, err := New(context.Background(), cfg, append([]Option{WithLogWriter(logs)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })
	return a, logs
}

func TestNew_Errors(t *testing.T) {
	_, err := New(context.Background(), nil)
	require.ErrorIs(t, err, ErrNilConfig)

	cfg := config.Default()
	_, err = New(context.Background(), cfg)
	require.ErrorIs(t, err, config.ErrNoCredentials)
	require.ErrorIs(t, err, resilience.ErrNoKeys)

	cfg.Pool.Keys = []string{"secretref:env:TOOLIFY_TEST_UNSET_VAR"}
	_, err = New(context.Background(), cfg)
	require.Error(t, err)
}

func TestNew_Wiring(t *testing.T) {
	srv := newProvider(t)
	cfg := testConfig(srv.URL)
	cfg.Pool.CooldownSeconds = 30

	a, _ := newTestApp(t, cfg)

	assert.Equal(t, 2, a.Pool.Len())
	assert.Equal(t, 30*time.Second, a.Pool.Cooldown())
	assert.Equal(t, 4, a.Executor.MaxAttempts())
	assert.NotNil(t, a.Chat)
	assert.NotNil(t, a.Vision)
	assert.NotNil(t, a.Transcriber)
	assert.NotNil(t, a.Manual)
	assert.NotNil(t, a.Stats)
	assert.Equal(t, []string{"keypool"}, a.Health.CheckerNames())
}

func TestNew_StatsNone(t *testing.T) {
	srv := newProvider(t)
	cfg := testConfig(srv.URL)
	cfg.Stats.Backend = config.StatsNone

	a, _ := newTestApp(t, cfg)
	assert.Nil(t, a.Stats)

	reports, err := a.Keys(context.Background())
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Zero(t, reports[0].Usage)
}

// A rate-limited key is logged, counted and reported without leaking secrets.
func TestApp_RotationIsObserved(t *testing.T) {
	srv := newProvider(t)
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	a, logs := newTestApp(t, testConfig(srv.URL), WithHTTPClient(srv.Client()), WithClock(func() time.Time { return now }))
	ctx := context.Background()

	names, err := a.Vision.Identify(ctx, []byte("\x89PNG\r\n\x1a\n0000"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, []string{"Hammer"}, names)

	reports, err := a.Keys(ctx)
	require.NoError(t, err)
	require.Len(t, reports, 2)

	assert.Equal(t, "cooldown", reports[0].State)
	assert.Equal(t, "1m0s", reports[0].Remaining)
	assert.Equal(t, int64(1), reports[0].Usage.Attempts)
	assert.Equal(t, int64(1), reports[0].Usage.RateLimited)

	assert.Equal(t, "active", reports[1].State)
	assert.True(t, reports[1].Current)
	assert.Equal(t, int64(1), reports[1].Usage.Successes)
	assert.Equal(t, reports[0].Usage, reports[0].LastMinute)
	assert.Equal(t, reports[1].Usage, reports[1].LastMinute)

	now = now.Add(2 * time.Minute)
	reports, err = a.Keys(ctx)
	require.NoError(t, err)
	assert.Zero(t, reports[1].LastMinute)
	assert.Equal(t, int64(1), reports[1].Usage.Successes)

	result, err := a.Health.Check(ctx, "keypool")
	require.NoError(t, err)
	assert.Equal(t, health.StatusDegraded, result.Status)

	out := logs.String()
	assert.Contains(t, out, "key rate limited, rotating")
	assert.Contains(t, out, reports[0].ID)
	assert.NotContains(t, out, "secret-one")
	assert.NotContains(t, out, "secret-two")

	families, err := a.Registry.Gather()
	require.NoError(t, err)
	var rotations float64
	for _, mf := range families {
		if strings.HasPrefix(mf.GetName(), "keypool_rotations") {
			for _, m := range mf.GetMetric() {
				rotations += m.GetCounter().GetValue()
			}
		}
	}
	assert.Equal(t, float64(1), rotations)
}

func TestApp_Close(t *testing.T) {
	srv := newProvider(t)
	a, err := New(context.Background(), testConfig(srv.URL), WithLogWriter(io.Discard))
	require.NoError(t, err)
	require.NoError(t, a.Close(context.Background()))
	require.NoError(t, a.Close(context.Background()))

	var nilApp *App
	require.NoError(t, nilApp.Close(context.Background()))
	require.NotNil(t, nilApp.Logger())
}

func TestNew_StatsRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	srv := newProvider(t)
	cfg := testConfig(srv.URL)
	cfg.Stats.Backend = config.StatsRedis
	cfg.Stats.Redis.Addr = mr.Addr()
	cfg.Stats.Redis.Prefix = "toolify:apptest"

	now := time.Date(2026, 5, 1, 12, 0, 30, 0, time.UTC)
	a, _ := newTestApp(t, cfg, WithRedisClient(rdb), WithHTTPClient(srv.Client()), WithClock(func() time.Time { return now }))
	ctx := context.Background()
	assert.Equal(t, []string{"keypool", "stats"}, a.Health.CheckerNames())

	_, err := a.Vision.Identify(ctx, []byte("\x89PNG\r\n\x1a\n0000"), "image/png")
	require.NoError(t, err)

	reports, err := a.Keys(ctx)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, int64(1), reports[0].Usage.RateLimited)
	assert.Equal(t, int64(1), reports[1].LastMinute.Successes)
	assert.True(t, mr.Exists("toolify:apptest:minute:202605011200"))

	result, err := a.Health.Check(ctx, "stats")
	require.NoError(t, err)
	assert.Equal(t, health.StatusHealthy, result.Status)

	require.NoError(t, a.ResetStats(ctx))
	reports, err = a.Keys(ctx)
	require.NoError(t, err)
	assert.Zero(t, reports[0].Usage)
	assert.Zero(t, reports[1].LastMinute)
	assert.Equal(t, "cooldown", reports[0].State)
}

// blockingRecorder stalls every Record until its context ends.
type blockingRecorder struct {
	*stats.MemoryRecorder

	mu        sync.Mutex
	deadlines int
}

func (b *blockingRecorder) Record(ctx context.Context, _ stats.Event) error {
	if _, ok := ctx.Deadline(); ok {
		b.mu.Lock()
		b.deadlines++
		b.mu.Unlock()
	}
	<-ctx.Done()
	return ctx.Err()
}

// A stalled stats backend bounds each write instead of holding the call.
func TestApp_SlowStatsDoNotStallCalls(t *testing.T) {
	srv := newProvider(t)
	cfg := testConfig(srv.URL)
	cfg.Stats.RecordTimeout = 20 * time.Millisecond

	rec := &blockingRecorder{MemoryRecorder: stats.NewMemoryRecorder()}
	a, logs := newTestApp(t, cfg, WithStatsRecorder(rec), WithHTTPClient(srv.Client()))
	assert.Same(t, rec, a.Stats)

	start := time.Now()
	names, err := a.Vision.Identify(context.Background(), []byte("\x89PNG\r\n\x1a\n0000"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, []string{"Hammer"}, names)

	// attempt, rate limited, attempt, success
	assert.Less(t, time.Since(start), 2*time.Second)
	rec.mu.Lock()
	assert.Equal(t, 4, rec.deadlines)
	rec.mu.Unlock()
	assert.Contains(t, logs.String(), "stats record failed")
}

func TestApp_RecordSurvivesCancelledCaller(t *testing.T) {
	srv := newProvider(t)
	rec := stats.NewMemoryRecorder()
	a, _ := newTestApp(t, testConfig(srv.URL), WithStatsRecorder(rec))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	key, err := a.Pool.ActiveKey()
	require.NoError(t, err)
	a.record(ctx, key, stats.KindAttempt)

	snap, err := rec.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), snap[key.ID()].Attempts)
}

func TestNew_Auth(t *testing.T) {
	srv := newProvider(t)

	cfg := testConfig(srv.URL)
	a, _ := newTestApp(t, cfg)
	assert.Nil(t, a.Auth)

	cfg = testConfig(srv.URL)
	cfg.Server.Auth.JWTSecret = "literal-signing-secret"
	a, _ = newTestApp(t, cfg)
	assert.NotNil(t, a.Auth)

	cfg = testConfig(srv.URL)
	cfg.Server.Auth.JWTSecret = "secretref:env:TOOLIFY_TEST_UNSET_VAR"
	_, err := New(context.Background(), cfg, WithLogWriter(io.Discard))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "app: auth secret")
}

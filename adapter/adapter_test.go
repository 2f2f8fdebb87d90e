package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jonwraymond/toolify/gemini"
	"github.com/jonwraymond/toolify/observe"
	"github.com/jonwraymond/toolify/resilience"
)

const rateLimitedBody = `{"error":{"code":429,"message":"Resource has been exhausted","status":"RESOURCE_EXHAUSTED"}}`

// reply is what the stub sends back for one request.
type reply struct {
	status int
	body   string
}

func ok(text string) reply {
	b, _ := json.Marshal(gemini.GenerateResponse{Candidates: []gemini.Candidate{{
		Content: gemini.Content{Role: gemini.RoleModel, Parts: []gemini.Part{gemini.TextPart(text)}},
	}}})
	return reply{status: http.StatusOK, body: string(b)}
}

func rateLimited() reply {
	return reply{status: http.StatusTooManyRequests, body: rateLimitedBody}
}

type received struct {
	key  string
	path string
	req  gemini.GenerateRequest
	raw  string
}

// stub is a fake generateContent endpoint. handle decides the reply from the
// API key the request was sent with.
type stub struct {
	mu     sync.Mutex
	calls  []received
	handle func(key string) reply
}

func (s *stub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	var req gemini.GenerateRequest
	_ = json.Unmarshal(raw, &req)

	key := r.Header.Get("x-goog-api-key")
	s.mu.Lock()
	s.calls = append(s.calls, received{key: key, path: r.URL.Path, req: req, raw: string(raw)})
	s.mu.Unlock()

	rep := s.handle(key)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rep.status)
	_, _ = io.WriteString(w, rep.body)
}

func (s *stub) received() []received {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]received(nil), s.calls...)
}

type fakeMetrics struct {
	mu        sync.Mutex
	calls     int
	exhausted []observe.CallMeta
}

func (m *fakeMetrics) RecordCall(ctx context.Context, meta observe.CallMeta, d time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
}

func (m *fakeMetrics) RecordRotation(ctx context.Context, keyID string) {}

func (m *fakeMetrics) RecordExhausted(ctx context.Context, meta observe.CallMeta) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exhausted = append(m.exhausted, meta)
}

type harness struct {
	exec    *Executor
	pool    *resilience.KeyPool
	stub    *stub
	metrics *fakeMetrics
	mw      *observe.Middleware
}

func newHarness(t *testing.T, keys []string, handle func(key string) reply) *harness {
	t.Helper()

	s := &stub{handle: handle}
	srv := httptest.NewServer(s)
	t.Cleanup(srv.Close)

	pool, err := resilience.NewKeyPool(resilience.KeyPoolConfig{Keys: keys, Cooldown: time.Minute})
	require.NoError(t, err)

	binder := gemini.NewBinder(gemini.BinderConfig{BaseURL: srv.URL, HTTPClient: srv.Client()})
	metrics := &fakeMetrics{}

	return &harness{
		exec:    resilience.NewRetryExecutor(pool, binder.Bind),
		pool:    pool,
		stub:    s,
		metrics: metrics,
		mw:      observe.NewMiddleware(nil, metrics, nil),
	}
}

func TestNewCaller(t *testing.T) {
	_, err := newCaller("chat", "", nil, nil)
	require.ErrorIs(t, err, ErrNilExecutor)

	h := newHarness(t, []string{"k1"}, func(string) reply { return ok("x") })
	c, err := newCaller("chat", " ", h.exec, nil)
	require.NoError(t, err)
	require.Equal(t, gemini.DefaultModel, c.model)
}

// Two keys, the first rate limited: the call succeeds on the second key and
// the first is left in cooldown.
func TestGenerate_RotatesOnRateLimit(t *testing.T) {
	h := newHarness(t, []string{"k1", "k2"}, func(key string) reply {
		if key == "k1" {
			return rateLimited()
		}
		return ok("  hello from k2 \n")
	})

	c, err := newCaller("test", "", h.exec, h.mw)
	require.NoError(t, err)

	req := &gemini.GenerateRequest{Contents: []gemini.Content{{Role: gemini.RoleUser, Parts: []gemini.Part{gemini.TextPart("hi")}}}}
	got, err := c.generate(context.Background(), "op", req)
	require.NoError(t, err)
	require.Equal(t, "hello from k2", got)

	calls := h.stub.received()
	require.Len(t, calls, 2)
	require.Equal(t, "k1", calls[0].key)
	require.Equal(t, "k2", calls[1].key)
	require.Equal(t, calls[0].raw, calls[1].raw, "retries must resend the same request")
	require.Equal(t, "/models/gemini-2.5-flash:generateContent", calls[0].path)

	require.True(t, h.pool.IsDisabled(0))
	require.Equal(t, 1, h.pool.Current())
	require.Equal(t, 1, h.metrics.calls, "one observed call regardless of attempts")
}

func TestGenerate_AllKeysExhausted(t *testing.T) {
	h := newHarness(t, []string{"k1", "k2"}, func(string) reply { return rateLimited() })
	c, err := newCaller("test", "", h.exec, h.mw)
	require.NoError(t, err)

	req := &gemini.GenerateRequest{Contents: []gemini.Content{{Parts: []gemini.Part{gemini.TextPart("hi")}}}}
	_, err = c.generate(context.Background(), "op", req)
	require.ErrorIs(t, err, resilience.ErrAllKeysExhausted)

	wait, okWait := resilience.RetryAfter(err)
	require.True(t, okWait)
	require.Greater(t, wait, 59*time.Second)

	require.Len(t, h.stub.received(), 2)
	require.Len(t, h.metrics.exhausted, 1)
	require.Equal(t, "test.op", h.metrics.exhausted[0].Name())
}

func TestGenerate_FatalIsNotRetried(t *testing.T) {
	h := newHarness(t, []string{"k1", "k2"}, func(string) reply {
		return reply{status: http.StatusBadRequest, body: `{"error":{"code":400,"message":"bad image","status":"INVALID_ARGUMENT"}}`}
	})
	c, err := newCaller("test", "", h.exec, h.mw)
	require.NoError(t, err)

	req := &gemini.GenerateRequest{Contents: []gemini.Content{{Parts: []gemini.Part{gemini.TextPart("hi")}}}}
	_, err = c.generate(context.Background(), "op", req)

	var pe *gemini.ProviderError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, http.StatusBadRequest, pe.StatusCode)
	require.Len(t, h.stub.received(), 1)
	require.Equal(t, 2, h.pool.Status().ActiveCount())
	require.Empty(t, h.metrics.exhausted)
}

func TestGenerate_EmptyReply(t *testing.T) {
	h := newHarness(t, []string{"k1"}, func(string) reply { return ok("   ") })
	c, err := newCaller("test", "", h.exec, nil)
	require.NoError(t, err)

	req := &gemini.GenerateRequest{Contents: []gemini.Content{{Parts: []gemini.Part{gemini.TextPart("hi")}}}}
	_, err = c.generate(context.Background(), "op", req)
	require.ErrorIs(t, err, gemini.ErrEmptyResponse)
}

func TestGenerationConfig(t *testing.T) {
	require.Nil(t, generationConfig(nil, 0))

	temp := 0.5
	cfg := generationConfig(&temp, 2048)
	require.Equal(t, 0.5, *cfg.Temperature)
	require.Equal(t, 2048, cfg.MaxOutputTokens)
}

func ExampleParseToolNames() {
	fmt.Printf("%q\n", ParseToolNames(" Hammer, claw hammer ,, Nail "))
	// Output:
	// ["Hammer" "claw hammer" "Nail"]
}

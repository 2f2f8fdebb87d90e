// Package resilience provides API-key rotation for rate-limited providers.
//
// A provider that enforces per-account rate limits can be driven through a
// pool of interchangeable credentials. When one credential is rate limited it
// is put into cooldown and the next one in the pool takes over.
//
// # Components
//
//   - KeyPool: the ordered credential set plus per-key cooldown state. It is
//     the only mutable shared state and is guarded by a single mutex.
//
//   - RetryExecutor: runs one unit of work against the provider, binding a
//     fresh client to the active key on every attempt and rotating on
//     rate-limit failures. The retry budget is twice the pool size.
//
//   - Classifier: decides whether a failure is a rate-limit signal or fatal.
//     ClassifyMessage is the default.
//
// # Usage
//
//	pool, err := resilience.NewKeyPool(resilience.KeyPoolConfig{
//	    Keys:     []string{"k1", "k2"},
//	    Cooldown: time.Minute,
//	})
//	if err != nil {
//	    return err // resilience.ErrNoKeys
//	}
//
//	exec := resilience.NewRetryExecutor(pool, binder.Bind)
//
//	resp, err := resilience.Execute(ctx, exec,
//	    func(ctx context.Context, client *gemini.Client) (*gemini.GenerateResponse, error) {
//	        return client.GenerateContent(ctx, req)
//	    })
//
// Cooldowns expire lazily: a key becomes eligible again the first time it is
// checked after its expiry. There is no background sweeper.
package resilience

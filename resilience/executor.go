package resilience

import "context"

// BindFunc builds a provider client scoped to one key.
// It is called once per attempt; handles must not be reused across keys.
type BindFunc[C any] func(key Key) (C, error)

// ExecutorOption configures a RetryExecutor.
type ExecutorOption func(*executorConfig)

type executorConfig struct {
	classify      Classifier
	onAttempt     func(ctx context.Context, attempt int, key Key)
	onRateLimited func(ctx context.Context, attempt int, key Key, err error)
	onSuccess     func(ctx context.Context, attempt int, key Key)
}

// WithClassifier replaces ClassifyMessage as the rate-limit classifier.
func WithClassifier(c Classifier) ExecutorOption {
	return func(cfg *executorConfig) {
		if c != nil {
			cfg.classify = c
		}
	}
}

// WithOnAttempt is called before each attempt with the key it will use.
func WithOnAttempt(fn func(ctx context.Context, attempt int, key Key)) ExecutorOption {
	return func(cfg *executorConfig) {
		cfg.onAttempt = fn
	}
}

// WithOnRateLimited is called after a key has been put into cooldown.
func WithOnRateLimited(fn func(ctx context.Context, attempt int, key Key, err error)) ExecutorOption {
	return func(cfg *executorConfig) {
		cfg.onRateLimited = fn
	}
}

// WithOnSuccess is called when an attempt succeeds.
func WithOnSuccess(fn func(ctx context.Context, attempt int, key Key)) ExecutorOption {
	return func(cfg *executorConfig) {
		cfg.onSuccess = fn
	}
}

// RetryExecutor runs operations against a provider with key rotation.
//
// Contract:
//   - Concurrency: safe for concurrent use; shared state lives in the KeyPool.
//   - Attempts are sequential. The budget is 2 × pool size.
//   - Rate-limited failures rotate the key and retry.
//   - Fatal failures, binding failures and pool exhaustion are returned
//     unchanged on first occurrence.
type RetryExecutor[C any] struct {
	pool   *KeyPool
	bind   BindFunc[C]
	config executorConfig
}

// NewRetryExecutor creates an executor over pool that binds clients with bind.
func NewRetryExecutor[C any](pool *KeyPool, bind BindFunc[C], opts ...ExecutorOption) *RetryExecutor[C] {
	cfg := executorConfig{classify: ClassifyMessage}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &RetryExecutor[C]{
		pool:   pool,
		bind:   bind,
		config: cfg,
	}
}

// Pool returns the executor's key pool.
func (e *RetryExecutor[C]) Pool() *KeyPool {
	return e.pool
}

// MaxAttempts returns the retry budget for a single operation.
func (e *RetryExecutor[C]) MaxAttempts() int {
	return 2 * e.pool.Len()
}

// Do runs op with a client bound to the active key, rotating on rate limits.
//
// A context that is already done before an attempt starts ends the loop with
// ctx.Err(). Cooldowns applied by earlier attempts are kept.
func (e *RetryExecutor[C]) Do(ctx context.Context, op func(context.Context, C) error) error {
	maxAttempts := e.MaxAttempts()
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		key, err := e.pool.ActiveKey()
		if err != nil {
			return err
		}

		client, err := e.bind(key)
		if err != nil {
			return err
		}

		if e.config.onAttempt != nil {
			e.config.onAttempt(ctx, attempt, key)
		}

		err = op(ctx, client)
		if err == nil {
			if e.config.onSuccess != nil {
				e.config.onSuccess(ctx, attempt, key)
			}
			return nil
		}

		if e.config.classify(err) != ClassRateLimited {
			return err
		}

		e.pool.MarkRateLimited(key.Index)
		lastErr = err

		if e.config.onRateLimited != nil {
			e.config.onRateLimited(ctx, attempt, key, err)
		}
	}

	return &RetriesExhaustedError{Attempts: maxAttempts, Err: lastErr}
}

// Execute runs op through e and returns its result.
func Execute[C, T any](ctx context.Context, e *RetryExecutor[C], op func(context.Context, C) (T, error)) (T, error) {
	var result T
	err := e.Do(ctx, func(ctx context.Context, client C) error {
		out, err := op(ctx, client)
		if err != nil {
			return err
		}
		result = out
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

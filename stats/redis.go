package stats

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix is the key prefix used by RedisRecorder.
const DefaultRedisPrefix = "toolify:keystats"

// RedisRecorder stores counters in Redis.
//
// Layout under the prefix:
//
//	<prefix>:keys              set of key IDs seen
//	<prefix>:key:<id>          hash kind -> count, cumulative
//	<prefix>:minute:<yyyymmddhhmm>  hash <id>:<kind> -> count, expires after ttl
type RedisRecorder struct {
	rdb redis.UniversalClient

	prefix string
	// ttl applies to minute buckets only.
	ttl     time.Duration
	buckets bool
}

// RedisOption configures a RedisRecorder.
type RedisOption func(*RedisRecorder)

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) RedisOption {
	return func(r *RedisRecorder) {
		if p := strings.Trim(prefix, ":"); p != "" {
			r.prefix = p
		}
	}
}

// WithBucketTTL sets how long per-minute buckets are kept.
func WithBucketTTL(d time.Duration) RedisOption {
	return func(r *RedisRecorder) { r.ttl = d }
}

// WithBuckets enables or disables per-minute buckets.
func WithBuckets(enabled bool) RedisOption {
	return func(r *RedisRecorder) { r.buckets = enabled }
}

// NewRedisRecorder creates a recorder backed by rdb.
func NewRedisRecorder(rdb redis.UniversalClient, opts ...RedisOption) *RedisRecorder {
	r := &RedisRecorder{
		rdb:     rdb,
		prefix:  DefaultRedisPrefix,
		ttl:     DefaultBucketTTL,
		buckets: true,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *RedisRecorder) keysKey() string         { return r.prefix + ":keys" }
func (r *RedisRecorder) keyKey(id string) string { return r.prefix + ":key:" + id }
func (r *RedisRecorder) bucketKey(at time.Time) string {
	return fmt.Sprintf("%s:minute:%s", r.prefix, minuteOf(at).Format("200601021504"))
}

// Record implements Recorder. All writes for an event go out in one pipeline.
func (r *RedisRecorder) Record(ctx context.Context, ev Event) error {
	if r == nil || r.rdb == nil {
		return nil
	}
	if err := ev.validate(); err != nil {
		return err
	}

	pipe := r.rdb.Pipeline()
	pipe.SAdd(ctx, r.keysKey(), ev.KeyID)
	pipe.HIncrBy(ctx, r.keyKey(ev.KeyID), string(ev.Kind), 1)

	if r.buckets {
		bucket := r.bucketKey(ev.At)
		pipe.HIncrBy(ctx, bucket, ev.KeyID+":"+string(ev.Kind), 1)
		if r.ttl > 0 {
			pipe.Expire(ctx, bucket, r.ttl)
		}
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("stats: record: %w", err)
	}
	return nil
}

// Snapshot implements Recorder.
func (r *RedisRecorder) Snapshot(ctx context.Context) (map[string]Counts, error) {
	if r == nil || r.rdb == nil {
		return map[string]Counts{}, nil
	}

	ids, err := r.rdb.SMembers(ctx, r.keysKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("stats: snapshot: %w", err)
	}

	pipe := r.rdb.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, r.keyKey(id))
	}
	if len(ids) > 0 {
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, fmt.Errorf("stats: snapshot: %w", err)
		}
	}

	out := make(map[string]Counts, len(ids))
	for i, id := range ids {
		var c Counts
		for field, raw := range cmds[i].Val() {
			n, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				continue
			}
			c.add(Kind(field), n)
		}
		out[id] = c
	}
	return out, nil
}

// Minute implements Recorder. It returns an empty map when buckets are
// disabled or have expired.
func (r *RedisRecorder) Minute(ctx context.Context, at time.Time) (map[string]Counts, error) {
	out := make(map[string]Counts)
	if r == nil || r.rdb == nil || !r.buckets {
		return out, nil
	}

	fields, err := r.rdb.HGetAll(ctx, r.bucketKey(at)).Result()
	if err != nil {
		return nil, fmt.Errorf("stats: minute: %w", err)
	}
	for field, raw := range fields {
		i := strings.LastIndex(field, ":")
		if i <= 0 {
			continue
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		id, kind := field[:i], Kind(field[i+1:])
		c := out[id]
		c.add(kind, n)
		out[id] = c
	}
	return out, nil
}

// Ping checks connectivity to Redis.
func (r *RedisRecorder) Ping(ctx context.Context) error {
	if r == nil || r.rdb == nil {
		return fmt.Errorf("stats: redis client not configured")
	}
	return r.rdb.Ping(ctx).Err()
}

// Reset implements Recorder. It deletes the key set, every per-key hash and
// every minute bucket under the prefix.
func (r *RedisRecorder) Reset(ctx context.Context) error {
	if r == nil || r.rdb == nil {
		return nil
	}
	ids, err := r.rdb.SMembers(ctx, r.keysKey()).Result()
	if err != nil {
		return fmt.Errorf("stats: reset: %w", err)
	}
	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, r.keyKey(id))
	}
	keys = append(keys, r.keysKey())

	iter := r.rdb.Scan(ctx, 0, r.prefix+":minute:*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("stats: reset: %w", err)
	}

	if err := r.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("stats: reset: %w", err)
	}
	return nil
}

package health

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/jonwraymond/toolify/resilience"
)

// PoolStatusSource provides a snapshot of key pool state.
// *resilience.KeyPool implements it.
type PoolStatusSource interface {
	Status() resilience.PoolStatus
}

// PoolChecker reports key pool availability.
type PoolChecker struct {
	pool PoolStatusSource
}

// NewPoolChecker creates a checker for pool.
func NewPoolChecker(pool PoolStatusSource) *PoolChecker {
	return &PoolChecker{pool: pool}
}

// Name returns the name of this checker.
func (p *PoolChecker) Name() string {
	return "keypool"
}

// Check reports Healthy when every key is active, Degraded when some keys are
// cooling down and Unhealthy when none is active.
func (p *PoolChecker) Check(ctx context.Context) Result {
	select {
	case <-ctx.Done():
		return Unhealthy("context cancelled", ctx.Err())
	default:
	}

	status := p.pool.Status()
	total := len(status.Keys)
	active := status.ActiveCount()

	keys := make([]map[string]any, 0, total)
	for _, k := range status.Keys {
		entry := map[string]any{
			"index": k.Index,
			"id":    k.ID,
			"state": k.State.String(),
		}
		if k.State == resilience.KeyCooldown {
			entry["remaining"] = k.Remaining.Round(time.Second).String()
		}
		keys = append(keys, entry)
	}

	details := map[string]any{
		"total":    total,
		"active":   active,
		"current":  status.Current,
		"cooldown": status.Cooldown.String(),
		"keys":     keys,
	}

	switch {
	case active == total:
		return Healthy(fmt.Sprintf("%d/%d keys active", active, total)).WithDetails(details)
	case active > 0:
		return Degraded(fmt.Sprintf("%d/%d keys active", active, total)).WithDetails(details)
	default:
		wait := status.MinRemaining()
		details["retry_after_seconds"] = int(math.Ceil(wait.Seconds()))
		return Unhealthy(
			fmt.Sprintf("all %d keys cooling down", total),
			&resilience.ExhaustedError{RetryAfter: wait},
		).WithDetails(details)
	}
}

package app

import (
	"context"
	"time"

	"github.com/jonwraymond/toolify/resilience"
	"github.com/jonwraymond/toolify/stats"
)

// KeyReport describes one pool key for operators. It never carries the secret.
type KeyReport struct {
	Index     int          `json:"index"`
	ID        string       `json:"id"`
	State     string       `json:"state"`
	Current   bool         `json:"current"`
	Remaining string       `json:"remaining,omitempty"`
	Usage     stats.Counts `json:"usage"`
	// LastMinute holds usage in the current clock minute.
	LastMinute stats.Counts `json:"last_minute"`
}

// Keys reports pool state joined with recorded usage. Usage is zero when
// stats are disabled.
func (a *App) Keys(ctx context.Context) ([]KeyReport, error) {
	status := a.Pool.Status()

	var usage, minute map[string]stats.Counts
	if a.Stats != nil {
		var err error
		if usage, err = a.Stats.Snapshot(ctx); err != nil {
			return nil, err
		}
		if minute, err = a.Stats.Minute(ctx, a.now()); err != nil {
			return nil, err
		}
	}

	reports := make([]KeyReport, 0, len(status.Keys))
	for _, k := range status.Keys {
		r := KeyReport{
			Index:      k.Index,
			ID:         k.ID,
			State:      k.State.String(),
			Current:    k.Index == status.Current,
			Usage:      usage[k.ID],
			LastMinute: minute[k.ID],
		}
		if k.State == resilience.KeyCooldown {
			r.Remaining = k.Remaining.Round(time.Second).String()
		}
		reports = append(reports, r)
	}
	return reports, nil
}

// ResetStats clears recorded usage. Pool state is untouched.
func (a *App) ResetStats(ctx context.Context) error {
	if a.Stats == nil {
		return nil
	}
	if err := a.Stats.Reset(ctx); err != nil {
		return err
	}
	a.logger.Info(ctx, "key usage reset")
	return nil
}

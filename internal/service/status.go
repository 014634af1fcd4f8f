package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Adembenali2/cccomputer-sub001/internal/domain"
)

// SourceStatus is the monitoring view of one source.
type SourceStatus struct {
	Source        string     `json:"source"`
	Recent        bool       `json:"recent"`
	LastRunAt     *time.Time `json:"last_run_at,omitempty"`
	LastSuccess   *bool      `json:"last_success,omitempty"`
	LastInserted  int        `json:"last_inserted"`
	LastErrors    int        `json:"last_errors"`
	CheckpointAt  *time.Time `json:"checkpoint_at,omitempty"`
	CheckpointKey string     `json:"checkpoint_key,omitempty"`
}

// Status reports whether a source has run recently and where its cursor
// stands. A source that has never run reports not-recent with no
// timestamps.
func (r *Runner) Status(ctx context.Context, sourceName string) (*SourceStatus, error) {
	if _, ok := r.connectors[sourceName]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, sourceName)
	}

	status := &SourceStatus{Source: sourceName}

	last, err := r.ledger.Latest(ctx, sourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to read run history: %w", err)
	}
	if last != nil {
		ranAt := last.RanAt
		success := last.Success
		status.LastRunAt = &ranAt
		status.LastSuccess = &success
		status.LastInserted = last.InsertedCount
		status.LastErrors = last.ErrorCount
		status.Recent = r.now().UTC().Sub(ranAt) <= r.cfg.FreshnessWindow
	}

	wm, err := r.checkpoints.Get(ctx, sourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}
	if !wm.IsZero() {
		ts := wm.Timestamp
		status.CheckpointAt = &ts
		status.CheckpointKey = wm.DeviceKey
	}
	return status, nil
}

// History returns the most recent run records for a source, newest first.
func (r *Runner) History(ctx context.Context, sourceName string, limit int) ([]domain.RunRecord, error) {
	if _, ok := r.connectors[sourceName]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, sourceName)
	}
	return r.ledger.History(ctx, sourceName, limit)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Adembenali2/cccomputer-sub001/internal/config"
	"github.com/Adembenali2/cccomputer-sub001/internal/domain"
	"github.com/Adembenali2/cccomputer-sub001/internal/logger"
	"github.com/Adembenali2/cccomputer-sub001/internal/normalize"
	"github.com/Adembenali2/cccomputer-sub001/internal/repository"
	"github.com/Adembenali2/cccomputer-sub001/internal/source"
	"github.com/google/uuid"
)

// ErrUnknownSource is returned when a trigger names a source that has no
// configured connector.
var ErrUnknownSource = errors.New("unknown source")

// Trigger outcome reasons surfaced to the caller.
const (
	ReasonStarted = "started"
	ReasonNotDue  = "not_due"
	ReasonLocked  = "locked"
)

// RunOptions are the per-trigger overrides.
type RunOptions struct {
	// Force bypasses the minimum-interval due check. The lock is still
	// honored.
	Force bool
	// Limit overrides the per-run batch cap when positive.
	Limit int
}

// RunResult is the structured outcome returned to the trigger surface.
type RunResult struct {
	Ran          bool      `json:"ran"`
	Reason       string    `json:"reason"`
	Source       string    `json:"source"`
	RunID        string    `json:"run_id,omitempty"`
	Processed    int       `json:"processed"`
	Inserted     int       `json:"inserted"`
	Skipped      int       `json:"skipped"`
	Errors       int       `json:"errors"`
	Success      bool      `json:"success"`
	LastRunAt    time.Time `json:"last_run_at,omitempty"`
	NextDueInSec int64     `json:"next_due_in_sec"`
}

// DirectorySyncer is implemented by connectors that can additionally
// refresh the fleet directory mirror.
type DirectorySyncer interface {
	Devices(ctx context.Context) ([]domain.Device, error)
}

// Runner coordinates one pipeline run per source: due check, lock,
// connector pull, normalization, dedup/upsert, checkpoint advancement,
// and the ledger write. One Runner serves all configured sources.
type Runner struct {
	readings    *repository.ReadingRepository
	checkpoints *repository.CheckpointRepository
	ledger      *repository.LedgerRepository
	locks       *repository.LockRepository
	devices     *repository.DeviceRepository
	connectors  map[string]source.Connector
	cfg         config.PipelineConfig
	logger      *logger.Logger
	now         func() time.Time
}

// NewRunner creates a Runner over the given connectors.
func NewRunner(
	readings *repository.ReadingRepository,
	checkpoints *repository.CheckpointRepository,
	ledger *repository.LedgerRepository,
	locks *repository.LockRepository,
	devices *repository.DeviceRepository,
	connectors []source.Connector,
	cfg config.PipelineConfig,
	log *logger.Logger,
) *Runner {
	byName := make(map[string]source.Connector, len(connectors))
	for _, c := range connectors {
		byName[c.Name()] = c
	}
	return &Runner{
		readings:    readings,
		checkpoints: checkpoints,
		ledger:      ledger,
		locks:       locks,
		devices:     devices,
		connectors:  byName,
		cfg:         cfg,
		logger:      log,
		now:         time.Now,
	}
}

// Sources returns the configured source names.
func (r *Runner) Sources() []string {
	names := make([]string, 0, len(r.connectors))
	for name := range r.connectors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RunIfDue executes one pipeline run for the source unless the minimum
// inter-run interval has not elapsed or another run is in flight. The
// lock is released on every exit path.
func (r *Runner) RunIfDue(ctx context.Context, sourceName string, opts RunOptions) (*RunResult, error) {
	conn, ok := r.connectors[sourceName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, sourceName)
	}

	now := r.now().UTC()
	lastAttempt, err := r.locks.LastAttempt(ctx, sourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to read heartbeat: %w", err)
	}

	if !opts.Force && !lastAttempt.IsZero() {
		elapsed := now.Sub(lastAttempt)
		if elapsed < r.cfg.MinInterval {
			return &RunResult{
				Ran:          false,
				Reason:       ReasonNotDue,
				Source:       sourceName,
				LastRunAt:    lastAttempt,
				NextDueInSec: int64((r.cfg.MinInterval - elapsed).Seconds()),
			}, nil
		}
	}

	owner := uuid.New().String()
	acquired, err := r.locks.TryAcquire(ctx, sourceName, owner, r.cfg.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire run lock: %w", err)
	}
	if !acquired {
		return &RunResult{
			Ran:       false,
			Reason:    ReasonLocked,
			Source:    sourceName,
			LastRunAt: lastAttempt,
		}, nil
	}
	// Release must survive a timed-out or cancelled run context.
	defer func() {
		if err := r.locks.Release(context.WithoutCancel(ctx), sourceName, owner); err != nil {
			r.logger.WithError(err).WithField(logger.FieldSource, sourceName).Error("Failed to release run lock")
		}
	}()

	// The heartbeat moves before connector I/O so a hung run cannot keep
	// the source permanently not-due.
	if err := r.locks.Beat(ctx, sourceName, now); err != nil {
		return nil, fmt.Errorf("failed to update heartbeat: %w", err)
	}

	runCtx := ctx
	if r.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.cfg.RunTimeout)
		defer cancel()
	}

	result := r.execute(runCtx, conn, opts, now)
	result.NextDueInSec = int64(r.cfg.MinInterval.Seconds())
	return result, nil
}

// execute performs the connector → normalizer → dedup/upsert pipeline and
// always writes exactly one ledger row for the attempt.
func (r *Runner) execute(ctx context.Context, conn source.Connector, opts RunOptions, startedAt time.Time) *RunResult {
	sourceName := conn.Name()
	runID := uuid.New().String()

	ctx = logger.WithFields(ctx, logger.Fields{
		logger.FieldSource: sourceName,
		logger.FieldRunID:  runID,
	})
	logger.CtxInfo(ctx, "Run started: force=%v, limit=%d", opts.Force, opts.Limit)

	if closer, ok := conn.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	result := &RunResult{
		Ran:       true,
		Reason:    ReasonStarted,
		Source:    sourceName,
		RunID:     runID,
		LastRunAt: startedAt,
	}
	detail := domain.RunDetail{}

	fatal := func(stage string, err error) *RunResult {
		detail.Fatal = fmt.Sprintf("%s: %v", stage, err)
		logger.CtxError(ctx, "Run failed: stage=%s, error=%v", stage, err)
		result.Success = false
		r.writeLedger(ctx, result, startedAt, detail)
		return result
	}

	watermark, err := r.checkpoints.Get(ctx, sourceName)
	if err != nil {
		return fatal("checkpoint", err)
	}

	limit := r.cfg.RecordLimit
	if sourceName == domain.SourceFileDrop {
		limit = r.cfg.FileLimit
	}
	if opts.Limit > 0 {
		limit = opts.Limit
	}

	batch, err := conn.Fetch(ctx, watermark, limit)
	if err != nil {
		return fatal("fetch", err)
	}
	detail.Remaining = batch.Remaining

	for _, rej := range batch.Rejects {
		result.Errors++
		detail.Add(rej.Ref, "error", rej.Message)
	}

	// Normalize, keeping the candidate ref of every reading so outcomes
	// can be attributed back to files/rows.
	readings := make([]domain.Reading, 0, len(batch.Records))
	refs := make([]string, 0, len(batch.Records))
	refOK := make(map[string]bool)
	refSeen := make([]string, 0, len(batch.Records))

	markRef := func(ref string, ok bool) {
		if _, seen := refOK[ref]; !seen {
			refSeen = append(refSeen, ref)
			refOK[ref] = true
		}
		if !ok {
			refOK[ref] = false
		}
	}

	for _, raw := range batch.Records {
		reading, err := normalize.Record(raw, sourceName)
		if err != nil {
			result.Errors++
			detail.Add(raw.Ref, "rejected", err.Error())
			markRef(raw.Ref, false)
			continue
		}
		readings = append(readings, reading)
		refs = append(refs, raw.Ref)
		markRef(raw.Ref, true)
	}

	// Ascending (observed_at, device_key) order is required for correct
	// checkpoint advancement: the new watermark must be the true maximum.
	order := make([]int, len(readings))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return readings[order[a]].Watermark().Less(readings[order[b]].Watermark())
	})
	sorted := make([]domain.Reading, len(readings))
	sortedRefs := make([]string, len(readings))
	for i, idx := range order {
		sorted[i] = readings[idx]
		sortedRefs[i] = refs[idx]
	}

	var applied *repository.ApplyResult
	if conn.Mode() == source.ModeLatest {
		applied, err = r.readings.UpsertLatestBatch(ctx, sorted)
	} else {
		applied, err = r.readings.InsertBatch(ctx, sorted)
	}
	if err != nil {
		return fatal("apply", err)
	}

	result.Inserted = applied.Inserted
	result.Skipped = applied.Skipped
	result.Errors += applied.Errors
	result.Processed = len(batch.Records) + len(batch.Rejects)

	var maxInserted domain.Watermark
	haveInserted := false
	for i, outcome := range applied.Outcomes {
		switch outcome {
		case repository.RowInserted:
			maxInserted = sorted[i].Watermark()
			haveInserted = true
			detail.Add(sortedRefs[i], "inserted", "")
		case repository.RowSkipped:
			detail.Add(sortedRefs[i], "skipped", "duplicate")
		case repository.RowFailed:
			markRef(sortedRefs[i], false)
			detail.Add(sortedRefs[i], "error", applied.RowErrs[i].Error())
		}
	}

	if haveInserted {
		if err := r.checkpoints.Advance(ctx, sourceName, maxInserted); err != nil {
			return fatal("checkpoint-advance", err)
		}
	}

	if acker, ok := conn.(source.Acker); ok {
		for _, ref := range refSeen {
			if err := acker.Ack(ctx, ref, refOK[ref]); err != nil {
				logger.CtxWarn(ctx, "Failed to claim candidate %s: %v", ref, err)
			}
		}
	}

	r.syncDirectory(ctx, conn)

	result.Success = true
	r.writeLedger(ctx, result, startedAt, detail)

	logger.CtxInfo(ctx, "Run completed: processed=%d, inserted=%d, skipped=%d, errors=%d",
		result.Processed, result.Inserted, result.Skipped, result.Errors)
	return result
}

// syncDirectory refreshes the fleet directory mirror when the connector
// exposes one. Directory trouble degrades to a warning; the readings of
// the run are already committed.
func (r *Runner) syncDirectory(ctx context.Context, conn source.Connector) {
	syncer, ok := conn.(DirectorySyncer)
	if !ok || r.devices == nil {
		return
	}
	devices, err := syncer.Devices(ctx)
	if err != nil {
		logger.CtxWarn(ctx, "Failed to read device directory: %v", err)
		return
	}
	if err := r.devices.UpsertDirectory(ctx, devices); err != nil {
		logger.CtxWarn(ctx, "Failed to refresh device directory: %v", err)
	}
}

// writeLedger appends the run record. The write is detached from the run
// context so a timed-out run still leaves its trace.
func (r *Runner) writeLedger(ctx context.Context, result *RunResult, startedAt time.Time, detail domain.RunDetail) {
	record := &domain.RunRecord{
		RunID:          result.RunID,
		Source:         result.Source,
		RanAt:          startedAt,
		DurationMs:     r.now().UTC().Sub(startedAt).Milliseconds(),
		ProcessedCount: result.Processed,
		InsertedCount:  result.Inserted,
		SkippedCount:   result.Skipped,
		ErrorCount:     result.Errors,
		Success:        result.Success,
		Detail:         detail,
	}
	if err := r.ledger.Append(context.WithoutCancel(ctx), record); err != nil {
		r.logger.WithError(err).WithField(logger.FieldSource, result.Source).Error("Failed to write run record")
	}
}

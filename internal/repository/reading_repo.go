package repository

import (
	"context"
	"fmt"

	"github.com/Adembenali2/cccomputer-sub001/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RowOutcome is the per-row result of applying one reading.
type RowOutcome int

const (
	RowInserted RowOutcome = iota
	RowSkipped             // duplicate (device_key, observed_at)
	RowFailed              // unexpected store error, row not applied
)

// ApplyResult summarizes one batch application. Outcomes is index-aligned
// with the input batch so the caller can attribute results to candidates.
type ApplyResult struct {
	Inserted int
	Skipped  int
	Errors   int
	Outcomes []RowOutcome
	RowErrs  []error // index-aligned, nil where the row applied
}

// ReadingRepository handles reading store operations.
type ReadingRepository struct {
	db *gorm.DB
}

// NewReadingRepository creates a new ReadingRepository.
func NewReadingRepository(db *gorm.DB) *ReadingRepository {
	return &ReadingRepository{db: db}
}

var readingConflictKey = []clause.Column{{Name: "device_key"}, {Name: "observed_at"}}

// mutableColumns are the only fields a latest-wins source may overwrite on
// key collision; the identity pair itself is never updated.
var mutableColumns = []string{
	"counter_bw", "counter_color",
	"toner_k", "toner_c", "toner_m", "toner_y",
	"status", "updated_at",
}

// InsertBatch applies an append-only batch inside one transaction:
// insert guarded by the uniqueness key, duplicates counted as skipped.
// A per-row savepoint isolates unexpected row errors so one bad row does
// not abort the batch; a commit failure means nothing was applied.
func (r *ReadingRepository) InsertBatch(ctx context.Context, readings []domain.Reading) (*ApplyResult, error) {
	return r.applyBatch(ctx, readings, false)
}

// UpsertLatestBatch applies a latest-wins batch: on key collision the
// mutable fields are overwritten. Only the live-sync source uses this.
func (r *ReadingRepository) UpsertLatestBatch(ctx context.Context, readings []domain.Reading) (*ApplyResult, error) {
	return r.applyBatch(ctx, readings, true)
}

func (r *ReadingRepository) applyBatch(ctx context.Context, readings []domain.Reading, overwrite bool) (*ApplyResult, error) {
	result := &ApplyResult{
		Outcomes: make([]RowOutcome, len(readings)),
		RowErrs:  make([]error, len(readings)),
	}
	if len(readings) == 0 {
		return result, nil
	}

	onConflict := clause.OnConflict{Columns: readingConflictKey, DoNothing: true}
	if overwrite {
		onConflict = clause.OnConflict{
			Columns:   readingConflictKey,
			DoUpdates: clause.AssignmentColumns(mutableColumns),
		}
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range readings {
			sp := fmt.Sprintf("sp_row_%d", i)
			tx.SavePoint(sp)
			res := tx.Clauses(onConflict).Create(&readings[i])
			if res.Error != nil {
				tx.RollbackTo(sp)
				result.Outcomes[i] = RowFailed
				result.RowErrs[i] = res.Error
				result.Errors++
				continue
			}
			if !overwrite && res.RowsAffected == 0 {
				result.Outcomes[i] = RowSkipped
				result.Skipped++
				continue
			}
			result.Outcomes[i] = RowInserted
			result.Inserted++
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to commit reading batch: %w", err)
	}
	return result, nil
}

// ListByDevice retrieves the most recent readings for a device.
func (r *ReadingRepository) ListByDevice(ctx context.Context, deviceKey string, limit int) ([]domain.Reading, error) {
	var readings []domain.Reading
	if err := r.db.WithContext(ctx).
		Where("device_key = ?", deviceKey).
		Order("observed_at DESC").
		Limit(limit).
		Find(&readings).Error; err != nil {
		return nil, err
	}
	return readings, nil
}

// ListRecent retrieves the most recent readings across all devices,
// optionally filtered by source.
func (r *ReadingRepository) ListRecent(ctx context.Context, source string, limit int) ([]domain.Reading, error) {
	query := r.db.WithContext(ctx)
	if source != "" {
		query = query.Where("source = ?", source)
	}
	var readings []domain.Reading
	if err := query.
		Order("observed_at DESC").
		Limit(limit).
		Find(&readings).Error; err != nil {
		return nil, err
	}
	return readings, nil
}

// CountBySource counts stored readings per source.
func (r *ReadingRepository) CountBySource(ctx context.Context, source string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.Reading{}).
		Where("source = ?", source).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

package repository

import (
	"context"
	"errors"

	"github.com/Adembenali2/cccomputer-sub001/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CheckpointRepository persists per-source watermarks.
type CheckpointRepository struct {
	db *gorm.DB
}

// NewCheckpointRepository creates a new CheckpointRepository.
func NewCheckpointRepository(db *gorm.DB) *CheckpointRepository {
	return &CheckpointRepository{db: db}
}

// Get returns the stored watermark for a source, or the beginning-of-time
// watermark when the source has never completed a run.
func (r *CheckpointRepository) Get(ctx context.Context, source string) (domain.Watermark, error) {
	var cp domain.SourceCheckpoint
	err := r.db.WithContext(ctx).First(&cp, "source = ?", source).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Watermark{}, nil
	}
	if err != nil {
		return domain.Watermark{}, err
	}
	return cp.Watermark(), nil
}

// Advance moves the source's watermark forward. A watermark at or behind
// the stored one is a no-op: the cursor is monotonic by contract.
func (r *CheckpointRepository) Advance(ctx context.Context, source string, wm domain.Watermark) error {
	current, err := r.Get(ctx, source)
	if err != nil {
		return err
	}
	if !current.Less(wm) {
		return nil
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "source"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_timestamp", "last_device_key", "updated_at"}),
	}).Create(&domain.SourceCheckpoint{
		Source:        source,
		LastTimestamp: wm.Timestamp,
		LastDeviceKey: wm.DeviceKey,
	}).Error
}

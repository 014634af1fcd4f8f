package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Adembenali2/cccomputer-sub001/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LockRepository provides the per-source run lock and the due-check
// heartbeat. Both are coordination primitives shared by every process
// running this source.
type LockRepository struct {
	db *gorm.DB
}

// NewLockRepository creates a new LockRepository.
func NewLockRepository(db *gorm.DB) *LockRepository {
	return &LockRepository{db: db}
}

// TryAcquire attempts a non-blocking lock grab for a source. It returns
// false immediately when another holder is active; a lock whose TTL has
// lapsed is reclaimed, covering holders killed before release.
func (r *LockRepository) TryAcquire(ctx context.Context, source, owner string, ttl time.Duration) (bool, error) {
	now := time.Now().UTC()
	lock := domain.RunLock{
		Source:    source,
		Owner:     owner,
		LockedAt:  now,
		ExpiresAt: now.Add(ttl),
	}

	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "source"}},
		DoNothing: true,
	}).Create(&lock)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return true, nil
	}

	// Row exists: take over only if the previous holder expired.
	res = r.db.WithContext(ctx).Model(&domain.RunLock{}).
		Where("source = ? AND expires_at < ?", source, now).
		Updates(map[string]interface{}{
			"owner":      owner,
			"locked_at":  now,
			"expires_at": now.Add(ttl),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Release frees the lock if this owner still holds it. Releasing a lock
// already taken over by someone else is a no-op.
func (r *LockRepository) Release(ctx context.Context, source, owner string) error {
	return r.db.WithContext(ctx).
		Where("source = ? AND owner = ?", source, owner).
		Delete(&domain.RunLock{}).Error
}

// LastAttempt returns when a run for this source last started, or the
// zero time if it never has.
func (r *LockRepository) LastAttempt(ctx context.Context, source string) (time.Time, error) {
	var hb domain.SourceHeartbeat
	err := r.db.WithContext(ctx).First(&hb, "source = ?", source).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return hb.LastAttemptAt, nil
}

// Beat records a run attempt. Called before connector I/O so a hung run
// cannot postpone the next interval forever.
func (r *LockRepository) Beat(ctx context.Context, source string, at time.Time) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "source"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_attempt_at"}),
	}).Create(&domain.SourceHeartbeat{
		Source:        source,
		LastAttemptAt: at,
	}).Error
}

package repository

import (
	"context"
	"errors"

	"github.com/Adembenali2/cccomputer-sub001/internal/domain"
	"gorm.io/gorm"
)

// LedgerRepository appends and queries the run ledger. Rows are written
// once per concluded run attempt and never mutated.
type LedgerRepository struct {
	db *gorm.DB
}

// NewLedgerRepository creates a new LedgerRepository.
func NewLedgerRepository(db *gorm.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// Append writes one run record.
func (r *LedgerRepository) Append(ctx context.Context, record *domain.RunRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

// Latest returns the most recent run record for a source, or nil when the
// source has never run.
func (r *LedgerRepository) Latest(ctx context.Context, source string) (*domain.RunRecord, error) {
	var record domain.RunRecord
	err := r.db.WithContext(ctx).
		Where("source = ?", source).
		Order("ran_at DESC").
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// History returns the most recent run records for a source, newest first.
func (r *LedgerRepository) History(ctx context.Context, source string, limit int) ([]domain.RunRecord, error) {
	var records []domain.RunRecord
	if err := r.db.WithContext(ctx).
		Where("source = ?", source).
		Order("ran_at DESC").
		Limit(limit).
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

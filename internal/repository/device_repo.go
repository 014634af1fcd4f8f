package repository

import (
	"context"

	"github.com/Adembenali2/cccomputer-sub001/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DeviceRepository maintains the fleet directory mirror.
type DeviceRepository struct {
	db *gorm.DB
}

// NewDeviceRepository creates a new DeviceRepository.
func NewDeviceRepository(db *gorm.DB) *DeviceRepository {
	return &DeviceRepository{db: db}
}

// UpsertDirectory refreshes directory rows keyed by device key.
func (r *DeviceRepository) UpsertDirectory(ctx context.Context, devices []domain.Device) error {
	if len(devices) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "device_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"model", "serial", "ip_address", "last_seen_at", "updated_at"}),
	}).Create(&devices).Error
}

// List returns directory entries ordered by device key.
func (r *DeviceRepository) List(ctx context.Context, limit int) ([]domain.Device, error) {
	var devices []domain.Device
	if err := r.db.WithContext(ctx).
		Order("device_key ASC").
		Limit(limit).
		Find(&devices).Error; err != nil {
		return nil, err
	}
	return devices, nil
}

// Get returns one directory entry by device key.
func (r *DeviceRepository) Get(ctx context.Context, deviceKey string) (*domain.Device, error) {
	var device domain.Device
	if err := r.db.WithContext(ctx).First(&device, "device_key = ?", deviceKey).Error; err != nil {
		return nil, err
	}
	return &device, nil
}

package domain

import "time"

// DeviceStatus is the normalized availability status of a device at
// observation time. Source vocabularies are mapped onto this small set;
// anything unrecognized becomes StatusUnknown.
type DeviceStatus string

const (
	StatusOnline  DeviceStatus = "online"
	StatusOffline DeviceStatus = "offline"
	StatusUnknown DeviceStatus = "unknown"
)

// Source identifiers for the configured connectors. The livedb source is
// split into two logical sources so that latest and backfill modes keep
// fully independent checkpoints, locks, and ledgers.
const (
	SourceFileDrop       = "filedrop"
	SourceJSONFeed       = "jsonfeed"
	SourceHTMLReport     = "htmlreport"
	SourceLiveDBLatest   = "livedb_latest"
	SourceLiveDBBackfill = "livedb_backfill"
)

// Reading is one canonical counter/toner snapshot for one device.
// (DeviceKey, ObservedAt) is the uniqueness key across all sources.
type Reading struct {
	ID           uint         `gorm:"primaryKey" json:"id"`
	DeviceKey    string       `gorm:"type:varchar(12);not null;uniqueIndex:idx_readings_device_observed" json:"device_key"`
	ObservedAt   time.Time    `gorm:"not null;uniqueIndex:idx_readings_device_observed" json:"observed_at"`
	CounterBW    *int64       `json:"counter_bw,omitempty"`
	CounterColor *int64       `json:"counter_color,omitempty"`
	TonerK       *int         `json:"toner_k,omitempty"`
	TonerC       *int         `json:"toner_c,omitempty"`
	TonerM       *int         `json:"toner_m,omitempty"`
	TonerY       *int         `json:"toner_y,omitempty"`
	Status       DeviceStatus `gorm:"type:varchar(16);default:unknown" json:"status"`
	Source       string       `gorm:"type:varchar(32);not null;index:idx_readings_source" json:"source"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// TableName returns the database table name for Reading.
func (Reading) TableName() string {
	return "readings"
}

// CounterTotal returns the combined page count when both counters are
// present, otherwise nil.
func (r *Reading) CounterTotal() *int64 {
	if r.CounterBW == nil || r.CounterColor == nil {
		return nil
	}
	total := *r.CounterBW + *r.CounterColor
	return &total
}

// Watermark returns the (ObservedAt, DeviceKey) position of this reading.
func (r *Reading) Watermark() Watermark {
	return Watermark{Timestamp: r.ObservedAt, DeviceKey: r.DeviceKey}
}

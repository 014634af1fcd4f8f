package domain

import "time"

// Watermark is the composite cursor used for incremental pulls: the highest
// (timestamp, device key) pair already durably processed for a source.
// Ordering is lexicographic on the pair.
type Watermark struct {
	Timestamp time.Time `json:"timestamp"`
	DeviceKey string    `json:"device_key"`
}

// IsZero reports whether the watermark is the beginning-of-time cursor.
func (w Watermark) IsZero() bool {
	return w.Timestamp.IsZero() && w.DeviceKey == ""
}

// Less reports whether w orders strictly before other.
func (w Watermark) Less(other Watermark) bool {
	if !w.Timestamp.Equal(other.Timestamp) {
		return w.Timestamp.Before(other.Timestamp)
	}
	return w.DeviceKey < other.DeviceKey
}

// Contains reports whether a candidate at (ts, key) is already covered by
// the watermark, i.e. not new.
func (w Watermark) Contains(ts time.Time, key string) bool {
	c := Watermark{Timestamp: ts, DeviceKey: key}
	return !w.Less(c)
}

// SourceCheckpoint persists one watermark per source. Written only after a
// run's batch has been durably committed; never moved backwards.
type SourceCheckpoint struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Source        string    `gorm:"type:varchar(32);not null;uniqueIndex:idx_checkpoints_source" json:"source"`
	LastTimestamp time.Time `json:"last_timestamp"`
	LastDeviceKey string    `gorm:"type:varchar(12)" json:"last_device_key"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName returns the database table name for SourceCheckpoint.
func (SourceCheckpoint) TableName() string {
	return "source_checkpoints"
}

// Watermark returns the checkpoint position as a Watermark value.
func (c *SourceCheckpoint) Watermark() Watermark {
	return Watermark{Timestamp: c.LastTimestamp, DeviceKey: c.LastDeviceKey}
}

package domain

import "time"

// Device mirrors the fleet directory from the live database so dashboards
// can label readings with model and serial. The pipeline only maintains
// this mirror; the business client mapping lives outside the core.
type Device struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	DeviceKey  string    `gorm:"type:varchar(12);not null;uniqueIndex:idx_devices_key" json:"device_key"`
	Model      string    `gorm:"type:varchar(128)" json:"model"`
	Serial     string    `gorm:"type:varchar(64)" json:"serial"`
	IPAddress  string    `gorm:"type:varchar(45)" json:"ip_address"`
	LastSeenAt time.Time `json:"last_seen_at"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName returns the database table name for Device.
func (Device) TableName() string {
	return "devices"
}

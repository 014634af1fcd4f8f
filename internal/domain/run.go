package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// MaxDetailEntries bounds the per-run diagnostic sample persisted in the
// ledger so one noisy run cannot bloat the table.
const MaxDetailEntries = 20

// DetailEntry is one per-file or per-record outcome kept in the run detail
// sample.
type DetailEntry struct {
	Ref     string `json:"ref"`
	Outcome string `json:"outcome"` // inserted, skipped, error, rejected
	Message string `json:"message,omitempty"`
}

// RunDetail is the structured diagnostic payload of a run, stored as JSON.
type RunDetail struct {
	Entries   []DetailEntry `json:"entries,omitempty"`
	Truncated int           `json:"truncated,omitempty"` // entries dropped beyond the sample cap
	Remaining int           `json:"remaining,omitempty"` // candidates left unfetched by the batch cap
	Fatal     string        `json:"fatal,omitempty"`
}

// Add appends an entry, dropping it once the sample cap is reached.
func (d *RunDetail) Add(ref, outcome, message string) {
	if len(d.Entries) >= MaxDetailEntries {
		d.Truncated++
		return
	}
	d.Entries = append(d.Entries, DetailEntry{Ref: ref, Outcome: outcome, Message: message})
}

// Value implements the driver.Valuer interface for database serialization.
func (d RunDetail) Value() (driver.Value, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface for database deserialization.
func (d *RunDetail) Scan(value interface{}) error {
	if value == nil {
		*d = RunDetail{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.New("failed to scan RunDetail")
		}
		bytes = []byte(str)
	}
	return json.Unmarshal(bytes, d)
}

// RunRecord is one append-only ledger row describing a completed run
// attempt. Created exactly once per attempt, after the run concludes,
// and never mutated afterwards.
type RunRecord struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	RunID          string    `gorm:"type:varchar(36);not null" json:"run_id"`
	Source         string    `gorm:"type:varchar(32);not null;index:idx_run_records_source" json:"source"`
	RanAt          time.Time `gorm:"not null;index:idx_run_records_ran_at" json:"ran_at"`
	DurationMs     int64     `json:"duration_ms"`
	ProcessedCount int       `json:"processed_count"`
	InsertedCount  int       `json:"inserted_count"`
	SkippedCount   int       `json:"skipped_count"`
	ErrorCount     int       `json:"error_count"`
	Success        bool      `json:"success"`
	Detail         RunDetail `gorm:"type:text" json:"detail"`
}

// TableName returns the database table name for RunRecord.
func (RunRecord) TableName() string {
	return "run_records"
}

// RunLock is the per-source mutual-exclusion token. Acquired non-blocking
// at run start, always released on every exit path; ExpiresAt lets a
// successor reclaim a lock left behind by a killed process.
type RunLock struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Source    string    `gorm:"type:varchar(32);not null;uniqueIndex:idx_run_locks_source" json:"source"`
	Owner     string    `gorm:"type:varchar(36);not null" json:"owner"`
	LockedAt  time.Time `json:"locked_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TableName returns the database table name for RunLock.
func (RunLock) TableName() string {
	return "run_locks"
}

// SourceHeartbeat records the last run attempt per source for the
// minimum-interval due check. Deliberately simpler than the checkpoint:
// it is bumped before connector I/O so a hung run cannot block the
// interval from eventually allowing a retry.
type SourceHeartbeat struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Source        string    `gorm:"type:varchar(32);not null;uniqueIndex:idx_heartbeats_source" json:"source"`
	LastAttemptAt time.Time `json:"last_attempt_at"`
}

// TableName returns the database table name for SourceHeartbeat.
func (SourceHeartbeat) TableName() string {
	return "source_heartbeats"
}

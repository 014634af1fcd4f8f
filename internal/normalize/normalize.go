package normalize

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Adembenali2/cccomputer-sub001/internal/domain"
)

// Reject reasons. A record missing its identity or observation time cannot
// participate in the (device_key, observed_at) uniqueness key and is
// rejected outright; bad numeric fields merely become null.
var (
	ErrInvalidDeviceKey = errors.New("invalid device key")
	ErrInvalidTimestamp = errors.New("invalid timestamp")
)

// RejectError wraps a reject reason with the offending raw value.
type RejectError struct {
	Reason error
	Value  string
}

func (e *RejectError) Error() string {
	return fmt.Sprintf("%v: %q", e.Reason, e.Value)
}

func (e *RejectError) Unwrap() error {
	return e.Reason
}

// timeLayouts are the timestamp shapes seen across the sources: the CSV
// drop and JSON export use MySQL-style datetimes, the HTML report uses
// French day-first dates, file names embed a compact form.
var timeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"20060102_150405",
	"2006-01-02",
}

const hexDigits = "0123456789ABCDEF"

// DeviceKey normalizes a MAC-like hardware address to the canonical
// 12-uppercase-hex form: all non-hex characters stripped, uppercased,
// exactly 12 digits required.
func DeviceKey(raw string) (string, error) {
	var b strings.Builder
	b.Grow(12)
	for _, r := range strings.ToUpper(raw) {
		if strings.ContainsRune(hexDigits, r) {
			b.WriteRune(r)
		}
	}
	key := b.String()
	if len(key) != 12 {
		return "", &RejectError{Reason: ErrInvalidDeviceKey, Value: raw}
	}
	return key, nil
}

// Timestamp parses a source-local timestamp string into a canonical
// second-precision UTC time.
func Timestamp(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, &RejectError{Reason: ErrInvalidTimestamp, Value: raw}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC().Truncate(time.Second), nil
		}
	}
	return time.Time{}, &RejectError{Reason: ErrInvalidTimestamp, Value: raw}
}

// Counter coerces a numeric-looking string into a non-negative page count.
// Non-numeric or negative input yields nil rather than a rejection.
func Counter(raw string) *int64 {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return nil
	}
	return &n
}

// TonerLevel coerces a toner percentage. Values outside 0-100 are treated
// as unknown, not rejected.
func TonerLevel(raw string) *int {
	s := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(raw), "%"))
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > 100 {
		return nil
	}
	return &n
}

// statusVocabulary maps the per-source status strings onto the canonical
// set. Lookups are case-insensitive.
var statusVocabulary = map[string]domain.DeviceStatus{
	"online":       domain.StatusOnline,
	"ok":           domain.StatusOnline,
	"ready":        domain.StatusOnline,
	"en ligne":     domain.StatusOnline,
	"disponible":   domain.StatusOnline,
	"offline":      domain.StatusOffline,
	"off":          domain.StatusOffline,
	"hors ligne":   domain.StatusOffline,
	"injoignable":  domain.StatusOffline,
	"unreachable":  domain.StatusOffline,
	"disconnected": domain.StatusOffline,
}

// Status maps a free-text device status onto the normalized vocabulary.
func Status(raw string) domain.DeviceStatus {
	if s, ok := statusVocabulary[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return s
	}
	return domain.StatusUnknown
}

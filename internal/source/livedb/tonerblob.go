package livedb

import (
	"fmt"
	"time"

	"github.com/Adembenali2/cccomputer-sub001/internal/normalize"
	"github.com/elliotchance/phpserialize"
)

// TonerSnapshot is one decoded toner-history entry.
type TonerSnapshot struct {
	ObservedAt time.Time
	K, C, M, Y *int
}

// LatestTonerSnapshot decodes the legacy PHP-serialized toner-history
// blob and returns the entry with the newest embedded timestamp.
//
// The blob is a serialized associative array of
// "YYYY-MM-DD HH:MM:SS" => {"k": int, "c": int, "m": int, "y": int}.
// Anything that does not match this shape is rejected outright rather
// than partially trusted: the column is legacy data written by a system
// we do not control.
func LatestTonerSnapshot(blob []byte) (*TonerSnapshot, error) {
	if len(blob) == 0 {
		return nil, fmt.Errorf("empty toner history blob")
	}

	raw, err := phpserialize.UnmarshalAssociativeArray(blob)
	if err != nil {
		return nil, fmt.Errorf("undecodable toner history: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("toner history has no entries")
	}

	var latest *TonerSnapshot
	for key, value := range raw {
		ts, ok := key.(string)
		if !ok {
			return nil, fmt.Errorf("toner history key is not a timestamp string")
		}
		observedAt, err := normalize.Timestamp(ts)
		if err != nil {
			return nil, fmt.Errorf("toner history key %q is not a timestamp", ts)
		}

		levels, ok := value.(map[interface{}]interface{})
		if !ok {
			return nil, fmt.Errorf("toner history entry %q is not a map", ts)
		}

		snapshot := &TonerSnapshot{ObservedAt: observedAt}
		for name, lv := range levels {
			color, ok := name.(string)
			if !ok {
				return nil, fmt.Errorf("toner history entry %q has a non-string color key", ts)
			}
			level, err := tonerValue(lv)
			if err != nil {
				return nil, fmt.Errorf("toner history entry %q color %q: %w", ts, color, err)
			}
			switch color {
			case "k":
				snapshot.K = level
			case "c":
				snapshot.C = level
			case "m":
				snapshot.M = level
			case "y":
				snapshot.Y = level
			default:
				return nil, fmt.Errorf("toner history entry %q has unknown color %q", ts, color)
			}
		}

		if latest == nil || latest.ObservedAt.Before(snapshot.ObservedAt) {
			latest = snapshot
		}
	}
	return latest, nil
}

// tonerValue coerces a decoded level. Out-of-range percentages become nil
// (unknown) like everywhere else in the pipeline; non-numeric content is
// a structural mismatch.
func tonerValue(v interface{}) (*int, error) {
	var n int
	switch val := v.(type) {
	case int64:
		n = int(val)
	case int:
		n = val
	case float64:
		n = int(val)
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("unexpected type %T", v)
	}
	if n < 0 || n > 100 {
		return nil, nil
	}
	return &n, nil
}

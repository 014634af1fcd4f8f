package source

import (
	"context"

	"github.com/Adembenali2/cccomputer-sub001/internal/domain"
	"github.com/Adembenali2/cccomputer-sub001/internal/normalize"
)

// Mode describes how a source's records are merged into the reading store.
type Mode string

const (
	// ModeAppend sources are event logs: a duplicate (device, timestamp)
	// key is skipped, never updated.
	ModeAppend Mode = "append"
	// ModeLatest sources are current-snapshot feeds: a duplicate key
	// overwrites the mutable fields of the existing row.
	ModeLatest Mode = "latest"
)

// Batch is one bounded pull from a source. Records are sorted ascending by
// (timestamp, device key); Remaining counts candidates the per-run cap
// left unfetched.
type Batch struct {
	Records   []normalize.RawRecord
	Rejects   []Reject
	Remaining int
}

// Reject is a candidate the connector could list but not parse. It is
// tallied as an error by the coordinator without aborting the run.
type Reject struct {
	Ref     string
	Message string
}

// Connector pulls raw telemetry records from one external source.
type Connector interface {
	// Name returns the stable source identifier used for checkpoints,
	// locks, and ledger rows.
	Name() string

	// Mode returns the merge policy for this source's records.
	Mode() Mode

	// Fetch lists candidates newer than the watermark, ascending, capped
	// at limit. An I/O failure (connect, auth, timeout) returns an error
	// and aborts the run; per-record parse trouble is surfaced through
	// the record itself and tallied downstream.
	Fetch(ctx context.Context, since domain.Watermark, limit int) (*Batch, error)
}

// Acker is implemented by claim-style sources (the file drop) that need to
// hear per-candidate outcomes so a candidate is consumed exactly once.
type Acker interface {
	// Ack reports whether all records from the given ref were applied.
	Ack(ctx context.Context, ref string, ok bool) error
}

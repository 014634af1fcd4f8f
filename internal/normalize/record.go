package normalize

import "github.com/Adembenali2/cccomputer-sub001/internal/domain"

// RawRecord is one unnormalized observation as produced by a connector,
// all fields still in the source's own text form. Ref carries provenance
// (remote file name, row number, item index) for diagnostics and for
// claim-style acknowledgement.
type RawRecord struct {
	Ref          string
	Address      string
	Timestamp    string
	CounterBW    string
	CounterColor string
	TonerK       string
	TonerC       string
	TonerM       string
	TonerY       string
	Status       string
}

// Record converts a raw source record into a canonical Reading. Identity
// and observation time are mandatory; numeric fields degrade to null.
func Record(raw RawRecord, source string) (domain.Reading, error) {
	key, err := DeviceKey(raw.Address)
	if err != nil {
		return domain.Reading{}, err
	}
	observedAt, err := Timestamp(raw.Timestamp)
	if err != nil {
		return domain.Reading{}, err
	}
	return domain.Reading{
		DeviceKey:    key,
		ObservedAt:   observedAt,
		CounterBW:    Counter(raw.CounterBW),
		CounterColor: Counter(raw.CounterColor),
		TonerK:       TonerLevel(raw.TonerK),
		TonerC:       TonerLevel(raw.TonerC),
		TonerM:       TonerLevel(raw.TonerM),
		TonerY:       TonerLevel(raw.TonerY),
		Status:       Status(raw.Status),
		Source:       source,
	}, nil
}

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/Adembenali2/cccomputer-sub001/internal/domain"
)

func TestCheckpointGetUnset(t *testing.T) {
	repo := NewCheckpointRepository(newTestDB(t))

	wm, err := repo.Get(context.Background(), domain.SourceJSONFeed)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if !wm.IsZero() {
		t.Errorf("unset checkpoint = %+v, want zero watermark", wm)
	}
}

func TestCheckpointAdvanceMonotonic(t *testing.T) {
	repo := NewCheckpointRepository(newTestDB(t))
	ctx := context.Background()
	t1 := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	forward := domain.Watermark{Timestamp: t1, DeviceKey: "BBBBBBBBBBBB"}
	if err := repo.Advance(ctx, domain.SourceJSONFeed, forward); err != nil {
		t.Fatalf("Advance() error: %v", err)
	}

	wm, err := repo.Get(ctx, domain.SourceJSONFeed)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if !wm.Timestamp.Equal(t1) || wm.DeviceKey != "BBBBBBBBBBBB" {
		t.Fatalf("checkpoint = %+v, want %+v", wm, forward)
	}

	// A backwards move must be a silent no-op.
	backward := domain.Watermark{Timestamp: t1.Add(-time.Hour), DeviceKey: "FFFFFFFFFFFF"}
	if err := repo.Advance(ctx, domain.SourceJSONFeed, backward); err != nil {
		t.Fatalf("Advance() backwards error: %v", err)
	}
	wm, _ = repo.Get(ctx, domain.SourceJSONFeed)
	if !wm.Timestamp.Equal(t1) || wm.DeviceKey != "BBBBBBBBBBBB" {
		t.Errorf("backwards advance moved the cursor: %+v", wm)
	}

	// Same timestamp, larger key: the tie-break makes it a real advance.
	tie := domain.Watermark{Timestamp: t1, DeviceKey: "CCCCCCCCCCCC"}
	if err := repo.Advance(ctx, domain.SourceJSONFeed, tie); err != nil {
		t.Fatalf("Advance() tie-break error: %v", err)
	}
	wm, _ = repo.Get(ctx, domain.SourceJSONFeed)
	if wm.DeviceKey != "CCCCCCCCCCCC" {
		t.Errorf("tie-break advance not applied: %+v", wm)
	}
}

func TestCheckpointsIndependentPerSource(t *testing.T) {
	repo := NewCheckpointRepository(newTestDB(t))
	ctx := context.Background()
	t1 := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	if err := repo.Advance(ctx, domain.SourceLiveDBLatest, domain.Watermark{Timestamp: t1, DeviceKey: "AAAAAAAAAAAA"}); err != nil {
		t.Fatalf("Advance() error: %v", err)
	}

	other, err := repo.Get(ctx, domain.SourceLiveDBBackfill)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if !other.IsZero() {
		t.Errorf("backfill checkpoint moved by latest advance: %+v", other)
	}
}

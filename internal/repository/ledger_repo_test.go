package repository

import (
	"context"
	"testing"
	"time"

	"github.com/Adembenali2/cccomputer-sub001/internal/domain"
)

func TestLedgerLatestNeverRun(t *testing.T) {
	repo := NewLedgerRepository(newTestDB(t))

	record, err := repo.Latest(context.Background(), domain.SourceJSONFeed)
	if err != nil {
		t.Fatalf("Latest() error: %v", err)
	}
	if record != nil {
		t.Errorf("never-run source returned %+v, want nil", record)
	}
}

func TestLedgerAppendAndHistory(t *testing.T) {
	repo := NewLedgerRepository(newTestDB(t))
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		detail := domain.RunDetail{}
		detail.Add("item[0]", "inserted", "")
		record := &domain.RunRecord{
			RunID:          "run-" + string(rune('a'+i)),
			Source:         domain.SourceJSONFeed,
			RanAt:          base.Add(time.Duration(i) * time.Hour),
			ProcessedCount: i + 1,
			Success:        true,
			Detail:         detail,
		}
		if err := repo.Append(ctx, record); err != nil {
			t.Fatalf("Append() error: %v", err)
		}
	}

	latest, err := repo.Latest(ctx, domain.SourceJSONFeed)
	if err != nil {
		t.Fatalf("Latest() error: %v", err)
	}
	if latest == nil || latest.ProcessedCount != 3 {
		t.Fatalf("Latest() = %+v, want the newest record", latest)
	}
	if len(latest.Detail.Entries) != 1 {
		t.Errorf("detail not persisted: %+v", latest.Detail)
	}

	history, err := repo.History(ctx, domain.SourceJSONFeed, 2)
	if err != nil {
		t.Fatalf("History() error: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("len(history) = %d, want 2", len(history))
	}
	if !history[0].RanAt.After(history[1].RanAt) {
		t.Error("History should order newest first")
	}

	other, err := repo.History(ctx, domain.SourceFileDrop, 10)
	if err != nil {
		t.Fatalf("History() error: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("ledger rows leaked across sources: %+v", other)
	}
}

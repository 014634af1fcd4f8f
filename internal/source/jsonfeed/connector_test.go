package jsonfeed

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Adembenali2/cccomputer-sub001/internal/config"
	"github.com/Adembenali2/cccomputer-sub001/internal/domain"
)

const feedBody = `{
	"items": [
		{"mac": "AA:AA:AA:AA:AA:AA", "timestamp": "2024-03-01 09:00:00", "counter_bw": 90, "status": "online"},
		{"mac": "CC:CC:CC:CC:CC:CC", "timestamp": "2024-03-01 11:00:00", "counter_bw": "300", "status": "online"},
		{"mac": "BB:BB:BB:BB:BB:BB", "timestamp": "2024-03-01 10:30:00", "counter_bw": 200, "status": "offline"}
	]
}`

func newTestConnector(t *testing.T, handler http.HandlerFunc) *Connector {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(config.JSONFeedConfig{
		URL:     srv.URL,
		Token:   "secret",
		Timeout: 5 * time.Second,
	})
}

func TestFetchFiltersAndSorts(t *testing.T) {
	conn := newTestConnector(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, feedBody)
	})

	// The 09:00 item is at or behind the watermark and must be dropped.
	since := domain.Watermark{
		Timestamp: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		DeviceKey: "AAAAAAAAAAAA",
	}
	batch, err := conn.Fetch(context.Background(), since, 0)
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}

	if len(batch.Records) != 2 {
		t.Fatalf("len(Records) = %d, want 2", len(batch.Records))
	}
	if batch.Records[0].Address != "BB:BB:BB:BB:BB:BB" {
		t.Errorf("Records[0] = %q, want the 10:30 item first", batch.Records[0].Address)
	}
	if batch.Records[1].Address != "CC:CC:CC:CC:CC:CC" {
		t.Errorf("Records[1] = %q, want the 11:00 item last", batch.Records[1].Address)
	}
	if batch.Records[1].CounterBW != "300" {
		t.Errorf("CounterBW = %q, string-typed counters must pass through", batch.Records[1].CounterBW)
	}
	if batch.Remaining != 0 {
		t.Errorf("Remaining = %d, want 0 without a cap", batch.Remaining)
	}
}

func TestFetchCapsBatch(t *testing.T) {
	conn := newTestConnector(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, feedBody)
	})

	batch, err := conn.Fetch(context.Background(), domain.Watermark{}, 2)
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	if len(batch.Records) != 2 {
		t.Fatalf("len(Records) = %d, want the cap 2", len(batch.Records))
	}
	if batch.Remaining != 1 {
		t.Errorf("Remaining = %d, want 1", batch.Remaining)
	}
	// The cap keeps the oldest candidates; the cursor must not jump.
	if batch.Records[0].Timestamp != "2024-03-01 09:00:00" {
		t.Errorf("Records[0].Timestamp = %q, want the oldest first", batch.Records[0].Timestamp)
	}
}

func TestFetchPassesMalformedItemsThrough(t *testing.T) {
	conn := newTestConnector(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"items": [{"mac": "junk", "timestamp": "2024-03-01 10:00:00"}]}`)
	})

	batch, err := conn.Fetch(context.Background(), domain.Watermark{}, 0)
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	if len(batch.Records) != 1 {
		t.Fatalf("len(Records) = %d, unfilterable items must reach the normalizer", len(batch.Records))
	}
}

func TestFetchServerError(t *testing.T) {
	conn := newTestConnector(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	if _, err := conn.Fetch(context.Background(), domain.Watermark{}, 0); err == nil {
		t.Fatal("Fetch() should fail on a 5xx response")
	}
}

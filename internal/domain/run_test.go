package domain

import (
	"fmt"
	"testing"
)

func TestRunDetailAddCapsEntries(t *testing.T) {
	var d RunDetail
	for i := 0; i < MaxDetailEntries+5; i++ {
		d.Add(fmt.Sprintf("row[%d]", i), "inserted", "")
	}

	if len(d.Entries) != MaxDetailEntries {
		t.Errorf("len(Entries) = %d, want %d", len(d.Entries), MaxDetailEntries)
	}
	if d.Truncated != 5 {
		t.Errorf("Truncated = %d, want 5", d.Truncated)
	}
	if d.Entries[0].Ref != "row[0]" {
		t.Errorf("first entry = %q, want row[0]", d.Entries[0].Ref)
	}
}

func TestRunDetailScanRoundTrip(t *testing.T) {
	d := RunDetail{
		Remaining: 3,
		Fatal:     "fetch: connect refused",
	}
	d.Add("file.csv", "error", "malformed csv")

	value, err := d.Value()
	if err != nil {
		t.Fatalf("Value() error: %v", err)
	}

	var got RunDetail
	if err := got.Scan(value); err != nil {
		t.Fatalf("Scan() error: %v", err)
	}

	if got.Remaining != 3 || got.Fatal != d.Fatal {
		t.Errorf("round trip lost fields: %+v", got)
	}
	if len(got.Entries) != 1 || got.Entries[0].Message != "malformed csv" {
		t.Errorf("round trip lost entries: %+v", got.Entries)
	}
}

func TestRunDetailScanNil(t *testing.T) {
	d := RunDetail{Fatal: "stale"}
	if err := d.Scan(nil); err != nil {
		t.Fatalf("Scan(nil) error: %v", err)
	}
	if d.Fatal != "" || len(d.Entries) != 0 {
		t.Errorf("Scan(nil) should reset the detail, got %+v", d)
	}
}

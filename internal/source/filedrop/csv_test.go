package filedrop

import (
	"testing"
	"time"
)

func TestFileNamePattern(t *testing.T) {
	pattern := fileNamePattern("CCC")

	testCases := []struct {
		name  string
		input string
		want  bool
	}{
		{name: "canonical", input: "CCC-0af3_20240301_103000.csv", want: true},
		{name: "uppercase id", input: "CCC-0AF3_20240301_103000.csv", want: true},
		{name: "wrong prefix", input: "XXX-0af3_20240301_103000.csv", want: false},
		{name: "missing timestamp", input: "CCC-0af3.csv", want: false},
		{name: "wrong extension", input: "CCC-0af3_20240301_103000.txt", want: false},
		{name: "trailing junk", input: "CCC-0af3_20240301_103000.csv.bak", want: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := pattern.MatchString(tc.input); got != tc.want {
				t.Errorf("MatchString(%q) = %v, want %v", tc.input, got, tc.want)
			}
		})
	}
}

func TestFileTimestamp(t *testing.T) {
	pattern := fileNamePattern("CCC")

	ts, ok := fileTimestamp(pattern, "CCC-0af3_20240301_103000.csv")
	if !ok {
		t.Fatal("fileTimestamp() should extract the embedded time")
	}
	want := time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)
	if !ts.Equal(want) {
		t.Errorf("fileTimestamp() = %v, want %v", ts, want)
	}

	if _, ok := fileTimestamp(pattern, "unrelated.csv"); ok {
		t.Error("fileTimestamp() should fail on a non-matching name")
	}
}

func TestParseCSV(t *testing.T) {
	data := []byte("adresse_mac;horodatage;total_nb;total_couleur;toner_k;toner_c;toner_m;toner_y;etat\n" +
		"AA:AA:AA:AA:AA:AA;2024-03-01 10:00:00;100;10;80;70;60;50;en ligne\n" +
		"BB:BB:BB:BB:BB:BB;2024-03-01 10:05:00;200;20;;;;;hors ligne\n")

	records, err := parseCSV(data, "CCC-0af3_20240301_103000.csv", time.Time{})
	if err != nil {
		t.Fatalf("parseCSV() error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("len(records) = %d, want 2", len(records))
	}

	first := records[0]
	if first.Address != "AA:AA:AA:AA:AA:AA" {
		t.Errorf("Address = %q", first.Address)
	}
	if first.Timestamp != "2024-03-01 10:00:00" {
		t.Errorf("Timestamp = %q", first.Timestamp)
	}
	if first.CounterBW != "100" || first.CounterColor != "10" {
		t.Errorf("counters = %q/%q", first.CounterBW, first.CounterColor)
	}
	if first.TonerK != "80" || first.Status != "en ligne" {
		t.Errorf("toner/status = %q/%q", first.TonerK, first.Status)
	}
	if records[1].TonerK != "" {
		t.Errorf("empty cells should stay empty, got %q", records[1].TonerK)
	}
}

func TestParseCSVFallbackTimestamp(t *testing.T) {
	data := []byte("mac;total_nb\nAA:AA:AA:AA:AA:AA;100\n")
	fallback := time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)

	records, err := parseCSV(data, "ref", fallback)
	if err != nil {
		t.Fatalf("parseCSV() error: %v", err)
	}
	if records[0].Timestamp != "2024-03-01 10:30:00" {
		t.Errorf("Timestamp = %q, want the file-name fallback", records[0].Timestamp)
	}
}

func TestParseCSVErrors(t *testing.T) {
	testCases := []struct {
		name string
		data string
	}{
		{name: "empty file", data: ""},
		{name: "header only", data: "mac;date\n"},
		{name: "missing mac column", data: "date;total_nb\n2024-03-01 10:00:00;100\n"},
		{name: "broken quoting", data: "mac;date\n\"AA:AA;2024\n"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := parseCSV([]byte(tc.data), "ref", time.Time{}); err == nil {
				t.Error("parseCSV() should fail")
			}
		})
	}
}

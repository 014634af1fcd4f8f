package normalize

import (
	"errors"
	"testing"
	"time"
)

func TestDeviceKey(t *testing.T) {
	testCases := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "colon separated", input: "00:1A:2B:3C:4D:5E", want: "001A2B3C4D5E"},
		{name: "dash separated", input: "00-1a-2b-3c-4d-5e", want: "001A2B3C4D5E"},
		{name: "dot separated", input: "001a.2b3c.4d5e", want: "001A2B3C4D5E"},
		{name: "bare lowercase", input: "001a2b3c4d5e", want: "001A2B3C4D5E"},
		{name: "surrounding whitespace", input: "  001A2B3C4D5E  ", want: "001A2B3C4D5E"},
		{name: "too short", input: "00:1A:2B", wantErr: true},
		{name: "too long", input: "001A2B3C4D5EFF", wantErr: true},
		{name: "empty", input: "", wantErr: true},
		{name: "non hex letters stripped leaves too few", input: "zz:1A:2B:3C:4D:5E", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DeviceKey(tc.input)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("DeviceKey(%q) = %q, want error", tc.input, got)
				}
				if !errors.Is(err, ErrInvalidDeviceKey) {
					t.Errorf("error = %v, want ErrInvalidDeviceKey", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("DeviceKey(%q) unexpected error: %v", tc.input, err)
			}
			if got != tc.want {
				t.Errorf("DeviceKey(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestTimestamp(t *testing.T) {
	testCases := []struct {
		name    string
		input   string
		want    time.Time
		wantErr bool
	}{
		{
			name:  "mysql datetime",
			input: "2024-03-01 10:30:00",
			want:  time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC),
		},
		{
			name:  "iso with zone",
			input: "2024-03-01T10:30:00Z",
			want:  time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC),
		},
		{
			name:  "day first",
			input: "01/02/2024 10:30:00",
			want:  time.Date(2024, 2, 1, 10, 30, 0, 0, time.UTC),
		},
		{
			name:  "compact file name form",
			input: "20240301_103000",
			want:  time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC),
		},
		{
			name:  "date only",
			input: "2024-03-01",
			want:  time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		},
		{name: "empty", input: "", wantErr: true},
		{name: "garbage", input: "yesterday", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Timestamp(tc.input)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("Timestamp(%q) = %v, want error", tc.input, got)
				}
				if !errors.Is(err, ErrInvalidTimestamp) {
					t.Errorf("error = %v, want ErrInvalidTimestamp", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Timestamp(%q) unexpected error: %v", tc.input, err)
			}
			if !got.Equal(tc.want) {
				t.Errorf("Timestamp(%q) = %v, want %v", tc.input, got, tc.want)
			}
		})
	}
}

func TestCounter(t *testing.T) {
	testCases := []struct {
		name  string
		input string
		want  *int64
	}{
		{name: "plain", input: "12345", want: int64Ptr(12345)},
		{name: "zero", input: "0", want: int64Ptr(0)},
		{name: "padded", input: " 42 ", want: int64Ptr(42)},
		{name: "negative", input: "-4", want: nil},
		{name: "non numeric", input: "n/a", want: nil},
		{name: "empty", input: "", want: nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := Counter(tc.input)
			if !int64PtrEqual(got, tc.want) {
				t.Errorf("Counter(%q) = %v, want %v", tc.input, fmtInt64Ptr(got), fmtInt64Ptr(tc.want))
			}
		})
	}
}

func TestTonerLevel(t *testing.T) {
	testCases := []struct {
		name  string
		input string
		want  *int
	}{
		{name: "plain", input: "85", want: intPtr(85)},
		{name: "percent suffix", input: "85%", want: intPtr(85)},
		{name: "padded percent", input: " 85 % ", want: intPtr(85)},
		{name: "boundary low", input: "0", want: intPtr(0)},
		{name: "boundary high", input: "100", want: intPtr(100)},
		{name: "over range", input: "120", want: nil},
		{name: "negative", input: "-1", want: nil},
		{name: "non numeric", input: "low", want: nil},
		{name: "empty", input: "", want: nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := TonerLevel(tc.input)
			if !intPtrEqual(got, tc.want) {
				t.Errorf("TonerLevel(%q) = %v, want %v", tc.input, fmtIntPtr(got), fmtIntPtr(tc.want))
			}
		})
	}
}

func TestStatus(t *testing.T) {
	testCases := []struct {
		input string
		want  string
	}{
		{input: "online", want: "online"},
		{input: "Ready", want: "online"},
		{input: "EN LIGNE", want: "online"},
		{input: "offline", want: "offline"},
		{input: "hors ligne", want: "offline"},
		{input: "injoignable", want: "offline"},
		{input: "sleeping", want: "unknown"},
		{input: "", want: "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			if got := Status(tc.input); string(got) != tc.want {
				t.Errorf("Status(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestRecord(t *testing.T) {
	raw := RawRecord{
		Ref:          "item[0]",
		Address:      "00:1A:2B:3C:4D:5E",
		Timestamp:    "2024-03-01 10:30:00",
		CounterBW:    "1000",
		CounterColor: "250",
		TonerK:       "80%",
		TonerC:       "bad",
		Status:       "en ligne",
	}

	reading, err := Record(raw, "jsonfeed")
	if err != nil {
		t.Fatalf("Record() unexpected error: %v", err)
	}

	if reading.DeviceKey != "001A2B3C4D5E" {
		t.Errorf("DeviceKey = %q, want 001A2B3C4D5E", reading.DeviceKey)
	}
	want := time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)
	if !reading.ObservedAt.Equal(want) {
		t.Errorf("ObservedAt = %v, want %v", reading.ObservedAt, want)
	}
	if reading.CounterBW == nil || *reading.CounterBW != 1000 {
		t.Errorf("CounterBW = %v, want 1000", fmtInt64Ptr(reading.CounterBW))
	}
	if reading.TonerK == nil || *reading.TonerK != 80 {
		t.Errorf("TonerK = %v, want 80", fmtIntPtr(reading.TonerK))
	}
	if reading.TonerC != nil {
		t.Errorf("TonerC = %v, want nil for unparsable input", fmtIntPtr(reading.TonerC))
	}
	if string(reading.Status) != "online" {
		t.Errorf("Status = %q, want online", reading.Status)
	}
	if reading.Source != "jsonfeed" {
		t.Errorf("Source = %q, want jsonfeed", reading.Source)
	}
}

func TestRecordRejections(t *testing.T) {
	testCases := []struct {
		name string
		raw  RawRecord
		want error
	}{
		{
			name: "bad address",
			raw:  RawRecord{Address: "not-a-mac", Timestamp: "2024-03-01 10:30:00"},
			want: ErrInvalidDeviceKey,
		},
		{
			name: "bad timestamp",
			raw:  RawRecord{Address: "001A2B3C4D5E", Timestamp: "whenever"},
			want: ErrInvalidTimestamp,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Record(tc.raw, "filedrop")
			if !errors.Is(err, tc.want) {
				t.Errorf("Record() error = %v, want %v", err, tc.want)
			}
		})
	}
}

func int64Ptr(n int64) *int64 { return &n }
func intPtr(n int) *int       { return &n }

func int64PtrEqual(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func fmtInt64Ptr(p *int64) interface{} {
	if p == nil {
		return nil
	}
	return *p
}

func fmtIntPtr(p *int) interface{} {
	if p == nil {
		return nil
	}
	return *p
}

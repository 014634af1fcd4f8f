package filedrop

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/Adembenali2/cccomputer-sub001/internal/normalize"
)

// Device exports name their columns inconsistently across firmware
// versions; headers are matched case-insensitively against these aliases.
var columnAliases = map[string]string{
	"mac":           "mac",
	"mac_address":   "mac",
	"adresse_mac":   "mac",
	"date":          "date",
	"timestamp":     "date",
	"horodatage":    "date",
	"total_bw":      "counter_bw",
	"total_nb":      "counter_bw",
	"counter_bw":    "counter_bw",
	"total_color":   "counter_color",
	"total_couleur": "counter_color",
	"counter_color": "counter_color",
	"toner_k":       "toner_k",
	"toner_c":       "toner_c",
	"toner_m":       "toner_m",
	"toner_y":       "toner_y",
	"status":        "status",
	"etat":          "status",
}

// fileNamePattern matches PREFIX-<hex-id>_<yyyymmdd_hhmmss>.csv; the
// prefix is injected when the connector is built.
func fileNamePattern(prefix string) *regexp.Regexp {
	return regexp.MustCompile(`^` + regexp.QuoteMeta(prefix) + `-([0-9a-fA-F]+)_(\d{8}_\d{6})\.csv$`)
}

// fileTimestamp extracts the snapshot time embedded in a drop file name.
func fileTimestamp(pattern *regexp.Regexp, name string) (time.Time, bool) {
	m := pattern.FindStringSubmatch(name)
	if m == nil {
		return time.Time{}, false
	}
	t, err := time.Parse("20060102_150405", m[2])
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

// parseCSV converts one drop file into raw records. The files are
// semicolon-delimited with a header row; the embedded file timestamp is
// the fallback observation time when the date column is absent.
func parseCSV(data []byte, ref string, fallback time.Time) ([]normalize.RawRecord, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = ';'
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("malformed csv: %w", err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("csv has no data rows")
	}

	columns := make(map[string]int)
	for i, h := range rows[0] {
		if canonical, ok := columnAliases[strings.ToLower(strings.TrimSpace(h))]; ok {
			columns[canonical] = i
		}
	}
	if _, ok := columns["mac"]; !ok {
		return nil, fmt.Errorf("csv missing mac column")
	}

	cell := func(row []string, name string) string {
		idx, ok := columns[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return row[idx]
	}

	records := make([]normalize.RawRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		ts := cell(row, "date")
		if strings.TrimSpace(ts) == "" && !fallback.IsZero() {
			ts = fallback.Format("2006-01-02 15:04:05")
		}
		records = append(records, normalize.RawRecord{
			Ref:          ref,
			Address:      cell(row, "mac"),
			Timestamp:    ts,
			CounterBW:    cell(row, "counter_bw"),
			CounterColor: cell(row, "counter_color"),
			TonerK:       cell(row, "toner_k"),
			TonerC:       cell(row, "toner_c"),
			TonerM:       cell(row, "toner_m"),
			TonerY:       cell(row, "toner_y"),
			Status:       cell(row, "status"),
		})
	}
	return records, nil
}

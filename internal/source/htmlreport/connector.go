package htmlreport

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/Adembenali2/cccomputer-sub001/internal/config"
	"github.com/Adembenali2/cccomputer-sub001/internal/domain"
	"github.com/Adembenali2/cccomputer-sub001/internal/normalize"
	"github.com/Adembenali2/cccomputer-sub001/internal/source"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
)

// Column layout of the legacy supervision report table. The report has a
// single table whose header row is skipped.
const (
	colMac = iota
	colDate
	colCounterBW
	colCounterColor
	colTonerK
	colTonerC
	colTonerM
	colTonerY
	colStatus
	columnCount
)

var firstInteger = regexp.MustCompile(`\d+`)

// Connector scrapes the legacy HTML supervision report.
type Connector struct {
	cfg    config.HTMLReportConfig
	client *resty.Client
}

// New creates the HTML report connector.
func New(cfg config.HTMLReportConfig) *Connector {
	return &Connector{
		cfg: cfg,
		client: resty.New().
			SetTimeout(cfg.Timeout).
			SetRetryCount(2),
	}
}

// Name returns the source identifier.
func (c *Connector) Name() string {
	return domain.SourceHTMLReport
}

// Mode returns the merge policy: report rows are append-only events.
func (c *Connector) Mode() source.Mode {
	return source.ModeAppend
}

// Fetch downloads the report page, parses the sole table row by row, and
// applies the watermark filter, ascending sort, and batch cap.
func (c *Connector) Fetch(ctx context.Context, since domain.Watermark, limit int) (*source.Batch, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		Get(c.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch html report: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("html report returned status %d", resp.StatusCode())
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(resp.String()))
	if err != nil {
		return nil, fmt.Errorf("failed to parse html report: %w", err)
	}

	table := doc.Find("table").First()
	if table.Length() == 0 {
		return nil, fmt.Errorf("html report has no table")
	}

	type candidate struct {
		record normalize.RawRecord
		wm     domain.Watermark
	}
	var candidates []candidate

	batch := &source.Batch{}
	table.Find("tr").Each(func(i int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() == 0 {
			return // header row
		}
		ref := fmt.Sprintf("row[%d]", i)
		if cells.Length() < columnCount {
			batch.Rejects = append(batch.Rejects, source.Reject{
				Ref:     ref,
				Message: fmt.Sprintf("expected %d columns, got %d", columnCount, cells.Length()),
			})
			return
		}

		cell := func(idx int) string {
			return strings.TrimSpace(cells.Eq(idx).Text())
		}
		rec := normalize.RawRecord{
			Ref:          ref,
			Address:      cell(colMac),
			Timestamp:    cell(colDate),
			CounterBW:    cell(colCounterBW),
			CounterColor: cell(colCounterColor),
			// Toner values sit inside nested gauge markup; take the
			// first integer found in the cell.
			TonerK: extractInteger(cells.Eq(colTonerK)),
			TonerC: extractInteger(cells.Eq(colTonerC)),
			TonerM: extractInteger(cells.Eq(colTonerM)),
			TonerY: extractInteger(cells.Eq(colTonerY)),
			Status: cell(colStatus),
		}

		key, keyErr := normalize.DeviceKey(rec.Address)
		ts, tsErr := normalize.Timestamp(rec.Timestamp)
		if keyErr != nil || tsErr != nil {
			candidates = append(candidates, candidate{record: rec})
			return
		}
		if since.Contains(ts, key) {
			return
		}
		candidates = append(candidates, candidate{
			record: rec,
			wm:     domain.Watermark{Timestamp: ts, DeviceKey: key},
		})
	})

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].wm.Less(candidates[j].wm)
	})

	if limit > 0 && len(candidates) > limit {
		batch.Remaining = len(candidates) - limit
		candidates = candidates[:limit]
	}
	for _, cand := range candidates {
		batch.Records = append(batch.Records, cand.record)
	}
	return batch, nil
}

// extractInteger pulls the first integer out of a cell, tolerating gauge
// divs, percent signs, and whitespace around the value.
func extractInteger(sel *goquery.Selection) string {
	return firstInteger.FindString(sel.Text())
}

package jsonfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/Adembenali2/cccomputer-sub001/internal/config"
	"github.com/Adembenali2/cccomputer-sub001/internal/domain"
	"github.com/Adembenali2/cccomputer-sub001/internal/normalize"
	"github.com/Adembenali2/cccomputer-sub001/internal/source"
	"github.com/go-resty/resty/v2"
)

// feedItem mirrors one entry of the export's items array. Counters come
// through as numbers or strings depending on the exporting firmware, so
// everything numeric is decoded leniently.
type feedItem struct {
	Mac          string      `json:"mac"`
	Timestamp    string      `json:"timestamp"`
	CounterBW    json.Number `json:"counter_bw"`
	CounterColor json.Number `json:"counter_color"`
	TonerK       json.Number `json:"toner_k"`
	TonerC       json.Number `json:"toner_c"`
	TonerM       json.Number `json:"toner_m"`
	TonerY       json.Number `json:"toner_y"`
	Status       string      `json:"status"`
}

type feedDocument struct {
	Items []feedItem `json:"items"`
}

// Connector pulls the JSON export endpoint. The endpoint returns the full
// unpaginated set on every call; the watermark filter and the batch cap
// keep runs bounded.
type Connector struct {
	cfg    config.JSONFeedConfig
	client *resty.Client
}

// New creates the JSON feed connector.
func New(cfg config.JSONFeedConfig) *Connector {
	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetRetryCount(2)
	if cfg.Token != "" {
		client.SetAuthToken(cfg.Token)
	}
	return &Connector{cfg: cfg, client: client}
}

// Name returns the source identifier.
func (c *Connector) Name() string {
	return domain.SourceJSONFeed
}

// Mode returns the merge policy: the export is an append-only event log.
func (c *Connector) Mode() source.Mode {
	return source.ModeAppend
}

// Fetch downloads the export, filters to items past the watermark, sorts
// them ascending, and truncates to the batch cap. Items the cap excludes
// are counted in Remaining but not fetched again this run.
func (c *Connector) Fetch(ctx context.Context, since domain.Watermark, limit int) (*source.Batch, error) {
	var doc feedDocument
	resp, err := c.client.R().
		SetContext(ctx).
		SetResult(&doc).
		Get(c.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch json feed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("json feed returned status %d", resp.StatusCode())
	}

	type candidate struct {
		record normalize.RawRecord
		wm     domain.Watermark
	}

	batch := &source.Batch{}
	candidates := make([]candidate, 0, len(doc.Items))
	for i, item := range doc.Items {
		ref := fmt.Sprintf("item[%d]", i)
		rec := normalize.RawRecord{
			Ref:          ref,
			Address:      item.Mac,
			Timestamp:    item.Timestamp,
			CounterBW:    item.CounterBW.String(),
			CounterColor: item.CounterColor.String(),
			TonerK:       item.TonerK.String(),
			TonerC:       item.TonerC.String(),
			TonerM:       item.TonerM.String(),
			TonerY:       item.TonerY.String(),
			Status:       item.Status,
		}

		key, keyErr := normalize.DeviceKey(item.Mac)
		ts, tsErr := normalize.Timestamp(item.Timestamp)
		if keyErr != nil || tsErr != nil {
			// Unfilterable item: hand it through so the normalizer
			// rejects and tallies it.
			candidates = append(candidates, candidate{record: rec})
			continue
		}
		if since.Contains(ts, key) {
			continue
		}
		candidates = append(candidates, candidate{
			record: rec,
			wm:     domain.Watermark{Timestamp: ts, DeviceKey: key},
		})
	}

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

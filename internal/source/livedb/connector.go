package livedb

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/Adembenali2/cccomputer-sub001/internal/domain"
	"github.com/Adembenali2/cccomputer-sub001/internal/logger"
	"github.com/Adembenali2/cccomputer-sub001/internal/normalize"
	"github.com/Adembenali2/cccomputer-sub001/internal/source"
	"gorm.io/gorm"
)

const canonicalTime = "2006-01-02 15:04:05"

// backfill queries overscan past the caller's limit to leave room for
// rows the normalization pass rejects or the precise watermark filter
// drops at the boundary.
const backfillOverscan = 4

// counterRow is one row of the legacy supervisor's counter table.
type counterRow struct {
	Mac        string         `gorm:"column:mac"`
	Date       time.Time      `gorm:"column:date"`
	TotalBW    sql.NullInt64  `gorm:"column:total_nb"`
	TotalColor sql.NullInt64  `gorm:"column:total_couleur"`
	Status     sql.NullString `gorm:"column:etat"`
}

// directoryRow is one row of the legacy device directory.
type directoryRow struct {
	Mac    string         `gorm:"column:mac"`
	Model  sql.NullString `gorm:"column:modele"`
	Serial sql.NullString `gorm:"column:serie"`
	IP     sql.NullString `gorm:"column:ip"`
}

// Connector reads the legacy fleet supervisor's database. It registers as
// two logical sources: latest (the newest snapshot per device, re-derived
// each run) and backfill (a capped ascending replay of full history).
// Each keeps its own checkpoint, lock, and ledger.
type Connector struct {
	db       *gorm.DB
	name     string
	backfill bool
	log      *logger.Logger
}

// NewLatest creates the latest-snapshot-per-device connector.
func NewLatest(db *gorm.DB, log *logger.Logger) *Connector {
	return &Connector{db: db, name: domain.SourceLiveDBLatest, log: log}
}

// NewBackfill creates the historical replay connector.
func NewBackfill(db *gorm.DB, log *logger.Logger) *Connector {
	return &Connector{db: db, name: domain.SourceLiveDBBackfill, backfill: true, log: log}
}

// Name returns the logical source identifier.
func (c *Connector) Name() string {
	return c.name
}

// Mode returns the merge policy. The latest feed is a current-snapshot
// view and overwrites on key collision; backfill appends history.
func (c *Connector) Mode() source.Mode {
	if c.backfill {
		return source.ModeAppend
	}
	return source.ModeLatest
}

// Fetch queries the supervisor database for candidate rows past the
// watermark, ascending, capped at limit.
func (c *Connector) Fetch(ctx context.Context, since domain.Watermark, limit int) (*source.Batch, error) {
	var rows []counterRow
	var err error
	if c.backfill {
		rows, err = c.fetchBackfill(ctx, since, limit)
	} else {
		rows, err = c.fetchLatest(ctx)
	}
	if err != nil {
		return nil, err
	}

	type candidate struct {
		row counterRow
		wm  domain.Watermark
	}

	batch := &source.Batch{}
	candidates := make([]candidate, 0, len(rows))
	for _, row := range rows {
		key, err := normalize.DeviceKey(row.Mac)
		if err != nil {
			batch.Rejects = append(batch.Rejects, source.Reject{
				Ref:     fmt.Sprintf("mac[%s]", row.Mac),
				Message: err.Error(),
			})
			continue
		}
		ts := row.Date.UTC().Truncate(time.Second)
		if since.Contains(ts, key) {
			continue
		}
		candidates = append(candidates, candidate{
			row: row,
			wm:  domain.Watermark{Timestamp: ts, DeviceKey: key},
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].wm.Less(candidates[j].wm)
	})
	if limit > 0 && len(candidates) > limit {
		batch.Remaining = len(candidates) - limit
		candidates = candidates[:limit]
	}

	macs := make([]string, 0, len(candidates))
	for _, cand := range candidates {
		macs = append(macs, cand.row.Mac)
	}
	toner := c.tonerByMac(ctx, macs)

	for _, cand := range candidates {
		rec := normalize.RawRecord{
			Ref:       fmt.Sprintf("%s@%s", cand.row.Mac, cand.wm.Timestamp.Format(canonicalTime)),
			Address:   cand.row.Mac,
			Timestamp: cand.wm.Timestamp.Format(canonicalTime),
		}
		if cand.row.TotalBW.Valid {
			rec.CounterBW = strconv.FormatInt(cand.row.TotalBW.Int64, 10)
		}
		if cand.row.TotalColor.Valid {
			rec.CounterColor = strconv.FormatInt(cand.row.TotalColor.Int64, 10)
		}
		if cand.row.Status.Valid {
			rec.Status = cand.row.Status.String
		}
		if snap, ok := toner[cand.row.Mac]; ok {
			rec.TonerK = formatLevel(snap.K)
			rec.TonerC = formatLevel(snap.C)
			rec.TonerM = formatLevel(snap.M)
			rec.TonerY = formatLevel(snap.Y)
		}
		batch.Records = append(batch.Records, rec)
	}
	return batch, nil
}

// fetchLatest derives the newest counter row per device. The full set is
// re-evaluated each run; the watermark filter above skips devices whose
// newest observation was already pushed.
func (c *Connector) fetchLatest(ctx context.Context) ([]counterRow, error) {
	var rows []counterRow
	err := c.db.WithContext(ctx).Raw(`
		SELECT c.mac, c.date, c.total_nb, c.total_couleur, c.etat
		FROM compteurs c
		JOIN (SELECT mac, MAX(date) AS max_date FROM compteurs GROUP BY mac) m
		  ON c.mac = m.mac AND c.date = m.max_date`).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query latest counters: %w", err)
	}
	return rows, nil
}

// fetchBackfill replays history strictly past the watermark. The SQL
// tie-break normalizes the stored address the way the record normalizer
// does, so rows inside the watermark second are not rescanned on every
// run; a second holding more rows than the scan window would otherwise
// stall the replay there for good. The precise filter in Fetch still
// applies after normalization.
func (c *Connector) fetchBackfill(ctx context.Context, since domain.Watermark, limit int) ([]counterRow, error) {
	scan := limit * backfillOverscan
	if scan <= 0 {
		scan = 200
	}
	var rows []counterRow
	err := c.db.WithContext(ctx).Raw(`
		SELECT mac, date, total_nb, total_couleur, etat
		FROM compteurs
		WHERE date > ?
		   OR (date = ? AND REPLACE(REPLACE(UPPER(mac), ':', ''), '-', '') > ?)
		ORDER BY date ASC, mac ASC
		LIMIT ?`, since.Timestamp, since.Timestamp, since.DeviceKey, scan).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query counter history: %w", err)
	}
	return rows, nil
}

// tonerHistoryRow is one row of the serialized toner-history table.
type tonerHistoryRow struct {
	Mac  string `gorm:"column:mac"`
	Data []byte `gorm:"column:data"`
}

// tonerByMac reconstructs last-known toner levels for the candidate
// devices from the serialized history column. A blob that fails the
// structural checks only loses its toner enrichment, never the reading.
func (c *Connector) tonerByMac(ctx context.Context, macs []string) map[string]*TonerSnapshot {
	if len(macs) == 0 {
		return nil
	}
	var rows []tonerHistoryRow
	err := c.db.WithContext(ctx).Raw(
		`SELECT mac, data FROM historique_toner WHERE mac IN ?`, macs).
		Scan(&rows).Error
	if err != nil {
		c.log.WithError(err).Warn("Failed to query toner history")
		return nil
	}

	toner := make(map[string]*TonerSnapshot, len(rows))
	for _, row := range rows {
		snap, err := LatestTonerSnapshot(row.Data)
		if err != nil {
			c.log.WithError(err).WithField("mac", row.Mac).Warn("Rejecting malformed toner history")
			continue
		}
		toner[row.Mac] = snap
	}
	return toner
}

func formatLevel(level *int) string {
	if level == nil {
		return ""
	}
	return strconv.Itoa(*level)
}

// Devices reads the fleet directory for the mirror table. Rows with an
// unusable hardware address are skipped.
func (c *Connector) Devices(ctx context.Context) ([]domain.Device, error) {
	var rows []directoryRow
	err := c.db.WithContext(ctx).Raw(`SELECT mac, modele, serie, ip FROM copieurs`).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query device directory: %w", err)
	}

	now := time.Now().UTC()
	devices := make([]domain.Device, 0, len(rows))
	for _, row := range rows {
		key, err := normalize.DeviceKey(row.Mac)
		if err != nil {
			c.log.WithField("mac", row.Mac).Warn("Skipping directory row with invalid address")
			continue
		}
		devices = append(devices, domain.Device{
			DeviceKey:  key,
			Model:      row.Model.String,
			Serial:     row.Serial.String,
			IPAddress:  row.IP.String,
			LastSeenAt: now,
		})
	}
	return devices, nil
}

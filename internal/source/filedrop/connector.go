package filedrop

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/Adembenali2/cccomputer-sub001/internal/config"
	"github.com/Adembenali2/cccomputer-sub001/internal/domain"
	"github.com/Adembenali2/cccomputer-sub001/internal/logger"
	"github.com/Adembenali2/cccomputer-sub001/internal/normalize"
	"github.com/Adembenali2/cccomputer-sub001/internal/source"
	"github.com/Adembenali2/cccomputer-sub001/internal/storage"
)

// Connector pulls per-device CSV snapshots from the SFTP drop. Files are
// claimed exactly once: parse and insert success moves them to the
// processed directory, failure to the errors directory, so a re-listing
// never reprocesses a file.
type Connector struct {
	cfg     config.SFTPConfig
	dial    func() (RemoteFS, error)
	archive storage.ObjectStorage // optional raw-file archival
	pattern *regexp.Regexp
	log     *logger.Logger

	fs RemoteFS // session for the current run, nil between runs
}

// New creates the file-drop connector. archive may be nil when raw-file
// archival is disabled.
func New(cfg config.SFTPConfig, archive storage.ObjectStorage, log *logger.Logger) *Connector {
	return &Connector{
		cfg: cfg,
		dial: func() (RemoteFS, error) {
			return DialSFTP(SFTPConfig{
				Host:           cfg.Host,
				Port:           cfg.Port,
				User:           cfg.User,
				Password:       cfg.Password,
				ConnectTimeout: cfg.ConnectTimeout,
			})
		},
		archive: archive,
		pattern: fileNamePattern(cfg.FilePrefix),
		log:     log,
	}
}

// NewWithRemote creates a connector over an injected RemoteFS factory.
// Used by tests and by deployments that front the drop differently.
func NewWithRemote(cfg config.SFTPConfig, dial func() (RemoteFS, error), archive storage.ObjectStorage, log *logger.Logger) *Connector {
	c := New(cfg, archive, log)
	c.dial = dial
	return c
}

// Name returns the source identifier.
func (c *Connector) Name() string {
	return domain.SourceFileDrop
}

// Mode returns the merge policy: the drop is an append-only event log.
func (c *Connector) Mode() source.Mode {
	return source.ModeAppend
}

// Fetch lists drop files matching the name pattern, oldest first, fetches
// up to limit of them into the scratch area, and parses each into raw
// records. Unparsable files are moved to the errors directory immediately
// and reported as rejects.
func (c *Connector) Fetch(ctx context.Context, since domain.Watermark, limit int) (*source.Batch, error) {
	fs, err := c.dial()
	if err != nil {
		return nil, err
	}
	c.fs = fs

	files, err := fs.List(c.cfg.IncomingDir)
	if err != nil {
		return nil, err
	}

	candidates := files[:0]
	for _, f := range files {
		if c.pattern.MatchString(f.Name) {
			candidates = append(candidates, f)
		}
	}

	// Oldest first: FIFO processing keeps old files from starving under
	// sustained load.
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].ModTime.Before(candidates[j].ModTime)
	})

	batch := &source.Batch{}
	if limit > 0 && len(candidates) > limit {
		batch.Remaining = len(candidates) - limit
		candidates = candidates[:limit]
	}

	for _, f := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		remotePath := path.Join(c.cfg.IncomingDir, f.Name)
		data, err := fs.Fetch(remotePath)
		if err != nil {
			return nil, err
		}

		if err := c.stash(f.Name, data); err != nil {
			c.log.WithError(err).WithField("file", f.Name).Warn("Failed to write scratch copy")
		}
		c.archiveRaw(ctx, f.Name, data)

		fallback, _ := fileTimestamp(c.pattern, f.Name)
		records, err := parseCSV(data, f.Name, fallback)
		if err != nil {
			batch.Rejects = append(batch.Rejects, source.Reject{Ref: f.Name, Message: err.Error()})
			if moveErr := c.Ack(ctx, f.Name, false); moveErr != nil {
				c.log.WithError(moveErr).WithField("file", f.Name).Warn("Failed to move unparsable file")
			}
			continue
		}

		kept := 0
		for _, rec := range records {
			if key, err := normalize.DeviceKey(rec.Address); err == nil {
				if ts, err := normalize.Timestamp(rec.Timestamp); err == nil && since.Contains(ts, key) {
					continue
				}
			}
			batch.Records = append(batch.Records, rec)
			kept++
		}

		// Every record is at or behind the checkpoint: the content is
		// already durably stored, so claim the file now. Nothing downstream
		// will carry its ref, and an unclaimed file would be re-listed on
		// every run, holding a batch slot forever.
		if kept == 0 {
			if moveErr := c.Ack(ctx, f.Name, true); moveErr != nil {
				c.log.WithError(moveErr).WithField("file", f.Name).Warn("Failed to move fully-covered file")
			}
		}
	}

	return batch, nil
}

// Ack claims a file after the batch outcome is known: success moves it to
// processed, failure to errors. Each file is moved exactly once.
func (c *Connector) Ack(ctx context.Context, ref string, ok bool) error {
	if c.fs == nil {
		return fmt.Errorf("no drop session open")
	}
	destDir := c.cfg.ProcessedDir
	if !ok {
		destDir = c.cfg.ErrorsDir
	}
	return c.fs.Move(path.Join(c.cfg.IncomingDir, ref), path.Join(destDir, ref))
}

// Close ends the drop session for this run.
func (c *Connector) Close() error {
	if c.fs == nil {
		return nil
	}
	err := c.fs.Close()
	c.fs = nil
	return err
}

// stash writes the fetched payload to the local scratch area.
func (c *Connector) stash(name string, data []byte) error {
	if c.cfg.ScratchDir == "" {
		return nil
	}
	if err := os.MkdirAll(c.cfg.ScratchDir, 0755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(c.cfg.ScratchDir, name), data, 0644)
}

// archiveRaw uploads the original payload for audit. Archival trouble is
// logged but never fails the run.
func (c *Connector) archiveRaw(ctx context.Context, name string, data []byte) {
	if c.archive == nil {
		return
	}
	key := fmt.Sprintf("filedrop/%s/%s", time.Now().UTC().Format("2006-01-02"), name)
	if err := c.archive.Upload(ctx, key, bytes.NewReader(data), int64(len(data)), "text/csv"); err != nil {
		c.log.WithError(err).WithField("file", name).Warn("Failed to archive raw file")
	}
}

// Package source loads the per-campaign baseline snapshots exported by the
// ad server.
package source

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/campaign-hub/internal/fetcher"
	"github.com/sells-group/campaign-hub/internal/normalize"
)

// ErrNoSnapshot is returned when a campaign has no baseline file.
var ErrNoSnapshot = eris.New("source: no baseline snapshot")

// snapshotNames are tried in order inside a campaign directory.
var snapshotNames = []string{"latest_normalized.csv", "latest_normalized.xlsx"}

// AliasProvider supplies the current alias tables.
type AliasProvider interface {
	Get() (*normalize.Aliases, error)
}

// Baseline reads <dir>/<campaign_id>/latest_normalized.{csv,xlsx}.
type Baseline struct {
	dir     string
	cache   *SnapshotCache
	aliases AliasProvider
}

// NewBaseline creates a Baseline rooted at dir. A nil cache disables
// caching; nil aliases use the built-in tables.
func NewBaseline(dir string, cache *SnapshotCache, aliases AliasProvider) *Baseline {
	return &Baseline{dir: dir, cache: cache, aliases: aliases}
}

// Path returns the snapshot file of a campaign, or ErrNoSnapshot.
func (b *Baseline) Path(campaignID int64) (string, fs.FileInfo, error) {
	campaignDir := filepath.Join(b.dir, strconv.FormatInt(campaignID, 10))
	for _, name := range snapshotNames {
		p := filepath.Join(campaignDir, name)
		info, err := os.Stat(p)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return "", nil, eris.Wrapf(err, "source: stat %s", p)
		}
		if info.IsDir() {
			continue
		}
		return p, info, nil
	}
	return "", nil, ErrNoSnapshot
}

// Rows returns the raw rows of a campaign's snapshot keyed by header.
func (b *Baseline) Rows(ctx context.Context, campaignID int64) ([]normalize.Row, error) {
	path, info, err := b.Path(campaignID)
	if err != nil {
		return nil, err
	}

	if b.cache != nil {
		if rows, ok := b.cache.Get(campaignID, path, info.ModTime()); ok {
			return rows, nil
		}
	}

	aliases := normalize.DefaultAliases()
	if b.aliases != nil {
		if aliases, err = b.aliases.Get(); err != nil {
			return nil, eris.Wrap(err, "source: load aliases")
		}
	}

	table, err := fetcher.ReadTable(ctx, path)
	if err != nil {
		return nil, eris.Wrapf(err, "source: read snapshot %d", campaignID)
	}
	rows := TableRows(table, aliases.Baseline)

	zap.L().Debug("source: snapshot loaded",
		zap.Int64("campaign_id", campaignID),
		zap.String("path", path),
		zap.Int("rows", len(rows)),
	)

	if b.cache != nil {
		b.cache.Set(campaignID, path, info.ModTime(), rows)
	}
	return rows, nil
}

// TableRows turns reader output into keyed rows. The header is the first
// row naming a date column and a metric column of table; without one, the
// first row is used.
func TableRows(table [][]string, aliases normalize.AliasTable) []normalize.Row {
	if len(table) == 0 {
		return nil
	}
	h := normalize.FindHeaderRow(table, aliases)
	if h < 0 {
		h = 0
	}
	return normalize.RowsFromTable(table[h], table[h+1:])
}

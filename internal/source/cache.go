package source

import (
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/sells-group/campaign-hub/internal/normalize"
)

// DefaultSnapshotTTL bounds how long a parsed snapshot is reused.
const DefaultSnapshotTTL = 5 * time.Minute

// SnapshotCache holds parsed baseline snapshots. Entries are keyed by
// campaign, file path and modification time, so a rewritten file is never
// served stale; Invalidate and Flush drop entries explicitly.
type SnapshotCache struct {
	c *cache.Cache
}

// NewSnapshotCache creates a cache whose entries expire after ttl. A
// non-positive ttl uses DefaultSnapshotTTL.
func NewSnapshotCache(ttl time.Duration) *SnapshotCache {
	if ttl <= 0 {
		ttl = DefaultSnapshotTTL
	}
	return &SnapshotCache{c: cache.New(ttl, 2*ttl)}
}

func campaignPrefix(campaignID int64) string {
	return strconv.FormatInt(campaignID, 10) + "|"
}

func snapshotKey(campaignID int64, path string, mtime time.Time) string {
	return campaignPrefix(campaignID) + path + "|" + strconv.FormatInt(mtime.UnixNano(), 10)
}

// Get returns the cached rows for the key. Callers must not mutate them.
func (s *SnapshotCache) Get(campaignID int64, path string, mtime time.Time) ([]normalize.Row, bool) {
	v, ok := s.c.Get(snapshotKey(campaignID, path, mtime))
	if !ok {
		return nil, false
	}
	return v.([]normalize.Row), true
}

// Set stores rows for the key, replacing older snapshots of the campaign.
func (s *SnapshotCache) Set(campaignID int64, path string, mtime time.Time, rows []normalize.Row) {
	s.Invalidate(campaignID)
	s.c.Set(snapshotKey(campaignID, path, mtime), rows, cache.DefaultExpiration)
}

// Invalidate drops every cached snapshot of a campaign.
func (s *SnapshotCache) Invalidate(campaignID int64) {
	prefix := campaignPrefix(campaignID)
	for k := range s.c.Items() {
		if strings.HasPrefix(k, prefix) {
			s.c.Delete(k)
		}
	}
}

// Flush drops every cached snapshot.
func (s *SnapshotCache) Flush() {
	s.c.Flush()
}

// Len reports the number of cached snapshots, expired ones included until
// the janitor runs.
func (s *SnapshotCache) Len() int {
	return s.c.ItemCount()
}

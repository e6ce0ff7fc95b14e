// Package cache keeps recently built snapshots in memory, bounded by entry
// count (least recently used first out) and by a per-entry TTL.
package cache

import (
	"strconv"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/marcin-skalski/workflow-monitor/internal/snapshot"
)

const (
	DefaultTTL        = 30 * time.Second
	DefaultMaxEntries = 100
)

// SnapshotCache is safe for concurrent use. Values are copied on the way in
// and on the way out so no caller ever holds the resident snapshot.
type SnapshotCache struct {
	lru *expirable.LRU[string, *snapshot.Snapshot]
}

func New(maxEntries int, ttl time.Duration) *SnapshotCache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &SnapshotCache{lru: expirable.NewLRU[string, *snapshot.Snapshot](maxEntries, nil, ttl)}
}

// Key is the repository alone for the board-only view, else "repo#pr".
func Key(repo string, pr int) string {
	if pr <= 0 {
		return repo
	}
	return repo + "#" + strconv.Itoa(pr)
}

func (c *SnapshotCache) Get(repo string, pr int) (*snapshot.Snapshot, bool) {
	s, ok := c.lru.Get(Key(repo, pr))
	if !ok {
		return nil, false
	}
	return s.Clone(), true
}

func (c *SnapshotCache) Set(repo string, pr int, s *snapshot.Snapshot) {
	if s == nil {
		return
	}
	c.lru.Add(Key(repo, pr), s.Clone())
}

// Len counts resident entries, expired ones that were not yet reaped included.
func (c *SnapshotCache) Len() int {
	return c.lru.Len()
}

func (c *SnapshotCache) Purge() {
	c.lru.Purge()
}

// Package remotecache remembers which revisions are known to exist on the
// remote and when the remote was last listed. It drives the background
// refresh policy only; correctness never depends on it.
package remotecache

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/javanhut/helio-vcs/internal/revision"
	"github.com/javanhut/helio-vcs/internal/serial"
)

// NodeType is the serialized node type of the cache.
const NodeType = "remoteCache"

// StaleAfter is the age after which a populated cache is outdated.
const StaleAfter = 24 * time.Hour

// Entry is one revision known to the remote.
type Entry struct {
	ID        string
	Timestamp time.Time
}

// Cache is safe for concurrent use by the sync worker and local commits.
type Cache struct {
	mu       sync.RWMutex
	entries  map[string]time.Time
	lastSync time.Time
	now      func() time.Time
}

type Option func(*Cache)

// WithClock injects the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

func New(opts ...Option) *Cache {
	c := &Cache{entries: make(map[string]time.Time), now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache) HasRevisionTracked(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.entries[id]
	return ok
}

// Timestamp returns the remote timestamp of a tracked revision.
func (c *Cache) Timestamp(id string) (time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ts, ok := c.entries[id]
	return ts, ok
}

// UpdateForRemoteRevisions replaces the whole cache with a remote listing
// and records the sync time.
func (c *Cache) UpdateForRemoteRevisions(entries []Entry) {
	next := make(map[string]time.Time, len(entries))
	for _, e := range entries {
		next[e.ID] = e.Timestamp
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = next
	c.lastSync = c.now()
}

// UpdateForLocalRevision records a revision confirmed to be on the remote.
func (c *Cache) UpdateForLocalRevision(rev *revision.Revision) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[rev.ID()] = rev.Timestamp()
}

// IsOutdated reports whether a populated cache was last synced more than a
// day ago. An empty cache is never outdated.
func (c *Cache) IsOutdated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries) > 0 && c.now().Sub(c.lastSync) > StaleAfter
}

func (c *Cache) LastSyncTime() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastSync
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// IDs returns the tracked revision ids in lexical order.
func (c *Cache) IDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]string, 0, len(c.entries))
	for id := range c.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (c *Cache) Serialize() *serial.Node {
	n := serial.New(NodeType)
	c.mu.RLock()
	if !c.lastSync.IsZero() {
		n.SetInt("lastSync", c.lastSync.UnixMilli())
	}
	c.mu.RUnlock()
	for _, id := range c.IDs() {
		ts, _ := c.Timestamp(id)
		n.MustAppend(serial.New("revision")).
			SetString("id", id).
			SetInt("timestamp", ts.UnixMilli())
	}
	return n
}

// Deserialize restores a cache written by Serialize.
func Deserialize(n *serial.Node, opts ...Option) (*Cache, error) {
	if !n.IsValid() || n.Type() != NodeType {
		return nil, fmt.Errorf("remotecache: unexpected node %q", n.Type())
	}
	c := New(opts...)
	if ms := n.GetInt("lastSync", 0); ms != 0 {
		c.lastSync = time.UnixMilli(ms).UTC()
	}
	for _, child := range n.Children() {
		id := child.GetString("id", "")
		if id == "" {
			return nil, fmt.Errorf("remotecache: entry without id")
		}
		c.entries[id] = time.UnixMilli(child.GetInt("timestamp", 0)).UTC()
	}
	return c, nil
}

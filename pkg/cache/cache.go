// Package cache implements the client-side result cache: a bounded map from
// query text to result set with per-entry expiry, a durable snapshot written
// after every store, and a device-wide "cache disabled" flag.
//
// Persistence is best effort. Every storage failure is logged and the cache
// carries on in memory; nothing in this package returns a storage error to
// its caller.
package cache

import (
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rubiojr/mithril/pkg/core"
	"github.com/rubiojr/mithril/pkg/kv"
	"github.com/rubiojr/mithril/pkg/log"
)

const (
	// SnapshotKey is the store key holding the JSON snapshot.
	SnapshotKey = "mithrilSearchCache"
	// DisableFlagKey is the store key whose presence disables cache reads.
	DisableFlagKey = "nocache"

	DefaultMaxSize        = 20
	DefaultTTL            = 5 * time.Minute
	DefaultSnapshotMaxAge = time.Hour
)

// Options configures a ResultCache. Zero values select the defaults.
type Options struct {
	MaxSize        int
	TTL            time.Duration
	SnapshotMaxAge time.Duration
	// Now overrides the clock, for tests.
	Now func() time.Time
}

type entry struct {
	results  *core.ResultSet
	storedAt time.Time
}

// Entry is a read-only view of a cached entry.
type Entry struct {
	Query    string
	StoredAt time.Time
	Results  *core.ResultSet
}

// ResultCache is safe for concurrent use.
type ResultCache struct {
	mu      sync.Mutex
	store   kv.Store
	entries map[string]*entry
	// keys holds insertion order; eviction ties go to the earliest key.
	keys []string

	maxSize        int
	ttl            time.Duration
	snapshotMaxAge time.Duration
	now            func() time.Time
	log            *log.Logger
}

// New returns an empty cache persisting to store. A nil store keeps the cache
// in memory only.
func New(store kv.Store, opts Options) *ResultCache {
	if opts.MaxSize <= 0 {
		opts.MaxSize = DefaultMaxSize
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.SnapshotMaxAge <= 0 {
		opts.SnapshotMaxAge = DefaultSnapshotMaxAge
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &ResultCache{
		store:          store,
		entries:        make(map[string]*entry),
		maxSize:        opts.MaxSize,
		ttl:            opts.TTL,
		snapshotMaxAge: opts.SnapshotMaxAge,
		now:            opts.Now,
		log:            log.ForService("cache"),
	}
}

// Get returns the live entry for query. Expired entries are removed. When the
// disable flag is set Get always misses.
func (c *ResultCache) Get(query string) (*core.ResultSet, bool) {
	if c.Disabled() {
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[query]
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.storedAt) > c.ttl {
		c.log.Debugf("entry for %q expired", query)
		c.remove(query)
		return nil, false
	}
	return e.results.Clone(), true
}

// Set stores results under query, evicting the oldest entry when full, and
// writes a snapshot.
func (c *ResultCache) Set(query string, results *core.ResultSet) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Capacity is checked before the overwrite test, so storing an existing
	// query into a full cache still evicts the oldest entry.
	if len(c.entries) >= c.maxSize {
		c.evictOldest()
	}

	if _, exists := c.entries[query]; !exists {
		c.keys = append(c.keys, query)
	}
	c.entries[query] = &entry{results: results.Clone(), storedAt: c.now()}

	c.persist()
}

// evictOldest removes the entry with the smallest storedAt. Callers hold mu.
func (c *ResultCache) evictOldest() {
	if len(c.keys) == 0 {
		return
	}
	oldest := c.keys[0]
	oldestAt := c.entries[oldest].storedAt
	for _, k := range c.keys[1:] {
		if at := c.entries[k].storedAt; at.Before(oldestAt) {
			oldest, oldestAt = k, at
		}
	}
	c.log.Debugf("evicting %q (stored %s)", oldest, oldestAt.Format(time.RFC3339))
	c.remove(oldest)
}

// remove deletes query from the map and the order list. Callers hold mu.
func (c *ResultCache) remove(query string) {
	delete(c.entries, query)
	for i, k := range c.keys {
		if k == query {
			c.keys = append(c.keys[:i], c.keys[i+1:]...)
			break
		}
	}
}

// Len returns the number of entries held, expired or not.
func (c *ResultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Entries lists the cached entries in insertion order, including expired ones
// that have not been purged yet.
func (c *ResultCache) Entries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Entry, 0, len(c.keys))
	for _, k := range c.keys {
		e := c.entries[k]
		out = append(out, Entry{Query: k, StoredAt: e.storedAt, Results: e.results.Clone()})
	}
	return out
}

// Expired reports whether an entry stored at storedAt is past the TTL.
func (c *ResultCache) Expired(storedAt time.Time) bool {
	return c.now().Sub(storedAt) > c.ttl
}

// Clear drops every entry and the persisted snapshot.
func (c *ResultCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
	c.keys = nil
	if c.store == nil {
		return
	}
	if err := c.store.Delete(SnapshotKey); err != nil {
		c.log.Warnf("failed to delete snapshot: %v", err)
	}
}

// Disabled reports whether the persisted disable flag is present. A failing
// store reads as "not disabled".
func (c *ResultCache) Disabled() bool {
	if c.store == nil {
		return false
	}
	_, err := c.store.Read(DisableFlagKey)
	switch {
	case err == nil:
		return true
	case errors.Is(err, kv.ErrNotFound):
		return false
	default:
		c.log.Warnf("failed to read %s flag: %v", DisableFlagKey, err)
		return false
	}
}

// Disable persists the disable flag. Get misses until Enable is called.
func (c *ResultCache) Disable() {
	if c.store == nil {
		c.log.Warnf("no durable store, cannot persist %s flag", DisableFlagKey)
		return
	}
	if err := c.store.Write(DisableFlagKey, []byte("true")); err != nil {
		c.log.Warnf("failed to write %s flag: %v", DisableFlagKey, err)
		return
	}
	c.log.Infof("cache reads disabled for this device")
}

// Enable removes the disable flag.
func (c *ResultCache) Enable() {
	if c.store == nil {
		return
	}
	if err := c.store.Delete(DisableFlagKey); err != nil {
		c.log.Warnf("failed to delete %s flag: %v", DisableFlagKey, err)
	}
}

// snapshot is the persisted layout:
// {"data": {"<query>": {"results": ResultSet, "timestamp": ms}}, "updated": ms}
type snapshot struct {
	Data    map[string]snapshotEntry `json:"data"`
	Updated int64                    `json:"updated"`
}

type snapshotEntry struct {
	Results   *core.ResultSet `json:"results"`
	Timestamp int64           `json:"timestamp"`
}

// persist writes the snapshot. Callers hold mu.
func (c *ResultCache) persist() {
	if c.store == nil {
		return
	}
	snap := snapshot{
		Data:    make(map[string]snapshotEntry, len(c.entries)),
		Updated: c.now().UnixMilli(),
	}
	for k, e := range c.entries {
		snap.Data[k] = snapshotEntry{Results: e.results, Timestamp: e.storedAt.UnixMilli()}
	}
	data, err := json.Marshal(snap)
	if err != nil {
		c.log.Warnf("failed to encode snapshot: %v", err)
		return
	}
	if err := c.store.Write(SnapshotKey, data); err != nil {
		c.log.Warnf("failed to save cache snapshot: %v", err)
	}
}

// LoadFromStorage restores the snapshot written by a previous session. A
// snapshot older than the freshness window is ignored, entries past the TTL
// are dropped, and any read or decode failure leaves the cache empty.
func (c *ResultCache) LoadFromStorage() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*entry)
	c.keys = nil
	if c.store == nil {
		return
	}

	data, err := c.store.Read(SnapshotKey)
	if errors.Is(err, kv.ErrNotFound) {
		return
	}
	if err != nil {
		c.log.Warnf("failed to load cache snapshot: %v", err)
		return
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		c.log.Warnf("failed to load cache snapshot: %v", err)
		return
	}

	now := c.now()
	if now.Sub(time.UnixMilli(snap.Updated)) >= c.snapshotMaxAge {
		c.log.Debugf("snapshot from %s is stale, starting empty", time.UnixMilli(snap.Updated).Format(time.RFC3339))
		return
	}

	// JSON objects carry no order; restore oldest first so insertion order
	// follows storedAt.
	queries := make([]string, 0, len(snap.Data))
	for q, se := range snap.Data {
		if se.Results == nil {
			continue
		}
		queries = append(queries, q)
	}
	sort.Slice(queries, func(i, j int) bool {
		ti, tj := snap.Data[queries[i]].Timestamp, snap.Data[queries[j]].Timestamp
		if ti != tj {
			return ti < tj
		}
		return queries[i] < queries[j]
	})

	for _, q := range queries {
		se := snap.Data[q]
		storedAt := time.UnixMilli(se.Timestamp)
		if now.Sub(storedAt) > c.ttl {
			continue
		}
		c.entries[q] = &entry{results: se.Results, storedAt: storedAt}
		c.keys = append(c.keys, q)
	}
	// The snapshot may come from a cache configured with a larger size.
	for len(c.entries) > c.maxSize {
		c.evictOldest()
	}
	c.log.Debugf("restored %d of %d snapshot entries", len(c.entries), len(snap.Data))
}

package cache

import (
	"strings"
	"sync"
	"time"

	"github.com/JustJay7/judicial-case-sync/internal/database"
	"github.com/patrickmn/go-cache"
)

// Cache holds assembled case views keyed by case number.
type Cache interface {
	Get(caseNumber string) (*database.CaseBundle, bool)
	Set(caseNumber string, bundle *database.CaseBundle)
	// Version and SetIfUnchanged let a reader fill the cache only when no
	// Invalidate happened while it was loading.
	Version(caseNumber string) uint64
	SetIfUnchanged(caseNumber string, bundle *database.CaseBundle, version uint64) bool
	Invalidate(caseNumber string)
	Clear()
	Stats() Stats
}

type Stats struct {
	Hits       int64     `json:"hits"`
	Misses     int64     `json:"misses"`
	Evictions  int64     `json:"evictions"`
	Size       int       `json:"size"`
	MaxSize    int       `json:"max_size"`
	LastAccess time.Time `json:"last_access"`
}

// ViewCache is a TTL cache with a size cap. When full, the entry closest to
// expiry is evicted.
type ViewCache struct {
	items   *cache.Cache
	mu      sync.Mutex
	stats   Stats
	maxSize int

	// epoch increases on every Invalidate and Clear. versions holds the epoch
	// of the last Invalidate per key; clearedAt that of the last Clear.
	epoch     uint64
	versions  map[string]uint64
	clearedAt uint64
}

func NewViewCache(maxSize int, ttl time.Duration) *ViewCache {
	if maxSize < 1 {
		maxSize = 1
	}
	return &ViewCache{
		items:    cache.New(ttl, ttl*2),
		maxSize:  maxSize,
		versions: make(map[string]uint64),
	}
}

// Key normalizes a case number into a cache key.
func Key(caseNumber string) string {
	return "case:" + strings.TrimSpace(caseNumber)
}

// Get returns a copy of the cached bundle so callers can sort or trim it.
func (c *ViewCache) Get(caseNumber string) (*database.CaseBundle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats.LastAccess = time.Now()

	if data, found := c.items.Get(Key(caseNumber)); found {
		if bundle, ok := data.(*database.CaseBundle); ok {
			c.stats.Hits++
			return copyBundle(bundle), true
		}
	}

	c.stats.Misses++
	return nil, false
}

func (c *ViewCache) Set(caseNumber string, bundle *database.CaseBundle) {
	if bundle == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.store(Key(caseNumber), bundle)
}

// Version returns a token to pass to SetIfUnchanged. Take it before loading.
func (c *ViewCache) Version(caseNumber string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.versionOf(Key(caseNumber))
}

// SetIfUnchanged stores bundle unless the key was invalidated, or the cache
// cleared, after version was taken.
func (c *ViewCache) SetIfUnchanged(caseNumber string, bundle *database.CaseBundle, version uint64) bool {
	if bundle == nil {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	key := Key(caseNumber)
	if c.versionOf(key) != version {
		return false
	}
	c.store(key, bundle)
	return true
}

func (c *ViewCache) Invalidate(caseNumber string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := Key(caseNumber)
	c.items.Delete(key)
	c.epoch++
	c.versions[key] = c.epoch
}

func (c *ViewCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items.Flush()
	c.stats = Stats{}
	c.epoch++
	c.clearedAt = c.epoch
	c.versions = make(map[string]uint64)
}

func (c *ViewCache) versionOf(key string) uint64 {
	if v, ok := c.versions[key]; ok && v > c.clearedAt {
		return v
	}
	return c.clearedAt
}

func (c *ViewCache) store(key string, bundle *database.CaseBundle) {
	if _, exists := c.items.Get(key); !exists && c.items.ItemCount() >= c.maxSize {
		c.evictOne()
	}
	c.items.Set(key, copyBundle(bundle), cache.DefaultExpiration)
}

func (c *ViewCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.stats
	s.Size = c.items.ItemCount()
	s.MaxSize = c.maxSize
	return s
}

func (c *ViewCache) evictOne() {
	var oldestKey string
	var oldest int64

	for key, item := range c.items.Items() {
		if oldestKey == "" || item.Expiration < oldest {
			oldestKey = key
			oldest = item.Expiration
		}
	}

	if oldestKey != "" {
		c.items.Delete(oldestKey)
		c.stats.Evictions++
	}
}

func copyBundle(b *database.CaseBundle) *database.CaseBundle {
	out := &database.CaseBundle{
		Case:       b.Case,
		Activities: append([]database.Activity{}, b.Activities...),
		Subjects:   append([]database.Subject{}, b.Subjects...),
		Documents:  append([]database.Document{}, b.Documents...),
	}
	return out
}

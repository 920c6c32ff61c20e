package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"
)

const DefaultTTL = 30 * time.Minute

var (
	ErrCacheMiss    = errors.New("cache miss")
	ErrCacheExpired = errors.New("cache expired")
)

type LyricEntry struct {
	TrackName    string
	ArtistName   string
	AlbumName    string
	Duration     float64
	SyncedLyrics string
	CreatedAt    time.Time
	ExpiresAt    time.Time
}

// Cache keeps fetched lyrics for the lifetime of the process so skipping
// back and forth through a playlist does not refetch them.
type Cache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	entries map[string]*LyricEntry
}

func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]*LyricEntry),
	}
}

func generateKey(artist, title string) string {
	normalized := strings.ToLower(strings.TrimSpace(artist)) + "|" + strings.ToLower(strings.TrimSpace(title))
	hash := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(hash[:12])
}

func (c *Cache) Get(artist, title string) (*LyricEntry, error) {
	if artist == "" || title == "" {
		return nil, ErrCacheMiss
	}

	key := generateKey(artist, title)

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil, ErrCacheMiss
	}

	if !c.now().Before(entry.ExpiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, ErrCacheExpired
	}

	return entry, nil
}

func (c *Cache) Set(artist, title string, entry *LyricEntry) error {
	if artist == "" || title == "" || entry == nil {
		return errors.New("invalid cache entry")
	}

	now := c.now()
	entry.CreatedAt = now
	entry.ExpiresAt = now.Add(c.ttl)

	c.mu.Lock()
	c.entries[generateKey(artist, title)] = entry
	c.mu.Unlock()

	return nil
}

func (c *Cache) Delete(artist, title string) {
	c.mu.Lock()
	delete(c.entries, generateKey(artist, title))
	c.mu.Unlock()
}

func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]*LyricEntry)
	c.mu.Unlock()
}

// Prune drops expired entries and reports how many went.
func (c *Cache) Prune() int {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	pruned := 0
	for key, entry := range c.entries {
		if !now.Before(entry.ExpiresAt) {
			delete(c.entries, key)
			pruned++
		}
	}
	return pruned
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// ListAll returns live entries, newest first.
func (c *Cache) ListAll() []*LyricEntry {
	now := c.now()

	c.mu.RLock()
	result := make([]*LyricEntry, 0, len(c.entries))
	for _, entry := range c.entries {
		if now.Before(entry.ExpiresAt) {
			result = append(result, entry)
		}
	}
	c.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result
}

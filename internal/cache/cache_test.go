package cache

import (
	"errors"
	"testing"
	"time"
)

func newTestCache(ttl time.Duration) (*Cache, *time.Time) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	c := New(ttl)
	c.now = func() time.Time { return now }
	return c, &now
}

func TestGetMissAndHit(t *testing.T) {
	c, _ := newTestCache(time.Minute)

	if _, err := c.Get("Artist", "Title"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("Get() on empty cache err = %v, expected ErrCacheMiss", err)
	}

	if err := c.Set("Artist", "Title", &LyricEntry{SyncedLyrics: "[00:01.00]hi"}); err != nil {
		t.Fatalf("Set() err = %v", err)
	}

	entry, err := c.Get("artist ", "TITLE")
	if err != nil {
		t.Fatalf("Get() err = %v, expected case-insensitive hit", err)
	}
	if entry.SyncedLyrics != "[00:01.00]hi" {
		t.Errorf("Get() lyrics = %q, expected stored text", entry.SyncedLyrics)
	}
}

func TestExpiry(t *testing.T) {
	c, now := newTestCache(time.Minute)
	_ = c.Set("a", "b", &LyricEntry{})

	*now = now.Add(2 * time.Minute)

	if _, err := c.Get("a", "b"); !errors.Is(err, ErrCacheExpired) {
		t.Errorf("Get() after ttl err = %v, expected ErrCacheExpired", err)
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d, expected expired entry to be dropped", c.Len())
	}
}

func TestPrune(t *testing.T) {
	c, now := newTestCache(time.Minute)
	_ = c.Set("a", "old", &LyricEntry{})

	*now = now.Add(90 * time.Second)
	_ = c.Set("a", "new", &LyricEntry{})

	if pruned := c.Prune(); pruned != 1 {
		t.Errorf("Prune() = %d, expected 1", pruned)
	}
	if got := len(c.ListAll()); got != 1 {
		t.Errorf("ListAll() len = %d, expected 1", got)
	}
}

func TestSetRejectsInvalid(t *testing.T) {
	c, _ := newTestCache(time.Minute)

	if err := c.Set("", "title", &LyricEntry{}); err == nil {
		t.Error("Set() with empty artist should fail")
	}
	if err := c.Set("artist", "title", nil); err == nil {
		t.Error("Set() with nil entry should fail")
	}
}

func TestDeleteAndClear(t *testing.T) {
	c, _ := newTestCache(time.Minute)
	_ = c.Set("a", "1", &LyricEntry{})
	_ = c.Set("a", "2", &LyricEntry{})

	c.Delete("a", "1")
	if c.Len() != 1 {
		t.Errorf("Len() after Delete = %d, expected 1", c.Len())
	}

	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Len() after Clear = %d, expected 0", c.Len())
	}
}

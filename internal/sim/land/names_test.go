package land

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolveDisplayNameChain(t *testing.T) {
	cache := NewNameCache("")
	cache.Put("u1", "Cached")

	online := func(id string) (string, bool) {
		if id == "u2" {
			return "Online", true
		}
		return "", false
	}

	// Stored name wins over everything.
	if got := ResolveDisplayName("u2", "Stored", online, cache); got != "Stored" {
		t.Fatalf("got %q, want Stored", got)
	}
	// Then the online lookup.
	if got := ResolveDisplayName("u2", "", online, cache); got != "Online" {
		t.Fatalf("got %q, want Online", got)
	}
	// A successful online lookup refreshes the cache.
	if name, ok := cache.Get("u2"); !ok || name != "Online" {
		t.Fatalf("cache after online hit = %q, %v", name, ok)
	}
	// Then the cache.
	if got := ResolveDisplayName("u1", "", online, cache); got != "Cached" {
		t.Fatalf("got %q, want Cached", got)
	}
	// Finally the placeholder.
	if got := ResolveDisplayName("123456789abc", "", online, cache); got != "[12345678]" {
		t.Fatalf("got %q, want [12345678]", got)
	}
	if got := ResolveDisplayName("abc", "", nil, nil); got != "[abc]" {
		t.Fatalf("short id placeholder = %q", got)
	}
}

func TestNameCachePersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "names.json")

	c := NewNameCache(path)
	if err := c.Load(); err != nil {
		t.Fatalf("load missing file: %v", err)
	}
	c.Put("u1", "Alice")
	c.Put("u2", "Bob")
	if err := c.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	c2 := NewNameCache(path)
	if err := c2.Load(); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if name, ok := c2.Get("u1"); !ok || name != "Alice" {
		t.Fatalf("u1 = %q, %v", name, ok)
	}
	if name, ok := c2.Get("u2"); !ok || name != "Bob" {
		t.Fatalf("u2 = %q, %v", name, ok)
	}
}

func TestNameCacheFlushOnlyWhenDirty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "names.json")
	c := NewNameCache(path)
	c.Put("u1", "Alice")
	if err := c.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	if err := os.Remove(path); err != nil {
		t.Fatalf("remove: %v", err)
	}
	// Nothing changed: the clean cache must not rewrite the file.
	if err := c.Flush(); err != nil {
		t.Fatalf("clean flush: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("clean flush recreated the file")
	}

	// Re-putting the same value keeps it clean; a new value dirties it.
	c.Put("u1", "Alice")
	if err := c.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("identical put dirtied the cache")
	}
	c.Put("u1", "Alicia")
	if err := c.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("dirty flush wrote nothing: %v", err)
	}
}

func TestNameCacheEmptyPathIsMemoryOnly(t *testing.T) {
	c := NewNameCache("")
	c.Put("u1", "Alice")
	if err := c.Flush(); err != nil {
		t.Fatalf("flush without path: %v", err)
	}
	if err := c.Load(); err != nil {
		t.Fatalf("load without path: %v", err)
	}
	if name, ok := c.Get("u1"); !ok || name != "Alice" {
		t.Fatalf("memory-only cache lost data")
	}
}

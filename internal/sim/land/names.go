package land

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

// ResolveDisplayName walks the ordered fallback chain for a player's
// display name: stored name, online lookup, persisted cache, placeholder.
// It never fails; malformed or unknown identifiers end at the placeholder.
func ResolveDisplayName(playerID, stored string, online func(string) (string, bool), cache *nameCache) string {
	if stored != "" {
		return stored
	}
	if online != nil {
		if name, ok := online(playerID); ok && name != "" {
			if cache != nil {
				cache.Put(playerID, name)
			}
			return name
		}
	}
	if cache != nil {
		if name, ok := cache.Get(playerID); ok {
			return name
		}
	}
	return placeholderName(playerID)
}

func placeholderName(playerID string) string {
	short := playerID
	if len(short) > 8 {
		short = short[:8]
	}
	return "[" + short + "]"
}

// nameCache maps player ids to their last known display name. It is
// refreshed opportunistically and flushed on an interval rather than on
// every change, to bound write amplification.
type nameCache struct {
	path string // empty: never persisted

	mu    sync.Mutex
	m     map[string]string
	dirty bool
}

func NewNameCache(path string) *nameCache {
	return &nameCache{path: path, m: map[string]string{}}
}

func (n *nameCache) Put(playerID, name string) {
	if playerID == "" || name == "" {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.m[playerID] == name {
		return
	}
	n.m[playerID] = name
	n.dirty = true
}

func (n *nameCache) Get(playerID string) (string, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	name, ok := n.m[playerID]
	return name, ok
}

// Load replaces the cache from disk. A missing file leaves it empty.
func (n *nameCache) Load() error {
	if n.path == "" {
		return nil
	}
	raw, err := os.ReadFile(n.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	m := map[string]string{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return err
	}
	n.mu.Lock()
	n.m = m
	n.dirty = false
	n.mu.Unlock()
	return nil
}

// Flush writes the cache if it changed since the last flush. The write goes
// to a temp file and is renamed into place so a crash never leaves a
// truncated cache.
func (n *nameCache) Flush() error {
	n.mu.Lock()
	if n.path == "" || !n.dirty {
		n.mu.Unlock()
		return nil
	}
	b, err := json.Marshal(n.m)
	if err != nil {
		n.mu.Unlock()
		return err
	}
	n.dirty = false
	path := n.path
	n.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".names-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Package httputil provides the HTTP plumbing shared by registry
// clients: a file-based response cache and retry with backoff.
package httputil

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"
)

// ErrExpired is returned by [Cache.Get] when an entry exists on disk but
// has exceeded its time-to-live. Callers should refetch and [Cache.Set].
var ErrExpired = errors.New("cache entry expired")

// Cache stores JSON-marshalable values as files, one file per key, with
// the filename derived from a SHA-256 hash of the key. Entries expire by
// file modification time; a TTL of 0 means they never do.
//
// A Cache is not goroutine-safe, but separate instances (including in
// separate processes) can share a directory.
type Cache struct {
	dir    string
	ttl    time.Duration
	prefix string
}

// NewCache creates a Cache rooted at dir, creating the directory if
// needed. An empty dir selects ~/.cache/cratepack.
func NewCache(dir string, ttl time.Duration) (*Cache, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		dir = filepath.Join(home, ".cache", "cratepack")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Cache{dir: dir, ttl: ttl}, nil
}

// Dir returns the cache directory.
func (c *Cache) Dir() string { return c.dir }

// TTL returns the entry time-to-live. Zero means entries never expire.
func (c *Cache) TTL() time.Duration { return c.ttl }

// Get unmarshals the entry for key into v. It returns (true, nil) on a
// fresh hit, (false, nil) on a miss, and (false, ErrExpired) when the
// entry exists but is stale. Reads never touch modification times.
func (c *Cache) Get(key string, v any) (bool, error) {
	path := c.keyPath(c.prefix + key)
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if c.ttl > 0 && time.Since(info.ModTime()) > c.ttl {
		return false, ErrExpired
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(data, v)
}

// Set stores v under key, overwriting any existing entry and resetting
// its TTL.
func (c *Cache) Set(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return os.WriteFile(c.keyPath(c.prefix+key), data, 0o644)
}

// Namespace returns a view of the cache that prefixes every key, so
// different sources sharing one directory cannot collide. Namespaces
// can be chained.
func (c *Cache) Namespace(prefix string) *Cache {
	return &Cache{
		dir:    c.dir,
		ttl:    c.ttl,
		prefix: c.prefix + prefix,
	}
}

func (c *Cache) keyPath(key string) string {
	h := sha256.Sum256([]byte(key))
	return filepath.Join(c.dir, hex.EncodeToString(h[:]))
}

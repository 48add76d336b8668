package httputil

import (
	"errors"
	"os"
	"testing"
	"time"
)

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestCacheGetSet(t *testing.T) {
	c, err := NewCache(t.TempDir(), time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	var out payload
	hit, err := c.Get("missing", &out)
	if err != nil || hit {
		t.Fatalf("miss = (%v, %v), want (false, nil)", hit, err)
	}

	in := payload{Name: "serde", Count: 3}
	if err := c.Set("crate:serde", in); err != nil {
		t.Fatalf("Set: %v", err)
	}
	hit, err = c.Get("crate:serde", &out)
	if err != nil || !hit {
		t.Fatalf("hit = (%v, %v), want (true, nil)", hit, err)
	}
	if out != in {
		t.Errorf("got %+v, want %+v", out, in)
	}
}

func TestCacheExpiry(t *testing.T) {
	dir := t.TempDir()
	c, err := NewCache(dir, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Set("stale", payload{Name: "old"}); err != nil {
		t.Fatal(err)
	}

	// Age the entry by backdating its modification time.
	old := time.Now().Add(-2 * time.Minute)
	if err := os.Chtimes(c.keyPath("stale"), old, old); err != nil {
		t.Fatal(err)
	}

	var out payload
	hit, err := c.Get("stale", &out)
	if hit || !errors.Is(err, ErrExpired) {
		t.Fatalf("got (%v, %v), want (false, ErrExpired)", hit, err)
	}

	// Zero TTL disables expiry entirely.
	forever, err := NewCache(dir, 0)
	if err != nil {
		t.Fatal(err)
	}
	hit, err = forever.Get("stale", &out)
	if !hit || err != nil {
		t.Fatalf("got (%v, %v), want (true, nil) with ttl 0", hit, err)
	}
}

func TestCacheNamespace(t *testing.T) {
	c, err := NewCache(t.TempDir(), 0)
	if err != nil {
		t.Fatal(err)
	}
	a := c.Namespace("crates:")
	b := c.Namespace("pypi:")

	if err := a.Set("serde", payload{Name: "a"}); err != nil {
		t.Fatal(err)
	}
	if err := b.Set("serde", payload{Name: "b"}); err != nil {
		t.Fatal(err)
	}

	var out payload
	if _, err := a.Get("serde", &out); err != nil || out.Name != "a" {
		t.Errorf("namespace a = %+v, %v", out, err)
	}
	if _, err := b.Get("serde", &out); err != nil || out.Name != "b" {
		t.Errorf("namespace b = %+v, %v", out, err)
	}
	if hit, _ := c.Get("serde", &out); hit {
		t.Error("unnamespaced key should not see namespaced entries")
	}
}

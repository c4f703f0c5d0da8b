package cache

import (
	"testing"
	"time"
)

func newTestCache() *Cache {
	return New(Options{JanitorInterval: -1})
}

func TestGetSet(t *testing.T) {
	c := newTestCache()
	defer c.Close()

	if _, ok := c.Get("library:1"); ok {
		t.Error("expected miss on empty cache")
	}

	c.Set("library:1", "value", 0)
	got, ok := c.Get("library:1")
	if !ok {
		t.Fatal("expected hit after set")
	}
	if got != "value" {
		t.Errorf("expected %q, got %v", "value", got)
	}
}

func TestExpiry(t *testing.T) {
	c := newTestCache()
	defer c.Close()

	c.Set("library:1", "value", 10*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	if _, ok := c.Get("library:1"); ok {
		t.Error("expected expired entry to miss")
	}
	if c.Len() != 0 {
		t.Errorf("expected lazy drop on expired read, len=%d", c.Len())
	}
}

func TestDelete(t *testing.T) {
	c := newTestCache()
	defer c.Close()

	c.Set("library:1", "value", 0)
	c.Delete("library:1")
	if _, ok := c.Get("library:1"); ok {
		t.Error("expected miss after delete")
	}

	// Deleting a missing key is a no-op.
	c.Delete("library:missing")
}

func TestInvalidatePattern(t *testing.T) {
	c := newTestCache()
	defer c.Close()

	c.Set("files:lib-1:root", "a", 0)
	c.Set("files:lib-1:dir-9", "b", 0)
	c.Set("files:lib-2:root", "c", 0)
	c.Set("library:lib-1", "d", 0)

	dropped := c.Invalidate("files:lib-1:*")
	if dropped != 2 {
		t.Errorf("expected 2 dropped, got %d", dropped)
	}

	if _, ok := c.Get("files:lib-1:root"); ok {
		t.Error("expected lib-1 listing invalidated")
	}
	if _, ok := c.Get("files:lib-2:root"); !ok {
		t.Error("expected lib-2 listing untouched")
	}
	if _, ok := c.Get("library:lib-1"); !ok {
		t.Error("expected library entry untouched")
	}
}

func TestInvalidateMalformedPattern(t *testing.T) {
	c := newTestCache()
	defer c.Close()

	c.Set("library:1", "value", 0)
	if dropped := c.Invalidate("[unclosed"); dropped != 0 {
		t.Errorf("malformed pattern should match nothing, dropped %d", dropped)
	}
	if _, ok := c.Get("library:1"); !ok {
		t.Error("entry should survive malformed pattern")
	}
}

func TestSweep(t *testing.T) {
	c := newTestCache()
	defer c.Close()

	c.Set("a", 1, 5*time.Millisecond)
	c.Set("b", 2, time.Hour)

	c.sweep(time.Now().Add(time.Minute))
	if c.Len() != 1 {
		t.Errorf("expected 1 entry after sweep, got %d", c.Len())
	}
	if _, ok := c.Get("b"); !ok {
		t.Error("unexpired entry should survive sweep")
	}
}

func TestCloseIsIdempotentAndDisables(t *testing.T) {
	c := New(Options{JanitorInterval: time.Hour})
	c.Close()
	c.Close()

	c.Set("library:1", "value", 0)
	if _, ok := c.Get("library:1"); ok {
		t.Error("closed cache must not store or return values")
	}
	if c.Invalidate("*") != 0 {
		t.Error("closed cache should invalidate nothing")
	}
}

func TestKeyKind(t *testing.T) {
	if got := keyKind("files:lib-1:root"); got != "files" {
		t.Errorf("keyKind = %q, want files", got)
	}
	if got := keyKind("plain"); got != "plain" {
		t.Errorf("keyKind = %q, want plain", got)
	}
}

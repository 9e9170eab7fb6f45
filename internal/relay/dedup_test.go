package relay

import (
	"testing"
	"time"
)

func TestGuardSeen(t *testing.T) {
	now := time.Unix(1000, 0)
	g := NewGuard()
	g.now = func() time.Time { return now }

	ttl := 8 * time.Second

	if g.Seen(IDKey("m1"), ttl) {
		t.Fatal("first sighting reported as seen")
	}
	if !g.Seen(IDKey("m1"), ttl) {
		t.Fatal("second sighting inside the window not reported")
	}

	// A hit refreshes the window, so the key survives past the original
	// expiry as long as it keeps arriving.
	now = now.Add(6 * time.Second)
	if !g.Seen(IDKey("m1"), ttl) {
		t.Fatal("refreshed key expired early")
	}
	now = now.Add(6 * time.Second)
	if !g.Seen(IDKey("m1"), ttl) {
		t.Fatal("key expired despite refresh")
	}

	now = now.Add(9 * time.Second)
	if g.Seen(IDKey("m1"), ttl) {
		t.Fatal("expired key still reported as seen")
	}
}

func TestGuardKeyspacesIndependent(t *testing.T) {
	g := NewGuard()
	ttl := 8 * time.Second

	if g.Seen(IDKey("abc"), ttl) {
		t.Fatal("fresh id key reported as seen")
	}
	if g.Seen(ContentKey("dest1", "abc"), ttl) {
		t.Fatal("content key collided with id key")
	}
	if g.Seen(ContentKey("dest2", "abc"), ttl) {
		t.Fatal("content keys for different destinations collided")
	}
}

func TestGuardPurge(t *testing.T) {
	now := time.Unix(1000, 0)
	g := NewGuard()
	g.now = func() time.Time { return now }

	ttl := time.Second
	for _, k := range []string{"a", "b", "c"} {
		g.Seen(IDKey(k), ttl)
	}
	if g.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", g.Len())
	}

	now = now.Add(2 * time.Second)
	g.Seen(IDKey("d"), ttl)
	if g.Len() != 1 {
		t.Fatalf("expired keys not purged: Len() = %d, want 1", g.Len())
	}
}

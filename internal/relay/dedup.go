package relay

import (
	"sync"
	"time"
)

// Guard is an in-process expiring set used to suppress duplicate forwards.
// Two keyspaces share the map: provider-assigned message IDs (IDKey, exact
// match, preferred when available) and a (destination, normalized content)
// fallback (ContentKey). Expired entries are purged lazily on lookup.
// Safe for concurrent use; nothing is persisted, so a restart forgets the
// window.
type Guard struct {
	mu   sync.Mutex
	keys map[string]time.Time // key → expiry
	now  func() time.Time
}

// NewGuard creates an empty guard.
func NewGuard() *Guard {
	return &Guard{
		keys: make(map[string]time.Time),
		now:  time.Now,
	}
}

// Seen reports whether key was recorded within the last ttl, recording it
// either way. A hit refreshes the expiry, so a storm of duplicates keeps the
// key suppressed for ttl past the final duplicate.
func (g *Guard) Seen(key string, ttl time.Duration) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	exp, ok := g.keys[key]
	hit := ok && now.Before(exp)

	g.purgeLocked(now)
	g.keys[key] = now.Add(ttl)
	return hit
}

func (g *Guard) purgeLocked(now time.Time) {
	for k, exp := range g.keys {
		if !now.Before(exp) {
			delete(g.keys, k)
		}
	}
}

// Len reports the number of live entries. Intended for tests.
func (g *Guard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.keys)
}

// IDKey builds a guard key for a provider-assigned message identifier.
func IDKey(messageID string) string {
	return "id:" + messageID
}

// ContentKey builds a guard key for normalized content bound for a destination.
func ContentKey(destination, normalized string) string {
	return "c:" + destination + ":" + normalized
}

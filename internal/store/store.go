// Package store implements the shared, mutex-guarded forwarding table
// indexed by GDP name: the single structure every port-queue worker for a
// given role consults on the hit/miss decision, and the only structure the
// RIB-reply installer and the active-expiry task are allowed to mutate.
package store

import (
	"net/netip"
	"sync"
	"time"

	"github.com/dantte-lp/gdp-router/internal/gdp"
)

// Infinite marks an entry inserted by the static-routes bootstrap loader: it
// never expires and the active-expiry task skips it entirely.
const Infinite time.Duration = 0

// entry is one forwarding-table row: the resolved next hop and the
// wall-clock time at which it stops being valid. A zero expiresAt means the
// entry is static and never expires.
type entry struct {
	addr      netip.Addr
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// Store is the process-wide forwarding table shared by reference among all
// port-queue workers of one role (spec §3, §4.5). The zero value is not
// usable; construct with New.
type Store struct {
	mu      sync.RWMutex
	entries map[gdp.Name]entry
}

// New returns an empty Store.
func New() *Store {
	return &Store{entries: make(map[gdp.Name]entry)}
}

// WithContents takes a shared read lock and invokes f with a snapshot view
// of the forwarding table. f must not retain the lookup function past the
// call (spec
// §4.5: "with_contents -- snapshot read").
func (s *Store) WithContents(f func(lookup func(name gdp.Name) (netip.Addr, bool))) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	f(func(name gdp.Name) (netip.Addr, bool) {
		e, ok := s.entries[name]
		if !ok || e.expired(now) {
			return netip.Addr{}, false
		}
		return e.addr, true
	})
}

// Lookup is a convenience wrapper around WithContents for the common
// single-name case.
func (s *Store) Lookup(name gdp.Name) (netip.Addr, bool) {
	var (
		addr netip.Addr
		ok   bool
	)
	s.WithContents(func(lookup func(gdp.Name) (netip.Addr, bool)) {
		addr, ok = lookup(name)
	})
	return addr, ok
}

// WithMutContents takes an exclusive write lock and invokes f with mutator
// closures over the forwarding table (spec §4.5: "with_mut_contents --
// exclusive write; used by handle_rib_reply and by the expiry task").
func (s *Store) WithMutContents(f func(insert func(name gdp.Name, addr netip.Addr, ttl time.Duration), remove func(name gdp.Name))) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f(
		func(name gdp.Name, addr netip.Addr, ttl time.Duration) {
			var expiresAt time.Time
			if ttl != Infinite {
				expiresAt = time.Now().Add(ttl)
			}
			s.entries[name] = entry{addr: addr, expiresAt: expiresAt}
		},
		func(name gdp.Name) {
			delete(s.entries, name)
		},
	)
}

// Insert installs or refreshes a single binding. ttl == Infinite marks the
// entry static (spec §6: "Store bootstrap ... TTL = ∞").
func (s *Store) Insert(name gdp.Name, addr netip.Addr, ttl time.Duration) {
	s.WithMutContents(func(insert func(gdp.Name, netip.Addr, time.Duration), _ func(gdp.Name)) {
		insert(name, addr, ttl)
	})
}

// Len reports the current number of entries, including expired-but-not-yet-
// swept ones. Intended for metrics, not for the data path.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// ExpireOnce performs a single active-expiry sweep, evicting every entry
// whose TTL has elapsed, and returns the number of entries removed (spec
// §4.5: "Active expiry"). Static entries (Infinite TTL) are never evicted.
func (s *Store) ExpireOnce() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	removed := 0
	for name, e := range s.entries {
		if e.expired(now) {
			delete(s.entries, name)
			removed++
		}
	}
	return removed
}

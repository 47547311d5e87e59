// Package dedup is a small TTL-bounded seen-set used to drop QoS 1
// redeliveries of identical payloads.
package dedup

import (
	"sync"
	"time"
)

type Deduper struct {
	mu   sync.Mutex
	ttl  time.Duration
	max  int
	seen map[string]time.Time
}

func New(ttl time.Duration, max int) *Deduper {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if max <= 0 {
		max = 10000
	}
	return &Deduper{ttl: ttl, max: max, seen: make(map[string]time.Time, max)}
}

// Seen reports whether id was marked within the TTL.
func (d *Deduper) Seen(id string) bool {
	if id == "" {
		return false
	}
	now := time.Now()
	d.mu.Lock()
	defer d.mu.Unlock()
	exp, ok := d.seen[id]
	return ok && now.Before(exp)
}

// Mark records id as seen for the TTL. An empty id is never tracked.
func (d *Deduper) Mark(id string) {
	if id == "" {
		return
	}
	now := time.Now()
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen[id] = now.Add(d.ttl)
	if len(d.seen) > d.max {
		d.sweep(now)
	}
}

// ShouldProcess reports whether id has not been seen within the TTL, and
// marks it seen. An empty id is never deduplicated.
func (d *Deduper) ShouldProcess(id string) bool {
	if d.Seen(id) {
		return false
	}
	d.Mark(id)
	return true
}

// sweep drops expired entries; if everything is still live, it evicts the
// entries closest to expiry so the set never exceeds the cap.
func (d *Deduper) sweep(now time.Time) {
	for k, exp := range d.seen {
		if now.After(exp) {
			delete(d.seen, k)
		}
	}
	for len(d.seen) > d.max {
		var oldest string
		var oldestExp time.Time
		for k, exp := range d.seen {
			if oldest == "" || exp.Before(oldestExp) {
				oldest, oldestExp = k, exp
			}
		}
		delete(d.seen, oldest)
	}
}

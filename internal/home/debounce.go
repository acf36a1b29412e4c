package home

import (
	"sync"
	"time"
)

// Debouncer keeps per-user publish timestamps so rapid interaction bursts do
// not hammer views.publish rate limits.
type Debouncer struct {
	window time.Duration
	now    func() time.Time

	mu            sync.Mutex
	lastPublished map[string]time.Time
}

// NewDebouncer creates a debouncer with the given window. A nil clock uses
// the wall clock.
func NewDebouncer(window time.Duration, now func() time.Time) *Debouncer {
	if window <= 0 {
		window = 5 * time.Second
	}
	if now == nil {
		now = time.Now
	}
	return &Debouncer{
		window:        window,
		now:           now,
		lastPublished: make(map[string]time.Time),
	}
}

// ShouldPublish reports whether a publish for userID should proceed, and
// records the publish time when it does. Calls inside the window return
// false. An empty user id never blocks the publish.
func (d *Debouncer) ShouldPublish(userID string) bool {
	if userID == "" {
		return true
	}

	now := d.now()
	d.mu.Lock()
	defer d.mu.Unlock()

	if last, ok := d.lastPublished[userID]; ok && now.Sub(last) < d.window {
		return false
	}
	d.lastPublished[userID] = now
	return true
}

// Clear drops the stored timestamp for one user, or every user when the id
// is empty.
func (d *Debouncer) Clear(userID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if userID == "" {
		d.lastPublished = make(map[string]time.Time)
		return
	}
	delete(d.lastPublished, userID)
}

package presence

import (
	"sync"
	"time"
)

// TriggerStatus reports one tracked device for the status endpoint.
type TriggerStatus struct {
	MAC string `json:"mac"`
	// Present is true when the device appeared in the latest scan.
	Present bool `json:"present"`
	// LastSeen is the time of the last cycle that observed the device.
	// Zero if it has not been seen this run.
	LastSeen time.Time `json:"last_seen,omitzero"`
}

// Tracker records when each configured trigger was last observed. It
// exists purely for the status surface; the Controller never consults
// it. Safe for concurrent reads while the Watcher writes.
type Tracker struct {
	mu      sync.RWMutex
	order   []string
	seen    map[string]time.Time
	present map[string]bool
	now     func() time.Time
}

// NewTracker creates a tracker for the given trigger addresses. now is
// the time source; nil means time.Now.
func NewTracker(triggers []string, now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	order := make([]string, len(triggers))
	copy(order, triggers)
	return &Tracker{
		order:   order,
		seen:    make(map[string]time.Time, len(triggers)),
		present: make(map[string]bool, len(triggers)),
		now:     now,
	}
}

// Observe records one cycle's observation set.
func (t *Tracker) Observe(observed map[string]struct{}) {
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, mac := range t.order {
		_, ok := observed[mac]
		t.present[mac] = ok
		if ok {
			t.seen[mac] = now
		}
	}
}

// Statuses returns all tracked devices in configuration order.
func (t *Tracker) Statuses() []TriggerStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]TriggerStatus, 0, len(t.order))
	for _, mac := range t.order {
		out = append(out, TriggerStatus{
			MAC:      mac,
			Present:  t.present[mac],
			LastSeen: t.seen[mac],
		})
	}
	return out
}

// Status returns one tracked device, or false if mac is not a
// configured trigger.
func (t *Tracker) Status(mac string) (TriggerStatus, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, m := range t.order {
		if m == mac {
			return TriggerStatus{MAC: m, Present: t.present[m], LastSeen: t.seen[m]}, true
		}
	}
	return TriggerStatus{}, false
}

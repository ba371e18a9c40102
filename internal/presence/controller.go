// Package presence turns periodic device-presence snapshots into a
// single edge-triggered absence alert.
//
// The Controller is the pure state machine; the Watcher drives it on a
// fixed cadence against a scanner and dispatches notifications. State
// lives only in memory for the lifetime of one run.
package presence

import (
	"fmt"
	"sync"
)

// Action names the branch a cycle took, for logging and metrics.
type Action int

const (
	// ActionReset means at least one trigger was observed and the
	// absence counter was reset.
	ActionReset Action = iota

	// ActionReturned is ActionReset after a dispatched notification:
	// a tracked device reappeared and the controller re-armed.
	ActionReturned

	// ActionAbsent means no trigger was observed and no notification
	// is due this cycle.
	ActionAbsent

	// ActionNotify means this cycle crossed the absence threshold.
	// The caller must dispatch exactly one notification.
	ActionNotify
)

// String returns the action name for log output.
func (a Action) String() string {
	switch a {
	case ActionReset:
		return "reset"
	case ActionReturned:
		return "returned"
	case ActionAbsent:
		return "absent"
	case ActionNotify:
		return "notify"
	default:
		return fmt.Sprintf("unknown(%d)", int(a))
	}
}

// State is a snapshot of the controller's mutable state.
type State struct {
	// AbsentCount is the number of consecutive cycles, including the
	// current one, in which no trigger was observed.
	AbsentCount int `json:"absent_count"`

	// Notified is true exactly when a notification has been dispatched
	// for the current unbroken absence streak.
	Notified bool `json:"notified"`
}

// Controller decides, once per observation cycle, whether the absence
// condition has held long enough to warrant a notification. A single
// Watcher goroutine advances it through RunCycle; Snapshot may be
// called concurrently from status handlers.
type Controller struct {
	triggers map[string]struct{}
	retries  int

	mu          sync.Mutex
	absentCount int
	notified    bool
}

// NewController creates a controller for the given trigger addresses.
// The trigger set must be non-empty and retries non-negative; both are
// configuration errors, rejected before the first cycle.
func NewController(triggers []string, retries int) (*Controller, error) {
	if len(triggers) == 0 {
		return nil, fmt.Errorf("trigger set must not be empty")
	}
	if retries < 0 {
		return nil, fmt.Errorf("retries must be non-negative, got %d", retries)
	}

	set := make(map[string]struct{}, len(triggers))
	for _, t := range triggers {
		set[t] = struct{}{}
	}
	return &Controller{triggers: set, retries: retries}, nil
}

// RunCycle advances the state machine by one observation. observed is
// the set of hardware addresses currently seen on the network; it may
// be empty. The returned Action tells the caller what happened; only
// ActionNotify carries an obligation (dispatch one notification).
//
// The threshold comparison is strictly greater-than: the notification
// fires on the cycle where the absence count first exceeds retries,
// i.e. after retries+1 consecutive absent cycles. Once fired, further
// absent cycles return ActionAbsent until a trigger reappears.
func (c *Controller) RunCycle(observed map[string]struct{}) Action {
	c.mu.Lock()
	defer c.mu.Unlock()

	present := false
	for t := range c.triggers {
		if _, ok := observed[t]; ok {
			present = true
			break
		}
	}

	if present {
		returned := c.notified
		c.absentCount = 0
		c.notified = false
		if returned {
			return ActionReturned
		}
		return ActionReset
	}

	c.absentCount++
	if c.absentCount > c.retries && !c.notified {
		c.notified = true
		return ActionNotify
	}
	return ActionAbsent
}

// Snapshot returns the current controller state. It is safe to call
// while another goroutine runs RunCycle.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{AbsentCount: c.absentCount, Notified: c.notified}
}

// Retries returns the configured consecutive-absence threshold.
func (c *Controller) Retries() int {
	return c.retries
}

package presence

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/gntouts/absenced/internal/scan"
)

// scriptedScanner replays a fixed sequence of scan results, repeating
// the last entry once exhausted.
type scriptedScanner struct {
	mu      sync.Mutex
	results []scanResult
	calls   int
}

type scanResult struct {
	stations []scan.Station
	err      error
}

func (s *scriptedScanner) Scan(_ context.Context) ([]scan.Station, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.calls
	if idx >= len(s.results) {
		idx = len(s.results) - 1
	}
	s.calls++
	r := s.results[idx]
	return r.stations, r.err
}

func (s *scriptedScanner) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// recordingNotifier captures Notify calls and optionally fails them.
type recordingNotifier struct {
	mu       sync.Mutex
	err      error
	topics   []string
	messages []string
}

func (n *recordingNotifier) Notify(topic, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.topics = append(n.topics, topic)
	n.messages = append(n.messages, message)
	return n.err
}

func (n *recordingNotifier) calls() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.topics)
}

func station(mac string) scan.Station {
	return scan.Station{MAC: mac}
}

func newTestWatcher(t *testing.T, scanner scan.Scanner, notifier *recordingNotifier, retries int) *Watcher {
	t.Helper()
	ctrl, err := NewController([]string{"aa:bb:cc:dd:ee:ff"}, retries)
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	return NewWatcher(WatcherConfig{
		Scanner:    scanner,
		Notifier:   notifier,
		Controller: ctrl,
		Tracker:    NewTracker([]string{"aa:bb:cc:dd:ee:ff"}, nil),
		Interval:   time.Second,
		Topic:      "home/away",
		Logger:     zap.NewNop(),
	})
}

func TestCycle_NotifiesOnThreshold(t *testing.T) {
	scanner := &scriptedScanner{results: []scanResult{{stations: nil}}}
	notifier := &recordingNotifier{}
	w := newTestWatcher(t, scanner, notifier, 1)

	ctx := context.Background()
	w.cycle(ctx) // absent 1, under threshold
	if notifier.calls() != 0 {
		t.Fatalf("notified after 1 absent cycle with retries=1")
	}
	w.cycle(ctx) // absent 2 > 1, fires
	if notifier.calls() != 1 {
		t.Fatalf("notify calls = %d, want 1", notifier.calls())
	}
	if notifier.topics[0] != "home/away" || notifier.messages[0] != "on" {
		t.Errorf("notify = (%q, %q), want (home/away, on)", notifier.topics[0], notifier.messages[0])
	}

	// Continued absence never re-fires.
	w.cycle(ctx)
	w.cycle(ctx)
	if notifier.calls() != 1 {
		t.Errorf("notify calls = %d after continued absence, want 1", notifier.calls())
	}
}

func TestCycle_ScanFailureSkipsCycle(t *testing.T) {
	scanner := &scriptedScanner{results: []scanResult{
		{stations: nil},                   // absent 1
		{err: errors.New("netlink down")}, // skipped
		{stations: nil},                   // absent 2, fires with retries=1
	}}
	notifier := &recordingNotifier{}
	w := newTestWatcher(t, scanner, notifier, 1)

	ctx := context.Background()
	w.cycle(ctx)
	if got := w.cfg.Controller.Snapshot().AbsentCount; got != 1 {
		t.Fatalf("absentCount = %d, want 1", got)
	}

	w.cycle(ctx)
	// Failed scan is inconclusive: the counter must not advance.
	if got := w.cfg.Controller.Snapshot().AbsentCount; got != 1 {
		t.Errorf("absentCount after failed scan = %d, want 1 (unchanged)", got)
	}
	if notifier.calls() != 0 {
		t.Errorf("notified during a failed-scan cycle")
	}

	w.cycle(ctx)
	if notifier.calls() != 1 {
		t.Errorf("notify calls = %d, want 1", notifier.calls())
	}
}

func TestCycle_NotifyFailureIsFinal(t *testing.T) {
	scanner := &scriptedScanner{results: []scanResult{{stations: nil}}}
	notifier := &recordingNotifier{err: errors.New("broker unreachable")}
	w := newTestWatcher(t, scanner, notifier, 0)

	ctx := context.Background()
	w.cycle(ctx)
	if notifier.calls() != 1 {
		t.Fatalf("notify calls = %d, want 1", notifier.calls())
	}

	// The episode is considered handled even though delivery failed:
	// no retry on later cycles, flag stays set.
	w.cycle(ctx)
	w.cycle(ctx)
	if notifier.calls() != 1 {
		t.Errorf("notify calls = %d, want 1 (no re-dispatch)", notifier.calls())
	}
	if state := w.cfg.Controller.Snapshot(); !state.Notified {
		t.Error("notified flag must stay set after failed dispatch")
	}
}

func TestCycle_UnrelatedDevicesAreAbsence(t *testing.T) {
	scanner := &scriptedScanner{results: []scanResult{
		{stations: []scan.Station{station("11:22:33:44:55:66")}},
	}}
	notifier := &recordingNotifier{}
	w := newTestWatcher(t, scanner, notifier, 0)

	w.cycle(context.Background())
	if notifier.calls() != 1 {
		t.Errorf("notify calls = %d, want 1 (unrelated device does not defeat absence)", notifier.calls())
	}
}

func TestCycle_PresenceRearms(t *testing.T) {
	scanner := &scriptedScanner{results: []scanResult{
		{stations: nil},
		{stations: []scan.Station{station("aa:bb:cc:dd:ee:ff")}},
		{stations: nil},
	}}
	notifier := &recordingNotifier{}
	w := newTestWatcher(t, scanner, notifier, 0)

	ctx := context.Background()
	w.cycle(ctx) // fires
	w.cycle(ctx) // returns, re-arms
	w.cycle(ctx) // fires again
	if notifier.calls() != 2 {
		t.Errorf("notify calls = %d, want 2 (one per episode)", notifier.calls())
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	scanner := &scriptedScanner{results: []scanResult{{stations: nil}}}
	notifier := &recordingNotifier{}
	w := newTestWatcher(t, scanner, notifier, 100)
	w.cfg.Interval = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Wait for a few cycles, then cancel.
	deadline := time.After(2 * time.Second)
	for scanner.callCount() < 3 {
		select {
		case <-deadline:
			t.Fatal("watcher did not complete 3 cycles in time")
		case <-time.After(time.Millisecond):
		}
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}

package presence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/gntouts/absenced/internal/notify"
	"github.com/gntouts/absenced/internal/scan"
)

// awayMessage is the fixed notification payload. Whatever actuator
// consumes the topic expects this literal; it is deliberately not
// configurable.
const awayMessage = "on"

// WatcherConfig configures a Watcher.
type WatcherConfig struct {
	Scanner    scan.Scanner
	Notifier   notify.Notifier
	Controller *Controller

	// Tracker receives per-trigger observations for the status
	// surface. Optional.
	Tracker *Tracker

	// Interval is the cycle period.
	Interval time.Duration

	// Topic is the broker topic the absence notification goes to.
	Topic string

	Logger  *zap.Logger
	Metrics *Metrics
}

// Watcher drives the observe-classify-decide-notify cycle on a fixed
// cadence. A single goroutine owns it; there is no internal
// parallelism. Scan failures skip the cycle, notification failures are
// logged, and neither stops the loop.
type Watcher struct {
	cfg WatcherConfig

	// episode correlates the log lines of one unbroken absence streak.
	episode string
}

// NewWatcher creates a watcher. Scanner, Notifier, and Controller are
// required; missing Logger and Metrics fall back to no-ops.
func NewWatcher(cfg WatcherConfig) *Watcher {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NewMetrics(prometheus.NewRegistry())
	}
	return &Watcher{cfg: cfg}
}

// Run executes the cycle loop until ctx is cancelled. The first cycle
// runs immediately; subsequent cycles follow at the configured
// interval. It blocks and always returns nil after a clean shutdown.
func (w *Watcher) Run(ctx context.Context) error {
	w.cfg.Logger.Info("presence watcher starting",
		zap.Duration("interval", w.cfg.Interval),
		zap.Int("retries", w.cfg.Controller.Retries()),
		zap.String("topic", w.cfg.Topic),
	)

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	w.cycle(ctx)

	for {
		select {
		case <-ctx.Done():
			w.cfg.Logger.Info("presence watcher shutting down")
			return nil
		case <-ticker.C:
			w.cycle(ctx)
		}
	}
}

// cycle performs one observe-classify-decide-notify iteration.
func (w *Watcher) cycle(ctx context.Context) {
	w.cfg.Metrics.CyclesTotal.Inc()

	stations, err := w.cfg.Scanner.Scan(ctx)
	if err != nil {
		// Inconclusive, not absent: counters are left untouched.
		w.cfg.Metrics.ScanFailuresTotal.Inc()
		w.cfg.Logger.Warn("scan failed, skipping cycle", zap.Error(err))
		return
	}

	observed := scan.AddressSet(stations)
	if w.cfg.Tracker != nil {
		w.cfg.Tracker.Observe(observed)
	}

	action := w.cfg.Controller.RunCycle(observed)
	state := w.cfg.Controller.Snapshot()

	w.cfg.Metrics.AbsentCount.Set(float64(state.AbsentCount))
	if state.Notified {
		w.cfg.Metrics.Notified.Set(1)
	} else {
		w.cfg.Metrics.Notified.Set(0)
	}

	if state.AbsentCount == 1 {
		w.episode = uuid.New().String()
	}

	switch action {
	case ActionReset:
		w.cfg.Logger.Debug("tracked device present",
			zap.Int("observed", len(observed)),
		)
	case ActionReturned:
		w.cfg.Logger.Info("tracked device returned, re-armed",
			zap.String("episode", w.episode),
		)
	case ActionAbsent:
		w.cfg.Logger.Debug("no tracked device present",
			zap.Int("absent_count", state.AbsentCount),
			zap.String("episode", w.episode),
		)
	case ActionNotify:
		w.cfg.Logger.Info("absence threshold crossed, notifying",
			zap.Int("absent_count", state.AbsentCount),
			zap.String("episode", w.episode),
		)
		w.dispatch()
	}
}

// dispatch sends the absence notification. Failure is final for this
// episode: the notified flag stays set and the loop carries on.
func (w *Watcher) dispatch() {
	if err := w.cfg.Notifier.Notify(w.cfg.Topic, awayMessage); err != nil {
		w.cfg.Metrics.NotifyErrorsTotal.Inc()
		w.cfg.Logger.Error("notification failed",
			zap.String("topic", w.cfg.Topic),
			zap.String("episode", w.episode),
			zap.Error(err),
		)
		return
	}
	w.cfg.Metrics.NotificationsTotal.Inc()
}

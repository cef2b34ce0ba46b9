package agent

import (
	"context"
	"time"

	"github.com/spuff-dev/spuff/internal/schema"
)

// Watchdog periodically checks Activity.IdleFor against the configured
// IdleTimeout and flips StatusStore's DestroyRequested bit once it's
// exceeded, instead of destroying the instance itself — the agent never
// holds cloud credentials, so it can only ask; the controller's
// `spuff watch` loop polls /status and runs the normal teardown once it
// observes the bit.
type Watchdog struct {
	activity *Activity
	status   *StatusStore
	prom     *PromRegistry
	bw       *BootstrapWatcher
	timeout  time.Duration
}

// NewWatchdog builds a Watchdog. A zero timeout disables it: Run returns
// immediately.
func NewWatchdog(activity *Activity, status *StatusStore, prom *PromRegistry, bw *BootstrapWatcher, timeout time.Duration) *Watchdog {
	return &Watchdog{activity: activity, status: status, prom: prom, bw: bw, timeout: timeout}
}

// Run blocks until ctx is canceled, waking on a fixed interval to check
// idleness. The watchdog stays quiet until the instance's bootstrap has
// reached Ready: an instance that is still installing bundles has no
// "activity" to speak of, and must never be destroyed out from under its
// own setup executor.
func (w *Watchdog) Run(ctx context.Context) {
	if w.timeout <= 0 {
		return
	}

	interval := w.timeout / 10
	if interval > time.Minute || interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.tick()
		}
	}
}

func (w *Watchdog) tick() {
	if w.bw.Current() != schema.BootstrapReady {
		return
	}

	idle := w.activity.IdleFor()
	w.prom.IdleSeconds.Set(idle.Seconds())

	if idle >= w.timeout {
		_ = w.status.RequestDestroy()
	}
}

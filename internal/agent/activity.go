package agent

import (
	"sync/atomic"
	"time"
)

// Activity tracks the agent's last-activity timestamp: any writer may
// update it and any reader may observe it without a lock, race-free
// because writes are monotonic — storing the current time.Now().UnixNano()
// under atomic.Int64 means a reader never sees a timestamp move backward.
type Activity struct {
	lastNano atomic.Int64
	start    time.Time
}

// NewActivity returns an Activity whose clock starts now.
func NewActivity() *Activity {
	a := &Activity{start: time.Now()}
	a.Touch()
	return a
}

// Touch records activity at the current instant.
func (a *Activity) Touch() {
	a.lastNano.Store(time.Now().UnixNano())
}

// IdleFor returns how long it has been since the last Touch.
func (a *Activity) IdleFor() time.Duration {
	last := time.Unix(0, a.lastNano.Load())
	return time.Since(last)
}

// Uptime returns how long this Activity (and by construction, the agent
// process) has been running.
func (a *Activity) Uptime() time.Duration {
	return time.Since(a.start)
}

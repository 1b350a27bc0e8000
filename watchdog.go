package jungledb

import (
	"fmt"
	log "log/slog"
	"time"
)

// Watchdog tracks elapsed time against a threshold and logs a warning on
// expiry. It never cancels or aborts anything (spec §4.4/§5: "the runtime
// logs a warning and continues (never aborts forcibly)").
type Watchdog struct {
	timer *time.Timer
}

// StartWatchdog arms a watchdog that logs a warning tagged with label if it
// is still running after threshold elapses. A zero or negative threshold
// disables the watchdog (StartWatchdog returns a Watchdog whose Stop is a
// no-op).
func StartWatchdog(threshold time.Duration, label string) *Watchdog {
	if threshold <= 0 {
		return &Watchdog{}
	}
	w := &Watchdog{}
	w.timer = time.AfterFunc(threshold, func() {
		log.Warn(fmt.Sprintf("jungledb: watchdog expired for %s after %s", label, threshold))
	})
	return w
}

// Stop disarms the watchdog. Safe to call multiple times and on a disabled
// watchdog.
func (w *Watchdog) Stop() {
	if w == nil || w.timer == nil {
		return
	}
	w.timer.Stop()
}

package diag

import (
	"time"

	"github.com/joeycumines/go-catrate"
)

// TickThrottle rate-limits the per-dispatch Dispatch log line (spec.md
// §4.D fires this at the SysTick rate — 100 Hz in the reference
// configuration — which would otherwise flood any sink). Built directly
// on catrate.Limiter, the donor pack's sliding-window rate limiter,
// exactly as it limits any other bursty event category.
type TickThrottle struct {
	limiter *catrate.Limiter
}

// NewTickThrottle allows at most maxPerWindow Dispatch log lines per
// window, per core (each core is a separate catrate category).
func NewTickThrottle(window time.Duration, maxPerWindow int) *TickThrottle {
	return &TickThrottle{
		limiter: catrate.NewLimiter(map[time.Duration]int{
			window: maxPerWindow,
		}),
	}
}

// Allow reports whether a Dispatch event for core should be logged now.
func (t *TickThrottle) Allow(core int) bool {
	if t == nil || t.limiter == nil {
		return true
	}
	_, ok := t.limiter.Allow(core)
	return ok
}

// DispatchThrottled logs Dispatch only if the throttle admits it for this
// core, leaving dispatch counting itself (Metrics.Dispatched) unaffected —
// the throttle governs log volume, not scheduler behavior.
func (d *Log) DispatchThrottled(t *TickThrottle, core int, fromPid, toPid int, toIdle bool) {
	if !t.Allow(core) {
		return
	}
	d.Dispatch(core, fromPid, toPid, toIdle)
}

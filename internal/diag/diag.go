// Package diag is picos's logging facade: a thin wrapper over
// logiface, bound to zerolog via izerolog, following the donor pack's own
// layering (vocabulary package + concrete binding + sink). Kernel code
// never imports zerolog directly; it logs through *diag.Log, so a future
// binding swap (e.g. logiface-slog, also in the donor pack) touches only
// this package.
package diag

import (
	"io"
	"os"

	"github.com/joeycumines/izerolog"
	"github.com/joeycumines/logiface"
	"github.com/rs/zerolog"
)

// Log is the process-wide logger. Dispatch events on the hot path
// (spec.md §4.D) can go through DispatchThrottled, which is rate-limited by
// TickThrottle; Fault, registration, initialization, and lifecycle events
// log directly, since they are inherently low-frequency.
type Log struct {
	l *logiface.Logger[*izerolog.Event]
}

// Config selects the sink and minimum level. Writer defaults to os.Stderr;
// Level defaults to logiface.LevelInformational when left at its zero value.
type Config struct {
	Writer io.Writer
	Level  logiface.Level
}

// New builds a Log writing newline-delimited JSON, matching zerolog's
// default encoding and the donor's own convention of leaving human
// formatting (zerolog.ConsoleWriter) to an explicit opt-in at the call
// site, not the library default.
func New(cfg Config) *Log {
	w := cfg.Writer
	if w == nil {
		w = os.Stderr
	}
	level := cfg.Level
	var unset logiface.Level
	if level == unset {
		level = logiface.LevelInformational
	}

	zl := zerolog.New(w).With().Timestamp().Logger()

	return &Log{
		l: izerolog.L.New(
			izerolog.L.WithZerolog(zl),
			izerolog.L.WithLevel(level),
		),
	}
}

// Core returns a Log tagged with a "core" field, for handlers that always
// execute on one core and want it present on every subsequent line
// without repeating it at each call site.
func (d *Log) Core(core int) *Log {
	return &Log{l: d.l.Clone().Int("core", core).Logger()}
}

// Dispatch records a successful context switch (spec.md §4.D), at Debug
// level. Hot-path callers use DispatchThrottled instead, since a call per
// context switch would otherwise fire at the SysTick rate.
func (d *Log) Dispatch(core int, fromPid, toPid int, toIdle bool) {
	d.l.Debug().Int("core", core).Int("from", fromPid).Int("to", toPid).Bool("idle", toIdle).Log("dispatch")
}

// Fault records a thread entering the faulted state (spec.md §4.G).
// Always logged, regardless of throttling: a fault is rare enough, and
// important enough, that losing one to rate-limiting would be a mistake
// the reference C implementation's silent quarantine doesn't make either.
func (d *Log) Fault(core int, pid int, name string) {
	d.l.Crit().Int("core", core).Int("pid", pid).Str("name", name).Log("thread faulted")
}

// Registered records a successful RegisterThread call (spec.md §6).
func (d *Log) Registered(pid int, name string) {
	d.l.Info().Int("pid", pid).Str("name", name).Log("thread registered")
}

// CapacityExhausted records a RegisterThread call that found no free
// descriptor (spec.md §8 property 1).
func (d *Log) CapacityExhausted() {
	d.l.Warning().Log("thread table exhausted")
}

// Terminated records a thread reaching the termination trampoline
// (spec.md §4.H).
func (d *Log) Terminated(core int, pid int, name string) {
	d.l.Info().Int("core", core).Int("pid", pid).Str("name", name).Log("thread terminated")
}

// Started records the scheduler's Start call completing configuration on
// a core (spec.md §6, operation 3).
func (d *Log) Started(core int, intervalUS uint32) {
	d.l.Info().Int("core", core).Int("interval_us", int(intervalUS)).Log("scheduler started")
}

// Package circuitbreaker implements a sliding-window circuit breaker used to
// stop calling a failing dependency (the shared cache) for a while.
//
// # State machine
//
//	Closed ──(error rate ≥ threshold)──► Open ──(OpenDuration elapsed)──► HalfOpen
//	  ▲                                                                        │
//	  └──────────────(all probes succeed)───────────────────────────────────────┘
//	                  (any probe fails) ──────────────────────────────────► Open
//
// The error rate is computed over the last WindowDuration of calls and only
// once MinRequests calls are in the window.
//
// # Invariants
//
//   - successes and failures hold only timestamps inside the current window;
//     trimWindow runs after every write.
//   - maxWindowEntries caps both slices.
//   - halfOpenProbes counts probes dispatched since the last Open→HalfOpen
//     transition.
package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned by callers that short-circuit on an open breaker.
var ErrOpen = errors.New("circuit breaker open")

// State represents the circuit breaker state.
type State int

const (
	StateClosed   State = iota // Normal operation, calls pass through
	StateOpen                  // Calls are rejected
	StateHalfOpen              // Limited probe calls are allowed
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Config holds the circuit breaker configuration. A zero ErrorPct,
// WindowDuration or OpenDuration disables the breaker (see Enabled).
type Config struct {
	ErrorPct       float64       // Error percentage that trips the breaker (0-100)
	MinRequests    int           // Calls required in the window before the rate is evaluated
	WindowDuration time.Duration // Sliding window for the error rate
	OpenDuration   time.Duration // Time spent open before probing
	HalfOpenProbes int           // Probe calls allowed while half-open
}

// Enabled reports whether cfg describes a working breaker.
func (c Config) Enabled() bool {
	return c.ErrorPct > 0 && c.WindowDuration > 0 && c.OpenDuration > 0
}

// OnStateChange is called, outside the breaker lock, after every transition.
type OnStateChange func(from, to State)

// Breaker is a sliding-window circuit breaker.
type Breaker struct {
	mu             sync.Mutex
	cfg            Config
	state          State
	successes      []time.Time
	failures       []time.Time
	openedAt       time.Time
	halfOpenProbes int
	halfOpenOK     int
	onChange       OnStateChange
	now            func() time.Time
}

// New creates a new circuit breaker with the given configuration.
func New(cfg Config) *Breaker {
	if cfg.HalfOpenProbes <= 0 {
		cfg.HalfOpenProbes = 1
	}
	if cfg.MinRequests <= 0 {
		cfg.MinRequests = 1
	}
	return &Breaker{cfg: cfg, now: time.Now}
}

// SetOnStateChange installs a transition hook.
func (b *Breaker) SetOnStateChange(fn OnStateChange) {
	b.mu.Lock()
	b.onChange = fn
	b.mu.Unlock()
}

// Allow reports whether a call may proceed.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	from := b.state
	allowed := b.allowLocked()
	to, hook := b.state, b.onChange
	b.mu.Unlock()

	if from != to && hook != nil {
		hook(from, to)
	}
	return allowed
}

func (b *Breaker) allowLocked() bool {
	switch b.state {
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.cfg.OpenDuration {
			return false
		}
		b.state = StateHalfOpen
		b.halfOpenProbes = 1
		b.halfOpenOK = 0
		return true
	case StateHalfOpen:
		if b.halfOpenProbes < b.cfg.HalfOpenProbes {
			b.halfOpenProbes++
			return true
		}
		return false
	}
	return true
}

// RecordSuccess records a successful call.
func (b *Breaker) RecordSuccess() {
	b.record(func(now time.Time) {
		switch b.state {
		case StateClosed:
			b.successes = append(b.successes, now)
			b.trimWindow(now)
		case StateHalfOpen:
			b.halfOpenOK++
			if b.halfOpenOK >= b.cfg.HalfOpenProbes {
				b.state = StateClosed
				b.successes = b.successes[:0]
				b.failures = b.failures[:0]
			}
		}
	})
}

// RecordFailure records a failed call.
func (b *Breaker) RecordFailure() {
	b.record(func(now time.Time) {
		switch b.state {
		case StateClosed:
			b.failures = append(b.failures, now)
			b.trimWindow(now)
			b.checkThreshold(now)
		case StateHalfOpen:
			b.state = StateOpen
			b.openedAt = now
		}
	})
}

func (b *Breaker) record(fn func(now time.Time)) {
	b.mu.Lock()
	from := b.state
	fn(b.now())
	to, hook := b.state, b.onChange
	b.mu.Unlock()

	if from != to && hook != nil {
		hook(from, to)
	}
}

// State returns the current breaker state. An open breaker whose
// OpenDuration has elapsed reports half-open.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.cfg.OpenDuration {
		return StateHalfOpen
	}
	return b.state
}

// maxWindowEntries is a hard cap on sliding window entries.
const maxWindowEntries = 10000

// trimWindow removes entries outside the sliding window. Must be called under lock.
func (b *Breaker) trimWindow(now time.Time) {
	cutoff := now.Add(-b.cfg.WindowDuration)
	b.successes = trimBefore(b.successes, cutoff)
	b.failures = trimBefore(b.failures, cutoff)

	if len(b.successes) > maxWindowEntries {
		b.successes = b.successes[len(b.successes)-maxWindowEntries:]
	}
	if len(b.failures) > maxWindowEntries {
		b.failures = b.failures[len(b.failures)-maxWindowEntries:]
	}
}

// checkThreshold trips the breaker once the window holds MinRequests calls
// and the error rate reaches ErrorPct. Must be called under lock.
func (b *Breaker) checkThreshold(now time.Time) {
	total := len(b.successes) + len(b.failures)
	if total == 0 || total < b.cfg.MinRequests {
		return
	}
	errorPct := float64(len(b.failures)) / float64(total) * 100
	if errorPct >= b.cfg.ErrorPct {
		b.state = StateOpen
		b.openedAt = now
	}
}

// trimBefore removes timestamps before the cutoff time.
func trimBefore(times []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(times) && times[i].Before(cutoff) {
		i++
	}
	if i == 0 {
		return times
	}
	copy(times, times[i:])
	return times[:len(times)-i]
}

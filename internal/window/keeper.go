// Package window holds the sliding-window state that decides how long a caller
// must wait before hitting the rate-limited service.
package window

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"
)

var (
	// ErrInvalidLimit is returned when the request limit is not positive.
	ErrInvalidLimit = errors.New("limit must be positive")

	// ErrInvalidPeriod is returned when the period is not positive.
	ErrInvalidPeriod = errors.New("period must be positive")

	// ErrPeriodTooLarge is returned when the period exceeds MaxPeriod.
	ErrPeriodTooLarge = errors.New("period exceeds maximum")
)

// MaxPeriod is the longest period a Keeper accepts.
const MaxPeriod = 366 * 24 * time.Hour

// MaxDelay is the delay reported once a penalty no longer fits in a Duration.
const MaxDelay = time.Duration(math.MaxInt64)

// Decision is the outcome of a single arrival.
type Decision struct {
	// Seq is the 1-based arrival number since the keeper was created.
	Seq uint64

	// At is the instant recorded for the arrival.
	At time.Time

	// Delay is how long the caller must wait before calling the service.
	Delay time.Duration

	// Overflow is the number of consecutive over-limit arrivals that preceded
	// this one. Only meaningful when Delay > 0.
	Overflow int

	// WindowLen is the window length after the arrival was recorded.
	WindowLen int
}

// Delayed reports whether the arrival was over the limit.
func (d Decision) Delayed() bool {
	return d.Delay > 0
}

// String renders the delay in the wire format.
func (d Decision) String() string {
	return FormatDelay(d.Delay)
}

// Snapshot is a read-only view of the keeper state.
type Snapshot struct {
	Limit     int
	Period    time.Duration
	BaseDelay time.Duration
	WindowLen int
	Overflow  int
	Decisions uint64
	Delayed   uint64
	Oldest    time.Time
	Newest    time.Time
}

// Option configures a Keeper.
type Option func(*Keeper)

// WithClock overrides the clock used by Decide.
func WithClock(clock func() time.Time) Option {
	return func(k *Keeper) {
		if clock != nil {
			k.clock = clock
		}
	}
}

// Keeper tracks the most recent arrivals and the running overflow count.
// All methods are safe for concurrent use; every decision runs inside one
// critical section so decisions are totally ordered.
type Keeper struct {
	limit     int
	period    time.Duration
	baseDelay time.Duration
	clock     func() time.Time

	mu        sync.Mutex
	window    *ring
	overflow  int
	decisions uint64
	delayed   uint64
}

// NewKeeper creates a keeper allowing limit requests per period.
func NewKeeper(limit int, period time.Duration, opts ...Option) (*Keeper, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}
	if period <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPeriod, period)
	}
	if period > MaxPeriod {
		return nil, fmt.Errorf("%w: %s (max %s)", ErrPeriodTooLarge, period, MaxPeriod)
	}

	k := &Keeper{
		limit:     limit,
		period:    period,
		baseDelay: period / time.Duration(limit),
		clock:     time.Now,
		// one spare slot: append first, evict after
		window: newRing(limit + 1),
	}
	for _, opt := range opts {
		opt(k)
	}
	return k, nil
}

// Limit returns the configured number of requests per period.
func (k *Keeper) Limit() int { return k.limit }

// Period returns the configured period.
func (k *Keeper) Period() time.Duration { return k.period }

// BaseDelay returns period/limit, the ideal spacing between requests.
func (k *Keeper) BaseDelay() time.Duration { return k.baseDelay }

// Decide samples the clock inside the critical section and records the arrival.
func (k *Keeper) Decide() Decision {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.record(k.clock())
}

// RecordAndDecide records an arrival at now and returns the delay for it.
func (k *Keeper) RecordAndDecide(now time.Time) Decision {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.record(now)
}

// Snapshot returns the current state.
func (k *Keeper) Snapshot() Snapshot {
	k.mu.Lock()
	defer k.mu.Unlock()

	s := Snapshot{
		Limit:     k.limit,
		Period:    k.period,
		BaseDelay: k.baseDelay,
		WindowLen: k.window.len(),
		Overflow:  k.overflow,
		Decisions: k.decisions,
		Delayed:   k.delayed,
	}
	s.Oldest, _ = k.window.front()
	s.Newest, _ = k.window.back()
	return s
}

// record must be called with mu held.
func (k *Keeper) record(now time.Time) Decision {
	// entries stay non-decreasing even if a caller hands us a stale instant
	if newest, ok := k.window.back(); ok && now.Before(newest) {
		now = newest
	}

	k.window.push(now)
	k.decisions++
	d := Decision{Seq: k.decisions, At: now}

	if k.window.len() <= k.limit {
		k.overflow = 0
		d.WindowLen = k.window.len()
		return d
	}

	first := k.window.popFront()
	d.WindowLen = k.window.len()

	delta := now.Sub(first)
	if delta >= k.period {
		k.overflow = 0
		return d
	}

	d.Overflow = k.overflow
	d.Delay = penalty(k.period-delta, k.baseDelay, k.overflow+1)
	k.overflow++
	k.delayed++
	return d
}

// penalty returns remaining + base*slots, saturating at MaxDelay.
func penalty(remaining, base time.Duration, slots int) time.Duration {
	if base > 0 && int64(slots) > int64(MaxDelay-remaining)/int64(base) {
		return MaxDelay
	}
	return remaining + base*time.Duration(slots)
}

// FormatDelay renders d as seconds with exactly three decimals, e.g. "13.000".
func FormatDelay(d time.Duration) string {
	if d <= 0 {
		return "0.000"
	}
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}

// ParseSeconds converts a positive number of seconds, at most MaxPeriod, into
// a Duration, rounding to the nearest nanosecond.
func ParseSeconds(seconds float64) (time.Duration, error) {
	if math.IsNaN(seconds) || seconds <= 0 {
		return 0, fmt.Errorf("%w: %v", ErrInvalidPeriod, seconds)
	}
	if seconds > MaxPeriod.Seconds() {
		return 0, fmt.Errorf("%w: %vs (max %s)", ErrPeriodTooLarge, seconds, MaxPeriod)
	}
	ns := math.Round(seconds * float64(time.Second))
	if ns < 1 {
		return 0, fmt.Errorf("%w: %v", ErrInvalidPeriod, seconds)
	}
	return time.Duration(ns), nil
}

package scheduling

import (
	"math/rand"
	"time"
)

const (
	DefaultStaggerWindow    = 5 * time.Minute
	DefaultMinStagger       = 60 * time.Second
	DefaultMaxRandomStagger = 120 * time.Second
)

// StaggerPlanner computes extra delivery delay for a target instant that
// collides with deliveries already registered around it. The delay is jitter,
// not a lock: concurrent registrations may still land together.
type StaggerPlanner struct {
	Window    time.Duration // symmetric radius around the target
	MinDelay  time.Duration // added per colliding delivery
	MaxRandom time.Duration // upper bound (exclusive) of the random component

	// Int64N returns a value in [0, n). Defaults to math/rand.
	Int64N func(n int64) int64
}

func NewStaggerPlanner(window, minDelay, maxRandom time.Duration) *StaggerPlanner {
	if window <= 0 {
		window = DefaultStaggerWindow
	}
	if minDelay < 0 {
		minDelay = DefaultMinStagger
	}
	if maxRandom < 0 {
		maxRandom = DefaultMaxRandomStagger
	}
	return &StaggerPlanner{
		Window:    window,
		MinDelay:  minDelay,
		MaxRandom: maxRandom,
		Int64N:    rand.Int63n,
	}
}

// Collisions counts existing instants within [target-Window, target+Window].
func (p *StaggerPlanner) Collisions(target time.Time, existing []time.Time) int {
	lo, hi := target.Add(-p.Window), target.Add(p.Window)
	count := 0
	for _, at := range existing {
		if !at.Before(lo) && !at.After(hi) {
			count++
		}
	}
	return count
}

// Delay returns count*MinDelay + random[0, MaxRandom) when the target
// collides with any existing delivery, and zero otherwise.
func (p *StaggerPlanner) Delay(target time.Time, existing []time.Time) time.Duration {
	count := p.Collisions(target, existing)
	if count == 0 {
		return 0
	}

	delay := time.Duration(count) * p.MinDelay
	if p.MaxRandom > 0 {
		intn := p.Int64N
		if intn == nil {
			intn = rand.Int63n
		}
		delay += time.Duration(intn(int64(p.MaxRandom)))
	}
	return delay
}

// Range returns the span the caller should load existing deliveries from.
func (p *StaggerPlanner) Range(target time.Time) (time.Time, time.Time) {
	return target.Add(-p.Window), target.Add(p.Window)
}

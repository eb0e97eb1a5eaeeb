// Package clock provides ports.Clock implementations.
//
// The cache loader and the plugin manager read time through a clock so that
// TTLs, load timestamps and measured parse costs are deterministic in tests.
package clock

import (
	"sync"
	"time"

	"github.com/artpar/modelkit/ports"
)

var (
	_ ports.Clock = Real{}
	_ ports.Clock = (*Fake)(nil)
	_ ports.Clock = (*Stepping)(nil)
)

// Real returns the actual current time.
type Real struct{}

// Now returns the current time.
func (Real) Now() time.Time {
	return time.Now()
}

// Fake is a clock that only moves when told to.
type Fake struct {
	mu      sync.RWMutex
	current time.Time
}

// NewFake creates a fake clock set to t.
func NewFake(t time.Time) *Fake {
	return &Fake{current: t}
}

// Now returns the fake current time.
func (f *Fake) Now() time.Time {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.current
}

// Set moves the clock to t.
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = t
}

// Advance moves the clock forward by d.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = f.current.Add(d)
}

// Stepping advances by a fixed step after every reading, so the span
// between two consecutive Now calls is always exactly step.
type Stepping struct {
	mu      sync.Mutex
	current time.Time
	step    time.Duration
}

// NewStepping creates a stepping clock starting at t.
func NewStepping(t time.Time, step time.Duration) *Stepping {
	return &Stepping{current: t, step: step}
}

// Now returns the current reading and advances the clock.
func (s *Stepping) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.current
	s.current = s.current.Add(s.step)
	return now
}

// Func adapts a clock to the func() time.Time form some options take.
func Func(c ports.Clock) func() time.Time {
	return c.Now
}

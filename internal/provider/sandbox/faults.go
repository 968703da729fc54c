// Package sandbox implements in-memory payment back ends that behave like the
// two real providers closely enough for local runs and tests.
package sandbox

import (
	"sync"
	"time"
)

type Option func(*base)

// WithClock replaces time.Now, used to move authorizations past their expiry.
func WithClock(now func() time.Time) Option {
	return func(b *base) { b.now = now }
}

// WithAuthorizationWindow sets how long an uncaptured authorization survives.
func WithAuthorizationWindow(d time.Duration) Option {
	return func(b *base) {
		if d > 0 {
			b.authWindow = d
		}
	}
}

type base struct {
	mu         sync.Mutex
	now        func() time.Time
	authWindow time.Duration
	seq        int
	calls      map[string]int
	faults     map[string][]error
}

func (b *base) init(opts []Option) {
	b.now = time.Now
	b.authWindow = 7 * 24 * time.Hour
	b.calls = make(map[string]int)
	b.faults = make(map[string][]error)
	for _, opt := range opts {
		opt(b)
	}
}

// FailNext makes the next call of op return err before touching any state.
func (b *base) FailNext(op string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.faults[op] = append(b.faults[op], err)
}

// Calls reports how many times op was invoked, injected failures included.
func (b *base) Calls(op string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[op]
}

// enter must be called with mu held.
func (b *base) enter(op string) error {
	b.calls[op]++
	if queued := b.faults[op]; len(queued) > 0 {
		b.faults[op] = queued[1:]
		return queued[0]
	}
	return nil
}

func (b *base) nextSeq() int {
	b.seq++
	return b.seq
}

package cache

import (
	"context"
	"fmt"
	"sync"
)

// LocalLocker serializes bookings inside one process. Used when Redis is not
// configured and in tests.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]chan struct{})}
}

func (l *LocalLocker) Lock(ctx context.Context, bookingID string) (func(), error) {
	for {
		l.mu.Lock()
		held, busy := l.locks[bookingID]
		if !busy {
			ch := make(chan struct{})
			l.locks[bookingID] = ch
			l.mu.Unlock()
			return func() { l.unlock(bookingID, ch) }, nil
		}
		l.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w for %s: %w", ErrLockTimeout, bookingID, ctx.Err())
		case <-held:
		}
	}
}

func (l *LocalLocker) unlock(bookingID string, ch chan struct{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.locks[bookingID] == ch {
		delete(l.locks, bookingID)
		close(ch)
	}
}

package callrtc

import (
	"sync"
	"time"
)

// SyncBarrier is the flag and condition variable carried by a SynchronizeEvent. The state
// machine signals it after both of its actors have run every task queued before the event.
type SyncBarrier struct {
	mu   sync.Mutex
	cond *sync.Cond
	done bool
}

func NewSyncBarrier() *SyncBarrier {
	barrier := &SyncBarrier{}
	barrier.cond = sync.NewCond(&barrier.mu)

	return barrier
}

// Signal sets the flag and wakes the waiters.
func (b *SyncBarrier) Signal() error {
	if b == nil || b.cond == nil {
		return ErrInvalidSyncBarrier
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	b.done = true
	b.cond.Broadcast()

	return nil
}

// Done reports whether the barrier has been signaled.
func (b *SyncBarrier) Done() bool {
	if b == nil || b.cond == nil {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.done
}

// Wait blocks until the barrier is signaled or timeout elapses.
func (b *SyncBarrier) Wait(timeout time.Duration) error {
	if b == nil || b.cond == nil {
		return ErrInvalidSyncBarrier
	}
	expired := false
	timer := time.AfterFunc(timeout, func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		expired = true
		b.cond.Broadcast()
	})
	defer timer.Stop()

	b.mu.Lock()
	defer b.mu.Unlock()

	for !b.done && !expired {
		b.cond.Wait()
	}
	if !b.done {
		return ErrSyncTimeout
	}
	return nil
}

// Synchronize sends a SynchronizeEvent for connection and waits until every side effect
// queued before it has completed.
func Synchronize(stream *EventStream, connection Connection, timeout time.Duration) error {
	barrier := NewSyncBarrier()
	if err := stream.Send(connection, SynchronizeEvent{Barrier: barrier}); err != nil {
		return err
	}
	return barrier.Wait(timeout)
}

package callrtc

import (
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/go-logr/logr"
)

// Actor runs submitted tasks one at a time, in submission order, on its own goroutine.
//
// Once stopped, queued tasks that have not started are dropped and new tasks are discarded.
// A task that is already running completes.
type Actor struct {
	name    string
	logger  logr.Logger
	mu      sync.Mutex
	cond    *sync.Cond
	tasks   []func()
	stopped bool
	done    chan struct{}
}

// StartActor starts an actor goroutine.
func StartActor(name string, logger logr.Logger) *Actor {
	actor := &Actor{
		name:   name,
		logger: logger.WithName(name),
		done:   make(chan struct{}),
	}
	actor.cond = sync.NewCond(&actor.mu)

	go actor.run()

	return actor
}

func (a *Actor) Name() string {
	return a.name
}

// Send queues a task. It reports false, and drops the task, if the actor has been stopped.
func (a *Actor) Send(task func()) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopped {
		return false
	}
	a.tasks = append(a.tasks, task)
	a.cond.Signal()

	return true
}

func (a *Actor) Stopped() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.stopped
}

// Stop marks the actor stopped and drops pending tasks without waiting.
func (a *Actor) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopped {
		return
	}
	if len(a.tasks) > 0 {
		a.logger.V(1).Info("dropping pending tasks", "count", len(a.tasks))
	}
	a.stopped = true
	a.tasks = nil
	a.cond.Broadcast()
}

// StopAndJoin stops the actor and waits at most timeout for its goroutine to exit. It may be
// called any number of times.
func (a *Actor) StopAndJoin(timeout time.Duration) error {
	a.Stop()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-a.done:
		return nil
	case <-timer.C:
		return fmt.Errorf("%s: %w", a.name, ErrActorJoinTimeout)
	}
}

func (a *Actor) run() {
	defer close(a.done)

	for {
		a.mu.Lock()
		for len(a.tasks) == 0 && !a.stopped {
			a.cond.Wait()
		}
		if a.stopped {
			a.mu.Unlock()
			return
		}
		task := a.tasks[0]
		a.tasks[0] = nil
		a.tasks = a.tasks[1:]
		a.mu.Unlock()

		a.safeRun(task)
	}
}

func (a *Actor) safeRun(task func()) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error(fmt.Errorf("%v", r), "task panic", "stack", string(debug.Stack()))
		}
	}()

	task()
}

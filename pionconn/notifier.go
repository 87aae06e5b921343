package pionconn

import "sync"

type terminateNotifier struct {
	mu       sync.Mutex
	handlers []func()
	once     sync.Once
}

// OnTerminated registers a handler called once the connection has terminated.
func (n *terminateNotifier) OnTerminated(handler func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.handlers = append(n.handlers, handler)
}

// notifyTerminated runs the handlers on the first call only.
func (n *terminateNotifier) notifyTerminated() {
	n.once.Do(func() {
		n.mu.Lock()
		handlers := n.handlers
		n.mu.Unlock()

		for _, handler := range handlers {
			handler()
		}
	})
}

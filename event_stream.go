package callrtc

import "sync"

type eventItem struct {
	connection Connection
	event      ConnectionEvent
}

// EventStream is the ordered queue feeding the state machine. Any number of goroutines may
// Send; one goroutine receives. Send never blocks, so ICE callbacks and RTP data handlers
// can enqueue from their own goroutines.
type EventStream struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []eventItem
	closed bool
}

func NewEventStream() *EventStream {
	stream := &EventStream{}
	stream.cond = sync.NewCond(&stream.mu)

	return stream
}

// Send appends an event for connection. It fails with ErrEventStreamClosed after Close.
func (s *EventStream) Send(connection Connection, event ConnectionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrEventStreamClosed
	}
	s.queue = append(s.queue, eventItem{connection: connection, event: event})
	s.cond.Signal()

	return nil
}

// Recv blocks for the next event. Events queued before Close are still delivered; ok is false
// once the stream is closed and empty.
func (s *EventStream) Recv() (connection Connection, event ConnectionEvent, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for len(s.queue) == 0 && !s.closed {
		s.cond.Wait()
	}
	if len(s.queue) == 0 {
		return nil, nil, false
	}
	item := s.queue[0]
	s.queue[0] = eventItem{}
	s.queue = s.queue[1:]

	return item.connection, item.event, true
}

// Close stops accepting events. It is safe to call more than once.
func (s *EventStream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.cond.Broadcast()
}

func (s *EventStream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.closed
}

// Len returns the number of queued events.
func (s *EventStream) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.queue)
}

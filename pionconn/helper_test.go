package pionconn

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/require"

	"github.com/jiyeyuran/callrtc"
)

type recordingObserver struct {
	mu     sync.Mutex
	events []callrtc.ConnectionObserverEvent
	media  []callrtc.MediaStream
	ice    chan callrtc.Ice
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{ice: make(chan callrtc.Ice, 1024)}
}

func (o *recordingObserver) OnConnectionEvent(_ callrtc.CallId, event callrtc.ConnectionObserverEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.events = append(o.events, event)
}

func (o *recordingObserver) OnSendIce(_ callrtc.CallId, ice callrtc.Ice) {
	o.ice <- ice
}

func (o *recordingObserver) OnIncomingMedia(_ callrtc.CallId, stream callrtc.MediaStream) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.media = append(o.media, stream)
}

func (o *recordingObserver) recorded() []callrtc.ConnectionObserverEvent {
	o.mu.Lock()
	defer o.mu.Unlock()

	return append([]callrtc.ConnectionObserverEvent(nil), o.events...)
}

// testCall is one side of a call with its own state machine.
type testCall struct {
	conn     *Connection
	observer *recordingObserver
	stream   *callrtc.EventStream
	done     chan error
}

func newTestCall(t *testing.T, callId callrtc.CallId, direction callrtc.CallDirection, options ...Option) *testCall {
	stream := callrtc.NewEventStream()
	fsm := callrtc.NewConnectionStateMachine(stream,
		callrtc.WithLogger(logr.Discard()),
		callrtc.WithSyncTimeout(time.Second),
		callrtc.WithJoinTimeout(time.Second),
	)
	observer := newRecordingObserver()

	options = append([]Option{WithLogger(logr.Discard()), WithLoopbackCandidates()}, options...)
	conn, err := New(callId, direction, stream, observer, options...)
	require.NoError(t, err)

	call := &testCall{
		conn:     conn,
		observer: observer,
		stream:   stream,
		done:     make(chan error, 1),
	}
	go func() {
		call.done <- fsm.Run()
	}()

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_ = conn.Terminate(ctx)

		select {
		case err := <-call.done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("state machine did not stop")
		}
	})

	return call
}

func (c *testCall) state() callrtc.ConnectionState {
	state, _ := c.conn.State()
	return state
}

func timeoutContext(t *testing.T, timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)

	return ctx
}

package callrtc

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
	"github.com/stretchr/testify/require"
)

// fakeConnection records every call the state machine and its actors make.
type fakeConnection struct {
	mu        sync.Mutex
	stream    *EventStream
	callId    CallId
	direction CallDirection
	state     ConnectionState
	stateErr  error

	terminating bool
	sendErr     error
	notifyErr   error

	sideEffects       []string
	observerEvents    []ConnectionObserverEvent
	receivedIce       []Ice
	bufferedIce       []IceCandidate
	incomingMedia     []MediaStream
	senderStatuses    []SenderStatus
	dataModes         []DataMode
	hangupsSent       []Hangup
	acceptedSent      int
	remoteMaxBitrates []DataRate
	networkRoutes     []NetworkRoute
	injectedErrors    []error
	terminateComplete int
}

func newFakeConnection(stream *EventStream, direction CallDirection, state ConnectionState) *fakeConnection {
	return &fakeConnection{
		stream:    stream,
		callId:    NewCallId(),
		direction: direction,
		state:     state,
	}
}

func (c *fakeConnection) record(sideEffect string) {
	c.sideEffects = append(c.sideEffects, sideEffect)
}

func (c *fakeConnection) CallId() CallId {
	return c.callId
}

func (c *fakeConnection) Direction() CallDirection {
	return c.direction
}

func (c *fakeConnection) State() (ConnectionState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state, c.stateErr
}

func (c *fakeConnection) SetState(state ConnectionState) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state = state
	return nil
}

func (c *fakeConnection) Terminating() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.terminating || c.state.TerminatingOrTerminated(), nil
}

func (c *fakeConnection) NotifyObserver(event ConnectionObserverEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.notifyErr != nil {
		return c.notifyErr
	}
	c.observerEvents = append(c.observerEvents, event)
	return nil
}

func (c *fakeConnection) InjectInternalError(err error, context string) {
	c.mu.Lock()
	c.injectedErrors = append(c.injectedErrors, err)
	c.mu.Unlock()

	_ = c.stream.Send(c, InternalErrorEvent{CallId: c.callId, Err: fmt.Errorf("%s: %w", context, err)})
}

func (c *fakeConnection) SendAcceptedViaRtpData() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.record("SendAcceptedViaRtpData")
	if c.sendErr != nil {
		return c.sendErr
	}
	c.acceptedSent++
	return nil
}

func (c *fakeConnection) SendHangupViaRtpData(hangup Hangup) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.record("SendHangupViaRtpData")
	if c.sendErr != nil {
		return c.sendErr
	}
	c.hangupsSent = append(c.hangupsSent, hangup)
	return nil
}

func (c *fakeConnection) UpdateSenderStatusFromFSM(status SenderStatus) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.record("UpdateSenderStatusFromFSM")
	c.senderStatuses = append(c.senderStatuses, status)
	return c.sendErr
}

func (c *fakeConnection) UpdateDataMode(mode DataMode) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.record("UpdateDataMode")
	c.dataModes = append(c.dataModes, mode)
	return c.sendErr
}

func (c *fakeConnection) BufferLocalIceCandidates(candidates []IceCandidate) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.record("BufferLocalIceCandidates")
	c.bufferedIce = append(c.bufferedIce, candidates...)
	return nil
}

func (c *fakeConnection) HandleReceivedIncomingMedia(stream MediaStream) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.record("HandleReceivedIncomingMedia")
	c.incomingMedia = append(c.incomingMedia, stream)
	return nil
}

func (c *fakeConnection) HandleReceivedIce(ice Ice) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.record("HandleReceivedIce")
	c.receivedIce = append(c.receivedIce, ice)
	return nil
}

func (c *fakeConnection) SetRemoteMaxBitrate(rate DataRate) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.record("SetRemoteMaxBitrate")
	c.remoteMaxBitrates = append(c.remoteMaxBitrates, rate)
	return nil
}

func (c *fakeConnection) SetNetworkRoute(route NetworkRoute) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.record("SetNetworkRoute")
	c.networkRoutes = append(c.networkRoutes, route)
	return nil
}

func (c *fakeConnection) NotifyTerminateComplete() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.terminateComplete++
	return nil
}

func (c *fakeConnection) currentState() ConnectionState {
	state, _ := c.State()
	return state
}

func (c *fakeConnection) setTerminating(terminating bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.terminating = terminating
}

func (c *fakeConnection) setSendErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sendErr = err
}

func (c *fakeConnection) setStateErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stateErr = err
}

func (c *fakeConnection) recordedSideEffects() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]string(nil), c.sideEffects...)
}

func (c *fakeConnection) recordedObserverEvents() []ConnectionObserverEvent {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]ConnectionObserverEvent(nil), c.observerEvents...)
}

func (c *fakeConnection) acceptedSentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.acceptedSent
}

func (c *fakeConnection) terminateCompleteCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.terminateComplete
}

type fakeMediaStream string

func (s fakeMediaStream) StreamID() string {
	return string(s)
}

// logCapture keeps the formatted records of a funcr logger.
type logCapture struct {
	mu      sync.Mutex
	records []string
}

func newCaptureLogger() (logr.Logger, *logCapture) {
	capture := &logCapture{}
	logger := funcr.New(func(prefix, args string) {
		capture.mu.Lock()
		defer capture.mu.Unlock()

		capture.records = append(capture.records, prefix+" "+args)
	}, funcr.Options{Verbosity: 1})

	return logger, capture
}

// count returns the number of records containing every part.
func (c *logCapture) count(parts ...string) (n int) {
	c.mu.Lock()
	defer c.mu.Unlock()

next:
	for _, record := range c.records {
		for _, part := range parts {
			if !strings.Contains(record, part) {
				continue next
			}
		}
		n++
	}
	return
}

// index returns the position of the first record containing every part, or -1.
func (c *logCapture) index(parts ...string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

next:
	for i, record := range c.records {
		for _, part := range parts {
			if !strings.Contains(record, part) {
				continue next
			}
		}
		return i
	}
	return -1
}

// fsmHarness runs a state machine on its own goroutine for the duration of a test.
type fsmHarness struct {
	t      *testing.T
	stream *EventStream
	fsm    *ConnectionStateMachine
	logs   *logCapture
	done   chan error
}

func newFsmHarness(t *testing.T, options ...Option) *fsmHarness {
	logger, logs := newCaptureLogger()
	stream := NewEventStream()
	options = append([]Option{WithLogger(logger), WithSyncTimeout(time.Second), WithJoinTimeout(time.Second)}, options...)

	h := &fsmHarness{
		t:      t,
		stream: stream,
		fsm:    NewConnectionStateMachine(stream, options...),
		logs:   logs,
		done:   make(chan error, 1),
	}
	go func() {
		h.done <- h.fsm.Run()
	}()

	t.Cleanup(func() {
		if !stream.Closed() {
			_ = stream.Send(newFakeConnection(stream, CallDirectionOutgoing, ConnectionStateTerminating), TerminateEvent{})
		}
		select {
		case <-h.done:
		case <-time.After(5 * time.Second):
			t.Error("state machine did not stop")
		}
	})

	return h
}

func (h *fsmHarness) newConnection(direction CallDirection, state ConnectionState) *fakeConnection {
	return newFakeConnection(h.stream, direction, state)
}

// send enqueues events and waits for their side effects to complete.
func (h *fsmHarness) send(connection Connection, events ...ConnectionEvent) {
	for _, event := range events {
		require.NoError(h.t, h.stream.Send(connection, event))
	}
	h.sync(connection)
}

func (h *fsmHarness) sync(connection Connection) {
	require.NoError(h.t, Synchronize(h.stream, connection, 3*time.Second))
}

// wait returns the result of Run.
func (h *fsmHarness) wait() error {
	select {
	case err := <-h.done:
		h.done <- err
		return err
	case <-time.After(5 * time.Second):
		h.t.Fatal("state machine did not stop")
		return nil
	}
}

package pionconn

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"

	"github.com/jiyeyuran/callrtc"
)

var _ callrtc.Connection = (*Connection)(nil)

// Observer receives what a Connection has to hand to the application. Methods are called from
// the notify and worker actors of the state machine and must not block for long.
type Observer interface {
	// OnConnectionEvent reports an observer event of the state machine.
	OnConnectionEvent(callId callrtc.CallId, event callrtc.ConnectionObserverEvent)

	// OnSendIce hands a batch of local ICE candidates to signaling.
	OnSendIce(callId callrtc.CallId, ice callrtc.Ice)

	OnIncomingMedia(callId callrtc.CallId, stream callrtc.MediaStream)
}

// Connection is one side of a call over a pion PeerConnection. Its events go to the state
// machine consuming stream. Call and connection control happens through Connection methods;
// the state machine drives the callrtc.Connection methods.
type Connection struct {
	terminateNotifier

	id        string
	callId    callrtc.CallId
	direction callrtc.CallDirection
	stream    *callrtc.EventStream
	observer  Observer
	settings  Settings
	logger    logr.Logger

	pc          *webrtc.PeerConnection
	dataChannel *webrtc.DataChannel
	// closed once the data channel is open
	dataChannelOpen     chan struct{}
	dataChannelOpenOnce sync.Once
	// closed once Terminate has been called
	terminating     chan struct{}
	terminatingOnce sync.Once
	// closed by NotifyTerminateComplete
	terminateComplete     chan struct{}
	terminateCompleteOnce sync.Once

	seqnum atomic.Uint64

	mu                sync.Mutex
	state             callrtc.ConnectionState
	iceConnected      bool
	remoteDescription bool
	pendingRemoteIce  []callrtc.IceCandidate
	localIce          []callrtc.IceCandidate
	localStatus       callrtc.SenderStatus
	remoteMaxBitrate  callrtc.DataRate
	networkRoute      callrtc.NetworkRoute

	// serializes RTP data sends so seqnums go out in order
	sendMu sync.Mutex
}

// New creates a connection in the NotYetStarted state. Negotiation starts with CreateOffer on
// the caller side and AcceptOffer on the callee side.
func New(
	callId callrtc.CallId,
	direction callrtc.CallDirection,
	stream *callrtc.EventStream,
	observer Observer,
	options ...Option,
) (*Connection, error) {
	settings := newSettings(options...)
	id := uuid.NewString()

	c := &Connection{
		id:                id,
		callId:            callId,
		direction:         direction,
		stream:            stream,
		observer:          observer,
		settings:          settings,
		logger:            settings.Logger.WithValues("id", id, "callId", callId.String(), "direction", direction.String()),
		dataChannelOpen:   make(chan struct{}),
		terminating:       make(chan struct{}),
		terminateComplete: make(chan struct{}),
		state:             callrtc.ConnectionStateNotYetStarted,
	}

	settingEngine := webrtc.SettingEngine{
		LoggerFactory: newLoggerFactory(*settings.Logger),
	}
	settingEngine.SetIncludeLoopbackCandidate(settings.IncludeLoopbackCandidates)

	api := webrtc.NewAPI(webrtc.WithSettingEngine(settingEngine))
	pc, err := api.NewPeerConnection(webrtc.Configuration{
		ICEServers: settings.ICEServers,
	})
	if err != nil {
		return nil, fmt.Errorf("creating PeerConnection: %w", err)
	}
	c.pc = pc

	pc.OnICEConnectionStateChange(c.handleICEConnectionStateChange)
	pc.OnICECandidate(c.handleICECandidate)
	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		c.sendEvent(callrtc.ReceivedIncomingMediaEvent{Stream: track})
	})
	pc.SCTP().Transport().ICETransport().OnSelectedCandidatePairChange(func(pair *webrtc.ICECandidatePair) {
		c.sendEvent(callrtc.IceNetworkRouteChangedEvent{Route: networkRouteFromPair(pair)})
	})

	c.logger.V(1).Info("connection created")

	return c, nil
}

// Id identifies the connection in logs.
func (c *Connection) Id() string {
	return c.id
}

// CreateOffer starts an outgoing call and returns the SDP offer. Local candidates are handed
// to Observer.OnSendIce as they are gathered.
func (c *Connection) CreateOffer() (string, error) {
	if err := c.start(); err != nil {
		return "", err
	}
	offer, err := c.pc.CreateOffer(nil)
	if err != nil {
		return "", fmt.Errorf("creating SDP offer: %w", err)
	}
	if err := c.pc.SetLocalDescription(offer); err != nil {
		return "", fmt.Errorf("setting local description: %w", err)
	}
	c.SetState(callrtc.ConnectionStateIceGathering)

	return offer.SDP, nil
}

// AcceptAnswer applies the callee's SDP answer to an offer made with CreateOffer.
func (c *Connection) AcceptAnswer(sdp string) error {
	// ICE may connect as soon as the remote description is set.
	c.SetState(callrtc.ConnectionStateConnectingBeforeAccepted)

	if err := c.pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: sdp}); err != nil {
		return fmt.Errorf("setting remote description: %w", err)
	}
	return c.applyPendingRemoteIce()
}

// AcceptOffer starts an incoming call from the caller's SDP offer and returns the SDP answer.
func (c *Connection) AcceptOffer(sdp string) (string, error) {
	if err := c.start(); err != nil {
		return "", err
	}
	if err := c.pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp}); err != nil {
		return "", fmt.Errorf("setting remote description: %w", err)
	}
	if err := c.applyPendingRemoteIce(); err != nil {
		return "", err
	}
	answer, err := c.pc.CreateAnswer(nil)
	if err != nil {
		return "", fmt.Errorf("creating SDP answer: %w", err)
	}
	c.SetState(callrtc.ConnectionStateConnectingBeforeAccepted)

	if err := c.pc.SetLocalDescription(answer); err != nil {
		return "", fmt.Errorf("setting local description: %w", err)
	}
	return answer.SDP, nil
}

func (c *Connection) start() error {
	c.mu.Lock()
	if c.state != callrtc.ConnectionStateNotYetStarted {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("connection already started, state: %s", state)
	}
	c.state = callrtc.ConnectionStateStarting
	c.mu.Unlock()

	// Both sides create the channel with the same id, no in-band announcement is needed.
	negotiated := true
	ordered := true
	id := c.settings.DataChannelID

	dc, err := c.pc.CreateDataChannel(c.settings.DataChannelLabel, &webrtc.DataChannelInit{
		Ordered:    &ordered,
		Negotiated: &negotiated,
		ID:         &id,
	})
	if err != nil {
		return fmt.Errorf("creating data channel: %w", err)
	}
	c.dataChannel = dc

	dc.OnOpen(func() {
		c.logger.V(1).Info("data channel open", "label", dc.Label())
		c.dataChannelOpenOnce.Do(func() {
			close(c.dataChannelOpen)
		})
	})
	dc.OnMessage(c.handleDataChannelMessage)

	return nil
}

// AddRemoteIce hands candidates received over signaling to the state machine.
func (c *Connection) AddRemoteIce(ice callrtc.Ice) error {
	return c.stream.Send(c, callrtc.ReceivedIceEvent{Ice: ice})
}

// Accept accepts an incoming call.
func (c *Connection) Accept() error {
	return c.stream.Send(c, callrtc.AcceptEvent{})
}

// SetSenderStatus sends a local sender status change to the remote peer. Nil fields are left
// unchanged.
func (c *Connection) SetSenderStatus(status callrtc.SenderStatus) error {
	return c.stream.Send(c, callrtc.UpdateSenderStatusEvent{Status: status})
}

// SetDataMode asks the remote peer to cap its bitrate for mode.
func (c *Connection) SetDataMode(mode callrtc.DataMode) error {
	return c.stream.Send(c, callrtc.UpdateDataModeEvent{Mode: mode})
}

// Hangup informs the remote peer over RTP data and terminates the connection.
func (c *Connection) Hangup(ctx context.Context, hangup callrtc.Hangup) error {
	if err := c.stream.Send(c, callrtc.SendHangupViaRtpDataEvent{Hangup: hangup}); err != nil {
		return err
	}
	if err := c.Synchronize(c.settings.SyncTimeout); err != nil {
		c.logger.Error(err, "waiting for hangup to be sent failed")
	}
	return c.Terminate(ctx)
}

// Terminate stops the state machine of the connection and closes the PeerConnection. It waits
// for the state machine to drain until ctx is done.
func (c *Connection) Terminate(ctx context.Context) error {
	c.mu.Lock()
	if c.state == callrtc.ConnectionStateTerminated {
		c.mu.Unlock()
		return nil
	}
	c.state = callrtc.ConnectionStateTerminating
	c.mu.Unlock()
	c.terminatingOnce.Do(func() {
		close(c.terminating)
	})

	var waitErr error

	if err := c.stream.Send(c, callrtc.TerminateEvent{}); err != nil {
		c.logger.V(1).Info("state machine already stopped", "error", err.Error())
	} else {
		select {
		case <-c.terminateComplete:
		case <-ctx.Done():
			waitErr = fmt.Errorf("%w: %w", callrtc.ErrTerminateTimeout, ctx.Err())
		}
	}
	closeErr := c.pc.Close()

	c.SetState(callrtc.ConnectionStateTerminated)
	c.logger.Info("connection terminated")
	c.notifyTerminated()

	return errors.Join(waitErr, closeErr)
}

// Synchronize waits until the side effects of every event queued so far have run.
func (c *Connection) Synchronize(timeout time.Duration) error {
	return callrtc.Synchronize(c.stream, c, timeout)
}

// RemoteMaxBitrate is the latest bitrate cap requested by the remote peer.
func (c *Connection) RemoteMaxBitrate() callrtc.DataRate {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.remoteMaxBitrate
}

func (c *Connection) NetworkRoute() callrtc.NetworkRoute {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.networkRoute
}

// LocalSenderStatus is the sender status last sent to the remote peer.
func (c *Connection) LocalSenderStatus() callrtc.SenderStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.localStatus
}

func (c *Connection) handleICEConnectionStateChange(state webrtc.ICEConnectionState) {
	c.logger.V(1).Info("ICE connection state change", "iceState", state.String())

	c.mu.Lock()
	var event callrtc.ConnectionEvent
	switch state {
	case webrtc.ICEConnectionStateConnected, webrtc.ICEConnectionStateCompleted:
		// Completed follows Connected within the same episode.
		if !c.iceConnected {
			c.iceConnected = true
			event = callrtc.IceConnectedEvent{}
		}
	case webrtc.ICEConnectionStateDisconnected:
		c.iceConnected = false
		event = callrtc.IceDisconnectedEvent{}
	case webrtc.ICEConnectionStateFailed:
		c.iceConnected = false
		event = callrtc.IceFailedEvent{}
	}
	c.mu.Unlock()

	if event != nil {
		c.sendEvent(event)
	}
}

func (c *Connection) handleICECandidate(candidate *webrtc.ICECandidate) {
	// nil marks the end of gathering
	if candidate == nil {
		return
	}
	c.sendEvent(callrtc.LocalIceCandidatesEvent{
		Candidates: []callrtc.IceCandidate{iceCandidateFromPion(candidate)},
	})
}

func (c *Connection) handleDataChannelMessage(msg webrtc.DataChannelMessage) {
	message, err := callrtc.UnmarshalRtpDataMessage(msg.Data)
	if err != nil {
		c.logger.Info("dropping RTP data message", "error", err.Error(), "size", len(msg.Data))
		return
	}
	for _, event := range message.Events() {
		c.sendEvent(event)
	}
}

// sendEvent enqueues an event from a pion callback. Events after termination are dropped.
func (c *Connection) sendEvent(event callrtc.ConnectionEvent) {
	if err := c.stream.Send(c, event); err != nil {
		c.logger.V(1).Info("dropping event", "event", event.String(), "error", err.Error())
	}
}

func (c *Connection) sendRtpData(message callrtc.RtpDataMessage) error {
	timer := time.NewTimer(c.settings.DataChannelOpenTimeout)
	defer timer.Stop()

	// an open channel wins, so a hangup queued before Terminate still goes out
	select {
	case <-c.dataChannelOpen:
	default:
		select {
		case <-c.dataChannelOpen:
		case <-c.terminating:
			return callrtc.ErrConnectionTerminated
		case <-timer.C:
			return callrtc.ErrDataChannelNotOpen
		}
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	message.Seqnum = c.seqnum.Add(1)

	data, err := message.Marshal()
	if err != nil {
		return err
	}
	return c.dataChannel.Send(data)
}

func (c *Connection) applyPendingRemoteIce() error {
	c.mu.Lock()
	c.remoteDescription = true
	pending := c.pendingRemoteIce
	c.pendingRemoteIce = nil
	c.mu.Unlock()

	return c.addRemoteCandidates(pending)
}

func (c *Connection) addRemoteCandidates(candidates []callrtc.IceCandidate) error {
	for _, candidate := range candidates {
		if candidate.Removed {
			// pion cannot remove a remote candidate, ICE checks on it just fail.
			c.logger.V(1).Info("ignoring removed remote candidate", "candidate", candidate.Candidate)
			continue
		}
		if err := c.pc.AddICECandidate(iceCandidateInit(candidate)); err != nil {
			return fmt.Errorf("adding remote candidate: %w", err)
		}
	}
	return nil
}

// The methods below implement callrtc.Connection.

func (c *Connection) CallId() callrtc.CallId {
	return c.callId
}

func (c *Connection) Direction() callrtc.CallDirection {
	return c.direction
}

func (c *Connection) State() (callrtc.ConnectionState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state, nil
}

// SetState never leaves Terminating except for Terminated. Terminate writes the state from
// outside the state machine.
func (c *Connection) SetState(state callrtc.ConnectionState) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.TerminatingOrTerminated() && state != callrtc.ConnectionStateTerminated {
		if c.state != state {
			c.logger.V(1).Info("ignoring state change while terminating", "from", c.state.String(), "to", state.String())
		}
		return nil
	}
	if c.state != state {
		c.logger.V(1).Info("state change", "from", c.state.String(), "to", state.String())
	}
	c.state = state
	return nil
}

func (c *Connection) Terminating() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state.TerminatingOrTerminated(), nil
}

func (c *Connection) NotifyObserver(event callrtc.ConnectionObserverEvent) error {
	c.observer.OnConnectionEvent(c.callId, event)
	return nil
}

func (c *Connection) InjectInternalError(err error, context string) {
	c.logger.Error(err, "internal error", "context", context)
	c.sendEvent(callrtc.InternalErrorEvent{CallId: c.callId, Err: fmt.Errorf("%s: %w", context, err)})
}

func (c *Connection) SendAcceptedViaRtpData() error {
	return c.sendRtpData(callrtc.RtpDataMessage{
		Accepted: &callrtc.AcceptedMessage{CallId: c.callId},
	})
}

func (c *Connection) SendHangupViaRtpData(hangup callrtc.Hangup) error {
	return c.sendRtpData(callrtc.RtpDataMessage{
		Hangup: &callrtc.HangupMessage{CallId: c.callId, Hangup: hangup},
	})
}

// UpdateSenderStatusFromFSM merges status into the local sender status and sends the result.
func (c *Connection) UpdateSenderStatusFromFSM(status callrtc.SenderStatus) error {
	c.mu.Lock()
	c.localStatus = c.localStatus.Merge(status)
	merged := c.localStatus
	c.mu.Unlock()

	return c.sendRtpData(callrtc.RtpDataMessage{
		SenderStatus: &callrtc.SenderStatusMessage{CallId: c.callId, Status: merged},
	})
}

func (c *Connection) UpdateDataMode(mode callrtc.DataMode) error {
	maxBitrate := c.settings.maxBitrate(mode)

	c.logger.Info("requesting max bitrate", "mode", mode.String(), "maxBitrate", maxBitrate.String())

	return c.sendRtpData(callrtc.RtpDataMessage{
		ReceiverStatus: &callrtc.ReceiverStatusMessage{CallId: c.callId, MaxBitrateBps: maxBitrate.Bps()},
	})
}

// BufferLocalIceCandidates queues local candidates and hands everything queued to signaling.
func (c *Connection) BufferLocalIceCandidates(candidates []callrtc.IceCandidate) error {
	c.mu.Lock()
	c.localIce = append(c.localIce, candidates...)
	batch := c.localIce
	c.localIce = nil
	c.mu.Unlock()

	if len(batch) > 0 {
		c.observer.OnSendIce(c.callId, callrtc.Ice{Candidates: batch})
	}
	return nil
}

func (c *Connection) HandleReceivedIncomingMedia(stream callrtc.MediaStream) error {
	c.logger.Info("incoming media", "streamId", stream.StreamID())
	c.observer.OnIncomingMedia(c.callId, stream)
	return nil
}

// HandleReceivedIce adds remote candidates, or keeps them until the remote description is set.
func (c *Connection) HandleReceivedIce(ice callrtc.Ice) error {
	c.mu.Lock()
	if !c.remoteDescription {
		c.pendingRemoteIce = append(c.pendingRemoteIce, ice.Candidates...)
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	return c.addRemoteCandidates(ice.Candidates)
}

func (c *Connection) SetRemoteMaxBitrate(rate callrtc.DataRate) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.remoteMaxBitrate = rate
	return nil
}

func (c *Connection) SetNetworkRoute(route callrtc.NetworkRoute) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.networkRoute = route
	return nil
}

// NotifyTerminateComplete may be called more than once when Terminate was queued more than
// once.
func (c *Connection) NotifyTerminateComplete() error {
	c.terminateCompleteOnce.Do(func() {
		close(c.terminateComplete)
	})
	return nil
}

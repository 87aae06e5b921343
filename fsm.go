package callrtc

import (
	"fmt"
	"time"

	"github.com/go-logr/logr"
)

// ConnectionStateMachine mediates the call protocol of a connection with its ICE negotiation.
//
// All events are consumed, one at a time, by the goroutine calling Run. State transitions
// happen on that goroutine only. Slow protocol actions (sending RTP data, buffering
// candidates, attaching media) run on the "worker" actor and observer notifications run on the
// "notify" actor, so Run never blocks on I/O or on application callbacks.
type ConnectionStateMachine struct {
	stream   *EventStream
	worker   *Actor
	notify   *Actor
	settings Settings
	logger   logr.Logger

	// The sequence number and last received remote sender status. Only messages with a
	// larger seqnum are processed, and an event fires when the status changes.
	lastRemoteSenderStatus *statusCache[SenderStatus]
	// The sequence number and last received remote max bitrate.
	lastRemoteReceiverStatus *statusCache[DataRate]
}

// NewConnectionStateMachine creates a state machine consuming stream and starts its actors.
func NewConnectionStateMachine(stream *EventStream, options ...Option) *ConnectionStateMachine {
	settings := newSettings(options...)
	logger := *settings.Logger

	return &ConnectionStateMachine{
		stream:   stream,
		worker:   StartActor(settings.WorkerName, logger),
		notify:   StartActor(settings.NotifyName, logger),
		settings: settings,
		logger:   logger,
		lastRemoteSenderStatus: newStatusCache(func(a, b SenderStatus) bool {
			return a.Equal(b)
		}),
		lastRemoteReceiverStatus: newStatusCache(func(a, b DataRate) bool {
			return a == b
		}),
	}
}

// Run dispatches events until the stream is closed and drained. Handler errors are logged and
// do not stop the loop. If the state of a connection cannot be read, Run stops its actors and
// returns an error wrapping ErrStateUnavailable.
func (fsm *ConnectionStateMachine) Run() error {
	for {
		connection, event, ok := fsm.stream.Recv()
		if !ok {
			return nil
		}
		state, err := connection.State()
		if err != nil {
			fsm.logger.Error(err, "handling event failed", "event", event.String())
			fsm.stream.Close()
			fsm.worker.Stop()
			fsm.notify.Stop()
			return fmt.Errorf("%w: %w", ErrStateUnavailable, err)
		}
		if isPeriodic(state, event) {
			// Don't log periodic, ignored events at high verbosity
			fsm.logger.V(1).Info("dispatch", "state", state.String(), "event", event.String())
		} else {
			fsm.logger.Info("dispatch", "state", state.String(), "event", event.String())
		}
		if err := fsm.handleEvent(connection, state, event); err != nil {
			fsm.logger.Error(err, "handling event failed", "state", state.String(), "event", event.String())
		}
	}
}

func isPeriodic(state ConnectionState, event ConnectionEvent) bool {
	if state != ConnectionStateConnectedAndAccepted {
		return false
	}
	switch event.(type) {
	case ReceivedSenderStatusEvent, ReceivedReceiverStatusEvent, ReceivedAcceptedViaRtpDataEvent:
		return true
	}
	return false
}

func (fsm *ConnectionStateMachine) handleEvent(connection Connection, state ConnectionState, event ConnectionEvent) error {
	// Handle these events even while terminating, as the remote side needs to be informed.
	switch ev := event.(type) {
	case SendHangupViaRtpDataEvent:
		return fsm.handleSendHangupViaRtpData(connection, state, ev.Hangup)
	case TerminateEvent:
		return fsm.handleTerminate(connection)
	case SynchronizeEvent:
		return fsm.handleSynchronize(ev.Barrier)
	}

	if state.TerminatingOrTerminated() {
		fsm.logger.V(1).Info("dropping event while terminating", "event", event.String())
		return nil
	}

	switch ev := event.(type) {
	case ReceivedHangupEvent:
		return fsm.handleReceivedHangup(connection, state, ev.CallId, ev.Hangup)
	case AcceptEvent:
		return fsm.handleAccept(connection, state)
	case ReceivedAcceptedViaRtpDataEvent:
		return fsm.handleReceivedAcceptedViaRtpData(connection, state, ev.CallId)
	case ReceivedSenderStatusEvent:
		return fsm.handleReceivedSenderStatus(connection, state, ev.CallId, ev.Status, ev.Seqnum)
	case ReceivedReceiverStatusEvent:
		return fsm.handleReceivedReceiverStatus(connection, state, ev.CallId, ev.MaxBitrate, ev.Seqnum)
	case ReceivedIceEvent:
		return fsm.handleReceivedIce(connection, state, ev.Ice)
	case UpdateSenderStatusEvent:
		return fsm.handleUpdateSenderStatus(connection, state, ev.Status)
	case UpdateDataModeEvent:
		return fsm.handleUpdateDataMode(connection, state, ev.Mode)
	case LocalIceCandidatesEvent:
		return fsm.handleLocalIceCandidates(connection, state, ev.Candidates)
	case IceConnectedEvent:
		return fsm.handleIceConnected(connection, state)
	case IceFailedEvent:
		return fsm.handleIceFailed(connection, state)
	case IceDisconnectedEvent:
		return fsm.handleIceDisconnected(connection, state)
	case IceNetworkRouteChangedEvent:
		return fsm.handleIceNetworkRouteChanged(connection, ev.Route)
	case InternalErrorEvent:
		return fsm.handleInternalError(connection, ev.CallId, ev.Err)
	case ReceivedIncomingMediaEvent:
		return fsm.handleReceivedIncomingMedia(connection, state, ev.Stream)
	default:
		return fmt.Errorf("unknown event %T", event)
	}
}

// workerSpawn queues a task on the worker actor. Tasks are dropped once it has stopped.
func (fsm *ConnectionStateMachine) workerSpawn(task func()) {
	fsm.worker.Send(task)
}

// notifySpawn queues a task on the notify actor. Tasks are dropped once it has stopped.
func (fsm *ConnectionStateMachine) notifySpawn(task func()) {
	fsm.notify.Send(task)
}

// workerAction runs action on the worker actor unless the connection is terminating. A failure
// comes back to the state machine as an InternalErrorEvent.
func (fsm *ConnectionStateMachine) workerAction(connection WorkerConnection, context string, action func(WorkerConnection) error) {
	fsm.workerSpawn(func() {
		terminating, err := connection.Terminating()
		if err == nil {
			if terminating {
				return
			}
			err = action(connection)
		}
		if err != nil {
			connection.InjectInternalError(err, context)
		}
	})
}

func (fsm *ConnectionStateMachine) notifyObserver(connection WorkerConnection, event ConnectionObserverEvent) {
	fsm.notifySpawn(func() {
		terminating, err := connection.Terminating()
		if err == nil {
			if terminating {
				return
			}
			err = connection.NotifyObserver(event)
		}
		if err != nil {
			connection.InjectInternalError(err, "Notify Observer failed")
		}
	})
}

func (fsm *ConnectionStateMachine) handleConnectedAndAcceptedForTheFirstTime(connection Connection) error {
	if err := connection.SetState(ConnectionStateConnectedAndAccepted); err != nil {
		return err
	}
	// Status messages received while ringing were ignored, apply the latest ones now.
	if maxBitrate, ok := fsm.lastRemoteReceiverStatus.last(); ok {
		if err := connection.SetRemoteMaxBitrate(maxBitrate); err != nil {
			return err
		}
	}
	if status, ok := fsm.lastRemoteSenderStatus.last(); ok {
		fsm.notifyObserver(connection, ObserverRemoteSenderStatusChanged{Status: status})
	}
	if connection.Direction() == CallDirectionIncoming {
		fsm.workerAction(connection, "Sending Accepted failed", WorkerConnection.SendAcceptedViaRtpData)
	}
	return nil
}

func (fsm *ConnectionStateMachine) handleReceivedHangup(connection Connection, state ConnectionState, callId CallId, hangup Hangup) error {
	if connection.CallId() != callId {
		fsm.logger.Info("remote hangup for non-active call", "callId", callId.String(), "activeCallId", connection.CallId().String())
		return nil
	}
	if state.ConnectingOrConnected() {
		fsm.notifyObserver(connection, ObserverReceivedHangup{Hangup: hangup})
	} else {
		fsm.unexpectedState(state, "ReceivedHangup")
	}
	return nil
}

func (fsm *ConnectionStateMachine) handleReceivedAcceptedViaRtpData(connection Connection, state ConnectionState, callId CallId) error {
	if connection.CallId() != callId {
		fsm.logger.Info("remote accepted for non-active call", "callId", callId.String(), "activeCallId", connection.CallId().String())
		return nil
	}
	switch state {
	case ConnectionStateNotYetStarted, ConnectionStateStarting, ConnectionStateIceGathering:
		// Nothing can arrive over RTP data yet.
		fsm.unexpectedState(state, "ReceivedAcceptedViaRtpData")
	case ConnectionStateConnectingBeforeAccepted:
		return connection.SetState(ConnectionStateConnectingAfterAccepted)
	case ConnectionStateConnectedBeforeAccepted:
		return fsm.handleConnectedAndAcceptedForTheFirstTime(connection)
	case ConnectionStateConnectingAfterAccepted,
		ConnectionStateConnectedAndAccepted,
		ConnectionStateReconnectingAfterAccepted:
		// Retransmission of the accepted message.
	default:
		fsm.unexpectedState(state, "ReceivedAcceptedViaRtpData")
	}
	return nil
}

func (fsm *ConnectionStateMachine) handleReceivedSenderStatus(
	connection Connection,
	state ConnectionState,
	callId CallId,
	status SenderStatus,
	seqnum uint64,
) error {
	if connection.CallId() != callId {
		fsm.logger.Info("remote sender status change for non-active call", "callId", callId.String(), "activeCallId", connection.CallId().String())
		return nil
	}
	update := fsm.lastRemoteSenderStatus.update(seqnum, status)
	if update.outOfOrder {
		// Equal seqnums are expected retransmissions and not worth a warning.
		fsm.logger.Info("dropped remote sender status message because it arrived out of order", "seqnum", seqnum)
	}
	if !update.accepted {
		return nil
	}

	switch state {
	case ConnectionStateConnectedAndAccepted, ConnectionStateReconnectingAfterAccepted:
		if update.changed {
			fsm.notifyObserver(connection, ObserverRemoteSenderStatusChanged{Status: status})
		}
	case ConnectionStateConnectingBeforeAccepted,
		ConnectionStateConnectingAfterAccepted,
		ConnectionStateConnectedBeforeAccepted:
		// Kept in the cache until the call is accepted.
	default:
		fsm.unexpectedState(state, "ReceivedSenderStatus")
	}
	return nil
}

func (fsm *ConnectionStateMachine) handleReceivedReceiverStatus(
	connection Connection,
	state ConnectionState,
	callId CallId,
	maxBitrate DataRate,
	seqnum uint64,
) error {
	if connection.CallId() != callId {
		fsm.logger.Info("remote receiver status change for non-active call", "callId", callId.String(), "activeCallId", connection.CallId().String())
		return nil
	}
	update := fsm.lastRemoteReceiverStatus.update(seqnum, maxBitrate)
	if update.outOfOrder {
		fsm.logger.Info("dropped remote receiver status message because it arrived out of order", "seqnum", seqnum)
	}
	if !update.accepted {
		return nil
	}

	switch state {
	case ConnectionStateConnectedAndAccepted, ConnectionStateReconnectingAfterAccepted:
		if update.changed {
			return connection.SetRemoteMaxBitrate(maxBitrate)
		}
	case ConnectionStateConnectingBeforeAccepted,
		ConnectionStateConnectingAfterAccepted,
		ConnectionStateConnectedBeforeAccepted:
		// Kept in the cache until the call is accepted.
	default:
		fsm.unexpectedState(state, "ReceivedReceiverStatus")
	}
	return nil
}

func (fsm *ConnectionStateMachine) handleReceivedIce(connection Connection, state ConnectionState, ice Ice) error {
	if state == ConnectionStateNotYetStarted {
		fsm.logger.Info("connection has not yet started, ignoring remote ICE candidates", "candidates", len(ice.Candidates))
		return nil
	}
	if !state.CanReceiveIceCandidates() {
		fsm.unexpectedState(state, "ReceivedIce")
		return nil
	}
	return connection.HandleReceivedIce(ice)
}

func (fsm *ConnectionStateMachine) handleAccept(connection Connection, state ConnectionState) error {
	if !state.CanBeAcceptedLocally() {
		fsm.unexpectedState(state, "Accept")
		return nil
	}
	return fsm.handleConnectedAndAcceptedForTheFirstTime(connection)
}

func (fsm *ConnectionStateMachine) handleSendHangupViaRtpData(connection Connection, state ConnectionState, hangup Hangup) error {
	if !state.CanSendHangupViaRtp() {
		fsm.unexpectedState(state, "SendHangupViaRtpData")
		return nil
	}
	var worker WorkerConnection = connection

	// No terminating check: the hangup is what a terminating call still has to send.
	fsm.workerSpawn(func() {
		if err := worker.SendHangupViaRtpData(hangup); err != nil {
			worker.InjectInternalError(err, "Sending Hangup failed")
		}
	})
	return nil
}

func (fsm *ConnectionStateMachine) handleUpdateSenderStatus(connection Connection, state ConnectionState, status SenderStatus) error {
	if !state.ConnectedOrReconnecting() {
		fsm.unexpectedState(state, "UpdateSenderStatus")
		return nil
	}
	fsm.workerAction(connection, "Sending local sender status failed", func(worker WorkerConnection) error {
		return worker.UpdateSenderStatusFromFSM(status)
	})
	return nil
}

func (fsm *ConnectionStateMachine) handleUpdateDataMode(connection Connection, state ConnectionState, mode DataMode) error {
	if !state.ConnectingOrConnected() {
		fsm.logger.V(1).Info("ignoring data mode before connecting", "state", state.String(), "mode", mode.String())
		return nil
	}
	fsm.workerAction(connection, "Updating data mode failed", func(worker WorkerConnection) error {
		return worker.UpdateDataMode(mode)
	})
	return nil
}

func (fsm *ConnectionStateMachine) handleLocalIceCandidates(connection Connection, state ConnectionState, candidates []IceCandidate) error {
	if !state.CanSendIceCandidates() {
		fsm.unexpectedState(state, "LocalIceCandidates")
		return nil
	}
	fsm.workerAction(connection, "ICE buffering failed", func(worker WorkerConnection) error {
		return worker.BufferLocalIceCandidates(candidates)
	})
	return nil
}

func (fsm *ConnectionStateMachine) handleIceConnected(connection Connection, state ConnectionState) error {
	switch state {
	case ConnectionStateConnectingBeforeAccepted:
		return connection.SetState(ConnectionStateConnectedBeforeAccepted)
	case ConnectionStateConnectingAfterAccepted:
		return fsm.handleConnectedAndAcceptedForTheFirstTime(connection)
	case ConnectionStateReconnectingAfterAccepted:
		// ICE is back after the call was accepted.
		return connection.SetState(ConnectionStateConnectedAndAccepted)
	default:
		// Not negotiating yet, already connected, or past the point of connecting.
		fsm.unexpectedState(state, "IceConnected")
	}
	return nil
}

func (fsm *ConnectionStateMachine) handleIceFailed(connection Connection, state ConnectionState) error {
	if !state.ConnectingOrConnected() {
		fsm.unexpectedState(state, "IceFailed")
		return nil
	}
	// Callee: the call dropped while ringing or answering. Caller: the recipient is unreachable.
	return connection.SetState(ConnectionStateIceFailed)
}

func (fsm *ConnectionStateMachine) handleIceDisconnected(connection Connection, state ConnectionState) error {
	switch state {
	case ConnectionStateConnectedBeforeAccepted:
		return connection.SetState(ConnectionStateConnectingBeforeAccepted)
	case ConnectionStateConnectedAndAccepted:
		return connection.SetState(ConnectionStateReconnectingAfterAccepted)
	default:
		fsm.unexpectedState(state, "IceDisconnected")
	}
	return nil
}

func (fsm *ConnectionStateMachine) handleIceNetworkRouteChanged(connection Connection, route NetworkRoute) error {
	if route.LocalAdapterType == NetworkAdapterTypeVpn {
		fsm.logger.Info("local ICE network adapter type changed, going through a VPN", "adapterType", route.LocalAdapterTypeUnderVpn.String())
	} else {
		fsm.logger.Info("local ICE network adapter type changed", "adapterType", route.LocalAdapterType.String())
	}
	if err := connection.SetNetworkRoute(route); err != nil {
		return err
	}
	fsm.notifyObserver(connection, ObserverIceNetworkRouteChanged{Route: route})

	return nil
}

func (fsm *ConnectionStateMachine) handleInternalError(connection Connection, callId CallId, internalError error) error {
	if connection.CallId() != callId {
		fsm.logger.Info("internal error for non-active call", "callId", callId.String(), "activeCallId", connection.CallId().String(), "error", internalError)
		return nil
	}
	var worker WorkerConnection = connection

	fsm.notifySpawn(func() {
		terminating, err := worker.Terminating()
		if err == nil {
			if terminating {
				return
			}
			err = worker.NotifyObserver(ObserverInternalError{Err: internalError})
		}
		if err != nil {
			// Re-injecting would loop, there is nobody left to tell.
			fsm.logger.Error(err, "notify error failed", "internalError", internalError)
		}
	})
	return nil
}

func (fsm *ConnectionStateMachine) handleReceivedIncomingMedia(connection Connection, state ConnectionState, stream MediaStream) error {
	if !state.ConnectingOrConnected() {
		fsm.unexpectedState(state, "ReceivedIncomingMedia")
		return nil
	}
	fsm.workerAction(connection, "Adding media stream failed", func(worker WorkerConnection) error {
		return worker.HandleReceivedIncomingMedia(stream)
	})
	return nil
}

func (fsm *ConnectionStateMachine) handleSynchronize(barrier *SyncBarrier) error {
	if err := fsm.syncActor(fsm.worker); err != nil {
		return err
	}
	if err := fsm.syncActor(fsm.notify); err != nil {
		return err
	}
	return barrier.Signal()
}

// syncActor waits until the tasks queued on actor so far have run. A stopped actor has no
// pending tasks.
func (fsm *ConnectionStateMachine) syncActor(actor *Actor) error {
	done := make(chan struct{})

	if !actor.Send(func() {
		fsm.logger.V(1).Info("syncing actor", "actor", actor.Name())
		close(done)
	}) {
		return nil
	}

	timer := time.NewTimer(fsm.settings.SyncTimeout)
	defer timer.Stop()

	select {
	case <-done:
		return nil
	case <-timer.C:
		return fmt.Errorf("%s: %w", actor.Name(), ErrSyncTimeout)
	}
}

func (fsm *ConnectionStateMachine) handleTerminate(connection Connection) error {
	fsm.stream.Close()
	// Notify tasks may depend on what worker tasks did, so the worker goes first.
	fsm.drainActor(fsm.worker)
	fsm.drainActor(fsm.notify)

	return connection.NotifyTerminateComplete()
}

func (fsm *ConnectionStateMachine) drainActor(actor *Actor) {
	fsm.logger.V(1).Info("draining actor", "actor", actor.Name())

	if err := actor.StopAndJoin(fsm.settings.JoinTimeout); err != nil {
		fsm.logger.Error(err, "draining actor failed", "actor", actor.Name())
		return
	}
	fsm.logger.V(1).Info("draining actor: complete", "actor", actor.Name())
}

func (fsm *ConnectionStateMachine) unexpectedState(state ConnectionState, event string) {
	fsm.logger.Info("unexpected event", "event", event, "state", state.String())
}

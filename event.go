package callrtc

import (
	"fmt"
	"strconv"
)

// ConnectionEvent is an input of the connection state machine. Events come from the call layer
// (signaling, RTP data, application actions) and from the peer connection observer (ICE, media).
type ConnectionEvent interface {
	fmt.Stringer
	connectionEvent()
}

// ReceivedIceEvent carries remote ICE candidates received over signaling.
type ReceivedIceEvent struct {
	Ice Ice
}

// ReceivedHangupEvent is a hangup from the remote peer, over signaling or RTP data.
type ReceivedHangupEvent struct {
	CallId CallId
	Hangup Hangup
}

// SendHangupViaRtpDataEvent asks to inform the remote peer of a hangup over RTP data. It is
// handled even while terminating.
type SendHangupViaRtpDataEvent struct {
	Hangup Hangup
}

// AcceptEvent is the local user accepting an incoming call.
type AcceptEvent struct{}

// ReceivedAcceptedViaRtpDataEvent is the remote peer's accept acknowledgement.
type ReceivedAcceptedViaRtpDataEvent struct {
	CallId CallId
}

type ReceivedSenderStatusEvent struct {
	CallId CallId
	Status SenderStatus
	Seqnum uint64
}

type ReceivedReceiverStatusEvent struct {
	CallId     CallId
	MaxBitrate DataRate
	Seqnum     uint64
}

// UpdateSenderStatusEvent sends a local sender status change to the remote peer.
type UpdateSenderStatusEvent struct {
	Status SenderStatus
}

type UpdateDataModeEvent struct {
	Mode DataMode
}

// LocalIceCandidatesEvent carries candidates gathered (or removed) locally.
type LocalIceCandidatesEvent struct {
	Candidates []IceCandidate
}

type IceConnectedEvent struct{}

type IceFailedEvent struct{}

type IceDisconnectedEvent struct{}

type IceNetworkRouteChangedEvent struct {
	Route NetworkRoute
}

// InternalErrorEvent reports a failure of a side effect. It is surfaced to the observer.
type InternalErrorEvent struct {
	CallId CallId
	Err    error
}

type ReceivedIncomingMediaEvent struct {
	Stream MediaStream
}

// SynchronizeEvent is signaled once every side effect queued before it has run.
type SynchronizeEvent struct {
	Barrier *SyncBarrier
}

// TerminateEvent closes the event stream and drains the workers of the state machine.
type TerminateEvent struct{}

func (ReceivedIceEvent) connectionEvent()                {}
func (ReceivedHangupEvent) connectionEvent()             {}
func (SendHangupViaRtpDataEvent) connectionEvent()       {}
func (AcceptEvent) connectionEvent()                     {}
func (ReceivedAcceptedViaRtpDataEvent) connectionEvent() {}
func (ReceivedSenderStatusEvent) connectionEvent()       {}
func (ReceivedReceiverStatusEvent) connectionEvent()     {}
func (UpdateSenderStatusEvent) connectionEvent()         {}
func (UpdateDataModeEvent) connectionEvent()             {}
func (LocalIceCandidatesEvent) connectionEvent()         {}
func (IceConnectedEvent) connectionEvent()               {}
func (IceFailedEvent) connectionEvent()                  {}
func (IceDisconnectedEvent) connectionEvent()            {}
func (IceNetworkRouteChangedEvent) connectionEvent()     {}
func (InternalErrorEvent) connectionEvent()              {}
func (ReceivedIncomingMediaEvent) connectionEvent()      {}
func (SynchronizeEvent) connectionEvent()                {}
func (TerminateEvent) connectionEvent()                  {}

func (e ReceivedIceEvent) String() string {
	return "ReceivedIce, candidates: " + strconv.Itoa(len(e.Ice.Candidates))
}

func (e ReceivedHangupEvent) String() string {
	return fmt.Sprintf("ReceivedHangup, call_id: %s, hangup: %s", e.CallId, e.Hangup)
}

func (e SendHangupViaRtpDataEvent) String() string {
	return "SendHangupViaRtpData, hangup: " + e.Hangup.String()
}

func (AcceptEvent) String() string {
	return "Accept"
}

func (e ReceivedAcceptedViaRtpDataEvent) String() string {
	return "ReceivedAcceptedViaRtpData, call_id: " + e.CallId.String()
}

func (e ReceivedSenderStatusEvent) String() string {
	return fmt.Sprintf("ReceivedSenderStatus, call_id: %s, status: %s, seqnum: %d", e.CallId, e.Status, e.Seqnum)
}

func (e ReceivedReceiverStatusEvent) String() string {
	return fmt.Sprintf("ReceivedReceiverStatus, call_id: %s, max_bitrate: %s, seqnum: %d", e.CallId, e.MaxBitrate, e.Seqnum)
}

func (e UpdateSenderStatusEvent) String() string {
	return "UpdateSenderStatus, status: " + e.Status.String()
}

func (e UpdateDataModeEvent) String() string {
	return "UpdateDataMode, mode: " + e.Mode.String()
}

func (e LocalIceCandidatesEvent) String() string {
	return "LocalIceCandidates, candidates: " + strconv.Itoa(len(e.Candidates))
}

func (IceConnectedEvent) String() string {
	return "IceConnected"
}

func (IceFailedEvent) String() string {
	return "IceFailed"
}

func (IceDisconnectedEvent) String() string {
	return "IceDisconnected"
}

func (e IceNetworkRouteChangedEvent) String() string {
	return "IceNetworkRouteChanged, network_route: " + e.Route.String()
}

func (e InternalErrorEvent) String() string {
	return fmt.Sprintf("InternalError, call_id: %s, error: %v", e.CallId, e.Err)
}

func (e ReceivedIncomingMediaEvent) String() string {
	if e.Stream == nil {
		return "ReceivedIncomingMedia"
	}
	return "ReceivedIncomingMedia, stream: " + e.Stream.StreamID()
}

func (SynchronizeEvent) String() string {
	return "Synchronize"
}

func (TerminateEvent) String() string {
	return "Terminate"
}

package callrtc

// WorkerConnection is the part of a connection that may be used outside the state machine
// goroutine. The worker and notify actors only ever hold a WorkerConnection.
//
// Implementations must be safe for concurrent use. None of these methods may change the
// connection state; a failure is reported by returning an error, which the caller turns into an
// InternalErrorEvent through InjectInternalError.
type WorkerConnection interface {
	CallId() CallId

	// Terminating reports whether termination has begun. Side effects are skipped once it has.
	Terminating() (bool, error)

	// NotifyObserver hands an event to the application observer.
	NotifyObserver(event ConnectionObserverEvent) error

	// InjectInternalError enqueues an InternalErrorEvent for this connection. context describes
	// the failed operation.
	InjectInternalError(err error, context string)

	SendAcceptedViaRtpData() error
	SendHangupViaRtpData(hangup Hangup) error
	UpdateSenderStatusFromFSM(status SenderStatus) error
	UpdateDataMode(mode DataMode) error
	BufferLocalIceCandidates(candidates []IceCandidate) error
	HandleReceivedIncomingMedia(stream MediaStream) error
}

// Connection is the connection as seen by the state machine. The methods beyond
// WorkerConnection are only called from the state machine goroutine.
type Connection interface {
	WorkerConnection

	State() (ConnectionState, error)
	SetState(state ConnectionState) error
	Direction() CallDirection
	HandleReceivedIce(ice Ice) error
	SetRemoteMaxBitrate(rate DataRate) error
	SetNetworkRoute(route NetworkRoute) error

	// NotifyTerminateComplete is called once the state machine has drained its actors.
	NotifyTerminateComplete() error
}

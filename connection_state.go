package callrtc

import "strconv"

// ConnectionState is the lifecycle phase of a connection.
//
// "BeforeAccepted" and "AfterAccepted" record whether the accept handshake (a local Accept or
// the remote "accepted" message) has happened; ICE connectivity alone only reaches
// ConnectedAndAccepted once it has.
type ConnectionState int

const (
	ConnectionStateNotYetStarted ConnectionState = iota
	// Offer or answer is being applied.
	ConnectionStateStarting
	ConnectionStateIceGathering
	ConnectionStateConnectingBeforeAccepted
	ConnectionStateConnectingAfterAccepted
	ConnectionStateConnectedBeforeAccepted
	ConnectionStateConnectedAndAccepted
	// ICE was lost after the call became active.
	ConnectionStateReconnectingAfterAccepted
	ConnectionStateIceFailed
	ConnectionStateTerminating
	ConnectionStateTerminated
)

var connectionStateNames = []string{
	"NotYetStarted",
	"Starting",
	"IceGathering",
	"ConnectingBeforeAccepted",
	"ConnectingAfterAccepted",
	"ConnectedBeforeAccepted",
	"ConnectedAndAccepted",
	"ReconnectingAfterAccepted",
	"IceFailed",
	"Terminating",
	"Terminated",
}

func (s ConnectionState) String() string {
	if s >= 0 && int(s) < len(connectionStateNames) {
		return connectionStateNames[s]
	}
	return "ConnectionState(" + strconv.Itoa(int(s)) + ")"
}

func (s ConnectionState) TerminatingOrTerminated() bool {
	return s == ConnectionStateTerminating || s == ConnectionStateTerminated
}

func (s ConnectionState) ConnectingOrConnected() bool {
	switch s {
	case ConnectionStateConnectingBeforeAccepted,
		ConnectionStateConnectingAfterAccepted,
		ConnectionStateConnectedBeforeAccepted,
		ConnectionStateConnectedAndAccepted,
		ConnectionStateReconnectingAfterAccepted:
		return true
	}
	return false
}

func (s ConnectionState) ConnectedOrReconnecting() bool {
	switch s {
	case ConnectionStateConnectedBeforeAccepted,
		ConnectionStateConnectedAndAccepted,
		ConnectionStateReconnectingAfterAccepted:
		return true
	}
	return false
}

func (s ConnectionState) CanReceiveIceCandidates() bool {
	return s == ConnectionStateStarting || s == ConnectionStateIceGathering || s.ConnectingOrConnected()
}

func (s ConnectionState) CanSendIceCandidates() bool {
	return s == ConnectionStateStarting || s == ConnectionStateIceGathering || s.ConnectingOrConnected()
}

// CanSendHangupViaRtp includes Terminating: the hangup of a terminating call is still sent.
func (s ConnectionState) CanSendHangupViaRtp() bool {
	return s.ConnectingOrConnected() || s == ConnectionStateTerminating
}

func (s ConnectionState) CanBeAcceptedLocally() bool {
	return s == ConnectionStateConnectedBeforeAccepted
}

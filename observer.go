package callrtc

import "fmt"

// ConnectionObserverEvent is delivered to the application through Connection.NotifyObserver,
// always from the notify actor.
type ConnectionObserverEvent interface {
	fmt.Stringer
	connectionObserverEvent()
}

// ObserverReceivedHangup reports that the remote peer hung up.
type ObserverReceivedHangup struct {
	Hangup Hangup
}

// ObserverRemoteSenderStatusChanged reports that the remote peer changed what it sends.
type ObserverRemoteSenderStatusChanged struct {
	Status SenderStatus
}

type ObserverIceNetworkRouteChanged struct {
	Route NetworkRoute
}

// ObserverInternalError reports a failure inside the connection. The call is expected to be
// terminated by the application.
type ObserverInternalError struct {
	Err error
}

func (ObserverReceivedHangup) connectionObserverEvent()            {}
func (ObserverRemoteSenderStatusChanged) connectionObserverEvent() {}
func (ObserverIceNetworkRouteChanged) connectionObserverEvent()    {}
func (ObserverInternalError) connectionObserverEvent()             {}

func (e ObserverReceivedHangup) String() string {
	return "ReceivedHangup, hangup: " + e.Hangup.String()
}

func (e ObserverRemoteSenderStatusChanged) String() string {
	return "RemoteSenderStatusChanged, status: " + e.Status.String()
}

func (e ObserverIceNetworkRouteChanged) String() string {
	return "IceNetworkRouteChanged, network_route: " + e.Route.String()
}

func (e ObserverInternalError) String() string {
	return fmt.Sprintf("InternalError, error: %v", e.Err)
}

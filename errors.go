package callrtc

import "errors"

var (
	ErrEventStreamClosed     = errors.New("event stream is closed")
	ErrActorJoinTimeout      = errors.New("actor join timed out")
	ErrSyncTimeout           = errors.New("synchronize timed out")
	ErrInvalidSyncBarrier    = errors.New("invalid synchronize barrier")
	ErrStateUnavailable      = errors.New("connection state unavailable")
	ErrUnknownRtpDataMessage = errors.New("unknown rtp data message")
	ErrDataChannelNotOpen    = errors.New("rtp data channel is not open")
	ErrConnectionTerminated  = errors.New("connection is terminated")
	ErrTerminateTimeout      = errors.New("terminate timed out")
)

package pionconn

import (
	"time"

	"github.com/go-logr/logr"
	"github.com/imdario/mergo"
	"github.com/pion/webrtc/v4"

	"github.com/jiyeyuran/callrtc"
)

// Settings configures a Connection.
type Settings struct {
	// Logger defaults to callrtc.NewLogger("PeerConnection").
	Logger *logr.Logger

	// ICEServers are the STUN and TURN servers used for candidate gathering. Without any, only
	// host candidates are gathered.
	ICEServers []webrtc.ICEServer

	// IncludeLoopbackCandidates gathers candidates on the loopback interface, which is all a
	// same-machine call has.
	IncludeLoopbackCandidates bool

	// DataChannelLabel and DataChannelID identify the negotiated data channel carrying RTP data
	// messages. Both peers must agree on them.
	DataChannelLabel string
	DataChannelID    uint16

	// DataChannelOpenTimeout bounds how long an RTP data message waits for the data channel
	// to open.
	DataChannelOpenTimeout time.Duration

	// SyncTimeout bounds the wait for the hangup message to be sent in Hangup.
	SyncTimeout time.Duration

	// LowDataModeBitrate and NormalDataModeBitrate are the max bitrates requested from the
	// remote peer for each data mode.
	LowDataModeBitrate    callrtc.DataRate
	NormalDataModeBitrate callrtc.DataRate
}

var DefaultSettings = Settings{
	DataChannelLabel:       "signaling",
	DataChannelID:          1,
	DataChannelOpenTimeout: 5 * time.Second,
	SyncTimeout:            3 * time.Second,
	LowDataModeBitrate:     callrtc.DataRateFromKbps(500),
	NormalDataModeBitrate:  callrtc.DataRateFromKbps(2000),
}

type Option func(*Settings)

func WithLogger(logger logr.Logger) Option {
	return func(s *Settings) {
		s.Logger = &logger
	}
}

func WithICEServers(servers ...webrtc.ICEServer) Option {
	return func(s *Settings) {
		s.ICEServers = servers
	}
}

func WithLoopbackCandidates() Option {
	return func(s *Settings) {
		s.IncludeLoopbackCandidates = true
	}
}

func WithDataChannel(label string, id uint16) Option {
	return func(s *Settings) {
		s.DataChannelLabel = label
		s.DataChannelID = id
	}
}

func WithDataChannelOpenTimeout(timeout time.Duration) Option {
	return func(s *Settings) {
		s.DataChannelOpenTimeout = timeout
	}
}

func WithDataModeBitrates(low, normal callrtc.DataRate) Option {
	return func(s *Settings) {
		s.LowDataModeBitrate = low
		s.NormalDataModeBitrate = normal
	}
}

func newSettings(options ...Option) Settings {
	settings := Settings{}
	for _, option := range options {
		option(&settings)
	}
	_ = mergo.Merge(&settings, DefaultSettings)

	if settings.Logger == nil {
		logger := callrtc.NewLogger("PeerConnection")
		settings.Logger = &logger
	}
	return settings
}

func (s Settings) maxBitrate(mode callrtc.DataMode) callrtc.DataRate {
	if mode == callrtc.DataModeLow {
		return s.LowDataModeBitrate
	}
	return s.NormalDataModeBitrate
}

package callrtc

import (
	"time"

	"github.com/go-logr/logr"
)

// Settings configures a ConnectionStateMachine.
type Settings struct {
	// Logger defaults to NewLogger("ConnectionFSM").
	Logger *logr.Logger

	// WorkerName names the actor running protocol actions. Defaults to "connection-fsm-worker".
	WorkerName string

	// NotifyName names the actor running observer notifications. Defaults to
	// "connection-fsm-notify".
	NotifyName string

	// SyncTimeout bounds the wait for each actor while handling a SynchronizeEvent.
	// Defaults to 2s.
	SyncTimeout time.Duration

	// JoinTimeout bounds the wait for each actor goroutine to exit on TerminateEvent.
	// Defaults to 5s.
	JoinTimeout time.Duration
}

// DefaultSettings holds the values used for unset Settings fields.
var DefaultSettings = Settings{
	WorkerName:  "connection-fsm-worker",
	NotifyName:  "connection-fsm-notify",
	SyncTimeout: 2 * time.Second,
	JoinTimeout: 5 * time.Second,
}

type Option func(*Settings)

func WithLogger(logger logr.Logger) Option {
	return func(s *Settings) {
		s.Logger = &logger
	}
}

func WithActorNames(worker, notify string) Option {
	return func(s *Settings) {
		s.WorkerName = worker
		s.NotifyName = notify
	}
}

func WithSyncTimeout(timeout time.Duration) Option {
	return func(s *Settings) {
		s.SyncTimeout = timeout
	}
}

func WithJoinTimeout(timeout time.Duration) Option {
	return func(s *Settings) {
		s.JoinTimeout = timeout
	}
}

func newSettings(options ...Option) Settings {
	settings := Settings{}
	for _, option := range options {
		option(&settings)
	}
	// Settings holds no maps or slices, merging cannot fail.
	_ = fillDefaults(&settings, DefaultSettings)

	if settings.Logger == nil {
		logger := NewLogger("ConnectionFSM")
		settings.Logger = &logger
	}
	return settings
}

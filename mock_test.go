package callrtc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// MockFunc records calls made from actor tasks, which run on other goroutines.
type MockFunc struct {
	require *require.Assertions
	calls   chan []any
	settle  time.Duration
}

func NewMockFunc(t *testing.T) *MockFunc {
	return &MockFunc{
		require: require.New(t),
		calls:   make(chan []any, 128),
		settle:  50 * time.Millisecond,
	}
}

func (m *MockFunc) Fn() func(...any) {
	return func(args ...any) {
		m.calls <- args
	}
}

// ExpectCalledWith waits for the next call and compares its arguments.
func (m *MockFunc) ExpectCalledWith(args ...any) {
	select {
	case got := <-m.calls:
		m.require.Len(got, len(args), "argument count")
		for i, arg := range args {
			m.require.EqualValues(arg, got[i])
		}
	case <-time.After(time.Second):
		m.require.FailNow("fn is not called")
	}
}

// ExpectCalledTimes collects calls until none arrive for the settle period.
func (m *MockFunc) ExpectCalledTimes(times int, msgAndArgs ...any) {
	called := 0
	for {
		select {
		case <-m.calls:
			called++
		case <-time.After(m.settle):
			m.require.Equal(times, called, msgAndArgs...)
			return
		}
	}
}

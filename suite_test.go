package callrtc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// TestingSuite fails the test on the first broken assertion.
type TestingSuite struct {
	*require.Assertions
	proxy suite.Suite
}

func (suite *TestingSuite) T() *testing.T {
	return suite.proxy.T()
}

func (suite *TestingSuite) SetT(t *testing.T) {
	suite.proxy.SetT(t)
	suite.Assertions = require.New(t)
}

func (suite *TestingSuite) SetS(s suite.TestingSuite) {
	suite.proxy.SetS(s)
}

func (suite *TestingSuite) Require() *require.Assertions {
	return suite.Assertions
}

func (suite *TestingSuite) Fn() *MockFunc {
	return NewMockFunc(suite.T())
}

// WaitClosed fails the test when done is not closed within timeout.
func (suite *TestingSuite) WaitClosed(done <-chan struct{}, timeout time.Duration, msg string) {
	select {
	case <-done:
	case <-time.After(timeout):
		suite.FailNow(msg)
	}
}

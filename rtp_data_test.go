package callrtc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRtpDataMessage_Roundtrip(t *testing.T) {
	message := RtpDataMessage{
		Seqnum:         9,
		Hangup:         &HangupMessage{CallId: 42, Hangup: Hangup{Type: HangupTypeBusyOnAnotherDevice, DeviceId: 3}},
		SenderStatus:   &SenderStatusMessage{CallId: 42, Status: SenderStatus{VideoEnabled: Bool(false)}},
		ReceiverStatus: &ReceiverStatusMessage{CallId: 42, MaxBitrateBps: 500_000},
	}

	data, err := message.Marshal()
	require.NoError(t, err)

	again, err := message.Marshal()
	require.NoError(t, err)
	assert.Equal(t, data, again)

	decoded, err := UnmarshalRtpDataMessage(data)
	require.NoError(t, err)
	assert.Equal(t, message, decoded)
}

func TestRtpDataMessage_Empty(t *testing.T) {
	_, err := RtpDataMessage{Seqnum: 1}.Marshal()
	assert.ErrorIs(t, err, ErrUnknownRtpDataMessage)

	// {1: 1}
	_, err = UnmarshalRtpDataMessage([]byte{0xa1, 0x01, 0x01})
	assert.ErrorIs(t, err, ErrUnknownRtpDataMessage)

	_, err = UnmarshalRtpDataMessage([]byte{0xff})
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnknownRtpDataMessage)
}

func TestRtpDataMessage_Events(t *testing.T) {
	status := SenderStatus{AudioEnabled: Bool(true)}
	message := RtpDataMessage{
		Seqnum:         3,
		Accepted:       &AcceptedMessage{CallId: 7},
		Hangup:         &HangupMessage{CallId: 7, Hangup: Hangup{Type: HangupTypeNormal}},
		SenderStatus:   &SenderStatusMessage{CallId: 7, Status: status},
		ReceiverStatus: &ReceiverStatusMessage{CallId: 7, MaxBitrateBps: 2_000_000},
	}

	assert.Equal(t, []ConnectionEvent{
		ReceivedAcceptedViaRtpDataEvent{CallId: 7},
		ReceivedHangupEvent{CallId: 7, Hangup: Hangup{Type: HangupTypeNormal}},
		ReceivedSenderStatusEvent{CallId: 7, Status: status, Seqnum: 3},
		ReceivedReceiverStatusEvent{CallId: 7, MaxBitrate: DataRateFromKbps(2000), Seqnum: 3},
	}, message.Events())

	assert.Empty(t, RtpDataMessage{}.Events())
}

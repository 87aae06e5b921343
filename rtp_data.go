package callrtc

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// RtpDataMessage is the in-band message exchanged over the data channel once ICE is connected.
// Every message sent by a peer carries a new Seqnum; a message may be retransmitted as is, so
// receivers deduplicate by Seqnum.
type RtpDataMessage struct {
	Seqnum         uint64                 `cbor:"1,keyasint,omitempty"`
	Accepted       *AcceptedMessage       `cbor:"2,keyasint,omitempty"`
	Hangup         *HangupMessage         `cbor:"3,keyasint,omitempty"`
	SenderStatus   *SenderStatusMessage   `cbor:"4,keyasint,omitempty"`
	ReceiverStatus *ReceiverStatusMessage `cbor:"5,keyasint,omitempty"`
}

type AcceptedMessage struct {
	CallId CallId `cbor:"1,keyasint"`
}

type HangupMessage struct {
	CallId CallId `cbor:"1,keyasint"`
	Hangup Hangup `cbor:"2,keyasint"`
}

type SenderStatusMessage struct {
	CallId CallId       `cbor:"1,keyasint"`
	Status SenderStatus `cbor:"2,keyasint"`
}

type ReceiverStatusMessage struct {
	CallId        CallId `cbor:"1,keyasint"`
	MaxBitrateBps uint64 `cbor:"2,keyasint"`
}

var (
	rtpDataEncMode cbor.EncMode
	rtpDataDecMode cbor.DecMode
)

func init() {
	var err error

	// Core Deterministic Encoding: a retransmitted message is byte for byte the same.
	rtpDataEncMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("callrtc: CBOR encoder initialization failed: " + err.Error())
	}
	rtpDataDecMode, err = cbor.DecOptions{
		DupMapKey: cbor.DupMapKeyEnforcedAPF,
	}.DecMode()
	if err != nil {
		panic("callrtc: CBOR decoder initialization failed: " + err.Error())
	}
}

func (m RtpDataMessage) empty() bool {
	return m.Accepted == nil && m.Hangup == nil && m.SenderStatus == nil && m.ReceiverStatus == nil
}

// Marshal encodes m to CBOR.
func (m RtpDataMessage) Marshal() ([]byte, error) {
	if m.empty() {
		return nil, ErrUnknownRtpDataMessage
	}
	return rtpDataEncMode.Marshal(m)
}

// UnmarshalRtpDataMessage decodes a message received over the data channel.
func UnmarshalRtpDataMessage(data []byte) (RtpDataMessage, error) {
	var message RtpDataMessage

	if err := rtpDataDecMode.Unmarshal(data, &message); err != nil {
		return message, fmt.Errorf("decoding rtp data message: %w", err)
	}
	if message.empty() {
		return message, ErrUnknownRtpDataMessage
	}
	return message, nil
}

// Events translates a received message into state machine events, in the order accepted,
// hangup, sender status, receiver status.
func (m RtpDataMessage) Events() []ConnectionEvent {
	var events []ConnectionEvent

	if m.Accepted != nil {
		events = append(events, ReceivedAcceptedViaRtpDataEvent{CallId: m.Accepted.CallId})
	}
	if m.Hangup != nil {
		events = append(events, ReceivedHangupEvent{CallId: m.Hangup.CallId, Hangup: m.Hangup.Hangup})
	}
	if m.SenderStatus != nil {
		events = append(events, ReceivedSenderStatusEvent{
			CallId: m.SenderStatus.CallId,
			Status: m.SenderStatus.Status,
			Seqnum: m.Seqnum,
		})
	}
	if m.ReceiverStatus != nil {
		events = append(events, ReceivedReceiverStatusEvent{
			CallId:     m.ReceiverStatus.CallId,
			MaxBitrate: DataRate(m.ReceiverStatus.MaxBitrateBps),
			Seqnum:     m.Seqnum,
		})
	}
	return events
}

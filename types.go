package callrtc

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// CallId identifies one call between two devices. Both sides of a call share it.
type CallId uint64

// NewCallId returns a random non-zero call id.
func NewCallId() CallId {
	for {
		random := uuid.New()
		if id := binary.BigEndian.Uint64(random[:8]); id != 0 {
			return CallId(id)
		}
	}
}

func (id CallId) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

type DeviceId uint32

type CallDirection int

const (
	// CallDirectionIncoming is the recipient side of a call.
	CallDirectionIncoming CallDirection = iota
	// CallDirectionOutgoing is the caller side of a call.
	CallDirectionOutgoing
)

func (d CallDirection) String() string {
	switch d {
	case CallDirectionIncoming:
		return "Incoming"
	case CallDirectionOutgoing:
		return "Outgoing"
	default:
		return "CallDirection(" + strconv.Itoa(int(d)) + ")"
	}
}

// DataMode is the application chosen bandwidth profile. It is turned into a receiver status
// (max bitrate) sent to the remote peer.
type DataMode int

const (
	DataModeLow DataMode = iota
	DataModeNormal
)

func (m DataMode) String() string {
	switch m {
	case DataModeLow:
		return "Low"
	case DataModeNormal:
		return "Normal"
	default:
		return "DataMode(" + strconv.Itoa(int(m)) + ")"
	}
}

// DataRate is a bitrate in bits per second.
type DataRate uint64

func DataRateFromKbps(kbps uint64) DataRate {
	return DataRate(kbps * 1000)
}

func (r DataRate) Bps() uint64 {
	return uint64(r)
}

func (r DataRate) Kbps() uint64 {
	return uint64(r) / 1000
}

func (r DataRate) String() string {
	return strconv.FormatUint(r.Kbps(), 10) + "kbps"
}

// SenderStatus describes what the local side is sending. A nil field means "unchanged" in
// updates and "unknown" in received statuses.
type SenderStatus struct {
	VideoEnabled  *bool `cbor:"1,keyasint,omitempty" json:"videoEnabled,omitempty"`
	SharingScreen *bool `cbor:"2,keyasint,omitempty" json:"sharingScreen,omitempty"`
	AudioEnabled  *bool `cbor:"3,keyasint,omitempty" json:"audioEnabled,omitempty"`
}

// Equal compares the pointed-to values, not the pointers.
func (s SenderStatus) Equal(other SenderStatus) bool {
	return boolPtrEqual(s.VideoEnabled, other.VideoEnabled) &&
		boolPtrEqual(s.SharingScreen, other.SharingScreen) &&
		boolPtrEqual(s.AudioEnabled, other.AudioEnabled)
}

func (s SenderStatus) String() string {
	return fmt.Sprintf("{video: %s, screen: %s, audio: %s}",
		boolPtrString(s.VideoEnabled), boolPtrString(s.SharingScreen), boolPtrString(s.AudioEnabled))
}

// Merge returns s with the fields set in update applied over it.
func (s SenderStatus) Merge(update SenderStatus) SenderStatus {
	merged := s
	// SenderStatus only holds pointers, merging cannot fail.
	_ = override(&merged, update)
	return merged
}

func boolPtrEqual(a, b *bool) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func boolPtrString(b *bool) string {
	if b == nil {
		return "?"
	}
	return strconv.FormatBool(*b)
}

// Bool returns a pointer of v, for filling SenderStatus.
func Bool(v bool) *bool {
	return &v
}

type HangupType int

const (
	HangupTypeNormal HangupType = iota
	HangupTypeAcceptedOnAnotherDevice
	HangupTypeDeclinedOnAnotherDevice
	HangupTypeBusyOnAnotherDevice
	HangupTypeNeedPermission
)

func (t HangupType) String() string {
	switch t {
	case HangupTypeNormal:
		return "Normal"
	case HangupTypeAcceptedOnAnotherDevice:
		return "AcceptedOnAnotherDevice"
	case HangupTypeDeclinedOnAnotherDevice:
		return "DeclinedOnAnotherDevice"
	case HangupTypeBusyOnAnotherDevice:
		return "BusyOnAnotherDevice"
	case HangupTypeNeedPermission:
		return "NeedPermission"
	default:
		return "HangupType(" + strconv.Itoa(int(t)) + ")"
	}
}

// Hangup is the reason a call ended. DeviceId is only meaningful for the "on another device"
// types and NeedPermission.
type Hangup struct {
	Type     HangupType `cbor:"1,keyasint"`
	DeviceId DeviceId   `cbor:"2,keyasint,omitempty"`
}

func (h Hangup) String() string {
	if h.Type == HangupTypeNormal {
		return h.Type.String()
	}
	return h.Type.String() + "/" + strconv.FormatUint(uint64(h.DeviceId), 10)
}

// IceCandidate is one ICE candidate as exchanged over signaling. Removed marks a candidate
// the sender no longer uses.
type IceCandidate struct {
	Candidate     string `json:"candidate"`
	SdpMid        string `json:"sdpMid,omitempty"`
	SdpMLineIndex uint16 `json:"sdpMLineIndex"`
	Removed       bool   `json:"removed,omitempty"`
}

// Ice is a batch of remote ICE candidates received over signaling.
type Ice struct {
	Candidates []IceCandidate `json:"candidates"`
}

type NetworkAdapterType int

const (
	NetworkAdapterTypeUnknown NetworkAdapterType = iota
	NetworkAdapterTypeEthernet
	NetworkAdapterTypeWifi
	NetworkAdapterTypeCellular
	NetworkAdapterTypeVpn
	NetworkAdapterTypeLoopback
	NetworkAdapterTypeAny
	NetworkAdapterTypeCellular2G
	NetworkAdapterTypeCellular3G
	NetworkAdapterTypeCellular4G
	NetworkAdapterTypeCellular5G
)

var networkAdapterTypeNames = []string{
	"Unknown", "Ethernet", "Wifi", "Cellular", "Vpn", "Loopback", "Any",
	"Cellular2G", "Cellular3G", "Cellular4G", "Cellular5G",
}

func (t NetworkAdapterType) String() string {
	if t >= 0 && int(t) < len(networkAdapterTypeNames) {
		return networkAdapterTypeNames[t]
	}
	return "NetworkAdapterType(" + strconv.Itoa(int(t)) + ")"
}

// NetworkRoute describes the selected ICE candidate pair.
type NetworkRoute struct {
	LocalAdapterType         NetworkAdapterType
	LocalAdapterTypeUnderVpn NetworkAdapterType
	LocalRelayed             bool
	LocalRelayProtocol       string
	RemoteRelayed            bool
}

func (r NetworkRoute) String() string {
	var b strings.Builder
	b.WriteString("{local: ")
	b.WriteString(r.LocalAdapterType.String())
	if r.LocalAdapterType == NetworkAdapterTypeVpn {
		b.WriteString(" over ")
		b.WriteString(r.LocalAdapterTypeUnderVpn.String())
	}
	if r.LocalRelayed {
		b.WriteString(", relayed")
		if len(r.LocalRelayProtocol) > 0 {
			b.WriteString("/" + r.LocalRelayProtocol)
		}
	}
	if r.RemoteRelayed {
		b.WriteString(", remote relayed")
	}
	b.WriteString("}")
	return b.String()
}

// MediaStream is an incoming media stream handed to the connection once it arrives.
// *webrtc.TrackRemote satisfies it.
type MediaStream interface {
	StreamID() string
}

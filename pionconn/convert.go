package pionconn

import (
	"net"

	"github.com/pion/webrtc/v4"

	"github.com/jiyeyuran/callrtc"
)

func iceCandidateFromPion(candidate *webrtc.ICECandidate) callrtc.IceCandidate {
	candidateInit := candidate.ToJSON()

	iceCandidate := callrtc.IceCandidate{Candidate: candidateInit.Candidate}
	if candidateInit.SDPMid != nil {
		iceCandidate.SdpMid = *candidateInit.SDPMid
	}
	if candidateInit.SDPMLineIndex != nil {
		iceCandidate.SdpMLineIndex = *candidateInit.SDPMLineIndex
	}
	return iceCandidate
}

func iceCandidateInit(candidate callrtc.IceCandidate) webrtc.ICECandidateInit {
	candidateInit := webrtc.ICECandidateInit{
		Candidate:     candidate.Candidate,
		SDPMLineIndex: &candidate.SdpMLineIndex,
	}
	if len(candidate.SdpMid) > 0 {
		candidateInit.SDPMid = &candidate.SdpMid
	}
	return candidateInit
}

// networkRouteFromPair describes the selected candidate pair. pion does not expose the network
// interface of a candidate, so only loopback addresses get a known adapter type.
func networkRouteFromPair(pair *webrtc.ICECandidatePair) callrtc.NetworkRoute {
	var route callrtc.NetworkRoute

	if pair == nil {
		return route
	}
	if local := pair.Local; local != nil {
		route.LocalAdapterType = adapterType(local.Address)
		if local.Typ == webrtc.ICECandidateTypeRelay {
			route.LocalRelayed = true
			route.LocalRelayProtocol = local.Protocol.String()
		}
	}
	if remote := pair.Remote; remote != nil {
		route.RemoteRelayed = remote.Typ == webrtc.ICECandidateTypeRelay
	}
	return route
}

func adapterType(address string) callrtc.NetworkAdapterType {
	if ip := net.ParseIP(address); ip != nil && ip.IsLoopback() {
		return callrtc.NetworkAdapterTypeLoopback
	}
	return callrtc.NetworkAdapterTypeUnknown
}

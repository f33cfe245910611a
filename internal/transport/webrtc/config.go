package webrtc

import "github.com/pion/webrtc/v3"

const channelProtocol = "rt-share"

func DefaultConfiguration(iceServers []string) webrtc.Configuration {
	servers := []webrtc.ICEServer{}
	if len(iceServers) > 0 {
		servers = append(servers, webrtc.ICEServer{URLs: iceServers})
	}
	return webrtc.Configuration{
		ICEServers:         servers,
		ICETransportPolicy: webrtc.ICETransportPolicyAll,
	}
}

func DefaultDataChannelConfig() *webrtc.DataChannelInit {
	protocolName := channelProtocol
	ordered := true
	return &webrtc.DataChannelInit{
		Ordered:        &ordered,
		MaxRetransmits: nil,
		Protocol:       &protocolName,
	}
}

package transport

import "testing"

func TestConnectionStateFailed(t *testing.T) {
	tests := []struct {
		state ConnectionState
		want  bool
	}{
		{ConnectionNew, false},
		{ConnectionConnecting, false},
		{ConnectionConnected, false},
		{ConnectionDisconnected, true},
		{ConnectionFailed, true},
		{ConnectionClosed, true},
	}

	for _, tt := range tests {
		if got := tt.state.Failed(); got != tt.want {
			t.Errorf("%s.Failed() = %v, want %v", tt.state, got, tt.want)
		}
	}
}

func TestSignalingStateString(t *testing.T) {
	if SignalingHaveLocalOffer.String() != "have-local-offer" {
		t.Errorf("unexpected name %q", SignalingHaveLocalOffer.String())
	}
	if SignalingState(42).String() != "unknown" {
		t.Error("expected unknown for out of range state")
	}
}

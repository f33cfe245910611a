package signaling

import (
	"errors"
	"testing"
)

func TestEncode_NewlineTerminated(t *testing.T) {
	data, err := Encode(Request{Type: TypeJoin, Payload: "48213"})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	want := `{"type":"join","payload":"48213"}` + "\n"
	if string(data) != want {
		t.Errorf("expected %q, got %q", want, data)
	}
}

func TestDecode_JoinRoster(t *testing.T) {
	tests := []struct {
		name string
		line string
		want []PeerInfo
	}{
		{
			name: "string encoded id list",
			line: `{"type":"join","status":"ok","message":"User A joined","data":"[\"B\",\"C\"]"}`,
			want: []PeerInfo{{ID: "B"}, {ID: "C"}},
		},
		{
			name: "object entries",
			line: `{"type":"join","status":"ok","data":[{"id":"B","ip":"10.0.0.2"}]}`,
			want: []PeerInfo{{ID: "B", IP: "10.0.0.2"}},
		},
		{
			name: "empty roster",
			line: `{"type":"join","status":"ok","data":"[]"}`,
			want: []PeerInfo{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, ok, err := Decode([]byte(tt.line))
			if err != nil || !ok {
				t.Fatalf("Decode failed: ok=%v err=%v", ok, err)
			}
			if ev.Kind != EventJoined {
				t.Fatalf("expected EventJoined, got %v", ev.Kind)
			}
			if len(ev.Peers) != len(tt.want) {
				t.Fatalf("expected %d peers, got %v", len(tt.want), ev.Peers)
			}
			for i := range tt.want {
				if ev.Peers[i] != tt.want[i] {
					t.Errorf("peer %d: expected %+v, got %+v", i, tt.want[i], ev.Peers[i])
				}
			}
		})
	}
}

func TestDecode_RosterDeltas(t *testing.T) {
	ev, ok, err := Decode([]byte(`{"type":"join","status":"userJoin","data":"B","ip":"192.168.1.4"}`))
	if err != nil || !ok {
		t.Fatalf("Decode failed: ok=%v err=%v", ok, err)
	}
	if ev.Kind != EventUserJoin || ev.Sender != "B" || ev.Peers[0].IP != "192.168.1.4" {
		t.Errorf("unexpected event %+v", ev)
	}

	ev, ok, err = Decode([]byte(`{"type":"leave","status":"userLeft","data":"B"}`))
	if err != nil || !ok {
		t.Fatalf("Decode failed: ok=%v err=%v", ok, err)
	}
	if ev.Kind != EventUserLeft || ev.Sender != "B" {
		t.Errorf("unexpected event %+v", ev)
	}
}

func TestDecode_Forward(t *testing.T) {
	line := `{"type":"offer","status":"forward","data":"{\"type\":\"offer\",\"sdp\":\"v=0\"}","sender":"B"}`

	ev, ok, err := Decode([]byte(line))
	if err != nil || !ok {
		t.Fatalf("Decode failed: ok=%v err=%v", ok, err)
	}
	if ev.Kind != EventOffer {
		t.Errorf("expected EventOffer, got %v", ev.Kind)
	}
	if ev.Sender != "B" {
		t.Errorf("expected sender B, got %q", ev.Sender)
	}
	if ev.Payload != `{"type":"offer","sdp":"v=0"}` {
		t.Errorf("unexpected payload %q", ev.Payload)
	}
}

func TestDecode_Ignored(t *testing.T) {
	lines := []string{
		`{"type":"heartbeat","status":"ping"}`,
		`{"type":"offer","status":"ok","message":"forwarded"}`,
		`{"type":"leave","status":"ok","message":"Left","data":"[]"}`,
	}

	for _, line := range lines {
		_, ok, err := Decode([]byte(line))
		if err != nil {
			t.Errorf("%s: unexpected error %v", line, err)
		}
		if ok {
			t.Errorf("%s: expected frame to be ignored", line)
		}
	}
}

func TestDecode_RelayError(t *testing.T) {
	ev, ok, err := Decode([]byte(`{"type":"offer","status":"error","message":"User not found"}`))
	if err != nil || !ok {
		t.Fatalf("Decode failed: ok=%v err=%v", ok, err)
	}
	if ev.Kind != EventRelayError || ev.Err == nil {
		t.Errorf("expected relay error event, got %+v", ev)
	}
}

func TestDecode_Malformed(t *testing.T) {
	lines := []string{
		`{"type":`,
		`{"type":"offer","status":"forward","data":"x"}`,
		`{"type":"bogus","status":"forward","data":"x","sender":"B"}`,
		`{"type":"join","status":"weird"}`,
	}

	for _, line := range lines {
		_, _, err := Decode([]byte(line))
		var decodeErr *DecodeError
		if !errors.As(err, &decodeErr) {
			t.Errorf("%s: expected DecodeError, got %v", line, err)
		}
	}
}

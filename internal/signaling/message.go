package signaling

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

const (
	TypeJoin      = "join"
	TypeLeave     = "leave"
	TypeOffer     = "offer"
	TypeAnswer    = "answer"
	TypeCandidate = "candidate"
	TypeHeartbeat = "heartbeat"

	StatusOK       = "ok"
	StatusUserJoin = "userJoin"
	StatusUserLeft = "userLeft"
	StatusForward  = "forward"
	StatusError    = "error"
	StatusPing     = "ping"
)

// Request is an outbound frame. Payload is the identity for join/leave and
// the target peer for forwarded messages; Text carries the forwarded blob.
type Request struct {
	Type    string `json:"type"`
	Payload string `json:"payload"`
	Text    string `json:"text,omitempty"`
}

// Response is an inbound frame as sent by the relay.
type Response struct {
	Type    string          `json:"type"`
	Status  string          `json:"status"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Sender  string          `json:"sender,omitempty"`
	IP      string          `json:"ip,omitempty"`
}

type PeerInfo struct {
	ID string `json:"id"`
	IP string `json:"ip,omitempty"`
}

type EventKind int

const (
	EventJoined EventKind = iota
	EventUserJoin
	EventUserLeft
	EventOffer
	EventAnswer
	EventCandidate
	EventRelayError
	EventClosed
)

func (k EventKind) String() string {
	switch k {
	case EventJoined:
		return "joined"
	case EventUserJoin:
		return "user-join"
	case EventUserLeft:
		return "user-left"
	case EventOffer:
		return "offer"
	case EventAnswer:
		return "answer"
	case EventCandidate:
		return "candidate"
	case EventRelayError:
		return "relay-error"
	case EventClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Event is a decoded inbound message. Peers is set for EventJoined (the full
// roster) and EventUserJoin/EventUserLeft (the single peer concerned).
type Event struct {
	Kind    EventKind
	Sender  string
	Payload string
	Peers   []PeerInfo
	Err     error
}

type DecodeError struct {
	Raw []byte
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("signaling: decoding %q: %v", e.Raw, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Encode returns req as a newline-terminated JSON line.
func Encode(req Request) ([]byte, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding %s request: %w", req.Type, err)
	}
	return append(data, '\n'), nil
}

// Decode parses one line. ok is false for frames that carry nothing for the
// caller: heartbeats and the relay's acknowledgements of our own requests.
func Decode(line []byte) (Event, bool, error) {
	line = bytes.TrimSpace(line)

	var res Response
	if err := json.Unmarshal(line, &res); err != nil {
		return Event{}, false, &DecodeError{Raw: line, Err: err}
	}

	switch res.Status {
	case StatusPing:
		return Event{}, false, nil
	case StatusError:
		return Event{Kind: EventRelayError, Err: fmt.Errorf("relay: %s: %s", res.Type, res.Message)}, true, nil
	case StatusOK:
		if res.Type != TypeJoin {
			return Event{}, false, nil
		}
		peers, err := decodeRoster(res.Data)
		if err != nil {
			return Event{}, false, &DecodeError{Raw: line, Err: err}
		}
		return Event{Kind: EventJoined, Peers: peers}, true, nil
	case StatusUserJoin, StatusUserLeft:
		peers, err := decodeRoster(res.Data)
		if err != nil || len(peers) != 1 {
			return Event{}, false, &DecodeError{Raw: line, Err: errors.New("expected a single peer id")}
		}
		if peers[0].IP == "" {
			peers[0].IP = res.IP
		}
		kind := EventUserJoin
		if res.Status == StatusUserLeft {
			kind = EventUserLeft
		}
		return Event{Kind: kind, Sender: peers[0].ID, Peers: peers}, true, nil
	case StatusForward:
		var kind EventKind
		switch res.Type {
		case TypeOffer:
			kind = EventOffer
		case TypeAnswer:
			kind = EventAnswer
		case TypeCandidate:
			kind = EventCandidate
		default:
			return Event{}, false, &DecodeError{Raw: line, Err: fmt.Errorf("unknown forwarded type %q", res.Type)}
		}
		if res.Sender == "" {
			return Event{}, false, &DecodeError{Raw: line, Err: errors.New("forwarded message without sender")}
		}
		payload, err := decodePayload(res.Data)
		if err != nil {
			return Event{}, false, &DecodeError{Raw: line, Err: err}
		}
		return Event{Kind: kind, Sender: res.Sender, Payload: payload}, true, nil
	}

	return Event{}, false, &DecodeError{Raw: line, Err: fmt.Errorf("unknown status %q", res.Status)}
}

// decodePayload accepts the forwarded blob either as a JSON string, which is
// what the relay produces, or as an inline JSON value.
func decodePayload(data json.RawMessage) (string, error) {
	if len(data) == 0 {
		return "", errors.New("empty payload")
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return s, nil
	}
	return string(data), nil
}

// decodeRoster accepts a bare id, a list of ids or {id, ip} objects, and
// either of those wrapped in a JSON string.
func decodeRoster(data json.RawMessage) ([]PeerInfo, error) {
	if len(data) == 0 {
		return nil, nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		trimmed := bytes.TrimSpace([]byte(s))
		if len(trimmed) > 0 && (trimmed[0] == '[' || trimmed[0] == '{') {
			return decodeRoster(trimmed)
		}
		if s == "" {
			return nil, nil
		}
		return []PeerInfo{{ID: s}}, nil
	}

	var obj PeerInfo
	if err := json.Unmarshal(data, &obj); err == nil && obj.ID != "" {
		return []PeerInfo{obj}, nil
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("roster: %w", err)
	}

	peers := make([]PeerInfo, 0, len(entries))
	for _, entry := range entries {
		var id string
		if err := json.Unmarshal(entry, &id); err == nil {
			peers = append(peers, PeerInfo{ID: id})
			continue
		}
		var p PeerInfo
		if err := json.Unmarshal(entry, &p); err != nil || p.ID == "" {
			return nil, fmt.Errorf("roster entry %s is neither an id nor {id, ip}", entry)
		}
		peers = append(peers, p)
	}
	return peers, nil
}

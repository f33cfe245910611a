package signaling

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/diesing/rt-share/internal/logger"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// fakeRelay answers join with a roster and echoes offers back as forwards
// from peer "B". Requests are recorded on the returned channel.
func fakeRelay(t *testing.T) (string, <-chan Request) {
	t.Helper()
	received := make(chan Request, 16)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var req Request
			for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
				if err := jsonUnmarshal(line, &req); err != nil {
					continue
				}
				received <- req

				var reply string
				switch req.Type {
				case TypeJoin:
					// malformed frame first, then a heartbeat, then the real answer
					reply = "{oops\n" +
						`{"type":"heartbeat","status":"ping"}` + "\n" +
						`{"type":"join","status":"ok","data":"[\"B\",\"` + req.Payload + `\"]"}` + "\n"
				case TypeOffer:
					reply = `{"type":"offer","status":"forward","data":` + quote(req.Text) + `,"sender":"B"}` + "\n"
				default:
					continue
				}
				if err := conn.WriteMessage(websocket.TextMessage, []byte(reply)); err != nil {
					return
				}
			}
		}
	}))
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http"), received
}

func dialTest(t *testing.T, addr string) (*Client, <-chan Event) {
	t.Helper()
	events := make(chan Event, 16)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := Dial(ctx, WebSocketDialer{}, addr, func(ev Event) { events <- ev }, logger.Discard())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	return c, events
}

func nextEvent(t *testing.T, events <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-events:
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestClient_JoinReceivesRoster(t *testing.T) {
	addr, received := fakeRelay(t)
	c, events := dialTest(t, addr)
	defer c.Close()

	if err := c.Join("A"); err != nil {
		t.Fatalf("Join failed: %v", err)
	}

	req := <-received
	if req.Type != TypeJoin || req.Payload != "A" {
		t.Errorf("unexpected request %+v", req)
	}

	ev := nextEvent(t, events)
	if ev.Kind != EventJoined {
		t.Fatalf("expected EventJoined after dropping malformed frames, got %v", ev.Kind)
	}
	if len(ev.Peers) != 2 || ev.Peers[0].ID != "B" {
		t.Errorf("unexpected roster %+v", ev.Peers)
	}
}

func TestClient_ForwardRoundTrip(t *testing.T) {
	addr, received := fakeRelay(t)
	c, events := dialTest(t, addr)
	defer c.Close()

	desc := `{"type":"offer","sdp":"v=0\r\n"}`
	if err := c.SendOffer("B", desc); err != nil {
		t.Fatalf("SendOffer failed: %v", err)
	}

	req := <-received
	if req.Payload != "B" || req.Text != desc {
		t.Errorf("unexpected request %+v", req)
	}

	ev := nextEvent(t, events)
	if ev.Kind != EventOffer || ev.Sender != "B" || ev.Payload != desc {
		t.Errorf("unexpected event %+v", ev)
	}
}

func TestClient_CloseIsTerminal(t *testing.T) {
	addr, _ := fakeRelay(t)
	c, events := dialTest(t, addr)

	if err := c.Close(); err != nil {
		t.Logf("close returned %v", err)
	}

	ev := nextEvent(t, events)
	if ev.Kind != EventClosed {
		t.Fatalf("expected EventClosed, got %v", ev.Kind)
	}
	if !errors.Is(ev.Err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", ev.Err)
	}
	if err := c.Join("A"); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed on send after close, got %v", err)
	}
}

// scriptedConn replays frames and then fails the read.
type scriptedConn struct {
	frames []string
}

func (c *scriptedConn) ReadMessage() ([]byte, error) {
	if len(c.frames) == 0 {
		return nil, errors.New("end of script")
	}
	f := c.frames[0]
	c.frames = c.frames[1:]
	return []byte(f), nil
}

func (c *scriptedConn) WriteMessage([]byte) error { return nil }

func (c *scriptedConn) Close() error { return nil }

type scriptedDialer struct {
	conn *scriptedConn
}

func (d scriptedDialer) Dial(context.Context, string) (Conn, error) {
	return d.conn, nil
}

func TestClient_MalformedFrameDoesNotEatNext(t *testing.T) {
	conn := &scriptedConn{frames: []string{
		"not json at all",
		`{"type":"join","status":"userJoin","data":"B"}` + "\n",
		`{"type":"join","status":"userJoin","data":"C"}` + "\n",
	}}
	events := make(chan Event, 16)
	c, err := Dial(context.Background(), scriptedDialer{conn}, "ws://relay/", func(ev Event) { events <- ev }, logger.Discard())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	var joined []string
	for {
		ev := nextEvent(t, events)
		if ev.Kind == EventClosed {
			break
		}
		if ev.Kind == EventUserJoin {
			joined = append(joined, ev.Sender)
		}
	}
	if strings.Join(joined, ",") != "B,C" {
		t.Errorf("expected joins B,C, got %v", joined)
	}
}

func TestDial_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := Dial(ctx, blockingDialer{}, "ws://relay.invalid/", func(Event) {}, logger.Discard())
	if !errors.Is(err, ErrConnectTimeout) {
		t.Errorf("expected ErrConnectTimeout, got %v", err)
	}
}

type blockingDialer struct{}

func (blockingDialer) Dial(ctx context.Context, addr string) (Conn, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

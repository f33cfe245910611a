// Package signaling talks to the relay that lets peers find each other and
// exchange connection-negotiation messages.
package signaling

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	ErrClosed         = errors.New("signaling: connection closed")
	ErrConnectTimeout = errors.New("signaling: connect timed out")
)

// Conn is a message-oriented connection to the relay.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

type Dialer interface {
	Dial(ctx context.Context, addr string) (Conn, error)
}

// Client owns the single connection to the relay. It reports a terminal
// EventClosed on transport failure and never reconnects by itself.
type Client struct {
	conn    Conn
	handler func(Event)
	log     logrus.FieldLogger

	mu        sync.Mutex
	closed    bool
	closeOnce sync.Once
	done      chan struct{}
}

// Dial connects to addr and starts delivering events to handler from a
// dedicated goroutine. Handler calls are sequential.
func Dial(ctx context.Context, dialer Dialer, addr string, handler func(Event), log logrus.FieldLogger) (*Client, error) {
	conn, err := dialer.Dial(ctx, addr)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s", ErrConnectTimeout, addr)
		}
		return nil, fmt.Errorf("dialing relay %s: %w", addr, err)
	}

	c := &Client{
		conn:    conn,
		handler: handler,
		log:     log.WithField("component", "signaling"),
		done:    make(chan struct{}),
	}
	go c.listen()

	c.log.Infof("Connected to relay %s", addr)
	return c, nil
}

func (c *Client) listen() {
	defer close(c.done)

	var partial []byte
	for {
		data, err := c.conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			closed := c.closed
			c.mu.Unlock()
			if closed {
				err = ErrClosed
			} else {
				c.log.Warnf("Relay connection lost: %v", err)
			}
			c.handler(Event{Kind: EventClosed, Err: err})
			return
		}

		partial = append(partial, data...)
		for {
			idx := bytes.IndexByte(partial, '\n')
			if idx == -1 {
				break
			}
			line := partial[:idx]
			partial = partial[idx+1:]
			c.dispatch(line)
		}

		// websocket messages are whole, so nothing carries over to the next one
		if len(partial) > 0 {
			if isCompleteJSON(partial) {
				c.dispatch(partial)
			} else {
				c.log.Warnf("Dropping malformed relay frame %q", partial)
			}
			partial = nil
		}
	}
}

func (c *Client) dispatch(line []byte) {
	if len(bytes.TrimSpace(line)) == 0 {
		return
	}

	ev, ok, err := Decode(line)
	if err != nil {
		c.log.Warnf("Dropping malformed relay frame: %v", err)
		return
	}
	if !ok {
		c.log.Debugf("Ignoring relay frame %s", line)
		return
	}
	if ev.Kind == EventRelayError {
		c.log.Warnf("Relay reported an error: %v", ev.Err)
	}
	c.handler(ev)
}

func (c *Client) Send(req Request) error {
	data, err := Encode(req)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if err := c.conn.WriteMessage(data); err != nil {
		return fmt.Errorf("sending %s: %w", req.Type, err)
	}
	return nil
}

func (c *Client) Join(id string) error {
	return c.Send(Request{Type: TypeJoin, Payload: id})
}

func (c *Client) Leave(id string) error {
	return c.Send(Request{Type: TypeLeave, Payload: id})
}

func (c *Client) SendOffer(target, desc string) error {
	return c.Send(Request{Type: TypeOffer, Payload: target, Text: desc})
}

func (c *Client) SendAnswer(target, desc string) error {
	return c.Send(Request{Type: TypeAnswer, Payload: target, Text: desc})
}

func (c *Client) SendCandidate(target, candidate string) error {
	return c.Send(Request{Type: TypeCandidate, Payload: target, Text: candidate})
}

// Close shuts the connection down and waits for the read loop to exit.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		err = c.conn.Close()
	})
	<-c.done
	return err
}

// Done is closed after the terminal EventClosed has been delivered.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func isCompleteJSON(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return false
	}
	return trimmed[0] == '{' && trimmed[len(trimmed)-1] == '}' && json.Valid(trimmed)
}

package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/diesing/rt-share/internal/node"
	"github.com/diesing/rt-share/internal/peer"
)

// Controller is the part of *node.Node the console drives.
type Controller interface {
	SelectPeer(ctx context.Context, peerID string) error
	SendText(ctx context.Context, peerID, text string) error
	SendFile(ctx context.Context, peerID, path string) error
	RespondToOffer(ctx context.Context, peerID string, accept bool) error
	Status(ctx context.Context, peerID string) (peer.Status, error)
	Peers(ctx context.Context) ([]node.PeerRecord, error)
	Messages(ctx context.Context, peerID string) ([]node.ChatMessage, error)
}

var _ Controller = (*node.Node)(nil)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrNoPeerSelected = errors.New("no peer selected, use /select <id>")
)

type commandKind int

const (
	cmdText commandKind = iota
	cmdSelect
	cmdSend
	cmdAccept
	cmdDeny
	cmdPeers
	cmdStatus
	cmdMessages
	cmdOffers
	cmdHelp
	cmdQuit
)

type command struct {
	kind commandKind
	arg  string
}

const helpText = `Commands:
  <text>            send a message to the selected peer
  /select <id>      select (and connect to) a peer
  /send <path>      offer a file to the selected peer
  /accept [id]      accept the oldest pending file offer
  /deny [id]        decline the oldest pending file offer
  /offers           list pending file offers
  /peers            list known peers
  /status           show the connection status of the selected peer
  /messages         show the conversation with the selected peer
  /help             show this help
  /quit             leave`

// parseCommand turns one input line into a command. Lines not starting with
// a slash are chat text.
func parseCommand(line string) (command, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		return command{kind: cmdText, arg: line}, nil
	}

	name, arg, _ := strings.Cut(line[1:], " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "select", "s":
		if arg == "" {
			return command{}, errors.New("usage: /select <id>")
		}
		return command{kind: cmdSelect, arg: arg}, nil
	case "send", "f":
		if arg == "" {
			return command{}, errors.New("usage: /send <path>")
		}
		return command{kind: cmdSend, arg: arg}, nil
	case "accept", "y":
		return command{kind: cmdAccept, arg: arg}, nil
	case "deny", "n":
		return command{kind: cmdDeny, arg: arg}, nil
	case "offers":
		return command{kind: cmdOffers}, nil
	case "peers", "p":
		return command{kind: cmdPeers}, nil
	case "status":
		return command{kind: cmdStatus}, nil
	case "messages", "m":
		return command{kind: cmdMessages}, nil
	case "help", "h", "?":
		return command{kind: cmdHelp}, nil
	case "quit", "q", "exit":
		return command{kind: cmdQuit}, nil
	default:
		return command{}, fmt.Errorf("%w: /%s", ErrUnknownCommand, name)
	}
}

// Run reads commands from in until /quit, end of input or ctx is done.
func (c *Console) Run(ctx context.Context, in io.Reader, ctrl Controller) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	c.mu.Lock()
	c.printf("%s", headerStyle.Render("Type /help for commands"))
	c.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			return err
		case line := <-lines:
			if strings.TrimSpace(line) == "" {
				continue
			}
			cmd, err := parseCommand(line)
			if err != nil {
				c.mu.Lock()
				c.fail("%v", err)
				c.mu.Unlock()
				continue
			}
			if cmd.kind == cmdQuit {
				return nil
			}
			if err := c.execute(ctx, ctrl, cmd); err != nil {
				c.mu.Lock()
				c.fail("%v", err)
				c.mu.Unlock()
			}
		}
	}
}

func (c *Console) execute(ctx context.Context, ctrl Controller, cmd command) error {
	switch cmd.kind {
	case cmdSelect:
		if err := ctrl.SelectPeer(ctx, cmd.arg); err != nil {
			return err
		}
		c.selectPeer(cmd.arg)
		c.mu.Lock()
		c.info("Talking to %s", peerStyle.Render(cmd.arg))
		c.mu.Unlock()
		return nil

	case cmdText:
		target := c.selected()
		if target == "" {
			return ErrNoPeerSelected
		}
		return ctrl.SendText(ctx, target, cmd.arg)

	case cmdSend:
		target := c.selected()
		if target == "" {
			return ErrNoPeerSelected
		}
		return ctrl.SendFile(ctx, target, cmd.arg)

	case cmdAccept, cmdDeny:
		o, ok := c.takeOffer(cmd.arg)
		if !ok {
			return errors.New("no pending file offer")
		}
		return ctrl.RespondToOffer(ctx, o.peer, cmd.kind == cmdAccept)

	case cmdOffers:
		offers := c.pendingOffers()
		c.mu.Lock()
		defer c.mu.Unlock()
		if len(offers) == 0 {
			c.info("No pending offers")
		}
		for _, o := range offers {
			c.printf("  %s %s (%s)", peerStyle.Render(o.peer), o.filename, formatSize(o.size))
		}
		return nil

	case cmdPeers:
		peers, err := ctrl.Peers(ctx)
		if err != nil {
			return err
		}
		c.renderPeers(peers)
		return nil

	case cmdStatus:
		target := c.selected()
		if target == "" {
			return ErrNoPeerSelected
		}
		status, err := ctrl.Status(ctx, target)
		if err != nil {
			return err
		}
		c.mu.Lock()
		c.info("%s is %s", peerStyle.Render(target), status)
		c.mu.Unlock()
		return nil

	case cmdMessages:
		target := c.selected()
		if target == "" {
			return ErrNoPeerSelected
		}
		msgs, err := ctrl.Messages(ctx, target)
		if err != nil {
			return err
		}
		c.renderTranscript(target, msgs)
		return nil

	case cmdHelp:
		c.mu.Lock()
		c.printf("%s", helpText)
		c.mu.Unlock()
		return nil
	}
	return nil
}

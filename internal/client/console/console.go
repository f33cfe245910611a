// Package console is the interactive terminal front end of a node: it renders
// node events and turns typed lines into node calls.
package console

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/schollz/progressbar/v3"

	"github.com/diesing/rt-share/internal/node"
	"github.com/diesing/rt-share/internal/peer"
	"github.com/diesing/rt-share/internal/transfer"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62"))

	selfStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)

	peerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("135")).
			Bold(true)

	timestampStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true)
)

type offer struct {
	peer     string
	filename string
	size     int64
}

type barKey struct {
	peer     string
	filename string
	dir      transfer.Direction
}

// Console implements node.Observer and node.FileSink. Observer calls arrive
// on the node's event loop, so Console never calls back into the node from
// them.
type Console struct {
	out  io.Writer
	sink node.FileSink

	mu       sync.Mutex
	self     string
	current  string
	statuses map[string]peer.Status
	offers   []offer
	bars     map[barKey]*progressbar.ProgressBar
}

var (
	_ node.Observer = (*Console)(nil)
	_ node.FileSink = (*Console)(nil)
)

// New returns a console writing to out. Delivered files are passed on to sink.
func New(out io.Writer, sink node.FileSink) *Console {
	return &Console{
		out:      out,
		sink:     sink,
		statuses: make(map[string]peer.Status),
		bars:     make(map[barKey]*progressbar.ProgressBar),
	}
}

func (c *Console) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format+"\n", args...)
}

func (c *Console) info(format string, args ...any) {
	c.printf("%s %s", headerStyle.Render("ℹ"), fmt.Sprintf(format, args...))
}

func (c *Console) success(format string, args ...any) {
	c.printf("%s %s", successStyle.Render("✓"), fmt.Sprintf(format, args...))
}

func (c *Console) warn(format string, args ...any) {
	c.printf("%s %s", warningStyle.Render("⚠"), fmt.Sprintf(format, args...))
}

func (c *Console) fail(format string, args ...any) {
	c.printf("%s %s", errorStyle.Render("✗"), fmt.Sprintf(format, args...))
}

func (c *Console) SessionStarted(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.self = id
	c.success("Joined the relay as %s", selfStyle.Render(id))
}

func (c *Console) SessionError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fail("Session lost: %v", err)
}

func (c *Console) PeersChanged(peers []node.PeerRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var online []string
	for _, p := range peers {
		if p.Online {
			online = append(online, peerStyle.Render(p.ID))
		}
	}
	if len(online) == 0 {
		c.info("No peers online")
		return
	}
	c.info("Online: %s", strings.Join(online, ", "))
}

func (c *Console) PeerStatusChanged(id string, status peer.Status) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.statuses[id] = status
	switch status {
	case peer.Connected:
		c.success("%s connected", peerStyle.Render(id))
	case peer.Disconnected:
		c.warn("%s disconnected", peerStyle.Render(id))
	}
}

func (c *Console) MessageAdded(peerID string, msg node.ChatMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.printf("%s", c.renderMessage(peerID, msg))
}

func (c *Console) renderMessage(peerID string, msg node.ChatMessage) string {
	who := peerStyle.Render(msg.Sender)
	if msg.Sender == c.self {
		who = selfStyle.Render("you")
	}

	body := msg.Text
	if msg.Kind == node.PayloadFile {
		body = "[file] " + msg.Filename
	}
	return fmt.Sprintf("%s [%s] %s: %s",
		timestampStyle.Render(msg.Timestamp.Format(time.TimeOnly)), peerID, who, body)
}

func (c *Console) FileOffered(peerID, filename string, size int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.offers = append(c.offers, offer{peer: peerID, filename: filename, size: size})
	c.info("%s offers %s (%s). Type /accept or /deny", peerStyle.Render(peerID), filename, formatSize(size))
}

func (c *Console) FileDenied(peerID, filename string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.warn("%s declined %s", peerStyle.Render(peerID), filename)
}

func (c *Console) Progress(peerID, filename string, dir transfer.Direction, percent int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := barKey{peer: peerID, filename: filename, dir: dir}
	bar, ok := c.bars[key]
	if !ok {
		verb := "Sending"
		if dir == transfer.Incoming {
			verb = "Receiving"
		}
		bar = progressbar.NewOptions(100,
			progressbar.OptionSetWriter(c.out),
			progressbar.OptionSetDescription(fmt.Sprintf("%s %s", verb, filename)),
			progressbar.OptionSetWidth(30),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
			progressbar.OptionThrottle(100*time.Millisecond),
		)
		c.bars[key] = bar
	}
	_ = bar.Set(percent)
}

func (c *Console) ProgressCleared(peerID, filename string, dir transfer.Direction) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := barKey{peer: peerID, filename: filename, dir: dir}
	if bar, ok := c.bars[key]; ok {
		_ = bar.Clear()
		delete(c.bars, key)
	}
}

func (c *Console) FileSaved(peerID, filename, path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.success("Saved %s from %s to %s", filename, peerStyle.Render(peerID), path)
}

func (c *Console) TransferFailed(peerID, filename string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fail("Transfer of %s with %s failed: %v", filename, peerID, err)
}

// Deliver hands the file to the underlying sink.
func (c *Console) Deliver(sender, filename string, content []byte) (string, error) {
	if c.sink == nil {
		return "", fmt.Errorf("no destination for %s", filename)
	}
	return c.sink.Deliver(sender, filename, content)
}

// takeOffer removes and returns the oldest pending offer, optionally
// restricted to one peer.
func (c *Console) takeOffer(peerID string) (offer, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, o := range c.offers {
		if peerID == "" || o.peer == peerID {
			c.offers = append(c.offers[:i], c.offers[i+1:]...)
			return o, true
		}
	}
	return offer{}, false
}

func (c *Console) selected() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *Console) selectPeer(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = id
}

func (c *Console) renderPeers(peers []node.PeerRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(peers) == 0 {
		c.info("No peers known yet")
		return
	}

	c.printf("%s", headerStyle.Render("Peers"))
	for _, p := range peers {
		marker := " "
		if p.ID == c.current {
			marker = "*"
		}
		presence := "offline"
		if p.Online {
			presence = "online"
		}
		hint := ""
		if p.NetworkHint != "" {
			hint = " " + timestampStyle.Render(p.NetworkHint)
		}
		c.printf("%s %s  %-7s %s%s", marker, peerStyle.Render(p.ID), presence, c.statuses[p.ID], hint)
	}
}

func (c *Console) renderTranscript(peerID string, msgs []node.ChatMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(msgs) == 0 {
		c.info("No messages with %s", peerID)
		return
	}
	for _, m := range msgs {
		c.printf("%s", c.renderMessage(peerID, m))
	}
}

func (c *Console) pendingOffers() []offer {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := append([]offer(nil), c.offers...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].peer < out[j].peer })
	return out
}

func formatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

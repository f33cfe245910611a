package node

import (
	"time"

	"github.com/google/uuid"
)

type PayloadKind int

const (
	PayloadText PayloadKind = iota
	PayloadFile
)

// ChatMessage is one transcript line. Filename is set for PayloadFile.
type ChatMessage struct {
	ID        string
	Sender    string
	Timestamp time.Time
	Kind      PayloadKind
	Text      string
	Filename  string
}

// Transcript is the append-only chat log, one conversation per peer.
type Transcript struct {
	now           func() time.Time
	conversations map[string][]ChatMessage
}

func NewTranscript(now func() time.Time) *Transcript {
	if now == nil {
		now = time.Now
	}
	return &Transcript{now: now, conversations: make(map[string][]ChatMessage)}
}

func (t *Transcript) AddText(peerID, sender, text string) ChatMessage {
	return t.add(peerID, ChatMessage{Sender: sender, Kind: PayloadText, Text: text})
}

func (t *Transcript) AddFile(peerID, sender, filename string) ChatMessage {
	return t.add(peerID, ChatMessage{Sender: sender, Kind: PayloadFile, Filename: filename})
}

func (t *Transcript) add(peerID string, msg ChatMessage) ChatMessage {
	msg.ID = uuid.NewString()
	msg.Timestamp = t.now()
	t.conversations[peerID] = append(t.conversations[peerID], msg)
	return msg
}

// Messages returns a copy of the conversation with peerID.
func (t *Transcript) Messages(peerID string) []ChatMessage {
	msgs := t.conversations[peerID]
	out := make([]ChatMessage, len(msgs))
	copy(out, msgs)
	return out
}

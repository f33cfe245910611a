package node

import (
	"github.com/diesing/rt-share/internal/peer"
	"github.com/diesing/rt-share/internal/transfer"
)

// Observer receives session events for presentation. Methods run on the
// event loop: they must return quickly and must not call back into Node.
type Observer interface {
	SessionStarted(id string)
	SessionError(err error)
	PeersChanged(peers []PeerRecord)
	PeerStatusChanged(id string, status peer.Status)
	MessageAdded(peerID string, msg ChatMessage)
	FileOffered(peerID, filename string, size int64)
	FileDenied(peerID, filename string)
	Progress(peerID, filename string, dir transfer.Direction, percent int)
	ProgressCleared(peerID, filename string, dir transfer.Direction)
	FileSaved(peerID, filename, path string)
	TransferFailed(peerID, filename string, err error)
}

// NopObserver ignores everything. Embed it to implement part of Observer.
type NopObserver struct{}

var _ Observer = NopObserver{}

func (NopObserver) SessionStarted(string) {}
func (NopObserver) SessionError(error) {}
func (NopObserver) PeersChanged([]PeerRecord) {}
func (NopObserver) PeerStatusChanged(string, peer.Status) {}
func (NopObserver) MessageAdded(string, ChatMessage) {}
func (NopObserver) FileOffered(string, string, int64) {}
func (NopObserver) FileDenied(string, string) {}
func (NopObserver) Progress(string, string, transfer.Direction, int) {}
func (NopObserver) ProgressCleared(string, string, transfer.Direction) {}
func (NopObserver) FileSaved(string, string, string) {}
func (NopObserver) TransferFailed(string, string, error) {}

// FileSink hands a completed file to the user and returns where it went.
type FileSink interface {
	Deliver(sender, filename string, content []byte) (string, error)
}

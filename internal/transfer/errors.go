package transfer

import (
	"errors"
	"fmt"
)

var (
	ErrPeerNotConnected   = errors.New("transfer: peer not connected")
	ErrFileTooLarge       = errors.New("transfer: file too large")
	ErrTransferInProgress = errors.New("transfer: a transfer to this peer is already in progress")
	ErrNoPendingOffer     = errors.New("transfer: no pending offer from this peer")
	ErrSizeMismatch       = errors.New("transfer: received size does not match announced size")
	ErrSuperseded         = errors.New("transfer: superseded by a new transfer")
	ErrChannelClosed      = errors.New("transfer: channel closed")
)

type Direction int

const (
	Outgoing Direction = iota
	Incoming
)

func (d Direction) String() string {
	if d == Incoming {
		return "incoming"
	}
	return "outgoing"
}

// TransferError describes why a single transfer was aborted.
type TransferError struct {
	Peer      string
	Filename  string
	Direction Direction
	Err       error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("%s transfer of %q with %s failed: %v", e.Direction, e.Filename, e.Peer, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

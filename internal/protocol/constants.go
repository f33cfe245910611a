package protocol

const (
	ChunkSize = 16 * 1024
)

// MessageType is the "type" tag of a JSON text frame on the data channel.
type MessageType string

const (
	MsgText       MessageType = "text"
	MsgFileOffer  MessageType = "file-offer"
	MsgFileAccept MessageType = "file-accept"
	MsgFileDeny   MessageType = "file-deny"
	MsgFileMeta   MessageType = "file-meta"
	MsgFileEnd    MessageType = "file-end"

	// MsgChunk never appears on the wire; binary frames carry no envelope.
	MsgChunk MessageType = "binary"
)

func (t MessageType) String() string {
	return string(t)
}

package protocol

type Message interface {
	Type() MessageType
}

type Text struct {
	Text string `json:"text"`
}

func (Text) Type() MessageType { return MsgText }

type FileOffer struct {
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}

func (FileOffer) Type() MessageType { return MsgFileOffer }

// FileAccept answers the peer's outstanding offer. Filename is informational.
type FileAccept struct {
	Filename string `json:"filename,omitempty"`
}

func (FileAccept) Type() MessageType { return MsgFileAccept }

type FileDeny struct {
	Filename string `json:"filename,omitempty"`
}

func (FileDeny) Type() MessageType { return MsgFileDeny }

type FileMeta struct {
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}

func (FileMeta) Type() MessageType { return MsgFileMeta }

type FileEnd struct {
	Filename string `json:"filename"`
}

func (FileEnd) Type() MessageType { return MsgFileEnd }

// Chunk is a raw binary frame of file content.
type Chunk struct {
	Data []byte
}

func (Chunk) Type() MessageType { return MsgChunk }

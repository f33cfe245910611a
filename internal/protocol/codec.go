// Package protocol implements the data-channel wire format: JSON text frames
// tagged by "type", and raw binary frames carrying file content.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrUnknownType    = errors.New("protocol: unknown message type")
	ErrInvalidMessage = errors.New("protocol: invalid message")
)

type envelope struct {
	Type MessageType `json:"type"`
}

type Codec struct{}

func NewCodec() *Codec {
	return &Codec{}
}

// EncodeToBytes returns the frame for msg and whether it is a text frame.
func (c *Codec) EncodeToBytes(msg Message) ([]byte, bool, error) {
	var v any
	switch m := msg.(type) {
	case *Chunk:
		return m.Data, false, nil
	case *Text:
		v = struct {
			Type MessageType `json:"type"`
			*Text
		}{MsgText, m}
	case *FileOffer:
		v = struct {
			Type MessageType `json:"type"`
			*FileOffer
		}{MsgFileOffer, m}
	case *FileAccept:
		v = struct {
			Type MessageType `json:"type"`
			*FileAccept
		}{MsgFileAccept, m}
	case *FileDeny:
		v = struct {
			Type MessageType `json:"type"`
			*FileDeny
		}{MsgFileDeny, m}
	case *FileMeta:
		v = struct {
			Type MessageType `json:"type"`
			*FileMeta
		}{MsgFileMeta, m}
	case *FileEnd:
		v = struct {
			Type MessageType `json:"type"`
			*FileEnd
		}{MsgFileEnd, m}
	default:
		return nil, false, fmt.Errorf("%w: %T", ErrUnknownType, msg)
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// DecodeFromBytes parses one frame. Binary frames always decode to *Chunk.
func (c *Codec) DecodeFromBytes(data []byte, isString bool) (Message, error) {
	if !isString {
		return &Chunk{Data: data}, nil
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}

	var msg Message
	switch env.Type {
	case MsgText:
		msg = &Text{}
	case MsgFileOffer:
		msg = &FileOffer{}
	case MsgFileAccept:
		msg = &FileAccept{}
	case MsgFileDeny:
		msg = &FileDeny{}
	case MsgFileMeta:
		msg = &FileMeta{}
	case MsgFileEnd:
		msg = &FileEnd{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}

	if err := json.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidMessage, env.Type, err)
	}
	if err := validate(msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func validate(msg Message) error {
	switch m := msg.(type) {
	case *FileOffer:
		if m.Filename == "" || m.Size < 0 {
			return fmt.Errorf("%w: file-offer needs a filename and non-negative size", ErrInvalidMessage)
		}
	case *FileMeta:
		if m.Filename == "" || m.Size < 0 {
			return fmt.Errorf("%w: file-meta needs a filename and non-negative size", ErrInvalidMessage)
		}
	}
	return nil
}

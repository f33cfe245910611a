package protocol

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestCodecFileOfferWireFormat(t *testing.T) {
	codec := NewCodec()

	data, isString, err := codec.EncodeToBytes(&FileOffer{Filename: "x.png", Size: 1000})
	if err != nil {
		t.Fatalf("Encode FileOffer failed: %v", err)
	}
	if !isString {
		t.Fatal("expected a text frame")
	}

	want := `{"type":"file-offer","filename":"x.png","size":1000}`
	if string(data) != want {
		t.Errorf("expected %s, got %s", want, data)
	}
}

func TestCodecFileAcceptOmitsEmptyFilename(t *testing.T) {
	codec := NewCodec()

	data, _, err := codec.EncodeToBytes(&FileAccept{})
	if err != nil {
		t.Fatalf("Encode FileAccept failed: %v", err)
	}
	if string(data) != `{"type":"file-accept"}` {
		t.Errorf("unexpected frame %s", data)
	}
}

func TestCodecDecodeText(t *testing.T) {
	codec := NewCodec()

	msg, err := codec.DecodeFromBytes([]byte(`{"type":"text","text":"hello"}`), true)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	text, ok := msg.(*Text)
	if !ok {
		t.Fatalf("Expected *Text, got %T", msg)
	}
	if text.Text != "hello" {
		t.Errorf("Expected hello, got %q", text.Text)
	}
}

func TestCodecDecodeFileEnd(t *testing.T) {
	codec := NewCodec()

	data, _, _ := codec.EncodeToBytes(&FileEnd{Filename: "report.pdf"})
	msg, err := codec.DecodeFromBytes(data, true)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	end, ok := msg.(*FileEnd)
	if !ok {
		t.Fatalf("Expected *FileEnd, got %T", msg)
	}
	if end.Filename != "report.pdf" {
		t.Errorf("Expected report.pdf, got %q", end.Filename)
	}
}

func TestCodecBinaryFrameIsChunk(t *testing.T) {
	codec := NewCodec()
	payload := []byte{0x7b, 0x00, 0xff}

	msg, err := codec.DecodeFromBytes(payload, false)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	chunk, ok := msg.(*Chunk)
	if !ok {
		t.Fatalf("Expected *Chunk, got %T", msg)
	}
	if !bytes.Equal(chunk.Data, payload) {
		t.Error("Chunk data mismatch")
	}

	data, isString, err := codec.EncodeToBytes(chunk)
	if err != nil {
		t.Fatalf("Encode chunk failed: %v", err)
	}
	if isString || !bytes.Equal(data, payload) {
		t.Error("chunks must be sent as raw binary frames")
	}
}

func TestCodecUnknownType(t *testing.T) {
	codec := NewCodec()

	_, err := codec.DecodeFromBytes([]byte(`{"type":"file-resume"}`), true)
	if !errors.Is(err, ErrUnknownType) {
		t.Errorf("Expected ErrUnknownType, got %v", err)
	}
}

func TestCodecMalformed(t *testing.T) {
	codec := NewCodec()

	tests := []string{
		`not json`,
		`{"type":"file-offer","size":10}`,
		`{"type":"file-meta","filename":"a","size":-1}`,
		`{"type":"text","text":5}`,
	}

	for _, tt := range tests {
		_, err := codec.DecodeFromBytes([]byte(tt), true)
		if !errors.Is(err, ErrInvalidMessage) {
			t.Errorf("%s: expected ErrInvalidMessage, got %v", tt, err)
		}
	}
}

func TestCodecEncodeNil(t *testing.T) {
	codec := NewCodec()

	_, _, err := codec.EncodeToBytes(nil)
	if err == nil || !strings.Contains(err.Error(), "unknown message type") {
		t.Errorf("expected unknown type error, got %v", err)
	}
}

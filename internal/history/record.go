package history

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

var ErrCorrupt = errors.New("history: corrupt record")

// Field numbers of the persisted messages.
//
//	index   { 1: repeated entry; 2: next_seq }
//	entry   { 1: seq; 2: size; 3: sender; 4: filename }
//	content { 1: bytes }
const (
	indexEntryField   protowire.Number = 1
	indexNextSeqField protowire.Number = 2

	entrySeqField      protowire.Number = 1
	entrySizeField     protowire.Number = 2
	entrySenderField   protowire.Number = 3
	entryFilenameField protowire.Number = 4

	contentBytesField protowire.Number = 1
)

// Entry describes one archived file. Size is the length of the encoded
// content record, which is what counts against the budget.
type Entry struct {
	Seq      uint64
	Size     int64
	Sender   string
	Filename string
}

type index struct {
	entries []Entry
	nextSeq uint64
}

// encodedContentSize is the size encodeContent will produce for n bytes.
func encodedContentSize(n int) int64 {
	return int64(protowire.SizeTag(contentBytesField) + protowire.SizeBytes(n))
}

func encodeContent(content []byte) []byte {
	b := make([]byte, 0, encodedContentSize(len(content)))
	b = protowire.AppendTag(b, contentBytesField, protowire.BytesType)
	return protowire.AppendBytes(b, content)
}

func decodeContent(b []byte) ([]byte, error) {
	var content []byte
	err := walk(b, func(num protowire.Number, typ protowire.Type, v []byte, _ uint64) error {
		if num == contentBytesField && typ == protowire.BytesType {
			content = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if content == nil {
		content = []byte{}
	}
	return content, nil
}

func encodeEntry(b []byte, e Entry) []byte {
	b = protowire.AppendTag(b, entrySeqField, protowire.VarintType)
	b = protowire.AppendVarint(b, e.Seq)
	b = protowire.AppendTag(b, entrySizeField, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(e.Size))
	b = protowire.AppendTag(b, entrySenderField, protowire.BytesType)
	b = protowire.AppendString(b, e.Sender)
	b = protowire.AppendTag(b, entryFilenameField, protowire.BytesType)
	return protowire.AppendString(b, e.Filename)
}

func decodeEntry(b []byte) (Entry, error) {
	var e Entry
	err := walk(b, func(num protowire.Number, typ protowire.Type, v []byte, n uint64) error {
		switch {
		case num == entrySeqField && typ == protowire.VarintType:
			e.Seq = n
		case num == entrySizeField && typ == protowire.VarintType:
			e.Size = int64(n)
		case num == entrySenderField && typ == protowire.BytesType:
			e.Sender = string(v)
		case num == entryFilenameField && typ == protowire.BytesType:
			e.Filename = string(v)
		}
		return nil
	})
	return e, err
}

func encodeIndex(idx index) []byte {
	var b []byte
	for _, e := range idx.entries {
		b = protowire.AppendTag(b, indexEntryField, protowire.BytesType)
		b = protowire.AppendBytes(b, encodeEntry(nil, e))
	}
	b = protowire.AppendTag(b, indexNextSeqField, protowire.VarintType)
	return protowire.AppendVarint(b, idx.nextSeq)
}

func decodeIndex(b []byte) (index, error) {
	var idx index
	err := walk(b, func(num protowire.Number, typ protowire.Type, v []byte, n uint64) error {
		switch {
		case num == indexEntryField && typ == protowire.BytesType:
			e, err := decodeEntry(v)
			if err != nil {
				return err
			}
			idx.entries = append(idx.entries, e)
		case num == indexNextSeqField && typ == protowire.VarintType:
			idx.nextSeq = n
		}
		return nil
	})
	if err != nil {
		return index{}, err
	}
	for _, e := range idx.entries {
		if e.Seq >= idx.nextSeq {
			idx.nextSeq = e.Seq + 1
		}
	}
	return idx, nil
}

// walk calls fn for every field in b. Varint fields pass their value in n,
// length-delimited fields their payload in v. Other wire types are skipped.
func walk(b []byte, fn func(num protowire.Number, typ protowire.Type, v []byte, n uint64) error) error {
	for len(b) > 0 {
		num, typ, l := protowire.ConsumeTag(b)
		if l < 0 {
			return fmt.Errorf("%w: %v", ErrCorrupt, protowire.ParseError(l))
		}
		b = b[l:]

		var (
			v []byte
			n uint64
		)
		switch typ {
		case protowire.VarintType:
			n, l = protowire.ConsumeVarint(b)
		case protowire.BytesType:
			v, l = protowire.ConsumeBytes(b)
		default:
			l = protowire.ConsumeFieldValue(num, typ, b)
		}
		if l < 0 {
			return fmt.Errorf("%w: field %d: %v", ErrCorrupt, num, protowire.ParseError(l))
		}
		b = b[l:]

		if err := fn(num, typ, v, n); err != nil {
			return err
		}
	}
	return nil
}

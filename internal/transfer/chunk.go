package transfer

import (
	"errors"
	"io"
)

// ChunkCount returns how many chunks of chunkSize hold size bytes.
func ChunkCount(size int64, chunkSize int) int {
	if size <= 0 || chunkSize <= 0 {
		return 0
	}
	return int((size + int64(chunkSize) - 1) / int64(chunkSize))
}

// SplitChunks cuts data into consecutive chunks of n bytes; the last may be shorter.
func SplitChunks(data []byte, n int) [][]byte {
	if n <= 0 {
		return nil
	}
	chunks := make([][]byte, 0, ChunkCount(int64(len(data)), n))
	for start := 0; start < len(data); start += n {
		end := start + n
		if end > len(data) {
			end = len(data)
		}
		chunks = append(chunks, data[start:end])
	}
	return chunks
}

// Reassemble concatenates chunks in order.
func Reassemble(chunks [][]byte) []byte {
	total := 0
	for _, c := range chunks {
		total += len(c)
	}
	out := make([]byte, 0, total)
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out
}

// Percent returns floor(done*100/total), 100 for an empty total, clamped to [0, 100].
func Percent(done, total int64) int {
	if total <= 0 {
		return 100
	}
	if done <= 0 {
		return 0
	}
	if done >= total {
		return 100
	}
	return int(done * 100 / total)
}

// ReadChunkData reads length bytes at offset. A short read at end of file is an error.
func ReadChunkData(r io.ReaderAt, offset int64, length int) ([]byte, error) {
	data := make([]byte, length)
	n, err := r.ReadAt(data, offset)
	if n == length {
		return data, nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return nil, err
}

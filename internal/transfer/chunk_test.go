package transfer

import (
	"bytes"
	"errors"
	"io"
	"math/rand"
	"testing"
)

func TestSplitReassembleRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	sizes := []int{0, 1, 15, 16, 17, 1000, 16384, 16385, 100000}
	chunkSizes := []int{1, 3, 16, 1000, 16384}

	for _, size := range sizes {
		data := make([]byte, size)
		rng.Read(data)

		for _, n := range chunkSizes {
			chunks := SplitChunks(data, n)
			if len(chunks) != ChunkCount(int64(size), n) {
				t.Errorf("size %d chunk %d: expected %d chunks, got %d", size, n, ChunkCount(int64(size), n), len(chunks))
			}
			for i, c := range chunks {
				if len(c) > n {
					t.Errorf("size %d chunk %d: chunk %d has %d bytes", size, n, i, len(c))
				}
			}
			if got := Reassemble(chunks); !bytes.Equal(got, data) {
				t.Errorf("size %d chunk %d: reassembled data differs", size, n)
			}
		}
	}
}

func TestChunkCount(t *testing.T) {
	tests := []struct {
		size      int64
		chunkSize int
		want      int
	}{
		{0, 16384, 0},
		{1000, 16384, 1},
		{16384, 16384, 1},
		{16385, 16384, 2},
		{1 << 20, 16384, 64},
	}

	for _, tt := range tests {
		if got := ChunkCount(tt.size, tt.chunkSize); got != tt.want {
			t.Errorf("ChunkCount(%d, %d) = %d, want %d", tt.size, tt.chunkSize, got, tt.want)
		}
	}
}

func TestPercent(t *testing.T) {
	tests := []struct {
		done, total int64
		want        int
	}{
		{0, 1000, 0},
		{999, 1000, 99},
		{1000, 1000, 100},
		{16384, 1000000, 1},
		{0, 0, 100},
		{-5, 10, 0},
		{20, 10, 100},
	}

	for _, tt := range tests {
		if got := Percent(tt.done, tt.total); got != tt.want {
			t.Errorf("Percent(%d, %d) = %d, want %d", tt.done, tt.total, got, tt.want)
		}
	}

	prev := 0
	for done := int64(0); done <= 70000; done += 16384 {
		p := Percent(done, 70000)
		if p < prev || p > 100 {
			t.Fatalf("progress went from %d to %d", prev, p)
		}
		prev = p
	}
}

func TestReadChunkData(t *testing.T) {
	r := bytes.NewReader([]byte("abcdefghij"))

	data, err := ReadChunkData(r, 8, 2)
	if err != nil {
		t.Fatalf("ReadChunkData failed: %v", err)
	}
	if string(data) != "ij" {
		t.Errorf("expected ij, got %q", data)
	}

	_, err = ReadChunkData(r, 8, 4)
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("expected ErrUnexpectedEOF for short read, got %v", err)
	}
}

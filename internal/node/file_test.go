package node

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExtractFileName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"/path/to/file.txt", "file.txt"},
		{"file.txt", "file.txt"},
		{"/file.txt", "file.txt"},
		{"../../etc/passwd", "passwd"},
		{`C:\Users\me\photo.png`, "photo.png"},
		{"dir/", "unnamed"},
		{"..", "unnamed"},
		{"", "unnamed"},
	}

	for _, tt := range tests {
		result := ExtractFileName(tt.input)
		if result != tt.expected {
			t.Errorf("ExtractFileName(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestCollisionName(t *testing.T) {
	tests := []struct {
		name     string
		n        int
		expected string
	}{
		{"x.png", 0, "x.png"},
		{"x.png", 1, "x (1).png"},
		{"archive.tar.gz", 2, "archive.tar (2).gz"},
		{"README", 3, "README (3)"},
		{".bashrc", 1, ".bashrc (1)"},
	}

	for _, tt := range tests {
		result := CollisionName(tt.name, tt.n)
		if result != tt.expected {
			t.Errorf("CollisionName(%q, %d) = %q, want %q", tt.name, tt.n, result, tt.expected)
		}
	}
}

func TestDiskSink_Deliver(t *testing.T) {
	sink := DiskSink{Dir: t.TempDir()}

	first, err := sink.Deliver("12345", "x.png", []byte("one"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := sink.Deliver("12345", "x.png", []byte("two"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if want := filepath.Join(sink.Dir, "12345", "x.png"); first != want {
		t.Errorf("expected %s, got %s", want, first)
	}
	if want := filepath.Join(sink.Dir, "12345", "x (1).png"); second != want {
		t.Errorf("expected %s, got %s", want, second)
	}

	data, err := os.ReadFile(second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "two" {
		t.Errorf("expected %q, got %q", "two", data)
	}
}

func TestDiskSink_StaysInsideDir(t *testing.T) {
	sink := DiskSink{Dir: t.TempDir()}

	path, err := sink.Deliver("../evil", "../../escape.txt", []byte("x"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := filepath.Join(sink.Dir, "evil", "escape.txt"); path != want {
		t.Errorf("expected %s, got %s", want, path)
	}
}

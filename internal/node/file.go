package node

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DiskSink writes received files to Dir/<sender>/<filename>.
type DiskSink struct {
	Dir string
}

var _ FileSink = DiskSink{}

func (s DiskSink) Deliver(sender, filename string, content []byte) (string, error) {
	dir := filepath.Join(s.Dir, ExtractFileName(sender))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating %s: %w", dir, err)
	}

	name := ExtractFileName(filename)
	for n := 0; ; n++ {
		path := filepath.Join(dir, CollisionName(name, n))
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("creating %s: %w", path, err)
		}

		if _, err := f.Write(content); err != nil {
			f.Close()
			return "", fmt.Errorf("writing %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("writing %s: %w", path, err)
		}
		return path, nil
	}
}

// ExtractFileName keeps only the last element of a path sent by a peer, so
// names like "../../x" cannot escape the download directory.
func ExtractFileName(path string) string {
	path = strings.ReplaceAll(path, "\\", "/")
	name := path[strings.LastIndex(path, "/")+1:]
	if name == "" || name == "." || name == ".." {
		return "unnamed"
	}
	return name
}

// CollisionName returns name for n == 0 and "base (n).ext" otherwise.
func CollisionName(name string, n int) string {
	if n == 0 {
		return name
	}
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	if base == "" {
		base, ext = name, ""
	}
	return fmt.Sprintf("%s (%d)%s", base, n, ext)
}

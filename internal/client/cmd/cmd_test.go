package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/diesing/rt-share/internal/config"
	"github.com/diesing/rt-share/internal/db"
	"github.com/diesing/rt-share/internal/history"
	"github.com/diesing/rt-share/internal/logger"
	"github.com/diesing/rt-share/internal/store"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	rootCmd.SetArgs(args)
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetIn(strings.NewReader(""))
	t.Cleanup(func() {
		configPath, dataDir, relayAddr, verbose = "", "", "", false
	})

	err := rootCmd.Execute()
	return stdout.String(), err
}

func seedHistory(t *testing.T, dir string, files map[string]string) {
	t.Helper()

	cfg := config.Default()
	cfg.DataDir = dir
	gdb, err := db.Open(cfg.DatabasePath())
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close(gdb)

	h, err := history.Open(context.Background(), store.NewBlobStore(gdb, 0), cfg.History.Budget, logger.Discard())
	if err != nil {
		t.Fatal(err)
	}
	for name, content := range files {
		if err := h.Append(context.Background(), "10000", name, []byte(content)); err != nil {
			t.Fatal(err)
		}
	}
}

func TestRootCommand(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr bool
	}{
		{name: "help", args: []string{"--help"}},
		{name: "unknown command", args: []string{"bogus"}, wantErr: true},
		{name: "export needs two args", args: []string{"history", "export", "0"}, wantErr: true},
		{name: "join takes no args", args: []string{"join", "extra"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			if (err != nil) != tt.wantErr {
				t.Errorf("Execute() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestIDCommand_Stable(t *testing.T) {
	dir := t.TempDir()

	first, err := execute(t, "--data-dir", dir, "id")
	if err != nil {
		t.Fatalf("id failed: %v", err)
	}
	second, err := execute(t, "--data-dir", dir, "id")
	if err != nil {
		t.Fatalf("id failed: %v", err)
	}

	first = strings.TrimSpace(first)
	if len(first) != 5 {
		t.Errorf("expected a five digit id, got %q", first)
	}
	if strings.TrimSpace(second) != first {
		t.Errorf("expected the same id twice, got %q and %q", first, second)
	}
}

func TestLoadConfig_FileAndFlags(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	if err := os.WriteFile(path, []byte("relay: ws://file:1/\npeers:\n  retry_ceiling: 3\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { configPath, dataDir, relayAddr = "", "", "" })

	configPath = path
	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if cfg.Relay != "ws://file:1/" || cfg.Peers.RetryCeiling != 3 {
		t.Errorf("expected file values, got %s %d", cfg.Relay, cfg.Peers.RetryCeiling)
	}

	relayAddr = "ws://flag:2/"
	dataDir = dir
	cfg, err = loadConfig()
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if cfg.Relay != "ws://flag:2/" || cfg.DataDir != dir {
		t.Errorf("expected flag overrides, got %s %s", cfg.Relay, cfg.DataDir)
	}
}

func TestHistoryList(t *testing.T) {
	dir := t.TempDir()

	out, err := execute(t, "--data-dir", dir, "history", "list")
	if err != nil {
		t.Fatalf("history list failed: %v", err)
	}
	if !strings.Contains(out, "No files received yet") {
		t.Errorf("unexpected output %q", out)
	}

	seedHistory(t, dir, map[string]string{"cat.png": "meow"})
	out, err = execute(t, "--data-dir", dir, "history", "list")
	if err != nil {
		t.Fatalf("history list failed: %v", err)
	}
	for _, want := range []string{"1 file(s)", "SENDER", "10000", "cat.png"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in %q", want, out)
		}
	}
}

func TestHistoryExport(t *testing.T) {
	dir := t.TempDir()
	seedHistory(t, dir, map[string]string{"notes.txt": "hello"})
	dest := t.TempDir()

	out, err := execute(t, "--data-dir", dir, "history", "export", "0", dest)
	if err != nil {
		t.Fatalf("history export failed: %v", err)
	}

	want := filepath.Join(dest, "10000", "notes.txt")
	if strings.TrimSpace(out) != want {
		t.Errorf("expected %s, got %q", want, out)
	}
	if data, err := os.ReadFile(want); err != nil || string(data) != "hello" {
		t.Errorf("unexpected exported file %q (%v)", data, err)
	}

	if _, err := execute(t, "--data-dir", dir, "history", "export", "5", dest); err == nil {
		t.Error("expected an out of range error")
	}
	if _, err := execute(t, "--data-dir", dir, "history", "export", "x", dest); err == nil {
		t.Error("expected an invalid index error")
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Transfer.ChunkSize != 16*1024 {
		t.Errorf("expected 16KiB chunks, got %d", cfg.Transfer.ChunkSize)
	}
	if cfg.Transfer.HighWaterMark != 16*1024*1024 {
		t.Errorf("expected 16MiB high water mark, got %d", cfg.Transfer.HighWaterMark)
	}
	if cfg.Transfer.LowWaterMark != 4*1024*1024 {
		t.Errorf("expected 4MiB low water mark, got %d", cfg.Transfer.LowWaterMark)
	}
	if cfg.History.Budget != 1610612736 {
		t.Errorf("expected 1.5GiB history budget, got %d", cfg.History.Budget)
	}
	if cfg.Signaling.ConnectTimeout != 8*time.Second {
		t.Errorf("expected 8s connect timeout, got %v", cfg.Signaling.ConnectTimeout)
	}
	if len(cfg.ICEServers) != 5 {
		t.Errorf("expected 5 STUN urls, got %d", len(cfg.ICEServers))
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Peers.RetryCeiling != 10 {
		t.Errorf("expected defaults, got ceiling %d", cfg.Peers.RetryCeiling)
	}
}

func TestLoad_OverlaysYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rtshare.yaml")
	data := []byte(`
relay: wss://rt-share.example:3000/
peers:
  retry_ceiling: 3
  reconcile_interval: 750ms
transfer:
  chunk_size: 8192
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Relay != "wss://rt-share.example:3000/" {
		t.Errorf("unexpected relay %q", cfg.Relay)
	}
	if cfg.Peers.RetryCeiling != 3 {
		t.Errorf("expected ceiling 3, got %d", cfg.Peers.RetryCeiling)
	}
	if cfg.Peers.ReconcileInterval != 750*time.Millisecond {
		t.Errorf("expected 750ms, got %v", cfg.Peers.ReconcileInterval)
	}
	if cfg.Transfer.ChunkSize != 8192 {
		t.Errorf("expected chunk size 8192, got %d", cfg.Transfer.ChunkSize)
	}
	if cfg.Transfer.HighWaterMark != 16*1024*1024 {
		t.Errorf("expected untouched high water mark, got %d", cfg.Transfer.HighWaterMark)
	}
}

func TestValidate_WaterMarks(t *testing.T) {
	cfg := Default()
	cfg.Transfer.LowWaterMark = cfg.Transfer.HighWaterMark

	if err := cfg.Validate(); err == nil {
		t.Error("expected error when low water mark is not below high water mark")
	}

	cfg = Default()
	cfg.Transfer.ChunkSize = 10
	cfg.Transfer.HighWaterMark = 10
	cfg.Transfer.LowWaterMark = 5
	if err := cfg.Validate(); err == nil {
		t.Error("expected error when a chunk does not fit between the water marks")
	}

	cfg.Transfer.LowWaterMark = 0
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected a chunk equal to the headroom to pass, got %v", err)
	}
}

func TestPaths(t *testing.T) {
	cfg := Default()
	cfg.DataDir = filepath.Join("var", "rt")

	if got := cfg.DatabasePath(); got != filepath.Join("var", "rt", "rtshare.sqlite3") {
		t.Errorf("unexpected database path %s", got)
	}
	if got := cfg.DownloadDir(); got != filepath.Join("var", "rt", "downloads") {
		t.Errorf("unexpected download dir %s", got)
	}
	if got := DefaultPath(cfg.DataDir); got != filepath.Join("var", "rt", "config.yaml") {
		t.Errorf("unexpected config path %s", got)
	}
}

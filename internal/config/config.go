// Package config holds the rt-share runtime configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	KiB = 1024
	MiB = 1024 * KiB
	GiB = 1024 * MiB
)

var DefaultICEServers = []string{
	"stun:stun.l.google.com:19302",
	"stun:stun1.l.google.com:19302",
	"stun:stun2.l.google.com:19302",
	"stun:stun3.l.google.com:19302",
	"stun:stun4.l.google.com:19302",
}

type Config struct {
	Relay      string    `yaml:"relay"`
	ICEServers []string  `yaml:"ice_servers"`
	DataDir    string    `yaml:"data_dir"`
	Signaling  Signaling `yaml:"signaling"`
	Peers      Peers     `yaml:"peers"`
	Transfer   Transfer  `yaml:"transfer"`
	History    History   `yaml:"history"`
	Store      Store     `yaml:"store"`
}

type Signaling struct {
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	RestartDelay   time.Duration `yaml:"restart_delay"`
}

type Peers struct {
	RetryCeiling       int           `yaml:"retry_ceiling"`
	BaseDelay          time.Duration `yaml:"base_delay"`
	MaxDelay           time.Duration `yaml:"max_delay"`
	Jitter             time.Duration `yaml:"jitter"`
	StatusInterval     time.Duration `yaml:"status_interval"`
	ReconcileInterval  time.Duration `yaml:"reconcile_interval"`
	NegotiationTimeout time.Duration `yaml:"negotiation_timeout"`
}

type Transfer struct {
	ChunkSize     int   `yaml:"chunk_size"`
	HighWaterMark int   `yaml:"high_water_mark"`
	LowWaterMark  int   `yaml:"low_water_mark"`
	MaxFileSize   int64 `yaml:"max_file_size"`
	ChunksPerTurn int   `yaml:"chunks_per_turn"`
}

type History struct {
	Budget int64 `yaml:"budget"`
}

type Store struct {
	Capacity int64 `yaml:"capacity"`
}

func Default() Config {
	return Config{
		Relay:      "ws://localhost:3000/",
		ICEServers: append([]string(nil), DefaultICEServers...),
		DataDir:    defaultDataDir(),
		Signaling: Signaling{
			ConnectTimeout: 8 * time.Second,
			RestartDelay:   3 * time.Second,
		},
		Peers: Peers{
			RetryCeiling:       10,
			BaseDelay:          300 * time.Millisecond,
			MaxDelay:           4 * time.Second,
			Jitter:             time.Second,
			StatusInterval:     500 * time.Millisecond,
			ReconcileInterval:  2 * time.Second,
			NegotiationTimeout: 15 * time.Second,
		},
		Transfer: Transfer{
			ChunkSize:     16 * KiB,
			HighWaterMark: 16 * MiB,
			LowWaterMark:  4 * MiB,
			MaxFileSize:   512 * MiB,
			ChunksPerTurn: 64,
		},
		History: History{
			Budget: 3 * GiB / 2,
		},
		Store: Store{
			Capacity: 2 * GiB,
		},
	}
}

// Load reads a YAML file over the defaults. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	switch {
	case c.Relay == "":
		return errors.New("config: relay address is required")
	case c.Transfer.ChunkSize <= 0:
		return errors.New("config: transfer.chunk_size must be positive")
	case c.Transfer.LowWaterMark >= c.Transfer.HighWaterMark:
		return errors.New("config: transfer.low_water_mark must be below high_water_mark")
	case c.Transfer.ChunkSize > c.Transfer.HighWaterMark-c.Transfer.LowWaterMark:
		return errors.New("config: transfer.chunk_size must not exceed high_water_mark - low_water_mark")
	case c.Peers.RetryCeiling <= 0:
		return errors.New("config: peers.retry_ceiling must be positive")
	case c.History.Budget <= 0:
		return errors.New("config: history.budget must be positive")
	}
	return nil
}

// DefaultPath is where the config file lives when none is given.
func DefaultPath(dataDir string) string {
	return filepath.Join(dataDir, "config.yaml")
}

func (c Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "rtshare.sqlite3")
}

func (c Config) DownloadDir() string {
	return filepath.Join(c.DataDir, "downloads")
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".rtshare"
	}
	return filepath.Join(home, ".rtshare")
}

package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/diesing/rt-share/internal/config"
	"github.com/diesing/rt-share/internal/logger"
)

var (
	configPath string
	dataDir    string
	relayAddr  string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   `rtshare`,
	Short: "peer to peer chat and file sharing over WebRTC",
	Long: `rtshare connects to a signaling relay, discovers the other peers online and
opens direct WebRTC data channels to them for chat and file transfer.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file (default <data-dir>/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "directory for the database and downloads")
	rootCmd.PersistentFlags().StringVar(&relayAddr, "relay", "", "signaling relay address, e.g. ws://localhost:3000/")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(joinCmd)
	rootCmd.AddCommand(idCmd)
	rootCmd.AddCommand(historyCmd)
}

// loadConfig reads the config file and applies the command line overrides.
func loadConfig() (config.Config, error) {
	path := configPath
	if path == "" {
		dir := dataDir
		if dir == "" {
			dir = config.Default().DataDir
		}
		path = config.DefaultPath(dir)
	}

	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if relayAddr != "" {
		cfg.Relay = relayAddr
	}
	return cfg, cfg.Validate()
}

func newLogger(cmd *cobra.Command) *logrus.Logger {
	return logger.New(cmd.ErrOrStderr(), verbose)
}

package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/diesing/rt-share/internal/client/console"
	"github.com/diesing/rt-share/internal/db"
	"github.com/diesing/rt-share/internal/node"
)

var joinCmd = &cobra.Command{
	Use:   "join",
	Short: "join the relay and start the interactive console",
	Long: `join connects to the signaling relay and keeps the session alive until you
quit, reconnecting after relay failures. Received files are saved under
<data-dir>/downloads/<sender>/.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log := newLogger(cmd)

		gdb, blobs, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer db.Close(gdb)

		ui := console.New(cmd.OutOrStdout(), node.DiskSink{Dir: cfg.DownloadDir()})
		n, err := node.New(node.Options{
			Config:   cfg,
			Blobs:    blobs,
			Observer: ui,
			Sink:     ui,
			Logger:   log,
		})
		if err != nil {
			return err
		}
		log.Debugf("Relay: %s, data dir: %s", cfg.Relay, cfg.DataDir)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		done := make(chan error, 1)
		go func() { done <- n.Run(ctx) }()

		err = ui.Run(ctx, cmd.InOrStdin(), n)
		cancel()
		if runErr := <-done; err == nil {
			err = runErr
		}
		return err
	},
}

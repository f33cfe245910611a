package cmd

import (
	"fmt"
	"math/rand"

	"github.com/spf13/cobra"

	"github.com/diesing/rt-share/internal/db"
	"github.com/diesing/rt-share/internal/peer"
)

var idCmd = &cobra.Command{
	Use:   "id",
	Short: "print this node's session id",
	Long:  `id prints the session id other peers see, creating it on first use.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		gdb, blobs, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer db.Close(gdb)

		id, err := peer.LoadOrCreateIdentity(cmd.Context(), blobs, rand.Intn)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	},
}

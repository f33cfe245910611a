package cmd

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/diesing/rt-share/internal/db"
	"github.com/diesing/rt-share/internal/history"
	"github.com/diesing/rt-share/internal/node"
)

var headerStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("62"))

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "inspect files received in earlier sessions",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "list archived files, oldest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withHistory(cmd, func(h *history.Store) error {
			out := cmd.OutOrStdout()
			entries := h.Entries()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No files received yet")
				return nil
			}

			fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("%d file(s), %d bytes", len(entries), h.TotalSize())))
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "#\tSENDER\tSIZE\tFILENAME")
			for i, e := range entries {
				fmt.Fprintf(w, "%d\t%s\t%d\t%s\n", i, e.Sender, e.Size, e.Filename)
			}
			return w.Flush()
		})
	},
}

var historyExportCmd = &cobra.Command{
	Use:   "export index directory",
	Short: "write an archived file to a directory",
	Long: `export writes the archived file at index (as shown by "history list") to
<directory>/<sender>/<filename>, adding a numeric suffix instead of overwriting.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid index %q", args[0])
		}

		return withHistory(cmd, func(h *history.Store) error {
			content, err := h.Content(cmd.Context(), index)
			if err != nil {
				return err
			}
			entry := h.Entries()[index]

			path, err := node.DiskSink{Dir: args[1]}.Deliver(entry.Sender, entry.Filename, content)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		})
	},
}

func init() {
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyExportCmd)
}

func withHistory(cmd *cobra.Command, f func(h *history.Store) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	gdb, blobs, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close(gdb)

	h, err := history.Open(cmd.Context(), blobs, cfg.History.Budget, newLogger(cmd))
	if err != nil {
		return err
	}
	return f(h)
}

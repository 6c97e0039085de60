package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/xupit3r/slm/internal/history"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent generations",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

var (
	historyLimit int
	historyClear bool
)

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 20, "number of entries to show")
	historyCmd.Flags().BoolVar(&historyClear, "clear", false, "delete all recorded generations")

	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	if !cfg.History.Enabled {
		return fmt.Errorf("history is disabled (set history.enabled in the config)")
	}

	store, err := history.Open(cfg.History.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if historyClear {
		if err := store.Clear(ctx); err != nil {
			return fmt.Errorf("failed to clear history: %w", err)
		}
		fmt.Fprintln(out, "History cleared.")
		return nil
	}

	entries, err := store.Recent(ctx, historyLimit)
	if err != nil {
		return fmt.Errorf("failed to read history: %w", err)
	}
	if len(entries) == 0 {
		fmt.Fprintln(out, "No generations recorded.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTIME\tSOURCE\tTEMP\tTOP-P\tSTEPS\tSTOP\tDURATION\tOUTPUT")
	fmt.Fprintln(w, "--\t----\t------\t----\t-----\t-----\t----\t--------\t------")
	for _, e := range entries {
		fmt.Fprintf(w, "%d\t%s\t%s\t%.2f\t%.2f\t%d\t%s\t%s\t%s\n",
			e.ID, e.Time.Format("2006-01-02 15:04"), e.Source, e.Temperature, e.TopP,
			e.Steps, e.StopReason, e.Duration.Round(time.Millisecond), truncate(e.Output, 50))
	}
	w.Flush()

	total, err := store.Count(ctx)
	if err == nil && total > len(entries) {
		fmt.Fprintf(out, "\nShowing %d of %d. Use --limit to see more.\n", len(entries), total)
	}
	return nil
}

// truncate shortens s to n runes on a single line
func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}

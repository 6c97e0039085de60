package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/xupit3r/slm/internal/system"
)

var modelCmd = &cobra.Command{
	Use:   "model",
	Short: "Manage trained models",
	Long:  "List, inspect, verify, and remove models in the model store",
}

var modelListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored models",
	RunE:  runModelList,
}

var modelInfoCmd = &cobra.Command{
	Use:   "info [model-id]",
	Short: "Show information about a model",
	Args:  cobra.ExactArgs(1),
	RunE:  runModelInfo,
}

var modelRemoveCmd = &cobra.Command{
	Use:   "remove [model-id]",
	Short: "Remove a stored model",
	Args:  cobra.ExactArgs(1),
	RunE:  runModelRemove,
}

func init() {
	rootCmd.AddCommand(modelCmd)
	modelCmd.AddCommand(modelListCmd)
	modelCmd.AddCommand(modelInfoCmd)
	modelCmd.AddCommand(modelRemoveCmd)
}

func runModelList(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	records := store.List()
	if len(records) == 0 {
		fmt.Fprintln(out, "No models stored. Train one with: slm train <corpus> --id <name>")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSIZE\tVOCAB\tWINDOW\tPERPLEXITY\tTRAINED\tLAST USED\tUSE COUNT")
	fmt.Fprintln(w, "--\t----\t-----\t------\t----------\t-------\t---------\t---------")

	for _, r := range records {
		perplexity := "-"
		if r.Metrics != nil {
			perplexity = fmt.Sprintf("%.2f", r.Metrics.Perplexity)
		}
		lastUsed := "never"
		if !r.LastUsed.IsZero() {
			lastUsed = r.LastUsed.Format("2006-01-02")
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\t%s\t%d\n",
			r.ID, system.FormatBytes(r.SizeBytes), r.VocabSize, r.Window, perplexity,
			r.TrainedAt.Format("2006-01-02"), lastUsed, r.UseCount)
	}
	w.Flush()

	fmt.Fprintf(out, "\nTotal store size: %s\n", system.FormatBytes(store.TotalSize()))
	return nil
}

func runModelInfo(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}

	r, err := store.Get(args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "ID:              %s\n", r.ID)
	fmt.Fprintf(out, "Path:            %s\n", r.Path)
	fmt.Fprintf(out, "Size:            %s\n", system.FormatBytes(r.SizeBytes))
	fmt.Fprintf(out, "Vocabulary:      %d tokens\n", r.VocabSize)
	fmt.Fprintf(out, "Context Window:  %d tokens\n", r.Window)
	fmt.Fprintf(out, "Trained:         %s\n", r.TrainedAt.Format("2006-01-02 15:04:05"))
	if r.LastUsed.IsZero() {
		fmt.Fprintf(out, "Last Used:       never\n")
	} else {
		fmt.Fprintf(out, "Last Used:       %s\n", r.LastUsed.Format("2006-01-02 15:04:05"))
	}
	fmt.Fprintf(out, "Use Count:       %d\n", r.UseCount)
	if r.Metrics != nil {
		fmt.Fprintf(out, "Held-out:        %s\n", r.Metrics)
	}
	fmt.Fprintf(out, "Checksum:        %s\n", r.Checksum)

	valid, err := store.VerifyChecksum(r.ID)
	switch {
	case err != nil:
		fmt.Fprintf(out, "Verified:        No (%v)\n", err)
	case valid:
		fmt.Fprintf(out, "Verified:        Yes\n")
	default:
		fmt.Fprintf(out, "Verified:        No (checksum mismatch)\n")
	}
	return nil
}

func runModelRemove(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}

	modelID := args[0]
	if !store.Has(modelID) {
		return fmt.Errorf("model not stored: %s", modelID)
	}
	if err := store.Remove(modelID); err != nil {
		return fmt.Errorf("failed to remove model: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Removed model: %s\n", modelID)
	return nil
}

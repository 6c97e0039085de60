package commands

import (
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
)

var completeCmd = &cobra.Command{
	Use:   "complete [partial text]",
	Short: "Print only the words that complete a partial text",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runComplete,
}

var completeFlags generationFlags

func init() {
	completeFlags.register(completeCmd, 20)

	rootCmd.AddCommand(completeCmd)
}

func runComplete(cmd *cobra.Command, args []string) error {
	text := strings.Join(args, " ")

	manager, err := newManager(completeFlags.model, completeFlags.corpus)
	if err != nil {
		return err
	}
	defer manager.Close()

	// Completions stay short regardless of the configured max length
	opts := completeFlags.options(cmd)
	opts.MaxTokens = completeFlags.maxLength

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	completion, err := manager.Complete(ctx, text, opts)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), completion)
	return nil
}

package commands

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/xupit3r/slm/internal/history"
	"github.com/xupit3r/slm/internal/inference"
	"github.com/xupit3r/slm/internal/llm"
	"github.com/xupit3r/slm/internal/tui"
)

var interactiveCmd = &cobra.Command{
	Use:     "interactive",
	Aliases: []string{"i"},
	Short:   "Generate text interactively",
	Long: `Start an interactive session that streams a generation for each prompt.

Commands inside the session:
  /temp <value>   set the temperature
  /topp <value>   set the nucleus threshold
  /len <value>    set the maximum length
  /seed <value>   set the random seed
  exit            quit`,
	Args: cobra.NoArgs,
	RunE: runInteractive,
}

var interactiveFlags generationFlags

func init() {
	interactiveFlags.register(interactiveCmd, 100)

	rootCmd.AddCommand(interactiveCmd)
}

func runInteractive(cmd *cobra.Command, args []string) error {
	manager, err := newManager(interactiveFlags.model, interactiveFlags.corpus)
	if err != nil {
		return err
	}
	defer manager.Close()

	hist := openHistory()
	if hist != nil {
		defer hist.Close()
	}

	mode := string(manager.Mode())
	if rec := manager.CurrentModel(); rec != nil {
		mode = fmt.Sprintf("%s %s", mode, rec.ID)
	}

	m := tui.NewGenerateModel(manager, interactiveFlags.options(cmd), mode, historyRecorder(hist))
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("interactive session failed: %w", err)
	}
	return nil
}

// historyRecorder records finished interactive generations; nil when hist is nil
func historyRecorder(hist *history.Store) tui.DoneFunc {
	if hist == nil {
		return nil
	}
	return func(prompt string, opts llm.GenerateOptions, step inference.Step, elapsed time.Duration) {
		if step.Result == nil {
			return
		}
		recordHistory(context.Background(), hist, "interactive", opts, &llm.Response{
			Prompt:   prompt,
			Text:     step.Result.Text,
			Reason:   step.Reason,
			Steps:    step.Result.Steps,
			Duration: elapsed,
		})
	}
}

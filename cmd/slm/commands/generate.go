package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/xupit3r/slm/internal/inference"
	"github.com/xupit3r/slm/internal/llm"
	"github.com/xupit3r/slm/internal/tokenizer"
)

var generateCmd = &cobra.Command{
	Use:   "generate [prompt]",
	Short: "Generate text from a prompt",
	Long: `Generate text that continues a prompt.

The generation mode is chosen in order: --model, the configured default
model, --corpus, the configured corpus, and finally the prompt's own words.`,
	Aliases: []string{"gen"},
	Args:    cobra.MinimumNArgs(1),
	RunE:    runGenerate,
}

var (
	genFlags  generationFlags
	genStream bool
	genTokens bool
	genSave   string
)

func init() {
	genFlags.register(generateCmd, 100)
	generateCmd.Flags().BoolVar(&genStream, "stream", false, "print words as they are generated")
	generateCmd.Flags().BoolVar(&genTokens, "tokens", false, "print the generated words one per line")
	generateCmd.Flags().StringVarP(&genSave, "save", "s", "", "save output to file (default: ~/.slm/generations/generation_<timestamp>.txt)")
	generateCmd.Flags().Lookup("save").NoOptDefVal = " "

	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	prompt := strings.Join(args, " ")

	manager, err := newManager(genFlags.model, genFlags.corpus)
	if err != nil {
		return err
	}
	defer manager.Close()

	opts := genFlags.options(cmd)
	opts.IncludeTokens = genTokens

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	var resp *llm.Response
	if genStream {
		resp, err = streamGeneration(ctx, cmd, manager, prompt, opts)
	} else {
		resp, err = manager.Generate(ctx, prompt, opts)
		if err == nil {
			fmt.Fprintln(cmd.OutOrStdout(), resp.Text)
		}
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if genTokens {
		fmt.Fprintln(out)
		for i, w := range resp.Words {
			fmt.Fprintf(out, "%3d  %s\n", i+1, w)
		}
	}
	if verbose {
		fmt.Fprintf(cmd.ErrOrStderr(), "\n[%s mode, %d steps, stopped: %s, %s]\n",
			resp.Mode, resp.Steps, resp.Reason, resp.Duration.Round(time.Millisecond))
	}

	hist := openHistory()
	if hist != nil {
		defer hist.Close()
		recordHistory(ctx, hist, "cli", opts, resp)
	}

	if cmd.Flags().Changed("save") {
		return SaveResponse(cmd, resp.Text, strings.TrimSpace(genSave))
	}
	return nil
}

// printStream writes prompt and then each generated word until the stream
// closes, returning the final step. The end-of-sequence token is not printed.
func printStream(out io.Writer, prompt string, stream <-chan inference.Step) (inference.Step, error) {
	fmt.Fprint(out, prompt)

	var final inference.Step
	for step := range stream {
		if step.Err != nil {
			fmt.Fprintln(out)
			return step, fmt.Errorf("generation failed: %w", step.Err)
		}
		if step.Done {
			final = step
			continue
		}
		if step.Token == tokenizer.EndID {
			continue
		}
		fmt.Fprint(out, " "+step.Word)
	}
	fmt.Fprintln(out)
	return final, nil
}

// streamGeneration prints each word as it arrives and rebuilds the response
// from the final step
func streamGeneration(ctx context.Context, cmd *cobra.Command, manager *llm.Manager, prompt string, opts llm.GenerateOptions) (*llm.Response, error) {
	start := time.Now()
	stream, err := manager.GenerateStream(ctx, prompt, opts)
	if err != nil {
		return nil, err
	}

	final, err := printStream(cmd.OutOrStdout(), prompt, stream)
	if err != nil {
		return nil, err
	}
	if final.Result == nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("generation ended without a result")
	}
	res := final.Result
	resp := &llm.Response{
		Prompt:     prompt,
		Text:       res.Text,
		Completion: res.Completion,
		Reason:     res.Reason,
		Steps:      res.Steps,
		Duration:   time.Since(start),
		Mode:       manager.Mode(),
	}
	if opts.IncludeTokens {
		resp.Words = res.Words
	}
	if rec := manager.CurrentModel(); rec != nil {
		resp.ModelID = rec.ID
	}
	return resp, nil
}

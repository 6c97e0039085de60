package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/xupit3r/slm/internal/history"
	"github.com/xupit3r/slm/internal/llm"
	"github.com/xupit3r/slm/internal/logging"
	"github.com/xupit3r/slm/internal/model"
)

// generationFlags are shared by generate, complete and interactive
type generationFlags struct {
	maxLength   int
	temperature float64
	topP        float64
	window      int
	seed        int64
	model       string
	corpus      string
}

func (f *generationFlags) register(cmd *cobra.Command, maxLength int) {
	cmd.Flags().IntVarP(&f.maxLength, "max-length", "n", maxLength, "maximum words to generate")
	cmd.Flags().Float64VarP(&f.temperature, "temperature", "t", 0.7, "sampling temperature (0 = greedy)")
	cmd.Flags().Float64Var(&f.topP, "top-p", 0.9, "nucleus sampling threshold (0-1]")
	cmd.Flags().IntVar(&f.window, "window", 50, "context words shown to the model")
	cmd.Flags().Int64Var(&f.seed, "seed", -1, "random seed (negative for random)")
	cmd.Flags().StringVarP(&f.model, "model", "m", "", "trained model ID to generate with")
	cmd.Flags().StringVarP(&f.corpus, "corpus", "c", "", "corpus file to build the vocabulary from")
	cmd.RegisterFlagCompletionFunc("model", modelFlagCompletion)
}

// generationDefaults returns the configured generation settings
func generationDefaults() llm.GenerateOptions {
	opts := llm.DefaultGenerateOptions()
	if cfg != nil {
		g := cfg.Generation
		opts.MaxTokens = g.MaxLength
		opts.Temperature = g.Temperature
		opts.TopP = g.TopP
		opts.Window = g.Window
		opts.Seed = g.Seed
		opts.SentenceStopProbability = g.SentenceStopProbability
	}
	return opts
}

// options merges configured defaults with flags the user set explicitly
func (f *generationFlags) options(cmd *cobra.Command) llm.GenerateOptions {
	opts := generationDefaults()

	flags := cmd.Flags()
	if flags.Changed("max-length") {
		opts.MaxTokens = f.maxLength
	}
	if flags.Changed("temperature") {
		opts.Temperature = f.temperature
	}
	if flags.Changed("top-p") {
		opts.TopP = f.topP
	}
	if flags.Changed("window") {
		opts.Window = f.window
	}
	if flags.Changed("seed") {
		opts.Seed = f.seed
	}
	return opts
}

// openStore opens the configured model directory
func openStore() (*model.Store, error) {
	dir := ""
	if cfg != nil {
		dir = cfg.Model.Dir
	}
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(home, ".slm", "models")
	}
	store, err := model.NewStore(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open model store: %w", err)
	}
	return store, nil
}

// newManager picks the generation mode: an explicit model, then the
// configured default model, then a corpus, then the prompt itself.
func newManager(modelID, corpusPath string) (*llm.Manager, error) {
	store, err := openStore()
	if err != nil {
		return nil, err
	}
	manager := llm.NewManager(store)

	if modelID == "" && corpusPath == "" && cfg != nil {
		modelID = cfg.Model.Default
		corpusPath = cfg.Corpus.Path
	}

	switch {
	case modelID != "":
		if err := manager.LoadModel(modelID); err != nil {
			return nil, err
		}
	case corpusPath != "":
		n, err := manager.LoadCorpus(corpusPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load corpus: %w", err)
		}
		logging.Debugf("Loaded %d corpus lines from %s", n, corpusPath)
	}
	return manager, nil
}

// openHistory returns nil when history is disabled or unavailable
func openHistory() *history.Store {
	if cfg == nil || !cfg.History.Enabled {
		return nil
	}
	store, err := history.Open(cfg.History.DBPath)
	if err != nil {
		logging.Warnf("History disabled: %v", err)
		return nil
	}
	return store
}

// recordHistory logs a finished generation, ignoring a nil store
func recordHistory(ctx context.Context, store *history.Store, source string, opts llm.GenerateOptions, resp *llm.Response) {
	if store == nil || resp == nil {
		return
	}
	_, err := store.Record(ctx, history.Entry{
		Time:        time.Now(),
		Source:      source,
		Prompt:      resp.Prompt,
		Output:      resp.Text,
		Temperature: opts.Temperature,
		TopP:        opts.TopP,
		MaxLength:   opts.MaxTokens,
		StopReason:  resp.Reason.String(),
		Steps:       resp.Steps,
		Duration:    resp.Duration,
	})
	if err != nil {
		logging.Warnf("Failed to record history: %v", err)
	}
}

// SaveResponse saves generated text to a file
func SaveResponse(cmd *cobra.Command, content, outputPath string) error {
	// If no path specified, create default path
	if outputPath == "" {
		timestamp := time.Now().Format("2006-01-02_15-04-05")
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		outputPath = filepath.Join(homeDir, ".slm", "generations", fmt.Sprintf("generation_%s.txt", timestamp))
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}

	if err := os.WriteFile(outputPath, []byte(content+"\n"), 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Saved to: %s\n", outputPath)
	return nil
}

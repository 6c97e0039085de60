package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xupit3r/slm/internal/eval"
	"github.com/xupit3r/slm/internal/predictor"
	"github.com/xupit3r/slm/internal/tokenizer"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate [model-id] [corpus]",
	Short: "Score a trained model's perplexity on a corpus",
	Args:  cobra.ExactArgs(2),
	RunE:  runEvaluate,
}

var evalJSON bool

func init() {
	evaluateCmd.Flags().BoolVar(&evalJSON, "json", false, "print metrics as JSON")

	rootCmd.AddCommand(evaluateCmd)
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	modelID, corpusPath := args[0], args[1]

	store, err := openStore()
	if err != nil {
		return err
	}

	artifact, _, err := store.LoadArtifact(modelID)
	if err != nil {
		return fmt.Errorf("failed to load model %s: %w", modelID, err)
	}
	vocab, err := tokenizer.NewVocabularyFromTokens(artifact.Vocabulary)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", predictor.ErrModelUnavailable, modelID, err)
	}

	lines, err := tokenizer.ReadCorpus(corpusPath)
	if err != nil {
		return err
	}

	// Words outside the model's vocabulary score as <unk>
	examples := predictor.BuildExamples(tokenizer.New(vocab), lines, artifact.Model.Window())
	metrics, err := eval.Evaluate(artifact.Model, examples)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if evalJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(metrics)
	}

	fmt.Fprintf(out, "Model:       %s\n", modelID)
	fmt.Fprintf(out, "Rows:        %d\n", metrics.Rows)
	fmt.Fprintf(out, "Loss:        %.4f\n", metrics.Loss)
	fmt.Fprintf(out, "Perplexity:  %.4f\n", metrics.Perplexity)
	fmt.Fprintf(out, "Accuracy:    %.2f%%\n", metrics.Accuracy*100)
	return nil
}

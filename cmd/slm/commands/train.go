package commands

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/xupit3r/slm/internal/eval"
	"github.com/xupit3r/slm/internal/logging"
	"github.com/xupit3r/slm/internal/predictor"
	"github.com/xupit3r/slm/internal/system"
	"github.com/xupit3r/slm/internal/tokenizer"
)

var trainCmd = &cobra.Command{
	Use:   "train [corpus]",
	Short: "Train a next-word predictor on a corpus",
	Long: `Train a softmax-regression next-word predictor on a plain-text corpus.

The corpus vocabulary is built first, every line becomes a sequence of
next-word examples, and a held-out split is scored for perplexity before
the model is saved to the model store under --id.`,
	Args: cobra.ExactArgs(1),
	RunE: runTrain,
}

var (
	trainID           string
	trainWindow       int
	trainEpochs       int
	trainLearningRate float64
	trainL2           float64
	trainTestSplit    float64
	trainSeed         int64
	trainForce        bool
)

func init() {
	trainCmd.Flags().StringVar(&trainID, "id", "", "model ID to save as (required)")
	trainCmd.Flags().IntVar(&trainWindow, "window", 50, "context words per example")
	trainCmd.Flags().IntVar(&trainEpochs, "epochs", 10, "passes over the training set")
	trainCmd.Flags().Float64Var(&trainLearningRate, "learning-rate", 0.1, "SGD step size")
	trainCmd.Flags().Float64Var(&trainL2, "l2", 1e-4, "weight decay")
	trainCmd.Flags().Float64Var(&trainTestSplit, "test-split", 0.1, "fraction of examples held out for evaluation")
	trainCmd.Flags().Int64Var(&trainSeed, "seed", 42, "shuffle seed")
	trainCmd.Flags().BoolVar(&trainForce, "force", false, "train even if the weights may not fit in memory")
	trainCmd.MarkFlagRequired("id")

	rootCmd.AddCommand(trainCmd)
}

// trainConfig merges configured training defaults with explicit flags
func trainConfig(cmd *cobra.Command) (predictor.TrainConfig, float64) {
	tc := predictor.DefaultTrainConfig()
	split := trainTestSplit
	if cfg != nil {
		tc.Epochs = cfg.Training.Epochs
		tc.LearningRate = cfg.Training.LearningRate
		tc.L2 = cfg.Training.L2
		tc.Seed = cfg.Training.Seed
		split = cfg.Training.TestSplit
	}

	flags := cmd.Flags()
	if flags.Changed("epochs") {
		tc.Epochs = trainEpochs
	}
	if flags.Changed("learning-rate") {
		tc.LearningRate = trainLearningRate
	}
	if flags.Changed("l2") {
		tc.L2 = trainL2
	}
	if flags.Changed("seed") {
		tc.Seed = trainSeed
	}
	if flags.Changed("test-split") {
		split = trainTestSplit
	}
	return tc, split
}

func runTrain(cmd *cobra.Command, args []string) error {
	corpusPath := args[0]
	out := cmd.OutOrStdout()

	store, err := openStore()
	if err != nil {
		return err
	}

	lines, err := tokenizer.ReadCorpus(corpusPath)
	if err != nil {
		return err
	}

	vocab := tokenizer.NewVocabulary()
	vocab.Build(lines)
	if vocab.Size() <= tokenizer.NumReserved {
		return fmt.Errorf("corpus %s contains no words", corpusPath)
	}
	tok := tokenizer.New(vocab)

	if err := checkMemory(vocab.Size()); err != nil {
		return err
	}

	window := trainWindow
	if !cmd.Flags().Changed("window") && cfg != nil {
		window = cfg.Generation.Window
	}

	tc, split := trainConfig(cmd)
	examples := predictor.BuildExamples(tok, lines, window)
	trainSet, testSet := predictor.Split(examples, split, tc.Seed)

	fmt.Fprintf(out, "Corpus: %d lines, %d tokens in vocabulary\n", len(lines), vocab.Size())
	fmt.Fprintf(out, "Examples: %d train, %d test\n", len(trainSet), len(testSet))

	start := time.Now()
	model, err := predictor.Train(trainSet, vocab.Size(), window, tc)
	if err != nil {
		return fmt.Errorf("training failed: %w", err)
	}

	// Fall back to training-set metrics when nothing was held out
	scored := testSet
	if len(scored) == 0 {
		scored = trainSet
	}
	metrics, err := eval.Evaluate(model, scored)
	if err != nil {
		return fmt.Errorf("evaluation failed: %w", err)
	}

	rec, err := store.SaveArtifact(trainID, predictor.Artifact{
		Model:      model,
		Vocabulary: vocab.Tokens(),
	}, &metrics)
	if err != nil {
		return fmt.Errorf("failed to save model: %w", err)
	}

	logging.For("train").WithFields(logrus.Fields{
		"model":    rec.ID,
		"examples": len(trainSet),
		"duration": time.Since(start),
	}).Info("model trained")

	fmt.Fprintf(out, "Trained in %s\n", time.Since(start).Round(time.Millisecond))
	fmt.Fprintf(out, "Held-out: %s\n", metrics)
	fmt.Fprintf(out, "Saved model %s (%s) to %s\n", rec.ID, system.FormatBytes(rec.SizeBytes), rec.Path)
	return nil
}

// checkMemory refuses vocabularies whose weight matrix would not fit in RAM
func checkMemory(vocabSize int) error {
	required := predictor.WeightBytes(vocabSize)
	info, err := system.GetRAMInfo()
	if err != nil {
		logging.Debugf("Skipping memory check: %v", err)
		return nil
	}
	if err := info.Fits(required); err != nil {
		if trainForce {
			logging.Warnf("Training anyway: %v", err)
			return nil
		}
		return fmt.Errorf("%w (vocabulary of %d tokens; use --force to train anyway)", err, vocabSize)
	}
	logging.Debugf("Weights need %s of %s usable", system.FormatBytes(required), system.FormatBytes(info.UsableBytes()))
	return nil
}

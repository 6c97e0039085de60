package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/xupit3r/slm/internal/config"
	"github.com/xupit3r/slm/internal/logging"
)

var (
	cfgFile string
	verbose bool
	quiet   bool

	// cfg is loaded before any subcommand runs
	cfg *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "slm",
	Short: "A small language model for text generation",
	Long: `slm builds word vocabularies from text corpora, trains a small
next-word predictor, and generates text with temperature and nucleus
(top-p) sampling.

Without a trained model, slm generates by lexical similarity over a corpus
vocabulary or over the words of the prompt itself.`,
	Version:           Version,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.slm/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "quiet mode")
}

// loadConfig reads configuration and initializes logging
func loadConfig(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	cfg = loaded

	opts := logging.Options{
		Level:   cfg.Logging.Level,
		File:    cfg.Logging.File,
		Console: cfg.Logging.Console && !quiet,
		JSON:    cfg.Logging.JSON,
	}
	if verbose {
		opts.Level = "debug"
	}
	if err := logging.Init(opts); err != nil {
		return fmt.Errorf("initializing logging: %w", err)
	}

	if verbose && cfgFile != "" {
		fmt.Fprintln(os.Stderr, "Using config file:", cfgFile)
	}
	return nil
}

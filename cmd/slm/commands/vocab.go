package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xupit3r/slm/internal/tokenizer"
)

var vocabCmd = &cobra.Command{
	Use:   "vocab [corpus]",
	Short: "Build and inspect a corpus vocabulary",
	Args:  cobra.ExactArgs(1),
	RunE:  runVocab,
}

var (
	vocabLimit  int
	vocabOutput string
	vocabEncode string
)

func init() {
	vocabCmd.Flags().IntVar(&vocabLimit, "limit", 20, "number of tokens to print (0 for all)")
	vocabCmd.Flags().StringVarP(&vocabOutput, "output", "o", "", "write all tokens, one per line in ID order, to a file")
	vocabCmd.Flags().StringVar(&vocabEncode, "encode", "", "print the token IDs for this text")

	rootCmd.AddCommand(vocabCmd)
}

func runVocab(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	lines, err := tokenizer.ReadCorpus(args[0])
	if err != nil {
		return err
	}
	vocab := tokenizer.NewVocabulary()
	vocab.Build(lines)

	fmt.Fprintf(out, "Lines:       %d\n", len(lines))
	fmt.Fprintf(out, "Vocabulary:  %d tokens (%d reserved)\n", vocab.Size(), tokenizer.NumReserved)

	tokens := vocab.Tokens()
	limit := len(tokens)
	if vocabLimit > 0 && vocabLimit < limit {
		limit = vocabLimit
	}
	fmt.Fprintln(out)
	for id := 0; id < limit; id++ {
		fmt.Fprintf(out, "%6d  %s\n", id, tokens[id])
	}
	if limit < len(tokens) {
		fmt.Fprintf(out, "   ... %d more\n", len(tokens)-limit)
	}

	if vocabEncode != "" {
		tok := tokenizer.New(vocab)
		ids := tok.Encode(vocabEncode)
		parts := make([]string, len(ids))
		for i, id := range ids {
			parts[i] = fmt.Sprint(id)
		}
		fmt.Fprintf(out, "\nEncoded:  [%s]\n", strings.Join(parts, " "))
		fmt.Fprintf(out, "Decoded:  %s\n", tok.Decode(ids))
	}

	if vocabOutput != "" {
		if err := os.WriteFile(vocabOutput, []byte(strings.Join(tokens, "\n")+"\n"), 0644); err != nil {
			return fmt.Errorf("failed to write vocabulary: %w", err)
		}
		fmt.Fprintf(out, "\nWrote %d tokens to %s\n", len(tokens), vocabOutput)
	}
	return nil
}

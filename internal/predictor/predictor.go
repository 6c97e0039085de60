// Package predictor provides the numeric next-token model used by the
// predictor-backed generation path and the perplexity evaluator.
//
// A Predictor maps a window of context tokens to one logit per vocabulary
// ID. Linear is the in-process implementation: a softmax regression over
// bag-of-context and last-token feature columns, trained with SGD and
// stored as a JSON artifact.
package predictor

import (
	"errors"
	"math"
	"math/rand"

	"github.com/xupit3r/slm/internal/tokenizer"
)

var (
	// ErrModelUnavailable means a model artifact is missing or unreadable
	ErrModelUnavailable = errors.New("model unavailable")

	// ErrWidthMismatch means a predictor's output width differs from its vocabulary size
	ErrWidthMismatch = errors.New("predictor output width does not match vocabulary size")
)

// Predictor scores every vocabulary ID given a context window
type Predictor interface {
	// VocabSize returns the width of the logit vector
	VocabSize() int

	// Logits returns one unnormalized score per vocabulary ID
	Logits(context []tokenizer.TokenID) ([]float64, error)
}

// Example is one labeled next-token row
type Example struct {
	Context []tokenizer.TokenID
	Label   tokenizer.TokenID
}

// BuildExamples turns corpus lines into next-token examples.
// Every position after the first word yields one example whose context is
// the preceding window tokens; each non-empty line ends with an example
// labeled with the end-of-sequence token.
func BuildExamples(tok *tokenizer.Tokenizer, lines []string, window int) []Example {
	var examples []Example
	for _, line := range lines {
		ids := tok.Encode(line)
		if len(ids) == 0 {
			continue
		}
		ids = append(ids, tokenizer.EndID)

		for i := 1; i < len(ids); i++ {
			start := 0
			if window > 0 && i > window {
				start = i - window
			}
			ctx := make([]tokenizer.TokenID, i-start)
			copy(ctx, ids[start:i])
			examples = append(examples, Example{Context: ctx, Label: ids[i]})
		}
	}
	return examples
}

// Split shuffles examples with seed and holds out testFraction of them
func Split(examples []Example, testFraction float64, seed int64) (train, test []Example) {
	shuffled := make([]Example, len(examples))
	copy(shuffled, examples)
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	nTest := int(math.Round(float64(len(shuffled)) * testFraction))
	if nTest >= len(shuffled) && len(shuffled) > 0 {
		nTest = len(shuffled) - 1
	}
	return shuffled[nTest:], shuffled[:nTest]
}

// Softmax converts logits to probabilities with numerical stability
func Softmax(logits []float64) []float64 {
	probs := make([]float64, len(logits))
	if len(logits) == 0 {
		return probs
	}

	maxVal := math.Inf(-1)
	for _, v := range logits {
		if v > maxVal {
			maxVal = v
		}
	}

	sum := 0.0
	for i, v := range logits {
		probs[i] = math.Exp(v - maxVal)
		sum += probs[i]
	}

	if sum > 0 && !math.IsInf(sum, 0) && !math.IsNaN(sum) {
		for i := range probs {
			probs[i] /= sum
		}
	} else {
		// Uniform distribution as fallback
		for i := range probs {
			probs[i] = 1.0 / float64(len(probs))
		}
	}

	return probs
}

package inference

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/xupit3r/slm/internal/predictor"
	"github.com/xupit3r/slm/internal/tokenizer"
)

// ScoreKind tells the scaler how to read a distribution's scores
type ScoreKind int

const (
	// Similarity scores are non-negative and scaled with a power transform
	Similarity ScoreKind = iota
	// Logits are unconstrained and scaled with a softmax
	Logits
)

func (k ScoreKind) String() string {
	switch k {
	case Similarity:
		return "similarity"
	case Logits:
		return "logits"
	default:
		return fmt.Sprintf("ScoreKind(%d)", int(k))
	}
}

// Context is what a provider sees at one generation step
type Context struct {
	Tokens   []tokenizer.TokenID // Last window tokens, oldest first
	LastWord string              // Surface text of the most recent word
	Rand     *rand.Rand          // Per-generation random source
}

// Distribution holds parallel candidate IDs and raw scores for one step
type Distribution struct {
	IDs    []tokenizer.TokenID
	Scores []float64
	Kind   ScoreKind
}

// Len returns the number of candidates
func (d Distribution) Len() int {
	return len(d.IDs)
}

// Provider scores next-token candidates given a context
type Provider interface {
	// Candidates returns a non-empty distribution, or ErrNoCandidates
	// when the provider has nothing to offer.
	Candidates(c Context) (Distribution, error)

	// Size returns the number of tokens the provider can produce.
	Size() int
}

// HeuristicProvider scores vocabulary words by lexical similarity to the
// previous word. It needs no trained model.
type HeuristicProvider struct {
	words []string
	ids   []tokenizer.TokenID
}

// NewHeuristicProvider creates a provider over the non-reserved words of v
func NewHeuristicProvider(v *tokenizer.Vocabulary) *HeuristicProvider {
	words := v.Words()
	ids := make([]tokenizer.TokenID, len(words))
	for i := range words {
		ids[i] = tokenizer.TokenID(tokenizer.NumReserved + i)
	}
	return &HeuristicProvider{words: words, ids: ids}
}

// Size returns the number of distinct candidate words
func (p *HeuristicProvider) Size() int {
	return len(p.words)
}

// Candidates scores every word except the previous one. If nothing scores
// above zero a single random word is returned with score 1.0.
func (p *HeuristicProvider) Candidates(c Context) (Distribution, error) {
	if len(p.words) == 0 {
		return Distribution{}, ErrNoCandidates
	}

	// Vocabulary words are lower-cased
	prev := strings.ToLower(c.LastWord)

	d := Distribution{Kind: Similarity}
	for i, w := range p.words {
		if w == prev {
			continue
		}
		score := SimilarityScore(c.LastWord, w)
		if score <= 0 {
			continue
		}
		d.IDs = append(d.IDs, p.ids[i])
		d.Scores = append(d.Scores, score)
	}

	if len(d.IDs) == 0 {
		pick := c.Rand.Intn(len(p.words))
		d.IDs = []tokenizer.TokenID{p.ids[pick]}
		d.Scores = []float64{1.0}
	}

	return d, nil
}

// SimilarityScore rates candidate against the previous word.
//
// A candidate that case-insensitively starts with the first two characters
// of prev scores 0.5. Otherwise the score is the number of distinct
// characters the words share divided by the longer word's length.
func SimilarityScore(prev, candidate string) float64 {
	prevRunes := []rune(strings.ToLower(prev))
	candRunes := []rune(strings.ToLower(candidate))

	prefixLen := len(prevRunes)
	if prefixLen > 2 {
		prefixLen = 2
	}
	if strings.HasPrefix(string(candRunes), string(prevRunes[:prefixLen])) {
		return 0.5
	}

	longest := len([]rune(prev))
	if n := len([]rune(candidate)); n > longest {
		longest = n
	}
	if longest == 0 {
		return 0
	}

	inCandidate := make(map[rune]bool, len(candRunes))
	for _, r := range candRunes {
		inCandidate[r] = true
	}
	common := 0
	seen := make(map[rune]bool, len(prevRunes))
	for _, r := range prevRunes {
		if inCandidate[r] && !seen[r] {
			common++
		}
		seen[r] = true
	}

	return float64(common) / float64(longest)
}

// PredictorProvider asks a trained predictor for one logit per vocabulary ID
type PredictorProvider struct {
	model  predictor.Predictor
	window int
}

// NewPredictorProvider wraps model, showing it at most window context tokens
func NewPredictorProvider(model predictor.Predictor, window int) *PredictorProvider {
	return &PredictorProvider{model: model, window: window}
}

// Size returns the predictor's vocabulary size
func (p *PredictorProvider) Size() int {
	return p.model.VocabSize()
}

// Candidates returns every vocabulary ID in order with the predictor's logits
func (p *PredictorProvider) Candidates(c Context) (Distribution, error) {
	vocabSize := p.model.VocabSize()
	if vocabSize == 0 {
		return Distribution{}, ErrNoCandidates
	}

	logits, err := p.model.Logits(lastN(c.Tokens, p.window))
	if err != nil {
		return Distribution{}, fmt.Errorf("predictor: %w", err)
	}
	if len(logits) != vocabSize {
		return Distribution{}, fmt.Errorf("%w: got %d scores for %d tokens",
			predictor.ErrWidthMismatch, len(logits), vocabSize)
	}

	ids := make([]tokenizer.TokenID, vocabSize)
	for i := range ids {
		ids[i] = tokenizer.TokenID(i)
	}

	return Distribution{IDs: ids, Scores: logits, Kind: Logits}, nil
}

// lastN returns the final n entries of tokens
func lastN(tokens []tokenizer.TokenID, n int) []tokenizer.TokenID {
	if n > 0 && len(tokens) > n {
		return tokens[len(tokens)-n:]
	}
	return tokens
}

// Package eval scores next-token probability outputs against true labels.
package eval

import (
	"errors"
	"fmt"
	"math"

	"github.com/xupit3r/slm/internal/predictor"
	"github.com/xupit3r/slm/internal/tokenizer"
)

// MinProbability floors the true-label probability before taking its log
const MinProbability = 1e-10

var (
	// ErrEmptyDataset means no row had a score vector
	ErrEmptyDataset = errors.New("no scored rows to evaluate")

	// ErrLabelOutOfRange means a row's label indexes past its scores
	ErrLabelOutOfRange = errors.New("label outside score vector")
)

// ScoredRow is one model output paired with the true next-token ID
type ScoredRow struct {
	Scores []float64 // Probability per token ID
	Label  int
}

// Metrics summarizes an evaluation
type Metrics struct {
	Loss       float64 `json:"loss"`       // Mean negative log-likelihood
	Perplexity float64 `json:"perplexity"` // exp(Loss)
	Accuracy   float64 `json:"accuracy"`   // Fraction of rows whose argmax is the label
	Rows       int     `json:"rows"`       // Rows that contributed
}

func (m Metrics) String() string {
	return fmt.Sprintf("loss=%.4f perplexity=%.4f accuracy=%.2f%% rows=%d",
		m.Loss, m.Perplexity, m.Accuracy*100, m.Rows)
}

// Perplexity computes exp of the mean negative log-likelihood of the true
// labels. Rows with empty score vectors are skipped.
func Perplexity(rows []ScoredRow) (Metrics, error) {
	var (
		total   float64
		correct int
		count   int
	)

	for i, row := range rows {
		if len(row.Scores) == 0 {
			continue
		}
		if row.Label < 0 || row.Label >= len(row.Scores) {
			return Metrics{}, fmt.Errorf("row %d: %w: label %d, %d scores",
				i, ErrLabelOutOfRange, row.Label, len(row.Scores))
		}

		total += -math.Log(math.Max(row.Scores[row.Label], MinProbability))
		if argmax(row.Scores) == row.Label {
			correct++
		}
		count++
	}

	if count == 0 {
		return Metrics{}, ErrEmptyDataset
	}

	loss := total / float64(count)
	return Metrics{
		Loss:       loss,
		Perplexity: math.Exp(loss),
		Accuracy:   float64(correct) / float64(count),
		Rows:       count,
	}, nil
}

// Scorer produces a probability per vocabulary ID for a context
type Scorer interface {
	Predict(context []tokenizer.TokenID) ([]float64, error)
}

// Evaluate scores every example with m and reports its metrics
func Evaluate(m Scorer, examples []predictor.Example) (Metrics, error) {
	rows := make([]ScoredRow, 0, len(examples))
	for i, ex := range examples {
		probs, err := m.Predict(ex.Context)
		if err != nil {
			return Metrics{}, fmt.Errorf("example %d: %w", i, err)
		}
		rows = append(rows, ScoredRow{Scores: probs, Label: int(ex.Label)})
	}
	return Perplexity(rows)
}

func argmax(values []float64) int {
	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}
	return best
}

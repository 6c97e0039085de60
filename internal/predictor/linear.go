package predictor

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"

	"github.com/xupit3r/slm/internal/logging"
	"github.com/xupit3r/slm/internal/tokenizer"
)

// Linear is a softmax-regression next-token model.
//
// Feature columns for a context window:
//
//	[0, V)     bag of context tokens, each weighted 1/len(window)
//	[V, 2V)    one-hot of the last context token
//	2V         bias
//
// Weights are a V x (2V+1) matrix; logits are weights * features.
// A trained Linear is immutable and safe for concurrent use.
type Linear struct {
	vocabSize int
	window    int
	weights   *mat.Dense
}

// NewLinear creates an untrained model with zero weights
func NewLinear(vocabSize, window int) (*Linear, error) {
	if vocabSize <= 0 {
		return nil, fmt.Errorf("vocabulary size must be positive, got %d", vocabSize)
	}
	if window <= 0 {
		return nil, fmt.Errorf("window must be positive, got %d", window)
	}
	return &Linear{
		vocabSize: vocabSize,
		window:    window,
		weights:   mat.NewDense(vocabSize, featureWidth(vocabSize), nil),
	}, nil
}

func featureWidth(vocabSize int) int {
	return 2*vocabSize + 1
}

// WeightBytes returns the in-memory size of a model's weight matrix
func WeightBytes(vocabSize int) int64 {
	return int64(vocabSize) * int64(featureWidth(vocabSize)) * 8
}

// VocabSize returns the number of output classes
func (m *Linear) VocabSize() int {
	return m.vocabSize
}

// Window returns the number of context tokens the model reads
func (m *Linear) Window() int {
	return m.window
}

// features builds the feature vector for the trailing window of context.
// IDs outside the vocabulary are ignored.
func (m *Linear) features(context []tokenizer.TokenID) *mat.VecDense {
	x := mat.NewVecDense(featureWidth(m.vocabSize), nil)
	x.SetVec(2*m.vocabSize, 1)

	if len(context) > m.window {
		context = context[len(context)-m.window:]
	}
	if len(context) == 0 {
		return x
	}

	weight := 1.0 / float64(len(context))
	for _, id := range context {
		if id >= 0 && int(id) < m.vocabSize {
			x.SetVec(int(id), x.AtVec(int(id))+weight)
		}
	}

	last := context[len(context)-1]
	if last >= 0 && int(last) < m.vocabSize {
		x.SetVec(m.vocabSize+int(last), 1)
	}

	return x
}

// Logits returns one score per vocabulary ID
func (m *Linear) Logits(context []tokenizer.TokenID) ([]float64, error) {
	x := m.features(context)
	z := mat.NewVecDense(m.vocabSize, nil)
	z.MulVec(m.weights, x)
	return z.RawVector().Data, nil
}

// Predict returns the probability of each vocabulary ID
func (m *Linear) Predict(context []tokenizer.TokenID) ([]float64, error) {
	logits, err := m.Logits(context)
	if err != nil {
		return nil, err
	}
	return Softmax(logits), nil
}

// TrainConfig holds SGD parameters
type TrainConfig struct {
	Epochs       int     // Passes over the training set
	LearningRate float64 // SGD step size
	L2           float64 // Weight decay per update
	Seed         int64   // Shuffle seed
}

// DefaultTrainConfig returns sensible defaults for small corpora
func DefaultTrainConfig() TrainConfig {
	return TrainConfig{
		Epochs:       10,
		LearningRate: 0.1,
		L2:           1e-4,
		Seed:         42,
	}
}

// Train fits a Linear model to examples with stochastic gradient descent
func Train(examples []Example, vocabSize, window int, cfg TrainConfig) (*Linear, error) {
	if len(examples) == 0 {
		return nil, fmt.Errorf("no training examples")
	}
	if cfg.Epochs <= 0 {
		return nil, fmt.Errorf("epochs must be positive, got %d", cfg.Epochs)
	}
	if cfg.LearningRate <= 0 {
		return nil, fmt.Errorf("learning rate must be positive, got %g", cfg.LearningRate)
	}

	m, err := NewLinear(vocabSize, window)
	if err != nil {
		return nil, err
	}

	log := logging.Get().WithFields(logrus.Fields{
		"examples":   len(examples),
		"vocab_size": vocabSize,
		"window":     window,
	})
	log.Infof("training linear model for %d epochs", cfg.Epochs)

	rng := rand.New(rand.NewSource(cfg.Seed))
	order := make([]int, len(examples))
	for i := range order {
		order[i] = i
	}

	grad := mat.NewVecDense(vocabSize, nil)
	z := mat.NewVecDense(vocabSize, nil)
	decay := 1 - cfg.LearningRate*cfg.L2

	for epoch := 1; epoch <= cfg.Epochs; epoch++ {
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		totalLoss := 0.0
		for _, idx := range order {
			ex := examples[idx]
			if ex.Label < 0 || int(ex.Label) >= vocabSize {
				return nil, fmt.Errorf("example label %d outside vocabulary of %d", ex.Label, vocabSize)
			}

			x := m.features(ex.Context)
			z.MulVec(m.weights, x)
			probs := Softmax(z.RawVector().Data)
			totalLoss += -math.Log(math.Max(probs[ex.Label], 1e-10))

			// Cross-entropy gradient w.r.t. logits: p - onehot(label)
			for i, p := range probs {
				grad.SetVec(i, p)
			}
			grad.SetVec(int(ex.Label), grad.AtVec(int(ex.Label))-1)

			if cfg.L2 > 0 {
				m.weights.Scale(decay, m.weights)
			}
			m.weights.RankOne(m.weights, -cfg.LearningRate, grad, x)
		}

		log.WithField("epoch", epoch).Debugf("average loss %.4f", totalLoss/float64(len(examples)))
	}

	return m, nil
}

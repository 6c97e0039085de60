package predictor

import (
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xupit3r/slm/internal/tokenizer"
)

var testCorpus = []string{
	"the cat sat on the mat",
	"the dog sat on the log",
	"the cat ate the fish",
}

func newTestTokenizer(t *testing.T) *tokenizer.Tokenizer {
	t.Helper()
	v := tokenizer.NewVocabulary()
	v.Build(testCorpus)
	return tokenizer.New(v)
}

func TestBuildExamples(t *testing.T) {
	v := tokenizer.NewVocabulary()
	v.Build([]string{"a b c"})
	tok := tokenizer.New(v)

	examples := BuildExamples(tok, []string{"a b c", "", "   "}, 2)
	require.Len(t, examples, 3)

	a, b, c := v.IDOf("a"), v.IDOf("b"), v.IDOf("c")
	assert.Equal(t, Example{Context: []tokenizer.TokenID{a}, Label: b}, examples[0])
	assert.Equal(t, Example{Context: []tokenizer.TokenID{a, b}, Label: c}, examples[1])
	assert.Equal(t, Example{Context: []tokenizer.TokenID{b, c}, Label: tokenizer.EndID}, examples[2])
}

func TestSplit(t *testing.T) {
	tok := newTestTokenizer(t)
	examples := BuildExamples(tok, testCorpus, 4)

	train, test := Split(examples, 0.25, 7)
	assert.Equal(t, len(examples), len(train)+len(test))
	assert.Equal(t, int(math.Round(float64(len(examples))*0.25)), len(test))

	train2, test2 := Split(examples, 0.25, 7)
	assert.Equal(t, train, train2, "same seed should give same split")
	assert.Equal(t, test, test2)

	train, test = Split(examples, 0, 7)
	assert.Len(t, train, len(examples))
	assert.Empty(t, test)
}

func TestSoftmax(t *testing.T) {
	probs := Softmax([]float64{1, 2, 3})

	sum := 0.0
	for _, p := range probs {
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.Greater(t, probs[2], probs[1])
	assert.Greater(t, probs[1], probs[0])

	// Large logits must not overflow
	probs = Softmax([]float64{1000, 1000})
	assert.InDelta(t, 0.5, probs[0], 1e-9)
}

func TestNewLinearValidation(t *testing.T) {
	_, err := NewLinear(0, 4)
	assert.Error(t, err)
	_, err = NewLinear(10, 0)
	assert.Error(t, err)
}

func TestWeightBytes(t *testing.T) {
	// 10 rows of 21 float64 columns
	assert.Equal(t, int64(10*21*8), WeightBytes(10))
}

func TestUntrainedLinearIsUniform(t *testing.T) {
	m, err := NewLinear(5, 3)
	require.NoError(t, err)

	probs, err := m.Predict([]tokenizer.TokenID{4, 1})
	require.NoError(t, err)
	for _, p := range probs {
		assert.InDelta(t, 0.2, p, 1e-9)
	}
}

func TestLinearIgnoresOutOfRangeContext(t *testing.T) {
	m, err := NewLinear(5, 3)
	require.NoError(t, err)

	logits, err := m.Logits([]tokenizer.TokenID{-1, 99})
	require.NoError(t, err)
	assert.Len(t, logits, 5)
}

func TestTrainLearnsBigrams(t *testing.T) {
	tok := newTestTokenizer(t)
	v := tok.Vocabulary()
	examples := BuildExamples(tok, testCorpus, 4)

	m, err := Train(examples, v.Size(), 4, TrainConfig{Epochs: 60, LearningRate: 0.5, Seed: 1})
	require.NoError(t, err)

	// "sat" is always followed by "on"
	probs, err := m.Predict(tok.Encode("the cat sat"))
	require.NoError(t, err)
	assert.Equal(t, int(v.IDOf("on")), argmax(probs), "expected 'on' after 'sat'")
	assert.Greater(t, probs[v.IDOf("on")], 0.5)
}

func TestTrainValidation(t *testing.T) {
	_, err := Train(nil, 10, 2, DefaultTrainConfig())
	assert.Error(t, err)

	examples := []Example{{Context: []tokenizer.TokenID{4}, Label: 4}}
	_, err = Train(examples, 10, 2, TrainConfig{Epochs: 0, LearningRate: 0.1})
	assert.Error(t, err)
	_, err = Train(examples, 10, 2, TrainConfig{Epochs: 1, LearningRate: 0})
	assert.Error(t, err)

	bad := []Example{{Context: []tokenizer.TokenID{4}, Label: 42}}
	_, err = Train(bad, 10, 2, DefaultTrainConfig())
	assert.Error(t, err)
}

func TestArtifactRoundTrip(t *testing.T) {
	tok := newTestTokenizer(t)
	v := tok.Vocabulary()
	m, err := Train(BuildExamples(tok, testCorpus, 3), v.Size(), 3, TrainConfig{Epochs: 3, LearningRate: 0.2, Seed: 3})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Save(&buf, Artifact{Model: m, Vocabulary: v.Tokens()}))

	loaded, err := Load(&buf)
	require.NoError(t, err)
	assert.Equal(t, v.Tokens(), loaded.Vocabulary)
	assert.Equal(t, m.VocabSize(), loaded.Model.VocabSize())
	assert.Equal(t, m.Window(), loaded.Model.Window())

	ctx := tok.Encode("the dog")
	want, _ := m.Logits(ctx)
	got, _ := loaded.Model.Logits(ctx)
	assert.InDeltaSlice(t, want, got, 1e-12)
}

func TestSaveRejectsMismatchedVocabulary(t *testing.T) {
	m, err := NewLinear(5, 2)
	require.NoError(t, err)

	var buf bytes.Buffer
	assert.Error(t, Save(&buf, Artifact{Model: m, Vocabulary: []string{"<unk>"}}))
	assert.Error(t, Save(&buf, Artifact{}))
}

func TestLoadCorruptArtifact(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", "garbage"},
		{"wrong version", `{"version": 99, "vocab_size": 1, "window": 1}`},
		{"bad shape", `{"version": 1, "vocab_size": 0, "window": 1}`},
		{"vocab mismatch", `{"version": 1, "vocab_size": 2, "window": 1, "vocabulary": ["<unk>"]}`},
		{"bad weights", `{"version": 1, "vocab_size": 1, "window": 1, "vocabulary": ["<unk>"], "weights": "AAAA"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.data))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrModelUnavailable), "got %v", err)
		})
	}
}

func TestSaveAndLoadFile(t *testing.T) {
	m, err := NewLinear(5, 2)
	require.NoError(t, err)
	vocab := tokenizer.NewVocabulary()
	vocab.Build([]string{"hi"})

	path := filepath.Join(t.TempDir(), "nested", "model.json")
	require.NoError(t, SaveFile(path, Artifact{Model: m, Vocabulary: vocab.Tokens()}))

	_, err = os.Stat(path)
	require.NoError(t, err)

	a, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 5, a.Model.VocabSize())
}

func TestLoadFileMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.json")
	_, err := LoadFile(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrModelUnavailable)
	assert.Contains(t, err.Error(), path)
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

package llm

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xupit3r/slm/internal/inference"
	"github.com/xupit3r/slm/internal/model"
	"github.com/xupit3r/slm/internal/predictor"
	"github.com/xupit3r/slm/internal/tokenizer"
)

func testOptions(maxTokens int) GenerateOptions {
	opts := DefaultGenerateOptions()
	opts.MaxTokens = maxTokens
	opts.Seed = 7
	opts.SentenceStopProbability = 0
	return opts
}

func TestDefaultGenerateOptions(t *testing.T) {
	opts := DefaultGenerateOptions()
	assert.Equal(t, 100, opts.MaxTokens)
	assert.Equal(t, 0.7, opts.Temperature)
	assert.Equal(t, 0.9, opts.TopP)
	assert.Equal(t, 50, opts.Window)
	assert.Equal(t, int64(-1), opts.Seed)
	assert.False(t, opts.IncludeTokens)
}

func TestManagerPromptMode(t *testing.T) {
	m := NewManager(nil)
	defer m.Close()
	assert.Equal(t, ModePrompt, m.Mode())
	assert.False(t, m.IsLoaded())

	opts := testOptions(6)
	opts.IncludeTokens = true
	resp, err := m.Generate(context.Background(), "hello help world word", opts)
	require.NoError(t, err)

	assert.Equal(t, ModePrompt, resp.Mode)
	assert.Equal(t, 6, resp.Steps)
	assert.Len(t, resp.Words, 6)
	assert.True(t, strings.HasPrefix(resp.Text, "hello help world word "))

	allowed := map[string]bool{"hello": true, "help": true, "world": true, "word": true}
	for _, w := range resp.Words {
		assert.True(t, allowed[w], "word %q is not from the prompt", w)
	}
}

func TestManagerPromptModeOmitsWords(t *testing.T) {
	m := NewManager(nil)
	resp, err := m.Generate(context.Background(), "a b", testOptions(3))
	require.NoError(t, err)
	assert.Nil(t, resp.Words)
}

func TestManagerEmptyPrompt(t *testing.T) {
	m := NewManager(nil)
	_, err := m.Generate(context.Background(), "", testOptions(3))
	assert.ErrorIs(t, err, inference.ErrEmptyVocabulary)
}

func TestManagerInvalidOptions(t *testing.T) {
	m := NewManager(nil)
	opts := testOptions(3)
	opts.TopP = 0
	_, err := m.Generate(context.Background(), "a b", opts)
	assert.ErrorIs(t, err, inference.ErrInvalidConfig)
}

func TestManagerLoadCorpus(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpus.txt")
	require.NoError(t, os.WriteFile(path, []byte("the cat sat\nthe dog ran\n"), 0644))

	m := NewManager(nil)
	size, err := m.LoadCorpus(path)
	require.NoError(t, err)
	assert.Equal(t, tokenizer.NumReserved+5, size)
	assert.Equal(t, ModeCorpus, m.Mode())
	assert.True(t, m.IsLoaded())

	opts := testOptions(4)
	opts.IncludeTokens = true
	resp, err := m.Generate(context.Background(), "zebra", opts)
	require.NoError(t, err)
	for _, w := range resp.Words {
		assert.True(t, m.Vocabulary().Contains(w), "word %q not in corpus", w)
	}

	require.NoError(t, m.Unload())
	assert.Equal(t, ModePrompt, m.Mode())
	assert.Nil(t, m.Vocabulary())
}

func TestManagerLoadCorpusMissing(t *testing.T) {
	m := NewManager(nil)
	_, err := m.LoadCorpus(filepath.Join(t.TempDir(), "missing.txt"))
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Equal(t, ModePrompt, m.Mode())
}

func trainedStore(t *testing.T) *model.Store {
	t.Helper()
	lines := []string{"the cat sat on the mat", "the cat sat on the mat"}

	v := tokenizer.NewVocabulary()
	v.Build(lines)
	tok := tokenizer.New(v)

	lm, err := predictor.Train(predictor.BuildExamples(tok, lines, 4), v.Size(), 4,
		predictor.TrainConfig{Epochs: 80, LearningRate: 0.5, Seed: 1})
	require.NoError(t, err)

	store, err := model.NewStore(t.TempDir())
	require.NoError(t, err)
	_, err = store.SaveArtifact("cats", predictor.Artifact{Model: lm, Vocabulary: v.Tokens()}, nil)
	require.NoError(t, err)
	return store
}

func TestManagerLoadModel(t *testing.T) {
	m := NewManager(trainedStore(t))
	require.NoError(t, m.LoadModel("cats"))

	assert.Equal(t, ModeModel, m.Mode())
	require.NotNil(t, m.CurrentModel())
	assert.Equal(t, "cats", m.CurrentModel().ID)

	opts := testOptions(3)
	opts.Temperature = 0
	resp, err := m.Generate(context.Background(), "the cat", opts)
	require.NoError(t, err)
	assert.Equal(t, "cats", resp.ModelID)
	assert.Equal(t, "the cat sat on the", resp.Text)

	completion, err := m.Complete(context.Background(), "the cat", opts)
	require.NoError(t, err)
	assert.Equal(t, "sat on the", completion)
}

func TestManagerLoadModelErrors(t *testing.T) {
	m := NewManager(nil)
	assert.ErrorIs(t, m.LoadModel("cats"), predictor.ErrModelUnavailable)

	m = NewManager(trainedStore(t))
	assert.ErrorIs(t, m.LoadModel("dogs"), model.ErrNotFound)
	assert.Equal(t, ModePrompt, m.Mode(), "failed load keeps previous mode")
}

func TestManagerGenerateStream(t *testing.T) {
	m := NewManager(nil)
	stream, err := m.GenerateStream(context.Background(), "one two three", testOptions(5))
	require.NoError(t, err)

	var words []string
	var final inference.Step
	for step := range stream {
		if step.Done {
			final = step
			continue
		}
		words = append(words, step.Word)
	}

	require.NoError(t, final.Err)
	require.NotNil(t, final.Result)
	assert.Equal(t, inference.StopLength, final.Reason)
	assert.Equal(t, words, final.Result.Words)
}

func TestManagerConcurrentGenerate(t *testing.T) {
	m := NewManager(trainedStore(t))
	require.NoError(t, m.LoadModel("cats"))

	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		go func(seed int64) {
			opts := testOptions(10)
			opts.Seed = seed
			_, err := m.Generate(context.Background(), "the", opts)
			errs <- err
		}(int64(i))
	}
	for i := 0; i < 8; i++ {
		assert.NoError(t, <-errs)
	}
}

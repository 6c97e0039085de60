package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xupit3r/slm/internal/inference"
	"github.com/xupit3r/slm/internal/llm"
	"github.com/xupit3r/slm/internal/tokenizer"
)

// scriptedStreamer emits fixed words then a final step
type scriptedStreamer struct {
	words []string
	eos   bool // Emit an end-of-sequence step after the words
	err   error
	opts  llm.GenerateOptions
}

func (s *scriptedStreamer) GenerateStream(ctx context.Context, prompt string, opts llm.GenerateOptions) (<-chan inference.Step, error) {
	s.opts = opts
	if s.err != nil {
		return nil, s.err
	}
	ch := make(chan inference.Step, len(s.words)+2)
	for _, w := range s.words {
		ch <- inference.Step{Word: w}
	}
	reason := inference.StopLength
	if s.eos {
		ch <- inference.Step{Token: tokenizer.EndID, Word: tokenizer.EndToken}
		reason = inference.StopEOS
	}
	res := &inference.Result{Words: s.words, Steps: len(s.words), Reason: reason}
	ch <- inference.Step{Done: true, Reason: reason, Result: res}
	close(ch)
	return ch, nil
}

func readyModel(gen Streamer, onDone DoneFunc) GenerateModel {
	opts := llm.DefaultGenerateOptions()
	m := NewGenerateModel(gen, opts, "prompt", onDone)
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return updated.(GenerateModel)
}

// drive feeds cmd results back into the model until no command remains
func drive(t *testing.T, m GenerateModel, cmd tea.Cmd) GenerateModel {
	t.Helper()
	for i := 0; cmd != nil && i < 100; i++ {
		msg := cmd()
		if msg == nil {
			break
		}
		var next tea.Model
		next, cmd = m.Update(msg)
		m = next.(GenerateModel)
	}
	return m
}

func submit(m GenerateModel, input string) (GenerateModel, tea.Cmd) {
	m.textarea.SetValue(input)
	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return updated.(GenerateModel), cmd
}

func TestInitializingView(t *testing.T) {
	m := NewGenerateModel(&scriptedStreamer{}, llm.DefaultGenerateOptions(), "prompt", nil)
	assert.Equal(t, "Initializing...", m.View())
}

func TestGenerateStreamsWords(t *testing.T) {
	var (
		donePrompt string
		doneStep   inference.Step
	)
	gen := &scriptedStreamer{words: []string{"sat", "on", "mat"}}
	m := readyModel(gen, func(prompt string, _ llm.GenerateOptions, step inference.Step, _ time.Duration) {
		donePrompt = prompt
		doneStep = step
	})

	m, cmd := submit(m, "the cat")
	require.NotNil(t, cmd)
	assert.True(t, m.generating)

	m = drive(t, m, cmd)
	assert.False(t, m.generating)
	assert.Equal(t, "sat on mat", m.current.String())
	assert.Equal(t, "the cat", donePrompt)
	assert.Equal(t, 3, doneStep.Result.Steps)

	view := m.View()
	assert.Contains(t, view, "the cat")
	assert.Contains(t, view, "sat on mat")
}

func TestGenerateSkipsEndOfSequence(t *testing.T) {
	gen := &scriptedStreamer{words: []string{"sat", "down."}, eos: true}
	m := readyModel(gen, nil)

	m, cmd := submit(m, "the cat")
	m = drive(t, m, cmd)

	assert.False(t, m.generating)
	assert.Equal(t, "sat down.", m.current.String())
	assert.NotContains(t, m.View(), tokenizer.EndToken)
}

func TestGenerateError(t *testing.T) {
	gen := &scriptedStreamer{err: errors.New("no vocabulary")}
	m := readyModel(gen, nil)

	m, cmd := submit(m, "x")
	m = drive(t, m, cmd)

	assert.False(t, m.generating)
	require.Error(t, m.err)
	assert.Contains(t, m.View(), "no vocabulary")
}

func TestEmptyInputIgnored(t *testing.T) {
	m := readyModel(&scriptedStreamer{}, nil)
	m, cmd := submit(m, "   ")
	assert.False(t, m.generating)
	assert.Nil(t, cmd)
}

func TestExitQuits(t *testing.T) {
	m := readyModel(&scriptedStreamer{}, nil)
	_, cmd := submit(m, "EXIT")
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestSettingCommands(t *testing.T) {
	gen := &scriptedStreamer{words: []string{"x"}}
	m := readyModel(gen, nil)

	m, _ = submit(m, "/temp 0.2")
	m, _ = submit(m, "/topp 0.5")
	m, _ = submit(m, "/len 7")
	m, _ = submit(m, "/seed 11")
	assert.Equal(t, 0.2, m.opts.Temperature)
	assert.Equal(t, 0.5, m.opts.TopP)
	assert.Equal(t, 7, m.opts.MaxTokens)
	assert.Equal(t, int64(11), m.opts.Seed)
	assert.Contains(t, m.status(), "seed: 11")

	m, cmd := submit(m, "go")
	drive(t, m, cmd)
	assert.Equal(t, 7, gen.opts.MaxTokens, "settings reach the generator")
}

func TestSettingCommandErrors(t *testing.T) {
	m := readyModel(&scriptedStreamer{}, nil)
	before := m.opts

	for _, input := range []string{"/topp 0", "/topp 2", "/len -1", "/temp hot", "/bogus 1", "/temp"} {
		m, _ = submit(m, input)
	}
	assert.Equal(t, before, m.opts)
	assert.True(t, strings.Count(m.View(), "Error") > 0 || strings.Contains(m.View(), "usage"))
}

func TestClear(t *testing.T) {
	m := readyModel(&scriptedStreamer{words: []string{"a"}}, nil)
	m, cmd := submit(m, "prompt")
	m = drive(t, m, cmd)
	require.NotEmpty(t, m.entries)

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyCtrlD})
	m = updated.(GenerateModel)
	assert.Empty(t, m.entries)
}

package llm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/xupit3r/slm/internal/inference"
	"github.com/xupit3r/slm/internal/logging"
	"github.com/xupit3r/slm/internal/model"
	"github.com/xupit3r/slm/internal/predictor"
	"github.com/xupit3r/slm/internal/tokenizer"
)

// Manager holds the active provider state and runs generations against it.
// Loaded vocabularies and predictors are read-only and shared by requests;
// every request gets its own engine and random source.
type Manager struct {
	store *model.Store

	mu           sync.RWMutex
	mode         Mode
	currentModel *model.Record
	vocab        *tokenizer.Vocabulary
	predictor    predictor.Predictor
}

// NewManager creates a manager in prompt mode. store may be nil when no
// trained models will be loaded.
func NewManager(store *model.Store) *Manager {
	return &Manager{
		store: store,
		mode:  ModePrompt,
	}
}

// LoadModel loads a trained model by ID from the store
func (m *Manager) LoadModel(modelID string) error {
	if m.store == nil {
		return fmt.Errorf("%w: no model store configured", predictor.ErrModelUnavailable)
	}

	artifact, rec, err := m.store.LoadArtifact(modelID)
	if err != nil {
		return fmt.Errorf("failed to load model %s: %w", modelID, err)
	}

	vocab, err := tokenizer.NewVocabularyFromTokens(artifact.Vocabulary)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", predictor.ErrModelUnavailable, modelID, err)
	}

	m.mu.Lock()
	m.mode = ModeModel
	m.currentModel = &rec
	m.vocab = vocab
	m.predictor = artifact.Model
	m.mu.Unlock()

	logging.For("llm").WithFields(logrus.Fields{
		"model":      modelID,
		"vocab_size": vocab.Size(),
		"window":     artifact.Model.Window(),
	}).Info("model loaded")
	return nil
}

// LoadCorpus builds a vocabulary from a corpus file and generates by
// similarity over it. Returns the vocabulary size.
func (m *Manager) LoadCorpus(path string) (int, error) {
	lines, err := tokenizer.ReadCorpus(path)
	if err != nil {
		return 0, err
	}

	vocab := tokenizer.NewVocabulary()
	size := vocab.Build(lines)

	m.mu.Lock()
	m.mode = ModeCorpus
	m.currentModel = nil
	m.vocab = vocab
	m.predictor = nil
	m.mu.Unlock()

	logging.For("llm").WithFields(logrus.Fields{
		"corpus":     path,
		"lines":      len(lines),
		"vocab_size": size,
	}).Info("corpus vocabulary loaded")
	return size, nil
}

// engine builds a per-request engine for the current mode
func (m *Manager) engine(prompt string, opts GenerateOptions) (*inference.Engine, Mode, string, error) {
	m.mu.RLock()
	mode, vocab, pred := m.mode, m.vocab, m.predictor
	var modelID string
	if m.currentModel != nil {
		modelID = m.currentModel.ID
	}
	m.mu.RUnlock()

	cfg := opts.engineConfig()

	var (
		eng *inference.Engine
		err error
	)
	switch mode {
	case ModeModel:
		eng, err = inference.NewPredictorEngine(tokenizer.New(vocab), pred, cfg)
	case ModeCorpus:
		eng, err = inference.NewHeuristicEngine(vocab, cfg)
	default:
		// The prompt is its own vocabulary
		promptVocab := tokenizer.NewVocabulary()
		promptVocab.Build([]string{prompt})
		eng, err = inference.NewHeuristicEngine(promptVocab, cfg)
	}
	return eng, mode, modelID, err
}

// Generate extends prompt with the current provider
func (m *Manager) Generate(ctx context.Context, prompt string, opts GenerateOptions) (*Response, error) {
	start := time.Now()

	eng, mode, modelID, err := m.engine(prompt, opts)
	if err != nil {
		return nil, err
	}

	res, err := eng.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("generation failed: %w", err)
	}

	resp := &Response{
		Prompt:     prompt,
		Text:       res.Text,
		Completion: res.Completion,
		Reason:     res.Reason,
		Steps:      res.Steps,
		Duration:   time.Since(start),
		Mode:       mode,
		ModelID:    modelID,
	}
	if opts.IncludeTokens {
		resp.Words = res.Words
	}

	logging.For("llm").WithFields(logrus.Fields{
		"mode":        mode,
		"steps":       res.Steps,
		"stop_reason": res.Reason.String(),
		"duration":    resp.Duration,
	}).Debug("generation finished")
	return resp, nil
}

// Complete returns only the words generated after text
func (m *Manager) Complete(ctx context.Context, text string, opts GenerateOptions) (string, error) {
	eng, _, _, err := m.engine(text, opts)
	if err != nil {
		return "", err
	}
	return eng.Complete(ctx, text, opts.MaxTokens)
}

// GenerateStream generates from prompt, emitting each word as it is sampled
func (m *Manager) GenerateStream(ctx context.Context, prompt string, opts GenerateOptions) (<-chan inference.Step, error) {
	eng, _, _, err := m.engine(prompt, opts)
	if err != nil {
		return nil, err
	}
	return eng.GenerateStream(ctx, prompt)
}

// Vocabulary returns the loaded vocabulary, or nil in prompt mode
func (m *Manager) Vocabulary() *tokenizer.Vocabulary {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.vocab
}

// CurrentModel returns the loaded model record, or nil
func (m *Manager) CurrentModel() *model.Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentModel
}

// Mode returns the active provider mode
func (m *Manager) Mode() Mode {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.mode
}

// IsLoaded checks if a model or corpus is loaded
func (m *Manager) IsLoaded() bool {
	return m.Mode() != ModePrompt
}

// Unload drops any loaded model or corpus and returns to prompt mode
func (m *Manager) Unload() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.mode = ModePrompt
	m.currentModel = nil
	m.vocab = nil
	m.predictor = nil
	return nil
}

// Close releases all resources
func (m *Manager) Close() error {
	return m.Unload()
}

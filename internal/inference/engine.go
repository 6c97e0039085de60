package inference

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"

	"github.com/xupit3r/slm/internal/predictor"
	"github.com/xupit3r/slm/internal/tokenizer"
)

// DefaultSentenceStopProbability is the chance that the heuristic engine
// stops after a word ending a sentence
const DefaultSentenceStopProbability = 0.3

// Config holds generation parameters
type Config struct {
	MaxSteps    int     // Maximum number of tokens to generate
	Temperature float64 // Sampling temperature (<= 0 = greedy, >1 = more random)
	TopP        float64 // Top-P (nucleus) sampling threshold, in (0, 1]
	Window      int     // Number of trailing tokens visible to the provider
	Seed        int64   // Random seed for sampling (-1 = random)

	// SentenceStopProbability is the chance of stopping after a word that
	// ends in '.', '!' or '?'. Zero disables the rule.
	SentenceStopProbability float64
}

// DefaultConfig returns the default generation parameters
func DefaultConfig() Config {
	return Config{
		MaxSteps:                100,
		Temperature:             0.7,
		TopP:                    0.9,
		Window:                  50,
		Seed:                    -1,
		SentenceStopProbability: DefaultSentenceStopProbability,
	}
}

// Validate checks the configuration, failing fast on values the loop cannot use
func (c Config) Validate() error {
	if c.Window <= 0 {
		return fmt.Errorf("%w: window must be positive, got %d", ErrInvalidConfig, c.Window)
	}
	if c.TopP <= 0 {
		return fmt.Errorf("%w: top_p must be in (0, 1], got %g", ErrInvalidConfig, c.TopP)
	}
	if c.MaxSteps < 0 {
		return fmt.Errorf("%w: max steps must not be negative, got %d", ErrInvalidConfig, c.MaxSteps)
	}
	if c.SentenceStopProbability < 0 || c.SentenceStopProbability > 1 {
		return fmt.Errorf("%w: sentence stop probability must be in [0, 1], got %g",
			ErrInvalidConfig, c.SentenceStopProbability)
	}
	return nil
}

// StopReason records why generation ended
type StopReason int

const (
	StopLength       StopReason = iota // Reached the step limit
	StopEOS                            // Sampled the end-of-sequence token
	StopSentence                       // Stopped after a sentence ending
	StopNoCandidates                   // Provider ran out of candidates
	StopCancelled                      // Context was cancelled
)

func (r StopReason) String() string {
	switch r {
	case StopLength:
		return "max_length"
	case StopEOS:
		return "eos"
	case StopSentence:
		return "sentence_end"
	case StopNoCandidates:
		return "no_candidates"
	case StopCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("StopReason(%d)", int(r))
	}
}

// Result is the outcome of one generation
type Result struct {
	Text       string              // Seed text followed by the generated words
	Completion string              // Generated words only
	Tokens     []tokenizer.TokenID // Full token sequence, seed included
	Generated  []tokenizer.TokenID // Tokens sampled during generation
	Words      []string            // Surface text of the generated tokens, EOS excluded
	Reason     StopReason
	Steps      int
}

// Step is one streamed generation event
type Step struct {
	Token  tokenizer.TokenID
	Word   string
	Done   bool
	Reason StopReason
	Result *Result // Set on the final step
	Err    error
}

// Engine runs the autoregressive generation loop
type Engine struct {
	tokenizer *tokenizer.Tokenizer
	provider  Provider
	config    Config
}

// NewEngine creates an engine over any provider
func NewEngine(tok *tokenizer.Tokenizer, provider Provider, config Config) (*Engine, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		tokenizer: tok,
		provider:  provider,
		config:    config,
	}, nil
}

// NewHeuristicEngine creates an engine that scores words by similarity.
// The sentence-end stop rule applies with config.SentenceStopProbability.
func NewHeuristicEngine(vocab *tokenizer.Vocabulary, config Config) (*Engine, error) {
	return NewEngine(tokenizer.New(vocab), NewHeuristicProvider(vocab), config)
}

// NewPredictorEngine creates an engine backed by a trained predictor.
// The sentence-end stop rule is disabled.
func NewPredictorEngine(tok *tokenizer.Tokenizer, model predictor.Predictor, config Config) (*Engine, error) {
	config.SentenceStopProbability = 0
	return NewEngine(tok, NewPredictorProvider(model, config.Window), config)
}

// Config returns the engine configuration
func (e *Engine) Config() Config {
	return e.config
}

// Generate extends seed until a stop condition is met
func (e *Engine) Generate(ctx context.Context, seed string) (Result, error) {
	s, err := e.start(seed)
	if err != nil {
		return Result{}, err
	}

	reason, err := e.run(ctx, s, nil)
	return s.result(reason), err
}

// Complete returns only the text generated after partial, at most maxNew tokens
func (e *Engine) Complete(ctx context.Context, partial string, maxNew int) (string, error) {
	cfg := e.config
	cfg.MaxSteps = maxNew
	if err := cfg.Validate(); err != nil {
		return "", err
	}

	limited := *e
	limited.config = cfg
	res, err := limited.Generate(ctx, partial)
	if err != nil {
		return "", err
	}
	return res.Completion, nil
}

// GenerateStream produces tokens as they are sampled (non-blocking).
// The final Step has Done set and carries the Result.
func (e *Engine) GenerateStream(ctx context.Context, seed string) (<-chan Step, error) {
	s, err := e.start(seed)
	if err != nil {
		return nil, err
	}

	ch := make(chan Step, 16) // Buffered for throughput

	go func() {
		defer close(ch)

		reason, err := e.run(ctx, s, func(step Step) bool {
			select {
			case ch <- step:
				return true
			case <-ctx.Done():
				return false
			}
		})

		res := s.result(reason)
		final := Step{Done: true, Reason: reason, Result: &res, Err: err}
		select {
		case ch <- final:
		case <-ctx.Done():
		}
	}()

	return ch, nil
}

// start encodes the seed and checks the provider can produce tokens
func (e *Engine) start(seed string) (*session, error) {
	if e.provider.Size() == 0 {
		return nil, ErrEmptyVocabulary
	}

	var rng *rand.Rand
	if e.config.Seed >= 0 {
		rng = rand.New(rand.NewSource(e.config.Seed))
	} else {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}

	return newSession(seed, e.tokenizer, rng), nil
}

// run is the step loop. emit, when set, receives every sampled token and
// returns false to abandon generation.
func (e *Engine) run(ctx context.Context, s *session, emit func(Step) bool) (StopReason, error) {
	sampler := NewSampler(e.config.Temperature, e.config.TopP, s.rng)
	vocab := e.tokenizer.Vocabulary()

	for s.steps < e.config.MaxSteps {
		// Check context cancellation
		select {
		case <-ctx.Done():
			return StopCancelled, ctx.Err()
		default:
		}

		dist, err := e.provider.Candidates(Context{
			Tokens:   lastN(s.tokens, e.config.Window),
			LastWord: s.lastWord(),
			Rand:     s.rng,
		})
		if errors.Is(err, ErrNoCandidates) {
			return StopNoCandidates, nil
		}
		if err != nil {
			return StopCancelled, fmt.Errorf("step %d: %w", s.steps, err)
		}

		next := sampler.Sample(dist)
		word := vocab.TokenOf(next)
		s.append(next, word)

		if emit != nil && !emit(Step{Token: next, Word: word}) {
			return StopCancelled, ctx.Err()
		}

		if next == tokenizer.EndID {
			return StopEOS, nil
		}
		if s.steps >= e.config.MaxSteps {
			return StopLength, nil
		}
		if e.config.SentenceStopProbability > 0 && endsSentence(word) &&
			s.rng.Float64() < e.config.SentenceStopProbability {
			return StopSentence, nil
		}
	}

	return StopLength, nil
}

func endsSentence(word string) bool {
	return strings.HasSuffix(word, ".") || strings.HasSuffix(word, "!") || strings.HasSuffix(word, "?")
}

// session is the mutable state of one generation
type session struct {
	seed      string
	seedWords []string
	tokens    []tokenizer.TokenID
	generated []tokenizer.TokenID
	words     []string
	steps     int
	rng       *rand.Rand
}

func newSession(seed string, tok *tokenizer.Tokenizer, rng *rand.Rand) *session {
	return &session{
		seed:      seed,
		seedWords: tokenizer.Words(seed),
		tokens:    tok.Encode(seed),
		rng:       rng,
	}
}

func (s *session) append(id tokenizer.TokenID, word string) {
	s.tokens = append(s.tokens, id)
	s.generated = append(s.generated, id)
	if id != tokenizer.EndID {
		s.words = append(s.words, word)
	}
	s.steps++
}

// lastWord returns the surface form of the most recent word
func (s *session) lastWord() string {
	if len(s.words) > 0 {
		return s.words[len(s.words)-1]
	}
	if len(s.seedWords) > 0 {
		return s.seedWords[len(s.seedWords)-1]
	}
	return ""
}

func (s *session) result(reason StopReason) Result {
	completion := strings.Join(s.words, " ")

	text := s.seed
	if completion != "" {
		if trimmed := strings.TrimRight(s.seed, " \t\r\n"); trimmed != "" {
			text = trimmed + " " + completion
		} else {
			text = completion
		}
	}

	return Result{
		Text:       text,
		Completion: completion,
		Tokens:     s.tokens,
		Generated:  s.generated,
		Words:      s.words,
		Reason:     reason,
		Steps:      s.steps,
	}
}

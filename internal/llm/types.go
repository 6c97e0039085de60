package llm

import (
	"time"

	"github.com/xupit3r/slm/internal/inference"
)

// Mode names the distribution provider a Manager generates with
type Mode string

const (
	// ModePrompt scores the prompt's own words by similarity
	ModePrompt Mode = "prompt"
	// ModeCorpus scores a loaded corpus vocabulary by similarity
	ModeCorpus Mode = "corpus"
	// ModeModel asks a trained predictor for logits
	ModeModel Mode = "model"
)

// GenerateOptions configures text generation
type GenerateOptions struct {
	MaxTokens               int     // Maximum tokens to generate
	Temperature             float64 // Randomness (0 = greedy)
	TopP                    float64 // Nucleus sampling threshold
	Window                  int     // Context tokens shown to the provider
	Seed                    int64   // Negative for a random seed
	SentenceStopProbability float64 // Chance to stop after . ! or ? (similarity modes only)
	IncludeTokens           bool    // Return generated words in the response
}

// DefaultGenerateOptions returns the generation defaults
func DefaultGenerateOptions() GenerateOptions {
	cfg := inference.DefaultConfig()
	return GenerateOptions{
		MaxTokens:               cfg.MaxSteps,
		Temperature:             cfg.Temperature,
		TopP:                    cfg.TopP,
		Window:                  cfg.Window,
		Seed:                    cfg.Seed,
		SentenceStopProbability: cfg.SentenceStopProbability,
	}
}

func (o GenerateOptions) engineConfig() inference.Config {
	return inference.Config{
		MaxSteps:                o.MaxTokens,
		Temperature:             o.Temperature,
		TopP:                    o.TopP,
		Window:                  o.Window,
		Seed:                    o.Seed,
		SentenceStopProbability: o.SentenceStopProbability,
	}
}

// Response is the outcome of one generation request
type Response struct {
	Prompt     string
	Text       string   // Prompt followed by the generated words
	Completion string   // Generated words only
	Words      []string // Set when IncludeTokens was requested
	Reason     inference.StopReason
	Steps      int
	Duration   time.Duration
	Mode       Mode
	ModelID    string // Empty unless Mode is ModeModel
}

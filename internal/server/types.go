package server

import "time"

// GenerateRequest is the body of POST /api/v1/generate
type GenerateRequest struct {
	Prompt        string  `json:"prompt"`
	MaxLength     int     `json:"max_length"`
	Temperature   float64 `json:"temperature"`
	TopP          float64 `json:"top_p"`
	IncludeTokens bool    `json:"include_tokens"`
}

// GenerateResponse is returned by POST /api/v1/generate
type GenerateResponse struct {
	Prompt        string              `json:"prompt"`
	GeneratedText string              `json:"generated_text"`
	Tokens        []string            `json:"tokens,omitempty"`
	Metadata      *GenerationMetadata `json:"metadata,omitempty"`
}

// GenerationMetadata describes how a response was produced
type GenerationMetadata struct {
	Timestamp        time.Time `json:"timestamp"`
	Temperature      float64   `json:"temperature"`
	TopP             float64   `json:"top_p"`
	MaxLength        int       `json:"max_length"`
	GeneratedLength  int       `json:"generated_length"`
	ProcessingTimeMS float64   `json:"processing_time_ms"`
	StopReason       string    `json:"stop_reason"`
	Mode             string    `json:"mode"`
	Model            string    `json:"model,omitempty"`
}

// HealthResponse is returned by GET /api/health
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

// Problem is the error body for failed generations
type Problem struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Status int    `json:"status"`
}

// errorResponse is the body of authentication failures
type errorResponse struct {
	Error string `json:"error"`
}

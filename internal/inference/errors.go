package inference

import "errors"

var (
	// ErrNoCandidates is returned by a provider with nothing to score
	ErrNoCandidates = errors.New("no candidate tokens")

	// ErrEmptyVocabulary means the provider has no usable vocabulary
	ErrEmptyVocabulary = errors.New("provider has an empty vocabulary")

	// ErrInvalidConfig wraps generation configuration problems
	ErrInvalidConfig = errors.New("invalid generation config")
)

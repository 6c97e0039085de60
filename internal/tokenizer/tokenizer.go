package tokenizer

import (
	"strings"
)

// Tokenizer maps text to token IDs and back using a Vocabulary
type Tokenizer struct {
	vocab *Vocabulary
}

// New creates a tokenizer over a built vocabulary
func New(vocab *Vocabulary) *Tokenizer {
	return &Tokenizer{vocab: vocab}
}

// Vocabulary returns the underlying vocabulary
func (t *Tokenizer) Vocabulary() *Vocabulary {
	return t.vocab
}

// VocabSize returns the vocabulary size
func (t *Tokenizer) VocabSize() int {
	return t.vocab.Size()
}

// Encode converts text to token IDs.
// Words are split on whitespace and lower-cased; unknown words map to UnknownID.
// Empty text yields an empty sequence.
func (t *Tokenizer) Encode(text string) []TokenID {
	words := strings.Fields(text)
	ids := make([]TokenID, 0, len(words))
	for _, w := range words {
		ids = append(ids, t.vocab.IDOf(w))
	}
	return ids
}

// Decode converts token IDs back to text joined by single spaces
func (t *Tokenizer) Decode(ids []TokenID) string {
	var sb strings.Builder
	for _, id := range ids {
		sb.WriteString(t.vocab.TokenOf(id))
		sb.WriteByte(' ')
	}
	return strings.TrimRight(sb.String(), " \t\r\n")
}

// Words splits text into its surface words, casing preserved
func Words(text string) []string {
	return strings.Fields(text)
}

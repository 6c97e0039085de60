package tokenizer

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// TokenID identifies a vocabulary entry
type TokenID int32

// Reserved token IDs, fixed at construction
const (
	UnknownID TokenID = 0 // Unknown token
	PaddingID TokenID = 1 // Padding token
	StartID   TokenID = 2 // Start of sequence
	EndID     TokenID = 3 // End of sequence

	NumReserved = 4
)

// Reserved token strings
const (
	UnknownToken = "<unk>"
	PaddingToken = "<pad>"
	StartToken   = "<sos>"
	EndToken     = "<eos>"
)

var reservedTokens = [NumReserved]string{UnknownToken, PaddingToken, StartToken, EndToken}

// Vocabulary is a bidirectional token <-> ID table.
//
// A Vocabulary is built once and read-only afterwards. Build mutates both
// maps and must not run concurrently with any other method; once built,
// concurrent readers are safe.
type Vocabulary struct {
	// Vocabulary: normalized token string → token ID
	ids map[string]TokenID

	// Reverse vocabulary: token ID → token string (IDs are dense)
	tokens []string
}

// NewVocabulary creates a vocabulary holding only the reserved tokens
func NewVocabulary() *Vocabulary {
	v := &Vocabulary{}
	v.reset()
	return v
}

// NewVocabularyFromTokens restores a vocabulary from its ID-ordered token list
func NewVocabularyFromTokens(tokens []string) (*Vocabulary, error) {
	if len(tokens) < NumReserved {
		return nil, fmt.Errorf("vocabulary has %d tokens, need at least %d reserved", len(tokens), NumReserved)
	}
	for i, tok := range reservedTokens {
		if tokens[i] != tok {
			return nil, fmt.Errorf("token %d is %q, expected reserved %q", i, tokens[i], tok)
		}
	}

	v := &Vocabulary{
		ids:    make(map[string]TokenID, len(tokens)),
		tokens: make([]string, len(tokens)),
	}
	for id, tok := range tokens {
		if _, dup := v.ids[tok]; dup {
			return nil, fmt.Errorf("duplicate token %q at id %d", tok, id)
		}
		v.ids[tok] = TokenID(id)
		v.tokens[id] = tok
	}
	return v, nil
}

func (v *Vocabulary) reset() {
	v.ids = make(map[string]TokenID)
	v.tokens = v.tokens[:0]
	for _, tok := range reservedTokens {
		v.add(tok)
	}
}

func (v *Vocabulary) add(token string) {
	if _, ok := v.ids[token]; ok {
		return
	}
	v.ids[token] = TokenID(len(v.tokens))
	v.tokens = append(v.tokens, token)
}

// Build resets the vocabulary and populates it from corpus lines.
// Tokens are whitespace separated and lower-cased; IDs are assigned in
// first-seen order after the reserved tokens. Returns the vocabulary size.
func (v *Vocabulary) Build(lines []string) int {
	v.reset()
	for _, line := range lines {
		v.addLine(line)
	}
	return len(v.tokens)
}

// BuildFromReader is Build over the lines of r
func (v *Vocabulary) BuildFromReader(r io.Reader) (int, error) {
	v.reset()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		v.addLine(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("reading corpus: %w", err)
	}

	return len(v.tokens), nil
}

func (v *Vocabulary) addLine(line string) {
	for _, field := range strings.Fields(line) {
		v.add(normalize(field))
	}
}

// Size returns the number of tokens, reserved ones included
func (v *Vocabulary) Size() int {
	return len(v.tokens)
}

// IDOf converts a token to its ID.
// Returns UnknownID if the normalized token is absent.
func (v *Vocabulary) IDOf(token string) TokenID {
	if id, ok := v.ids[normalize(token)]; ok {
		return id
	}
	return UnknownID
}

// TokenOf converts an ID to its token.
// Returns "<unk>" if the ID is out of range.
func (v *Vocabulary) TokenOf(id TokenID) string {
	if id >= 0 && int(id) < len(v.tokens) {
		return v.tokens[id]
	}
	return UnknownToken
}

// Contains reports whether the normalized token is in the vocabulary
func (v *Vocabulary) Contains(token string) bool {
	_, ok := v.ids[normalize(token)]
	return ok
}

// IsReserved reports whether id is one of the four reserved IDs
func IsReserved(id TokenID) bool {
	return id >= 0 && id < NumReserved
}

// Tokens returns a copy of all tokens in ID order
func (v *Vocabulary) Tokens() []string {
	out := make([]string, len(v.tokens))
	copy(out, v.tokens)
	return out
}

// Words returns the non-reserved tokens in ID order
func (v *Vocabulary) Words() []string {
	if len(v.tokens) <= NumReserved {
		return nil
	}
	out := make([]string, len(v.tokens)-NumReserved)
	copy(out, v.tokens[NumReserved:])
	return out
}

// ReadCorpus reads a plain-text corpus file into lines
func ReadCorpus(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening corpus: %w", err)
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading corpus %s: %w", path, err)
	}

	return lines, nil
}

func normalize(token string) string {
	return strings.ToLower(token)
}

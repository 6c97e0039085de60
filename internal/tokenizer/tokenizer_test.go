package tokenizer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestVocabulary builds the vocabulary <unk> <pad> <sos> <eos> a b c
func createTestVocabulary() *Vocabulary {
	v := NewVocabulary()
	v.Build([]string{"a b", "b c"})
	return v
}

func TestNewVocabulary(t *testing.T) {
	v := NewVocabulary()
	if v.Size() != NumReserved {
		t.Errorf("Expected %d reserved tokens, got %d", NumReserved, v.Size())
	}
	if len(v.Words()) != 0 {
		t.Errorf("Expected no words, got %v", v.Words())
	}
}

func TestVocabularyBuild(t *testing.T) {
	v := NewVocabulary()
	size := v.Build([]string{"a b", "b c"})

	if size != 7 {
		t.Fatalf("Expected size 7, got %d", size)
	}

	expected := map[string]TokenID{
		"<unk>": 0,
		"<pad>": 1,
		"<sos>": 2,
		"<eos>": 3,
		"a":     4,
		"b":     5,
		"c":     6,
	}
	for tok, id := range expected {
		if got := v.IDOf(tok); got != id {
			t.Errorf("IDOf(%q) = %d, expected %d", tok, got, id)
		}
		if got := v.TokenOf(id); got != tok {
			t.Errorf("TokenOf(%d) = %q, expected %q", id, got, tok)
		}
	}
}

func TestVocabularyBuildResets(t *testing.T) {
	v := NewVocabulary()
	v.Build([]string{"one two three"})
	size := v.Build([]string{"x"})

	assert.Equal(t, 5, size)
	assert.Equal(t, UnknownID, v.IDOf("one"))
	assert.Equal(t, TokenID(4), v.IDOf("x"))
}

func TestVocabularyNormalizes(t *testing.T) {
	v := NewVocabulary()
	size := v.Build([]string{"Hello HELLO hello\tWorld\r\n  world"})

	assert.Equal(t, 6, size)
	assert.Equal(t, TokenID(4), v.IDOf("HeLLo"))
	assert.Equal(t, TokenID(5), v.IDOf("WORLD"))
	assert.Equal(t, "hello", v.TokenOf(4))
}

func TestVocabularyBijection(t *testing.T) {
	v := NewVocabulary()
	v.Build([]string{"the quick brown fox", "jumps over the lazy dog"})

	for id, tok := range v.Tokens() {
		if v.IDOf(tok) != TokenID(id) {
			t.Errorf("token %q at id %d maps back to %d", tok, id, v.IDOf(tok))
		}
	}
}

func TestVocabularyLookupMisses(t *testing.T) {
	v := createTestVocabulary()

	tests := []struct {
		id            TokenID
		expectedToken string
	}{
		{4, "a"},
		{999, "<unk>"}, // Out of range
		{-1, "<unk>"},  // Negative
	}

	for _, tt := range tests {
		if got := v.TokenOf(tt.id); got != tt.expectedToken {
			t.Errorf("TokenOf(%d) = %q, expected %q", tt.id, got, tt.expectedToken)
		}
	}

	if got := v.IDOf("nonexistent"); got != UnknownID {
		t.Errorf("IDOf(nonexistent) = %d, expected %d", got, UnknownID)
	}
}

func TestVocabularyBuildFromReader(t *testing.T) {
	v := NewVocabulary()
	size, err := v.BuildFromReader(strings.NewReader("a b\nb c\n"))
	require.NoError(t, err)
	assert.Equal(t, 7, size)
	assert.Equal(t, []string{"a", "b", "c"}, v.Words())
}

func TestNewVocabularyFromTokens(t *testing.T) {
	v, err := NewVocabularyFromTokens(createTestVocabulary().Tokens())
	require.NoError(t, err)
	assert.Equal(t, 7, v.Size())
	assert.Equal(t, TokenID(6), v.IDOf("c"))

	_, err = NewVocabularyFromTokens([]string{"a", "b"})
	assert.Error(t, err, "too short")

	_, err = NewVocabularyFromTokens([]string{"<pad>", "<unk>", "<sos>", "<eos>"})
	assert.Error(t, err, "reserved tokens out of order")

	_, err = NewVocabularyFromTokens([]string{"<unk>", "<pad>", "<sos>", "<eos>", "a", "a"})
	assert.Error(t, err, "duplicate token")
}

func TestIsReserved(t *testing.T) {
	for id := TokenID(0); id < NumReserved; id++ {
		assert.True(t, IsReserved(id))
	}
	assert.False(t, IsReserved(NumReserved))
	assert.False(t, IsReserved(-1))
}

func TestEncode(t *testing.T) {
	tok := New(createTestVocabulary())

	tests := []struct {
		name     string
		text     string
		expected []TokenID
	}{
		{"empty", "", []TokenID{}},
		{"whitespace only", " \t\n ", []TokenID{}},
		{"known", "a b c", []TokenID{4, 5, 6}},
		{"mixed case", "A B", []TokenID{4, 5}},
		{"unknown", "a zebra c", []TokenID{4, UnknownID, 6}},
		{"tabs and newlines", "a\tb\nc\r\n", []TokenID{4, 5, 6}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tok.Encode(tt.text)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestDecode(t *testing.T) {
	tok := New(createTestVocabulary())

	assert.Equal(t, "a b c", tok.Decode([]TokenID{4, 5, 6}))
	assert.Equal(t, "a <unk> <eos>", tok.Decode([]TokenID{4, 42, EndID}))
	assert.Equal(t, "", tok.Decode(nil))
}

func TestRoundTrip(t *testing.T) {
	tok := New(createTestVocabulary())

	if got := tok.Decode(tok.Encode("a b c")); got != "a b c" {
		t.Errorf("round trip = %q, expected %q", got, "a b c")
	}
	if got := tok.Decode(tok.Encode("  C   a\tB ")); got != "c a b" {
		t.Errorf("round trip = %q, expected %q", got, "c a b")
	}
}

func TestWords(t *testing.T) {
	assert.Equal(t, []string{"The", "Quick", "fox."}, Words(" The Quick\tfox. "))
	assert.Empty(t, Words(""))
}

func TestReadCorpus(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpus.txt")
	require.NoError(t, os.WriteFile(path, []byte("a b\nb c\n"), 0644))

	lines, err := ReadCorpus(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"a b", "b c"}, lines)

	_, err = ReadCorpus(filepath.Join(t.TempDir(), "missing.txt"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

package inference

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/xupit3r/slm/internal/tokenizer"
)

// BenchmarkSamplerGreedy benchmarks greedy sampling
func BenchmarkSamplerGreedy(b *testing.B) {
	sampler := NewSampler(0.0, 0.9, rand.New(rand.NewSource(42)))
	d := createMockDistribution(50000, Logits)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = sampler.Sample(d)
	}
}

// BenchmarkSamplerTemperature benchmarks softmax plus full-nucleus sampling
func BenchmarkSamplerTemperature(b *testing.B) {
	sampler := NewSampler(0.7, 1.0, rand.New(rand.NewSource(42)))
	d := createMockDistribution(50000, Logits)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = sampler.Sample(d)
	}
}

// BenchmarkSamplerTopP benchmarks nucleus sampling over similarity scores
func BenchmarkSamplerTopP(b *testing.B) {
	sampler := NewSampler(0.7, 0.9, rand.New(rand.NewSource(42)))
	d := createMockDistribution(50000, Similarity)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = sampler.Sample(d)
	}
}

// BenchmarkHeuristicGenerate benchmarks a full heuristic generation
func BenchmarkHeuristicGenerate(b *testing.B) {
	v := tokenizer.NewVocabulary()
	for i := 0; i < 2000; i++ {
		v.Build([]string{fmt.Sprintf("word%d token%d", i, i)})
	}

	cfg := DefaultConfig()
	cfg.MaxSteps = 20
	cfg.Seed = 42
	cfg.SentenceStopProbability = 0
	engine, err := NewHeuristicEngine(v, cfg)
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.Generate(context.Background(), "word1"); err != nil {
			b.Fatal(err)
		}
	}
}

func createMockDistribution(size int, kind ScoreKind) Distribution {
	rng := rand.New(rand.NewSource(42))
	d := Distribution{
		IDs:    make([]tokenizer.TokenID, size),
		Scores: make([]float64, size),
		Kind:   kind,
	}
	for i := range d.IDs {
		d.IDs[i] = tokenizer.TokenID(i)
		d.Scores[i] = rng.Float64()
	}
	return d
}

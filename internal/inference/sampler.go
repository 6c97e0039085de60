package inference

import (
	"math"
	"math/rand"
	"sort"

	"github.com/xupit3r/slm/internal/tokenizer"
)

// Sampler turns a candidate distribution into a single token choice
// using temperature scaling followed by nucleus (top-p) sampling
type Sampler struct {
	temperature float64    // Temperature for sampling (<= 0 = greedy)
	topP        float64    // Top-P (nucleus) sampling threshold
	rng         *rand.Rand // Random number generator, owned by one generation
}

// NewSampler creates a sampler with specified parameters
func NewSampler(temperature, topP float64, rng *rand.Rand) *Sampler {
	return &Sampler{
		temperature: temperature,
		topP:        topP,
		rng:         rng,
	}
}

// Sample selects the next token from a candidate distribution
func (s *Sampler) Sample(d Distribution) tokenizer.TokenID {
	probs := Scale(d.Scores, s.temperature, d.Kind)
	return SampleNucleus(d.IDs, probs, s.topP, s.rng)
}

// Scale converts raw scores into a probability distribution.
//
// temperature <= 0 yields a one-hot distribution on the first maximum.
// Similarity scores are divided by their maximum and raised to the power
// 1/temperature, logits go through a max-shifted softmax. An all-zero or
// non-finite input falls back to a uniform distribution.
func Scale(scores []float64, temperature float64, kind ScoreKind) []float64 {
	n := len(scores)
	probs := make([]float64, n)
	if n == 0 {
		return probs
	}

	// Greedy
	if temperature <= 0 {
		probs[Argmax(scores)] = 1.0
		return probs
	}

	switch kind {
	case Logits:
		softmaxInto(probs, scores, temperature)
	default:
		powerInto(probs, scores, temperature)
	}

	normalize(probs)
	return probs
}

// powerInto writes (s / max)^(1/temperature) for each positive score into
// dst. The maximum maps to 1 so low temperatures cannot underflow every entry.
func powerInto(dst, scores []float64, temperature float64) {
	maxVal := 0.0
	for _, s := range scores {
		if s > maxVal {
			maxVal = s
		}
	}
	if maxVal == 0 {
		return
	}

	exponent := 1.0 / temperature
	for i, s := range scores {
		switch {
		case !(s > 0):
		case math.IsInf(maxVal, 1):
			if math.IsInf(s, 1) {
				dst[i] = 1
			}
		default:
			dst[i] = math.Pow(s/maxVal, exponent)
		}
	}
}

// softmaxInto writes exp((x - max) / temperature) for each logit into dst
func softmaxInto(dst, logits []float64, temperature float64) {
	maxVal := math.Inf(-1)
	for _, x := range logits {
		if !math.IsNaN(x) && x > maxVal {
			maxVal = x
		}
	}

	for i, x := range logits {
		if math.IsNaN(x) || math.IsInf(x, -1) {
			dst[i] = 0
			continue
		}
		dst[i] = math.Exp((x - maxVal) / temperature)
	}
}

// normalize divides probs by their sum in place, or writes a uniform
// distribution when the sum is zero or not finite
func normalize(probs []float64) {
	sum := 0.0
	for _, p := range probs {
		sum += p
	}

	if sum > 0 && !math.IsInf(sum, 0) && !math.IsNaN(sum) {
		for i := range probs {
			probs[i] /= sum
		}
		return
	}

	uniform := 1.0 / float64(len(probs))
	for i := range probs {
		probs[i] = uniform
	}
}

// Argmax returns the index of the first maximum value, or -1 for empty input
func Argmax(values []float64) int {
	if len(values) == 0 {
		return -1
	}
	maxIdx := 0
	maxVal := values[0]
	for i := 1; i < len(values); i++ {
		if values[i] > maxVal {
			maxVal = values[i]
			maxIdx = i
		}
	}
	return maxIdx
}

// sortedByProbability returns candidate indices by probability descending,
// keeping input order among equal probabilities
func sortedByProbability(probs []float64) []int {
	indices := make([]int, len(probs))
	for i := range indices {
		indices[i] = i
	}
	sort.SliceStable(indices, func(i, j int) bool {
		return probs[indices[i]] > probs[indices[j]]
	})
	return indices
}

// Nucleus returns the indices of the smallest probability-sorted prefix whose
// cumulative mass reaches topP. The member that crosses the threshold is
// included. topP <= 0 keeps only the most probable candidate; topP >= 1
// keeps every candidate.
func Nucleus(probs []float64, topP float64) []int {
	sorted := sortedByProbability(probs)
	if len(sorted) == 0 {
		return sorted
	}

	if topP <= 0 {
		return sorted[:1]
	}
	if topP >= 1 {
		return sorted
	}

	cumsum := 0.0
	for i, idx := range sorted {
		cumsum += probs[idx]
		if cumsum >= topP {
			return sorted[:i+1]
		}
	}

	return sorted
}

// SampleNucleus draws one candidate from the nucleus of probs.
// The nucleus is renormalized, one uniform value in [0,1) is drawn, and the
// first member whose cumulative mass reaches it is returned. If rounding
// leaves no such member the most probable candidate is returned.
func SampleNucleus(ids []tokenizer.TokenID, probs []float64, topP float64, rng *rand.Rand) tokenizer.TokenID {
	nucleus := Nucleus(probs, topP)
	if len(nucleus) == 0 {
		return tokenizer.UnknownID
	}

	mass := 0.0
	for _, idx := range nucleus {
		mass += probs[idx]
	}

	r := rng.Float64()
	cumsum := 0.0
	for _, idx := range nucleus {
		if mass > 0 {
			cumsum += probs[idx] / mass
		} else {
			cumsum += 1.0 / float64(len(nucleus))
		}
		if r <= cumsum {
			return ids[idx]
		}
	}

	// Fallback (shouldn't happen with proper normalization)
	return ids[nucleus[0]]
}

package ai

import (
	"context"
	"math"
	"strings"
	"unicode"
)

// LocalEmbedDim is the fixed dimension of the fallback embedder.
const LocalEmbedDim = 384

// LocalEmbedder is a deterministic token-hash histogram embedder. It needs no
// network or credentials, so indexing keeps working when the remote embedding
// provider is down; stories indexed with it must also be queried with it.
type LocalEmbedder struct {
	dim int
}

func NewLocalEmbedder() *LocalEmbedder {
	return &LocalEmbedder{dim: LocalEmbedDim}
}

func (e *LocalEmbedder) ModelName() string {
	return "local-hash-384"
}

func (e *LocalEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	vec := make([]float32, e.dim)
	for _, tok := range hashTokens(text) {
		idx := (int(djb2(tok))%e.dim + e.dim) % e.dim
		vec[idx]++
	}
	l2Normalize(vec)
	return vec, nil
}

func hashTokens(text string) []string {
	mapped := strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			return ' '
		}
		return unicode.ToLower(r)
	}, text)
	return strings.Fields(mapped)
}

// djb2 with 32-bit wraparound so vectors are stable across platforms.
func djb2(s string) int32 {
	hash := int32(5381)
	for _, r := range s {
		hash = hash*33 + int32(r)
	}
	return hash
}

func l2Normalize(vec []float32) {
	var sumSq float64
	for _, v := range vec {
		sumSq += float64(v) * float64(v)
	}
	norm := math.Sqrt(sumSq)
	if norm == 0 {
		norm = 1
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
}

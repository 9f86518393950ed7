// Package retrieval scores indexed chunks against a question and assembles
// the passage set handed to answer generation: cosine ranking, MMR
// diversification, neighbor expansion and a hybrid keyword rerank.
package retrieval

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/DekelUsach/Proyecto-final-de-seminario/internal/ai"
	"github.com/DekelUsach/Proyecto-final-de-seminario/internal/model"
	appErr "github.com/DekelUsach/Proyecto-final-de-seminario/internal/pkg/errors"
	"github.com/DekelUsach/Proyecto-final-de-seminario/internal/vectorstore"
)

const (
	hybridCosineWeight  = 0.6
	hybridKeywordWeight = 0.4
	minFallbackPool     = 5
	minReturned         = 6
)

// Params tune one retrieval call. Zero values fall back to the engine
// defaults set at construction; a negative MinSimilarity requests no
// threshold at all.
type Params struct {
	TopK          int
	MinSimilarity float64
	MMRLambda     float64
}

// Passage is one retrieved chunk with its scores. Sim is raw cosine against
// the query; Hybrid mixes in keyword overlap and decides the final order.
type Passage struct {
	Row    model.ChunkRow
	Sim    float64
	Hybrid float64
}

type Engine struct {
	store     *vectorstore.RetrievalStore
	embedders ai.EmbedderSet
	defaults  Params
}

func NewEngine(store *vectorstore.RetrievalStore, embedders ai.EmbedderSet, defaults Params) *Engine {
	return &Engine{store: store, embedders: embedders, defaults: defaults}
}

// Retrieve returns the passages of one story most useful for answering the
// question, at most max(topK, 6) of them, ordered by hybrid score. An
// unknown story yields ErrNotFound. When the mirror has the story the whole
// pipeline runs in memory; with a cold mirror it degrades to a plain cosine
// search over the durable table.
func (e *Engine) Retrieve(ctx context.Context, storyID, question string, p Params) ([]Passage, error) {
	p = e.fill(p)
	entry, ok := e.store.Get(storyID)
	if !ok || len(entry.Rows) == 0 {
		return e.retrieveDurable(ctx, storyID, question, p)
	}

	embedder := e.embedders.ForKind(entry.EmbedKind)
	qvec, err := embedder.Embed(ctx, question, ai.TaskTypeQuery)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	return e.pipeline(question, qvec, entry.Rows, p), nil
}

// pipeline runs the shared scoring chain over a set of rows: cosine ranking,
// similarity threshold with a best-effort floor, greedy MMR, neighbor
// expansion and the hybrid rerank, capped at max(topK, 6) passages.
func (e *Engine) pipeline(question string, qvec []float32, rows []model.ChunkRow, p Params) []Passage {
	scored := make([]Passage, 0, len(rows))
	for _, row := range rows {
		scored = append(scored, Passage{Row: row, Sim: Cosine(qvec, row.Vector)})
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Sim > scored[j].Sim })

	candidates := aboveThreshold(scored, p.MinSimilarity)
	if len(candidates) == 0 {
		// nothing clears the threshold; keep the best few anyway so the
		// caller can still attempt an answer
		n := minFallbackPool
		if p.TopK > n {
			n = p.TopK
		}
		if n > len(scored) {
			n = len(scored)
		}
		candidates = scored[:n]
	}

	selected := mmrSelect(candidates, p.TopK, p.MMRLambda)
	expanded := expandNeighbors(rows, selected, qvec)
	reranked := hybridRerank(question, expanded)

	limit := p.TopK
	if limit < minReturned {
		limit = minReturned
	}
	if len(reranked) > limit {
		reranked = reranked[:limit]
	}
	return reranked
}

func (e *Engine) fill(p Params) Params {
	if p.TopK <= 0 {
		p.TopK = e.defaults.TopK
	}
	if p.MinSimilarity < 0 {
		p.MinSimilarity = 0
	} else if p.MinSimilarity == 0 {
		p.MinSimilarity = e.defaults.MinSimilarity
	}
	if p.MMRLambda == 0 {
		p.MMRLambda = e.defaults.MMRLambda
	}
	return p
}

func aboveThreshold(scored []Passage, minSim float64) []Passage {
	var out []Passage
	for _, s := range scored {
		if s.Sim >= minSim {
			out = append(out, s)
		}
	}
	return out
}

// mmrSelect picks up to k candidates greedily by maximal marginal relevance:
// lambda*relevance - (1-lambda)*maxRedundancy against already picked vectors.
// Ties keep the earlier (higher cosine) candidate, which makes the selection
// deterministic.
func mmrSelect(candidates []Passage, k int, lambda float64) []Passage {
	if len(candidates) <= 1 || k <= 1 {
		if len(candidates) > k && k > 0 {
			return candidates[:k]
		}
		return candidates
	}
	selected := make([]Passage, 0, k)
	picked := make([]bool, len(candidates))

	selected = append(selected, candidates[0])
	picked[0] = true

	for len(selected) < k && len(selected) < len(candidates) {
		bestIdx := -1
		bestScore := math.Inf(-1)
		for i, c := range candidates {
			if picked[i] {
				continue
			}
			redundancy := 0.0
			for _, s := range selected {
				if sim := Cosine(c.Row.Vector, s.Row.Vector); sim > redundancy {
					redundancy = sim
				}
			}
			score := lambda*c.Sim - (1-lambda)*redundancy
			if score > bestScore {
				bestScore = score
				bestIdx = i
			}
		}
		if bestIdx < 0 {
			break
		}
		selected = append(selected, candidates[bestIdx])
		picked[bestIdx] = true
	}
	return selected
}

// expandNeighbors adds the chunks directly before and after each selected
// chunk. Sentence-bounded chunking regularly splits an answer across a chunk
// border; the adjacent text recovers it.
func expandNeighbors(rows []model.ChunkRow, selected []Passage, qvec []float32) []Passage {
	byID := make(map[string]model.ChunkRow, len(rows))
	for _, row := range rows {
		byID[row.ID] = row
	}
	seen := make(map[string]struct{}, len(selected))
	out := make([]Passage, 0, len(selected)*3)
	for _, s := range selected {
		seen[s.Row.ID] = struct{}{}
		out = append(out, s)
	}
	for _, s := range selected {
		for _, idx := range []int{s.Row.ChunkIndex - 1, s.Row.ChunkIndex + 1} {
			if idx < 0 {
				continue
			}
			id := model.ChunkID(s.Row.StoryID, idx)
			row, ok := byID[id]
			if !ok {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, Passage{Row: row, Sim: Cosine(qvec, row.Vector)})
		}
	}
	return out
}

// hybridRerank orders passages by a mix of vector similarity and literal
// keyword overlap with the question. The stable sort keeps cosine order
// among equal hybrid scores.
func hybridRerank(question string, passages []Passage) []Passage {
	for i := range passages {
		passages[i].Hybrid = hybridCosineWeight*passages[i].Sim +
			hybridKeywordWeight*KeywordScore(question, passages[i].Row.Text)
	}
	sort.SliceStable(passages, func(i, j int) bool { return passages[i].Hybrid > passages[j].Hybrid })
	return passages
}

// retrieveDurable is the cold-mirror path: brute-force cosine over the
// durable table. The snapshot does not record which embedder a durable-only
// story used, so the probe picks one and a dimension mismatch retries with
// the other.
func (e *Engine) retrieveDurable(ctx context.Context, storyID, question string, p Params) ([]Passage, error) {
	embedder, kind := e.embedders.Probe(ctx)
	qvec, err := embedder.Embed(ctx, question, ai.TaskTypeQuery)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	limit := 200
	if n := p.TopK * 20; n > limit {
		limit = n
	}
	rows, err := e.store.DurableSearch(ctx, qvec, limit)
	if err != nil {
		other := e.otherEmbedder(kind)
		if other == nil {
			return nil, appErr.ErrNotFound
		}
		logutil.GetLogger(ctx).Debug("durable search failed, retrying with alternate embedder",
			zap.String("story_id", storyID), zap.Error(err))
		if qvec, err = other.Embed(ctx, question, ai.TaskTypeQuery); err != nil {
			return nil, appErr.ErrNotFound
		}
		if rows, err = e.store.DurableSearch(ctx, qvec, limit); err != nil {
			return nil, appErr.ErrNotFound
		}
	}
	if len(rows) == 0 {
		return nil, appErr.ErrNotFound
	}

	filtered := rows[:0:0]
	for _, r := range rows {
		if r.StoryID == storyID {
			filtered = append(filtered, r)
		}
	}
	if len(filtered) == 0 {
		// durable ids may predate per-story tagging; better a cross-story
		// passage than none at all
		filtered = rows
	}
	return e.pipeline(question, qvec, filtered, p), nil
}

func (e *Engine) otherEmbedder(kind model.EmbedKind) ai.IEmbedder {
	if kind == model.EmbedKindRemote {
		return e.embedders.Local
	}
	return e.embedders.Remote
}

// Cosine computes cosine similarity with the denominator floored at 1, so a
// zero-norm vector scores 0 instead of dividing by zero.
func Cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	denom := math.Sqrt(na) * math.Sqrt(nb)
	if denom < 1 {
		denom = 1
	}
	return dot / denom
}

package retrieval

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/DekelUsach/Proyecto-final-de-seminario/internal/ai"
	"github.com/DekelUsach/Proyecto-final-de-seminario/internal/model"
	"github.com/DekelUsach/Proyecto-final-de-seminario/internal/repo"
	"github.com/DekelUsach/Proyecto-final-de-seminario/internal/tablestore"
	"github.com/DekelUsach/Proyecto-final-de-seminario/internal/vectorstore"
)

func newTestEngine(t *testing.T) (*Engine, *vectorstore.RetrievalStore, *ai.LocalEmbedder) {
	t.Helper()
	dir := t.TempDir()
	db, err := repo.Open(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	tables, err := tablestore.New(db)
	require.NoError(t, err)
	store, err := vectorstore.Open(dir, tables)
	require.NoError(t, err)
	local := ai.NewLocalEmbedder()
	engine := NewEngine(store, ai.EmbedderSet{Local: local}, Params{
		TopK:          6,
		MinSimilarity: 0.25,
		MMRLambda:     0.7,
	})
	return engine, store, local
}

func indexSentences(t *testing.T, store *vectorstore.RetrievalStore, local *ai.LocalEmbedder, storyID string, sentences []string) {
	t.Helper()
	ctx := context.Background()
	rows := make([]model.ChunkRow, 0, len(sentences))
	for i, text := range sentences {
		vec, err := local.Embed(ctx, text, ai.TaskTypeDocument)
		require.NoError(t, err)
		rows = append(rows, model.ChunkRow{
			ID:         model.ChunkID(storyID, i),
			StoryID:    storyID,
			ChunkIndex: i,
			Text:       text,
			Vector:     vec,
			Title:      "Pinocho",
		})
	}
	require.NoError(t, store.Put(ctx, storyID, rows, model.EmbedKindLocal, ai.LocalEmbedDim))
}

var pinochoSentences = []string{
	"Gepeto era un carpintero pobre que vivia en una aldea pequena.",
	"Gepeto tallo un muneco de madera y lo llamo Pinocho.",
	"El hada azul le dio vida al muneco durante la noche.",
	"Pinocho queria ser un nino de verdad y fue a la escuela.",
	"Un zorro astuto engano a Pinocho en el camino.",
	"Una ballena enorme se trago a Gepeto en el mar.",
	"Pinocho rescato a Gepeto del vientre de la ballena.",
	"Al final el hada convirtio a Pinocho en un nino de verdad.",
}

func TestRetrieveReturnsRelevantPassages(t *testing.T) {
	engine, store, local := newTestEngine(t)
	indexSentences(t, store, local, "0", pinochoSentences)

	passages, err := engine.Retrieve(context.Background(), "0", "¿Quien tallo un muneco de madera?", Params{})
	require.NoError(t, err)
	require.NotEmpty(t, passages)
	require.LessOrEqual(t, len(passages), 6)

	found := false
	for _, p := range passages {
		if p.Row.ChunkIndex == 1 {
			found = true
		}
	}
	require.True(t, found, "the chunk naming the carver should be retrieved")
}

func TestRetrieveIsDeterministic(t *testing.T) {
	engine, store, local := newTestEngine(t)
	indexSentences(t, store, local, "0", pinochoSentences)

	ctx := context.Background()
	first, err := engine.Retrieve(ctx, "0", "¿Qué hizo la ballena?", Params{})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		again, err := engine.Retrieve(ctx, "0", "¿Qué hizo la ballena?", Params{})
		require.NoError(t, err)
		require.Equal(t, len(first), len(again))
		for j := range first {
			require.Equal(t, first[j].Row.ID, again[j].Row.ID)
		}
	}
}

func TestRetrieveUnknownStory(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	_, err := engine.Retrieve(context.Background(), "99", "¿Quién es Gepeto?", Params{})
	require.Error(t, err)
}

func TestRetrieveKeepsBestWhenNothingClearsThreshold(t *testing.T) {
	engine, store, local := newTestEngine(t)
	indexSentences(t, store, local, "0", pinochoSentences)

	// an unrelated question scores low everywhere; retrieval still returns
	// the closest chunks instead of nothing
	passages, err := engine.Retrieve(context.Background(), "0", "fotosintesis clorofila mitocondria", Params{MinSimilarity: 0.99})
	require.NoError(t, err)
	require.NotEmpty(t, passages)
}

func TestRetrieveExpandsNeighbors(t *testing.T) {
	engine, store, local := newTestEngine(t)
	indexSentences(t, store, local, "0", pinochoSentences)

	passages, err := engine.Retrieve(context.Background(), "0", "ballena se trago a Gepeto", Params{TopK: 1})
	require.NoError(t, err)

	indexes := make(map[int]bool)
	for _, p := range passages {
		indexes[p.Row.ChunkIndex] = true
	}
	require.True(t, indexes[5], "best match expected")
	require.True(t, indexes[4] || indexes[6], "a neighbor of the best match expected")
}

func TestRetrieveIsolatesStories(t *testing.T) {
	engine, store, local := newTestEngine(t)
	indexSentences(t, store, local, "0", pinochoSentences)
	indexSentences(t, store, local, "1", []string{
		"Caperucita llevaba una canasta para su abuela.",
		"El lobo feroz espero en la casa de la abuela.",
	})

	passages, err := engine.Retrieve(context.Background(), "1", "¿Quién esperó en la casa?", Params{})
	require.NoError(t, err)
	require.NotEmpty(t, passages)
	for _, p := range passages {
		require.Equal(t, "1", p.Row.StoryID)
	}
}

func TestParamsNegativeMinSimilarityDisablesThreshold(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	p := engine.fill(Params{MinSimilarity: -1})
	require.Zero(t, p.MinSimilarity)
	require.Len(t, aboveThreshold([]Passage{{Sim: 0}}, p.MinSimilarity), 1)

	p = engine.fill(Params{})
	require.Equal(t, 0.25, p.MinSimilarity)
}

func TestCosine(t *testing.T) {
	a := []float32{1, 0, 0}
	require.InDelta(t, 1.0, Cosine(a, a), 1e-9)
	require.InDelta(t, 0.0, Cosine(a, []float32{0, 1, 0}), 1e-9)
	// zero-norm vectors score zero, the denominator never drops below one
	require.Equal(t, 0.0, Cosine(a, []float32{0, 0, 0}))
}

func TestKeywordScoreIgnoresStopwordsAndAccents(t *testing.T) {
	score := KeywordScore("¿Quién talló el muñeco?", "gepeto tallo un muneco de madera")
	require.InDelta(t, 1.0, score, 1e-9)
	require.Equal(t, 0.0, KeywordScore("el la de", "cualquier texto"))
}

func TestMMRPrefersDiversity(t *testing.T) {
	mk := func(id string, idx int, v []float32, sim float64) Passage {
		return Passage{Row: model.ChunkRow{ID: id, ChunkIndex: idx, Vector: v}, Sim: sim}
	}
	// two near-duplicates and one distinct vector; with k=2 MMR should skip
	// the duplicate in favor of the distinct one
	candidates := []Passage{
		mk("0-0", 0, []float32{1, 0}, 0.95),
		mk("0-1", 1, []float32{0.99, 0.01}, 0.94),
		mk("0-2", 2, []float32{0, 1}, 0.5),
	}
	selected := mmrSelect(candidates, 2, 0.5)
	require.Len(t, selected, 2)
	require.Equal(t, "0-0", selected[0].Row.ID)
	require.Equal(t, "0-2", selected[1].Row.ID)
}

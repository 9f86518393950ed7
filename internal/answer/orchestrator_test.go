package answer

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/DekelUsach/Proyecto-final-de-seminario/internal/ai"
	"github.com/DekelUsach/Proyecto-final-de-seminario/internal/model"
	"github.com/DekelUsach/Proyecto-final-de-seminario/internal/repo"
	"github.com/DekelUsach/Proyecto-final-de-seminario/internal/retrieval"
	"github.com/DekelUsach/Proyecto-final-de-seminario/internal/tablestore"
	"github.com/DekelUsach/Proyecto-final-de-seminario/internal/vectorstore"
)

type fakeGenerator struct {
	reply string
	err   error
	calls int
}

func (g *fakeGenerator) Generate(ctx context.Context, prompt string, opts ai.GenerateOptions) (string, error) {
	g.calls++
	if g.err != nil {
		return "", g.err
	}
	return g.reply, nil
}

func newTestOrchestrator(t *testing.T, gen ai.IGenerator) (*Orchestrator, *vectorstore.RetrievalStore, *ai.LocalEmbedder) {
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
	params := retrieval.Params{TopK: 6, MinSimilarity: 0.25, MMRLambda: 0.7}
	engine := retrieval.NewEngine(store, ai.EmbedderSet{Local: local}, params)
	return New(store, engine, gen, params), store, local
}

func indexStory(t *testing.T, store *vectorstore.RetrievalStore, local *ai.LocalEmbedder, storyID string, sentences []string) {
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
		})
	}
	require.NoError(t, store.Put(ctx, storyID, rows, model.EmbedKindLocal, ai.LocalEmbedDim))
}

func TestAskUnknownStory(t *testing.T) {
	gen := &fakeGenerator{reply: "should not be used"}
	orch, _, _ := newTestOrchestrator(t, gen)

	reply, err := orch.Ask(context.Background(), "42", "¿Quién es Gepeto?")
	require.NoError(t, err)
	require.Equal(t, "El texto que estas solicitando, no existe", reply)
	require.Zero(t, gen.calls, "unknown story must not reach the generator")
}

func TestAskExtractiveBypassesGenerator(t *testing.T) {
	gen := &fakeGenerator{reply: "should not be used"}
	orch, store, local := newTestOrchestrator(t, gen)
	indexStory(t, store, local, "0", []string{
		"El muneco de madera se llama Pinocho y vive con Gepeto.",
		"El carpintero trabaja en su taller toda la noche.",
	})

	reply, err := orch.Ask(context.Background(), "0", "¿Cuál es el nombre del muñeco?")
	require.NoError(t, err)
	require.Contains(t, reply, "Como dice el texto:")
	require.Contains(t, reply, "Pinocho")
	require.Zero(t, gen.calls)
}

func TestAskSynthesisQuestionUsesGenerator(t *testing.T) {
	gen := &fakeGenerator{reply: "Pinocho aprendió a decir la verdad."}
	orch, store, local := newTestOrchestrator(t, gen)
	indexStory(t, store, local, "0", []string{
		"El muneco de madera se llama Pinocho y vive con Gepeto.",
		"Cada mentira hacia crecer la nariz de Pinocho.",
	})

	// interpretive question shapes skip the extractive template
	reply, err := orch.Ask(context.Background(), "0", "¿Por qué crecía la nariz de Pinocho?")
	require.NoError(t, err)
	require.Equal(t, "Pinocho aprendió a decir la verdad.", reply)
	require.Equal(t, 1, gen.calls)
}

func TestAskFallsBackToHeuristicWhenGeneratorFails(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("quota exceeded")}
	orch, store, local := newTestOrchestrator(t, gen)
	indexStory(t, store, local, "0", []string{
		"Gepeto tallo un muneco en su taller de carpintero.",
	})

	reply, err := orch.Ask(context.Background(), "0", "¿Por qué talló Gepeto el muñeco?")
	require.NoError(t, err)
	require.Contains(t, reply, "Te cuento de forma simple:")
}

func TestAskWithoutGenerator(t *testing.T) {
	orch, store, local := newTestOrchestrator(t, nil)
	indexStory(t, store, local, "0", []string{
		"Gepeto tallo un muneco en su taller de carpintero.",
	})

	reply, err := orch.Ask(context.Background(), "0", "¿Por qué talló Gepeto el muñeco?")
	require.NoError(t, err)
	require.NotEmpty(t, reply)
}

func TestTryExtractivePower(t *testing.T) {
	texts := []string{"El anillo tenia el poder de volver invisible a su portador."}
	ans := tryExtractive("¿Que poder tenia el anillo?", texts)
	require.Contains(t, ans, "volver invisible")
}

func TestLocalHeuristicWho(t *testing.T) {
	ans := localHeuristic("¿Quién talló el muñeco?", []string{"Gepeto tallo un muneco de madera."})
	require.Equal(t, "Gepeto", ans)
}

func TestLocalHeuristicWhere(t *testing.T) {
	ans := localHeuristic("¿Dónde vivía el carpintero?", []string{"vivia en la aldea junto al rio, con su gato."})
	require.Equal(t, "en la aldea junto al rio", ans)
}

func TestLocalHeuristicDefaultFirstSentence(t *testing.T) {
	ans := localHeuristic("resume el texto", []string{"la ballena nado hacia la costa. luego se hundio."})
	require.Equal(t, "la ballena nado hacia la costa", ans)
}

package vectorstore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/DekelUsach/Proyecto-final-de-seminario/internal/model"
	"github.com/DekelUsach/Proyecto-final-de-seminario/internal/repo"
	"github.com/DekelUsach/Proyecto-final-de-seminario/internal/tablestore"
)

func newStore(t *testing.T, dir string) *RetrievalStore {
	t.Helper()
	db, err := repo.Open(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	tables, err := tablestore.New(db)
	require.NoError(t, err)
	store, err := Open(dir, tables)
	require.NoError(t, err)
	return store
}

func rows(storyID string, dim, count int) []model.ChunkRow {
	out := make([]model.ChunkRow, 0, count)
	for i := 0; i < count; i++ {
		vec := make([]float32, dim)
		vec[i%dim] = 1
		out = append(out, model.ChunkRow{
			ID:         model.ChunkID(storyID, i),
			StoryID:    storyID,
			ChunkIndex: i,
			Text:       "texto",
			Vector:     vec,
			Title:      "titulo",
		})
	}
	return out
}

func TestPutGetRoundTrip(t *testing.T) {
	store := newStore(t, t.TempDir())
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "0", rows("0", 4, 3), model.EmbedKindLocal, 4))

	entry, ok := store.Get("0")
	require.True(t, ok)
	require.Equal(t, model.EmbedKindLocal, entry.EmbedKind)
	require.Equal(t, 4, entry.Dim)
	require.Len(t, entry.Rows, 3)

	durable, err := store.DurableRows(ctx)
	require.NoError(t, err)
	require.Len(t, durable, 3)
}

func TestSnapshotSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store := newStore(t, dir)
	require.NoError(t, store.Put(ctx, "0", rows("0", 4, 2), model.EmbedKindLocal, 4))
	id, err := store.AllocateStoryID(ctx)
	require.NoError(t, err)
	require.NoError(t, store.Close(ctx))

	reopened := newStore(t, dir)
	entry, ok := reopened.Get("0")
	require.True(t, ok)
	require.Len(t, entry.Rows, 2)

	next, err := reopened.AllocateStoryID(ctx)
	require.NoError(t, err)
	require.Greater(t, next, id)
}

func TestLegacySnapshotEmbedKind(t *testing.T) {
	dir := t.TempDir()
	snapshot := `{"stories":{"0":{"storyId":"0","embedKind":"gemini","dim":2,"rows":[{"id":"0-0","storyId":"0","chunkIndex":0,"text":"hola","vector":[1,0],"title":""}]}},"meta":{"last_assigned_story_id":0}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "memory-cache.json"), []byte(snapshot), 0o644))

	store := newStore(t, dir)
	entry, ok := store.Get("0")
	require.True(t, ok)
	require.Equal(t, model.EmbedKindRemote, entry.EmbedKind)
}

func TestCorruptSnapshotStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "memory-cache.json"), []byte("{not json"), 0o644))

	store := newStore(t, dir)
	_, ok := store.Get("0")
	require.False(t, ok)
}

func TestDeleteIsIdempotent(t *testing.T) {
	store := newStore(t, t.TempDir())
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "0", rows("0", 4, 2), model.EmbedKindLocal, 4))
	require.NoError(t, store.Delete(ctx, "0"))
	require.NoError(t, store.Delete(ctx, "0"))

	_, ok := store.Get("0")
	require.False(t, ok)
	require.False(t, store.Exists(ctx, "0"))
}

func TestDeleteKeepsOtherStories(t *testing.T) {
	store := newStore(t, t.TempDir())
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "0", rows("0", 4, 2), model.EmbedKindLocal, 4))
	require.NoError(t, store.Put(ctx, "1", rows("1", 4, 3), model.EmbedKindLocal, 4))
	require.NoError(t, store.Delete(ctx, "0"))

	require.True(t, store.Exists(ctx, "1"))
	durable, err := store.DurableRows(ctx)
	require.NoError(t, err)
	require.Len(t, durable, 3)
	for _, r := range durable {
		require.Equal(t, "1", r.StoryID)
	}
}

func TestReindexReplacesDurableRows(t *testing.T) {
	store := newStore(t, t.TempDir())
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "0", rows("0", 4, 3), model.EmbedKindLocal, 4))
	require.NoError(t, store.Put(ctx, "1", rows("1", 4, 2), model.EmbedKindLocal, 4))

	// re-index story 0 with fewer chunks and new text
	updated := rows("0", 4, 2)
	for i := range updated {
		updated[i].Text = "texto nuevo"
	}
	require.NoError(t, store.Put(ctx, "0", updated, model.EmbedKindLocal, 4))

	durable, err := store.DurableRows(ctx)
	require.NoError(t, err)
	require.Len(t, durable, 4)
	for _, r := range durable {
		if r.StoryID == "0" {
			require.Equal(t, "texto nuevo", r.Text)
		} else {
			require.Equal(t, "1", r.StoryID)
		}
	}
}

func TestFlushConcurrentWithWrites(t *testing.T) {
	dir := t.TempDir()
	store := newStore(t, dir)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		sid := strconv.Itoa(i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := store.Put(ctx, sid, rows(sid, 4, 1), model.EmbedKindLocal, 4); err != nil {
				t.Error(err)
			}
			if err := store.Flush(ctx); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	data, err := os.ReadFile(filepath.Join(dir, snapshotFileName))
	require.NoError(t, err)
	var snap snapshotFile
	require.NoError(t, json.Unmarshal(data, &snap))
	require.Len(t, snap.Stories, 8)
}

func TestDimensionChangeRebuildsDurableTable(t *testing.T) {
	store := newStore(t, t.TempDir())
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "0", rows("0", 4, 2), model.EmbedKindLocal, 4))
	// remote embedder comes back with a different dimension
	require.NoError(t, store.Put(ctx, "1", rows("1", 8, 2), model.EmbedKindRemote, 8))

	// the durable table now holds only the new-dimension story
	durable, err := store.DurableRows(ctx)
	require.NoError(t, err)
	require.Len(t, durable, 2)
	for _, r := range durable {
		require.Equal(t, "1", r.StoryID)
	}

	// both stories stay readable through the mirror
	_, ok := store.Get("0")
	require.True(t, ok)
	_, ok = store.Get("1")
	require.True(t, ok)
}

func TestAllocateStoryIDConcurrent(t *testing.T) {
	store := newStore(t, t.TempDir())
	ctx := context.Background()

	const n = 32
	ids := make(chan int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := store.AllocateStoryID(ctx)
			if err != nil {
				t.Error(err)
				return
			}
			ids <- id
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]bool, n)
	for id := range ids {
		require.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}
	require.Len(t, seen, n)
}

func TestAllocateStoryIDSkipsExisting(t *testing.T) {
	store := newStore(t, t.TempDir())
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "7", rows("7", 4, 1), model.EmbedKindLocal, 4))
	id, err := store.AllocateStoryID(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(8), id)
}

func TestListOrdersByNumericID(t *testing.T) {
	store := newStore(t, t.TempDir())
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "10", rows("10", 4, 1), model.EmbedKindLocal, 4))
	require.NoError(t, store.Put(ctx, "2", rows("2", 4, 2), model.EmbedKindLocal, 4))

	infos := store.List(ctx)
	require.Len(t, infos, 2)
	require.Equal(t, "2", infos[0].StoryID)
	require.Equal(t, "10", infos[1].StoryID)
	require.Equal(t, 2, infos[0].Chunks)
	require.Equal(t, "titulo", infos[0].Title)
}

package tablestore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/DekelUsach/Proyecto-final-de-seminario/internal/model"
	appErr "github.com/DekelUsach/Proyecto-final-de-seminario/internal/pkg/errors"
	"github.com/DekelUsach/Proyecto-final-de-seminario/internal/repo"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	db, err := repo.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	store, err := New(db)
	require.NoError(t, err)
	return store
}

func row(storyID string, idx int, vec []float32, text string) model.ChunkRow {
	return model.ChunkRow{
		ID:         model.ChunkID(storyID, idx),
		StoryID:    storyID,
		ChunkIndex: idx,
		Text:       text,
		Vector:     vec,
	}
}

func TestCreateAndReadBack(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	rows := []model.ChunkRow{
		row("0", 0, []float32{1, 0, 0}, "primero"),
		row("0", 1, []float32{0, 1, 0}, "segundo"),
	}
	require.NoError(t, store.CreateTable(ctx, "chunks", rows))

	ok, err := store.HasTable(ctx, "chunks")
	require.NoError(t, err)
	require.True(t, ok)

	table, err := store.OpenTable(ctx, "chunks")
	require.NoError(t, err)
	dim, err := table.Dim(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, dim)

	all, err := table.ToArray(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, rows[0].Vector, all[0].Vector)
}

func TestAddRejectsDimensionMismatch(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateTable(ctx, "chunks", []model.ChunkRow{
		row("0", 0, []float32{1, 0, 0}, "a"),
	}))
	table, err := store.OpenTable(ctx, "chunks")
	require.NoError(t, err)

	err = table.Add(ctx, []model.ChunkRow{row("1", 0, []float32{1, 0}, "b")})
	require.ErrorIs(t, err, appErr.ErrDimensionMismatch)
}

func TestCreateTableReplacesExisting(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateTable(ctx, "chunks", []model.ChunkRow{
		row("0", 0, []float32{1, 0, 0}, "old"),
	}))
	require.NoError(t, store.CreateTable(ctx, "chunks", []model.ChunkRow{
		row("1", 0, []float32{1, 0}, "new"),
	}))

	table, err := store.OpenTable(ctx, "chunks")
	require.NoError(t, err)
	dim, err := table.Dim(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, dim)

	all, err := table.ToArray(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Equal(t, "new", all[0].Text)
}

func TestOpenMissingTable(t *testing.T) {
	store := newStore(t)
	_, err := store.OpenTable(context.Background(), "nope")
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestSearchOrdersBySimilarity(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateTable(ctx, "chunks", []model.ChunkRow{
		row("0", 0, []float32{1, 0, 0}, "eje x"),
		row("0", 1, []float32{0, 1, 0}, "eje y"),
		row("0", 2, []float32{0.9, 0.1, 0}, "casi x"),
	}))
	table, err := store.OpenTable(ctx, "chunks")
	require.NoError(t, err)

	results, err := table.Search(ctx, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "eje x", results[0].Text)
	require.Equal(t, "casi x", results[1].Text)
}

func TestSearchRejectsWrongDimension(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateTable(ctx, "chunks", []model.ChunkRow{
		row("0", 0, []float32{1, 0, 0}, "a"),
	}))
	table, err := store.OpenTable(ctx, "chunks")
	require.NoError(t, err)

	_, err = table.Search(ctx, []float32{1, 0}, 5)
	require.ErrorIs(t, err, appErr.ErrDimensionMismatch)
}

func TestInvalidTableName(t *testing.T) {
	store := newStore(t)
	_, err := store.HasTable(context.Background(), "bad name; drop")
	require.Error(t, err)
}

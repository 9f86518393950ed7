// Package service holds the use-case layer between handlers and storage:
// indexing stories, answering questions and maintaining the pre-split
// display paragraphs.
package service

import (
	"context"
	"strconv"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/DekelUsach/Proyecto-final-de-seminario/internal/ai"
	"github.com/DekelUsach/Proyecto-final-de-seminario/internal/answer"
	"github.com/DekelUsach/Proyecto-final-de-seminario/internal/chunker"
	"github.com/DekelUsach/Proyecto-final-de-seminario/internal/model"
	appErr "github.com/DekelUsach/Proyecto-final-de-seminario/internal/pkg/errors"
	"github.com/DekelUsach/Proyecto-final-de-seminario/internal/vectorstore"
)

type StoryService struct {
	store        *vectorstore.RetrievalStore
	chunker      *chunker.Chunker
	embedders    ai.EmbedderSet
	orchestrator *answer.Orchestrator
}

func NewStoryService(store *vectorstore.RetrievalStore, ck *chunker.Chunker, embedders ai.EmbedderSet, orch *answer.Orchestrator) *StoryService {
	return &StoryService{store: store, chunker: ck, embedders: embedders, orchestrator: orch}
}

// Index chunks and embeds the text, then replaces the story's entry in the
// store. The embedder is chosen once per call; when the remote embedder fails
// partway through, the whole story is re-embedded locally so one story never
// mixes vector spaces.
func (s *StoryService) Index(ctx context.Context, storyID, title, text string) (int, model.EmbedKind, error) {
	chunks := s.chunker.Split(text)
	if len(chunks) == 0 {
		return 0, "", appErr.ErrInvalid
	}

	embedder, kind := s.embedders.Probe(ctx)
	rows, err := s.embedChunks(ctx, embedder, storyID, title, chunks)
	if err != nil && kind == model.EmbedKindRemote {
		logutil.GetLogger(ctx).Warn("remote embedding failed mid-story, re-embedding locally",
			zap.String("story_id", storyID), zap.Error(err))
		embedder, kind = s.embedders.Local, model.EmbedKindLocal
		rows, err = s.embedChunks(ctx, embedder, storyID, title, chunks)
	}
	if err != nil {
		return 0, "", err
	}

	dim := len(rows[0].Vector)
	if err := s.store.Put(ctx, storyID, rows, kind, dim); err != nil {
		return 0, "", err
	}
	logutil.GetLogger(ctx).Info("story indexed",
		zap.String("story_id", storyID), zap.Int("chunks", len(rows)),
		zap.String("embed_kind", string(kind)), zap.Int("dim", dim))
	return len(rows), kind, nil
}

func (s *StoryService) embedChunks(ctx context.Context, embedder ai.IEmbedder, storyID, title string, chunks []string) ([]model.ChunkRow, error) {
	rows := make([]model.ChunkRow, 0, len(chunks))
	for i, text := range chunks {
		vec, err := embedder.Embed(ctx, text, ai.TaskTypeDocument)
		if err != nil {
			return nil, err
		}
		rows = append(rows, model.ChunkRow{
			ID:         model.ChunkID(storyID, i),
			StoryID:    storyID,
			ChunkIndex: i,
			Text:       text,
			Vector:     vec,
			Title:      title,
		})
	}
	return rows, nil
}

// Ask delegates to the answer chain. The reply is always user-facing text.
func (s *StoryService) Ask(ctx context.Context, storyID, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", appErr.ErrInvalid
	}
	return s.orchestrator.Ask(ctx, storyID, question)
}

// AllocateStoryID hands out the next story id as a string, matching the ids
// used in chunk rows.
func (s *StoryService) AllocateStoryID(ctx context.Context) (string, error) {
	id, err := s.store.AllocateStoryID(ctx)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(id, 10), nil
}

func (s *StoryService) Exists(ctx context.Context, storyID string) bool {
	return s.store.Exists(ctx, storyID)
}

func (s *StoryService) List(ctx context.Context) []model.StoryInfo {
	return s.store.List(ctx)
}

func (s *StoryService) Delete(ctx context.Context, storyID string) error {
	return s.store.Delete(ctx, storyID)
}

package ai

import (
	"context"

	"github.com/DekelUsach/Proyecto-final-de-seminario/internal/model"
)

// EmbedderSet holds the two interchangeable embedders. Remote may be nil when
// no provider is configured; Local always works.
type EmbedderSet struct {
	Remote IEmbedder
	Local  IEmbedder
}

// ForKind resolves the embedder recorded for a story. Queries must use the
// same kind the story was indexed with, otherwise similarity scores are
// meaningless.
func (s EmbedderSet) ForKind(kind model.EmbedKind) IEmbedder {
	if kind != model.EmbedKindLocal && s.Remote != nil {
		return s.Remote
	}
	return s.Local
}

// Probe picks the embedder for a new story: the remote one is tried with a
// trivial input, any failure selects the local fallback for the whole story.
func (s EmbedderSet) Probe(ctx context.Context) (IEmbedder, model.EmbedKind) {
	if s.Remote != nil {
		if _, err := s.Remote.Embed(ctx, "ping", TaskTypeDocument); err == nil {
			return s.Remote, model.EmbedKindRemote
		}
	}
	return s.Local, model.EmbedKindLocal
}

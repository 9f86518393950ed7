package model

import "fmt"

// EmbedKind tags which embedder produced the vectors of a story. All chunks
// of one story share a single kind and vector dimension; queries against the
// story must use the same kind.
type EmbedKind string

const (
	EmbedKindRemote EmbedKind = "remote"
	EmbedKindLocal  EmbedKind = "local"
)

// ChunkID builds the row id for a chunk, "{storyId}-{chunkIndex}".
func ChunkID(storyID string, chunkIndex int) string {
	return fmt.Sprintf("%s-%d", storyID, chunkIndex)
}

// ChunkRow is one durable row of the chunk table and one unit of the
// in-memory mirror. ID is "{storyId}-{chunkIndex}".
type ChunkRow struct {
	ID         string    `json:"id"`
	StoryID    string    `json:"storyId"`
	ChunkIndex int       `json:"chunkIndex"`
	Text       string    `json:"text"`
	Vector     []float32 `json:"vector"`
	Title      string    `json:"title"`
}

// StoryEntry is the mirror unit for one story. Rows are ordered by
// ChunkIndex; that order defines adjacency for neighbor expansion.
type StoryEntry struct {
	StoryID   string     `json:"storyId"`
	EmbedKind EmbedKind  `json:"embedKind"`
	Dim       int        `json:"dim"`
	Rows      []ChunkRow `json:"rows"`
}

type StoryInfo struct {
	StoryID string `json:"story_id"`
	Title   string `json:"title"`
	Chunks  int    `json:"chunks"`
}

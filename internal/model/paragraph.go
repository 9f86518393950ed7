package model

// PreloadedText is the relational copy of a full ingested story.
type PreloadedText struct {
	ID      int64  `json:"id"`
	StoryID string `json:"story_id"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Ctime   int64  `json:"ctime"`
}

// PreloadedParagraph is one pre-split display section of a text.
type PreloadedParagraph struct {
	ID       int64  `json:"id"`
	TextID   int64  `json:"text_id"`
	Content  string `json:"content"`
	Position int    `json:"position"`
}

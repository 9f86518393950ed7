package repo

import (
	"context"
	"database/sql"
	"time"

	"github.com/didi/gendry/builder"

	"github.com/DekelUsach/Proyecto-final-de-seminario/internal/model"
	appErr "github.com/DekelUsach/Proyecto-final-de-seminario/internal/pkg/errors"
)

// TextRepo keeps the relational copy of ingested stories: the full text plus
// its pre-split display paragraphs.
type TextRepo struct {
	db *sql.DB
}

func NewTextRepo(db *sql.DB) *TextRepo {
	return &TextRepo{db: db}
}

// SaveText replaces any previous text stored for the story and returns the
// new text id. Re-indexing a story is always a full replacement.
func (r *TextRepo) SaveText(ctx context.Context, storyID, title, content string) (int64, error) {
	if err := r.DeleteByStory(ctx, storyID); err != nil {
		return 0, err
	}
	data := map[string]interface{}{
		"story_id": storyID,
		"title":    title,
		"content":  content,
		"ctime":    time.Now().Unix(),
	}
	sqlStr, args, err := builder.BuildInsert("preloaded_texts", []map[string]interface{}{data})
	if err != nil {
		return 0, err
	}
	res, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r *TextRepo) SaveParagraphs(ctx context.Context, textID int64, paragraphs []string) error {
	if len(paragraphs) == 0 {
		return nil
	}
	data := make([]map[string]interface{}, 0, len(paragraphs))
	for i, content := range paragraphs {
		data = append(data, map[string]interface{}{
			"text_id":  textID,
			"content":  content,
			"position": i + 1,
		})
	}
	sqlStr, args, err := builder.BuildInsert("preloaded_paragraphs", data)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *TextRepo) GetTextByStory(ctx context.Context, storyID string) (*model.PreloadedText, error) {
	const query = `SELECT id, story_id, title, content, ctime FROM preloaded_texts WHERE story_id = ?`
	row := r.db.QueryRowContext(ctx, query, storyID)
	var item model.PreloadedText
	if err := row.Scan(&item.ID, &item.StoryID, &item.Title, &item.Content, &item.Ctime); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

func (r *TextRepo) ListParagraphsByStory(ctx context.Context, storyID string) ([]model.PreloadedParagraph, error) {
	const query = `
		SELECT p.id, p.text_id, p.content, p.position
		FROM preloaded_paragraphs p
		JOIN preloaded_texts t ON t.id = p.text_id
		WHERE t.story_id = ?
		ORDER BY p.position
	`
	rows, err := r.db.QueryContext(ctx, query, storyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []model.PreloadedParagraph
	for rows.Next() {
		var item model.PreloadedParagraph
		if err := rows.Scan(&item.ID, &item.TextID, &item.Content, &item.Position); err != nil {
			return nil, err
		}
		results = append(results, item)
	}
	return results, rows.Err()
}

// DeleteByStory removes the text and its paragraphs; deleting a story that
// was never persisted succeeds.
func (r *TextRepo) DeleteByStory(ctx context.Context, storyID string) error {
	const query = `DELETE FROM preloaded_paragraphs WHERE text_id IN (SELECT id FROM preloaded_texts WHERE story_id = ?)`
	if _, err := r.db.ExecContext(ctx, query, storyID); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `DELETE FROM preloaded_texts WHERE story_id = ?`, storyID)
	return err
}

package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/DekelUsach/Proyecto-final-de-seminario/internal/ai"
	"github.com/DekelUsach/Proyecto-final-de-seminario/internal/model"
	"github.com/DekelUsach/Proyecto-final-de-seminario/internal/repo"
)

// sectionMark separates the visually coherent sections the splitter model
// inserts into the text.
const sectionMark = "⇼"

const splitterInstruction = "You split text by inserting the character ⇼ before each visually coherent section. Respond ONLY with the transformed text and a final ⇼."

const splitterPrompt = `You are an assistant specialized in preparing narrative texts for AI image generation. You will receive a long excerpt from a book and must:

1. Read the entire text and understand its narrative flow (scenes, characters, actions, changes in setting, emotional moments, key objects).
2. Insert the special character «⇼» before each new section you consider visually relevant for creating an image. Each marked section starts with «⇼» and continues until just before the next «⇼» or the end of the text.
3. Do NOT change or rewrite the original text: only add the ⇼ character at the separation points you choose.
4. You cannot divide paragraphs in the middle of a sentence; every section must end at a sentence boundary.
5. Return the result as a single block of text and print a final ⇼ to mark the end. Respond with nothing but the divided text.`

var (
	markVariantRe = regexp.MustCompile(`\*?⇼\*?`)
	blankLineRe   = regexp.MustCompile(`\n\s*\n`)
)

// ParagraphService produces and persists the display paragraphs of a story.
// The split is delegated to the generation model when one is available; the
// plain paragraph structure of the text is the fallback.
type ParagraphService struct {
	generator ai.IGenerator
	texts     *repo.TextRepo
}

func NewParagraphService(generator ai.IGenerator, texts *repo.TextRepo) *ParagraphService {
	return &ParagraphService{generator: generator, texts: texts}
}

// SplitAndPersist stores the full text and its paragraphs for the story,
// replacing any previous version. Splitting failures never fail ingestion;
// they only degrade to the plain split.
func (s *ParagraphService) SplitAndPersist(ctx context.Context, storyID, title, text string) error {
	paragraphs := s.split(ctx, text)
	textID, err := s.texts.SaveText(ctx, storyID, title, text)
	if err != nil {
		return err
	}
	return s.texts.SaveParagraphs(ctx, textID, paragraphs)
}

func (s *ParagraphService) Paragraphs(ctx context.Context, storyID string) ([]model.PreloadedParagraph, error) {
	return s.texts.ListParagraphsByStory(ctx, storyID)
}

func (s *ParagraphService) Delete(ctx context.Context, storyID string) error {
	return s.texts.DeleteByStory(ctx, storyID)
}

func (s *ParagraphService) split(ctx context.Context, text string) []string {
	if s.generator != nil {
		prompt := fmt.Sprintf("%s\n\nBelow, I'll leave you the text to which you must apply these instructions:\n\n%s", splitterPrompt, text)
		marked, err := s.generator.Generate(ctx, prompt, ai.GenerateOptions{
			Temperature:       0.2,
			TopP:              0.8,
			MaxTokens:         8192,
			SystemInstruction: splitterInstruction,
		})
		if err == nil {
			if parts := SplitMarkedText(marked); len(parts) > 0 {
				return parts
			}
		} else {
			logutil.GetLogger(ctx).Warn("model paragraph split failed, using plain split", zap.Error(err))
		}
	}
	return plainParagraphs(text)
}

// SplitMarkedText cuts model output on the ⇼ marker, tolerating the *⇼*
// variant, and collapses inner whitespace per section.
func SplitMarkedText(marked string) []string {
	normalized := markVariantRe.ReplaceAllString(marked, sectionMark)
	var parts []string
	for _, p := range strings.Split(normalized, sectionMark) {
		p = strings.Join(strings.Fields(p), " ")
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

// plainParagraphs splits on blank lines; a single-block text becomes one
// paragraph.
func plainParagraphs(text string) []string {
	var parts []string
	for _, p := range blankLineRe.Split(text, -1) {
		p = strings.Join(strings.Fields(p), " ")
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

package chunker

import (
	"regexp"
	"strings"
	"unicode"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// Chunker splits raw story text into overlapping, sentence-bounded chunks
// sized for embedding and retrieval. A chunk never ends mid-sentence; when a
// chunk closes, the next one starts with the last sentenceOverlap sentences
// of the previous chunk so cross-chunk context survives retrieval.
type Chunker struct {
	targetChars     int
	sentenceOverlap int
}

func New(targetChars, sentenceOverlap int) *Chunker {
	if targetChars <= 0 {
		targetChars = 400
	}
	if sentenceOverlap < 0 {
		sentenceOverlap = 0
	}
	return &Chunker{targetChars: targetChars, sentenceOverlap: sentenceOverlap}
}

func (c *Chunker) Split(text string) []string {
	normalized := Normalize(text)
	if normalized == "" {
		return nil
	}
	sentences := splitSentences(normalized)
	var chunks []string
	var current []string
	currentLen := 0
	for _, s := range sentences {
		if currentLen+len(s)+1 > c.targetChars && len(current) > 0 {
			chunks = append(chunks, strings.Join(current, " "))
			start := len(current) - c.sentenceOverlap
			if start < 0 {
				start = 0
			}
			current = append([]string(nil), current[start:]...)
			currentLen = 0
			for _, kept := range current {
				currentLen += len(kept) + 1
			}
		}
		current = append(current, s)
		currentLen += len(s) + 1
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, " "))
	}
	return chunks
}

// Overlap reports how many sentences each chunk shares with its predecessor.
func (c *Chunker) Overlap() int {
	return c.sentenceOverlap
}

// Normalize collapses all whitespace runs to single spaces and trims.
func Normalize(text string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
}

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

// splitSentences cuts after a run of terminal punctuation followed by
// whitespace (or end of text). Punctuation stays attached to its sentence; a
// sentence is never cut in the middle, no matter how long.
func splitSentences(text string) []string {
	runes := []rune(text)
	var sentences []string
	start := 0
	for i := 0; i < len(runes); i++ {
		if !isTerminal(runes[i]) {
			continue
		}
		for i+1 < len(runes) && isTerminal(runes[i+1]) {
			i++
		}
		if i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
			continue
		}
		if s := strings.TrimSpace(string(runes[start : i+1])); s != "" {
			sentences = append(sentences, s)
		}
		start = i + 1
	}
	if start < len(runes) {
		if s := strings.TrimSpace(string(runes[start:])); s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

package retrieval

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var diacriticFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Spanish stopwords, already diacritic-folded to match Tokenize output.
var spanishStopwords = map[string]struct{}{
	"el": {}, "la": {}, "los": {}, "las": {}, "un": {}, "una": {}, "unos": {},
	"unas": {}, "y": {}, "o": {}, "u": {}, "de": {}, "del": {}, "al": {},
	"a": {}, "en": {}, "por": {}, "para": {}, "con": {}, "sin": {}, "que": {},
	"se": {}, "su": {}, "sus": {}, "le": {}, "les": {}, "lo": {}, "como": {},
	"es": {}, "esta": {}, "este": {}, "estas": {}, "estos": {}, "pero": {},
	"si": {}, "no": {}, "ya": {}, "muy": {}, "mas": {}, "menos": {},
	"sobre": {}, "entre": {}, "cuando": {}, "donde": {}, "quien": {},
	"cual": {}, "cuales": {},
}

// Tokenize lowercases, strips diacritics and punctuation, and splits on
// whitespace. "¿Quién hizo a Pinocho?" and "quien hizo a pinocho" produce
// the same tokens.
func Tokenize(text string) []string {
	lower := strings.ToLower(text)
	folded, _, err := transform.String(diacriticFolder, lower)
	if err != nil {
		folded = lower
	}
	mapped := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return ' '
	}, folded)
	return strings.Fields(mapped)
}

// KeywordScore is the fraction of non-stopword question tokens that appear
// in the chunk text.
func KeywordScore(question, text string) float64 {
	var qTokens []string
	for _, tok := range Tokenize(question) {
		if _, stop := spanishStopwords[tok]; !stop {
			qTokens = append(qTokens, tok)
		}
	}
	if len(qTokens) == 0 {
		return 0
	}
	tSet := make(map[string]struct{})
	for _, tok := range Tokenize(text) {
		tSet[tok] = struct{}{}
	}
	overlap := 0
	for _, tok := range qTokens {
		if _, ok := tSet[tok]; ok {
			overlap++
		}
	}
	return float64(overlap) / float64(len(qTokens))
}

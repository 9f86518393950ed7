package answer

import (
	"regexp"
	"strings"
)

// Rule-based answering used when every generator call failed. Works on the
// best retrieved passage only; a rough answer beats an apology.

var (
	properNameRe = regexp.MustCompile(`[A-ZÁÉÍÓÚÑ][a-záéíóúñ]+(\s+[A-ZÁÉÍÓÚÑ][a-záéíóúñ]+)*`)
	placeRe      = regexp.MustCompile(`(?i)en (el|la|los|las) [^.,]+`)
)

// localHeuristic answers from the first context text: who-questions get the
// first capitalized name, where-questions the first place phrase, anything
// else the first sentence.
func localHeuristic(question string, contexts []string) string {
	if len(contexts) == 0 {
		return ""
	}
	first := contexts[0]
	if strings.TrimSpace(first) == "" {
		return ""
	}
	q := strings.ToLower(question)

	if strings.Contains(q, "quien") || strings.Contains(q, "quién") {
		if m := properNameRe.FindString(first); m != "" {
			return m
		}
	}
	if strings.Contains(q, "donde") || strings.Contains(q, "dónde") {
		if m := placeRe.FindString(first); m != "" {
			return m
		}
	}

	end := strings.IndexAny(first, ".!?")
	if end > 0 {
		if s := strings.TrimSpace(first[:end]); s != "" {
			return s
		}
	}
	return strings.TrimSpace(first)
}

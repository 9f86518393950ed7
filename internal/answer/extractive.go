package answer

import (
	"regexp"
	"strings"
)

// Extractive answering: before spending a generation call, look for a literal
// phrase in the retrieved passages that answers the question directly. Only
// factual question shapes are attempted; interpretive questions go straight
// to the generator.

var (
	permitiaRe  = regexp.MustCompile(`(?i)(?:le|les)?\s*permit[íi]a\s+([^.;\n]+)`)
	poderDeRe   = regexp.MustCompile(`(?i)poder(?:\s+de\s+|\s+para\s+)([^.;\n]+)`)
	habilidadRe = regexp.MustCompile(`(?i)habilidad(?:\s+de\s+|\s+para\s+)([^.;\n]+)`)
	capacidadRe = regexp.MustCompile(`(?i)capacidad(?:\s+de\s+|\s+para\s+)([^.;\n]+)`)
	llamadoRe   = regexp.MustCompile(`(?i)llamad[oa]\s+([^.;\n]+)`)
	seLlamaRe   = regexp.MustCompile(`(?i)se\s+llama\s+([^.;\n]+)`)
	nombreDeRe  = regexp.MustCompile(`(?i)nombre\s+(?:del|de\s+la|de\s+los|de\s+las)\s+([^.;\n]+)`)
)

var synthesisMarkers = []string{
	"¿por qué", "por qué", "porque",
	"como", "cómo", "de qué manera",
	"metáfora", "metafora",
	"crecimiento", "superación", "superacion",
	"interpret", "explica", "refleja",
}

func needsSynthesis(question string) bool {
	q := strings.ToLower(question)
	for _, marker := range synthesisMarkers {
		if strings.Contains(q, marker) {
			return true
		}
	}
	return false
}

// tryExtractive returns a quoted fragment answering the question, or "" when
// no template applies.
func tryExtractive(question string, texts []string) string {
	q := strings.ToLower(question)
	if needsSynthesis(question) {
		return ""
	}

	if strings.Contains(q, "permitia") || strings.Contains(q, "permitía") {
		if ans := pickBest(matchAll(texts, permitiaRe)); ans != "" {
			return ans
		}
	}
	if strings.Contains(q, "poder") {
		if ans := pickBest(matchAll(texts, poderDeRe)); ans != "" {
			return ans
		}
	}
	if strings.Contains(q, "habilidad") || strings.Contains(q, "capacidad") {
		if ans := pickBest(matchAll(texts, habilidadRe, capacidadRe)); ans != "" {
			return ans
		}
	}

	if strings.Contains(q, "cómo se llama") || strings.Contains(q, "como se llama") || strings.Contains(q, "nombre") {
		if matches := matchAll(texts, llamadoRe, seLlamaRe, nombreDeRe); len(matches) > 0 {
			best := matches[0]
			for _, m := range matches[1:] {
				if len(m) > len(best) {
					best = m
				}
			}
			best = strings.TrimSpace(strings.Trim(best, `"`))
			if best != "" {
				return `"` + best + `"`
			}
		}
	}

	if strings.Contains(q, "qué poder") || strings.Contains(q, "que poder") {
		for _, t := range texts {
			for _, s := range strings.FieldsFunc(t, func(r rune) bool { return r == '.' || r == '!' || r == '?' }) {
				sl := strings.ToLower(s)
				if strings.Contains(sl, "poder") || strings.Contains(sl, "permitia") || strings.Contains(sl, "permitía") {
					if frag := strings.TrimSpace(s); frag != "" {
						return `"` + frag + `"`
					}
				}
			}
		}
	}

	return ""
}

func matchAll(texts []string, patterns ...*regexp.Regexp) []string {
	var out []string
	for _, t := range texts {
		for _, re := range patterns {
			if m := re.FindStringSubmatch(t); len(m) > 1 && m[1] != "" {
				out = append(out, m[1])
			}
		}
	}
	return out
}

// pickBest quotes the longest captured fragment.
func pickBest(matches []string) string {
	best := ""
	for _, m := range matches {
		fragment := strings.Trim(strings.TrimSpace(m), `"`)
		if len(fragment) > len(best) {
			best = fragment
		}
	}
	if best == "" {
		return ""
	}
	return `"` + best + `"`
}

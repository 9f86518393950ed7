package answer

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/DekelUsach/Proyecto-final-de-seminario/internal/model"
	"github.com/DekelUsach/Proyecto-final-de-seminario/internal/retrieval"
)

const globalContextMaxChars = 6000

const (
	replyStoryNotFound = "El texto que estas solicitando, no existe"
	replyNoFragments   = "Hola, soy LULU. No encontré fragmentos exactos, pero puedo ayudarte si me preguntas algo directamente sobre el texto que cargaste."
	replyNoAnswer      = "No pude generar una respuesta en este momento."
)

const (
	instructionGlobal = "Tu eres LULU, la mascota virtual de Loomi. Eres amable, cercana y ayudas al usuario a entender el texto cargado de la manera más fácil posible. Si te preguntan algo fuera del texto, avisa con calidez que se está yendo por las ramas e invítalo a volver al contenido cargado."

	instructionContextual = "Tu eres LULU, la mascota virtual de Loomi. Eres amable, cercana y respondes en español. Basas tus respuestas en el contexto, pero cuando no hay una frase exacta, sintetizas conclusiones razonables. Si la pregunta no está relacionada con el texto, avisa amablemente y sugiere volver al contenido cargado."

	instructionSynthesis = "Tu eres LULU, la mascota virtual de Loomi. Eres amable y sintetizas ideas cuando no hay citas exactas."
)

// buildPrompt assembles the numbered-context prompt sent to the generator.
func buildPrompt(question string, contexts []string) string {
	var sb strings.Builder
	sb.WriteString("=== CONTEXTO RELEVANTE ===\n")
	for i, text := range contexts {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "(%d) %s", i+1, text)
	}
	sb.WriteString("\n=== FIN CONTEXTO ===\n\n")
	fmt.Fprintf(&sb, "Pregunta del usuario: %s\n\n", question)
	sb.WriteString("Instrucciones de estilo:\n")
	sb.WriteString("- Responde de forma clara, amable y personalizada en español rioplatense neutral.\n")
	sb.WriteString("- Si la respuesta no está escrita de forma explícita en el contexto, deduce y sintetiza a partir de lo que el texto sugiere.\n")
	sb.WriteString("- Si la pregunta no está relacionada con el texto, explica amablemente que se está yendo por las ramas e invítalo a volver al contenido cargado.\n")
	sb.WriteString("- Evita respuestas telegráficas; ofrece 2-5 oraciones útiles como máximo.\n\n")
	sb.WriteString("Respuesta:")
	return sb.String()
}

// buildGlobalContext joins all chunk texts of a story, truncated to maxChars.
// Used when retrieval finds nothing and the answer must come from the text as
// a whole.
func buildGlobalContext(rows []model.ChunkRow, maxChars int) string {
	texts := make([]string, 0, len(rows))
	for _, r := range rows {
		if r.Text != "" {
			texts = append(texts, r.Text)
		}
	}
	joined := strings.Join(texts, "\n\n")
	if len(joined) > maxChars {
		cut := maxChars
		for cut > 0 && !utf8.RuneStart(joined[cut]) {
			cut--
		}
		joined = joined[:cut]
	}
	return joined
}

func passageTexts(passages []retrieval.Passage) []string {
	texts := make([]string, 0, len(passages))
	for _, p := range passages {
		texts = append(texts, p.Row.Text)
	}
	return texts
}

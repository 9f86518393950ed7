// Package answer turns retrieved passages into a user-facing reply. It layers
// strategies from cheapest to most speculative: fixed replies for unknown
// stories, extractive quoting, LLM generation over retrieved context, a
// rule-based fallback and a last-resort global-context synthesis. Ask always
// returns an answer; generator outages degrade quality, never availability.
package answer

import (
	"context"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/DekelUsach/Proyecto-final-de-seminario/internal/ai"
	"github.com/DekelUsach/Proyecto-final-de-seminario/internal/retrieval"
	"github.com/DekelUsach/Proyecto-final-de-seminario/internal/vectorstore"
)

type Orchestrator struct {
	store     *vectorstore.RetrievalStore
	engine    *retrieval.Engine
	generator ai.IGenerator
	params    retrieval.Params
}

// New builds an orchestrator. generator may be nil when no provider is
// configured; every generation step is then skipped.
func New(store *vectorstore.RetrievalStore, engine *retrieval.Engine, generator ai.IGenerator, params retrieval.Params) *Orchestrator {
	return &Orchestrator{store: store, engine: engine, generator: generator, params: params}
}

// Ask answers a question about one story. The error return is reserved for
// context cancellation; every other failure resolves to a fallback answer.
func (o *Orchestrator) Ask(ctx context.Context, storyID, question string) (string, error) {
	if !o.store.Exists(ctx, storyID) {
		return replyStoryNotFound, nil
	}

	passages, err := o.engine.Retrieve(ctx, storyID, question, o.params)
	if err != nil {
		logutil.GetLogger(ctx).Warn("retrieval failed, answering from global context",
			zap.String("story_id", storyID), zap.Error(err))
		passages = nil
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	if len(passages) == 0 {
		if reply := o.generateGlobal(ctx, storyID, question, globalOpts()); reply != "" {
			return reply, nil
		}
		return replyNoFragments, nil
	}

	texts := passageTexts(passages)

	if extractive := tryExtractive(question, texts); extractive != "" {
		return "Como dice el texto: " + extractive, nil
	}

	if reply := o.generate(ctx, buildPrompt(question, texts), ai.GenerateOptions{
		Temperature:       0.5,
		TopP:              0.8,
		MaxTokens:         512,
		SystemInstruction: instructionContextual,
	}); reply != "" {
		return reply, nil
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	if local := localHeuristic(question, texts); local != "" {
		return "Te cuento de forma simple: " + local, nil
	}

	if reply := o.generateGlobal(ctx, storyID, question, ai.GenerateOptions{
		Temperature:       0.6,
		TopP:              0.85,
		MaxTokens:         512,
		SystemInstruction: instructionSynthesis,
	}); reply != "" {
		return reply, nil
	}

	return replyNoAnswer, nil
}

func globalOpts() ai.GenerateOptions {
	return ai.GenerateOptions{
		Temperature:       0.5,
		TopP:              0.8,
		MaxTokens:         512,
		SystemInstruction: instructionGlobal,
	}
}

// generateGlobal prompts over the whole story text from the mirror, capped at
// globalContextMaxChars. Returns "" when the mirror has no rows or generation
// fails.
func (o *Orchestrator) generateGlobal(ctx context.Context, storyID, question string, opts ai.GenerateOptions) string {
	entry, ok := o.store.Get(storyID)
	if !ok || len(entry.Rows) == 0 {
		return ""
	}
	globalCtx := buildGlobalContext(entry.Rows, globalContextMaxChars)
	if globalCtx == "" {
		return ""
	}
	return o.generate(ctx, buildPrompt(question, []string{globalCtx}), opts)
}

func (o *Orchestrator) generate(ctx context.Context, prompt string, opts ai.GenerateOptions) string {
	if o.generator == nil {
		return ""
	}
	reply, err := o.generator.Generate(ctx, prompt, opts)
	if err != nil {
		logutil.GetLogger(ctx).Warn("generation failed, trying next strategy", zap.Error(err))
		return ""
	}
	return strings.TrimSpace(reply)
}

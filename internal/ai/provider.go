package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnavailable marks a provider that is unconfigured or whose remote call
// failed; callers treat it as a signal to fall back, never as fatal.
var ErrUnavailable = errors.New("ai provider unavailable")

const (
	TaskTypeDocument = "RETRIEVAL_DOCUMENT"
	TaskTypeQuery    = "RETRIEVAL_QUERY"
)

type GenerateOptions struct {
	Temperature       float64
	TopP              float64
	MaxTokens         int
	SystemInstruction string
}

type IGenerateProvider interface {
	Name() string
	Generate(ctx context.Context, model string, prompt string, opts GenerateOptions) (string, error)
}

type IEmbedProvider interface {
	Name() string
	Embed(ctx context.Context, model string, text string, taskType string) ([]float32, error)
}

type IGenerator interface {
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
}

type IEmbedder interface {
	Embed(ctx context.Context, text string, taskType string) ([]float32, error)
	ModelName() string
}

type generator struct {
	provider IGenerateProvider
	model    string
}

func NewGenerator(p IGenerateProvider, model string) IGenerator {
	return &generator{provider: p, model: model}
}

func (g *generator) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	return g.provider.Generate(ctx, g.model, prompt, opts)
}

type embedder struct {
	provider IEmbedProvider
	model    string
}

func NewEmbedder(p IEmbedProvider, model string) IEmbedder {
	return &embedder{provider: p, model: model}
}

func (e *embedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	return e.provider.Embed(ctx, e.model, text, taskType)
}

func (e *embedder) ModelName() string {
	return e.model
}

// WithGenerateTimeout bounds every generation call; the answer chain treats a
// deadline like any other provider failure.
func WithGenerateTimeout(g IGenerator, timeout time.Duration) IGenerator {
	if g == nil || timeout <= 0 {
		return g
	}
	return &timeoutGenerator{next: g, timeout: timeout}
}

type timeoutGenerator struct {
	next    IGenerator
	timeout time.Duration
}

func (t *timeoutGenerator) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Generate(ctx, prompt, opts)
}

// WithEmbedTimeout bounds every remote embedding call.
func WithEmbedTimeout(e IEmbedder, timeout time.Duration) IEmbedder {
	if e == nil || timeout <= 0 {
		return e
	}
	return &timeoutEmbedder{next: e, timeout: timeout}
}

type timeoutEmbedder struct {
	next    IEmbedder
	timeout time.Duration
}

func (t *timeoutEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Embed(ctx, text, taskType)
}

func (t *timeoutEmbedder) ModelName() string {
	return t.next.ModelName()
}

type GenerateFactory func(args interface{}) (IGenerateProvider, error)
type EmbedFactory func(args interface{}) (IEmbedProvider, error)

var (
	genRegistry   = map[string]GenerateFactory{}
	embedRegistry = map[string]EmbedFactory{}
)

func Register(name string, factory GenerateFactory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	genRegistry[key] = factory
}

func RegisterEmbed(name string, factory EmbedFactory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	embedRegistry[key] = factory
}

func NewGenerateProvider(name string, args interface{}) (IGenerateProvider, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return nil, fmt.Errorf("ai.provider is required")
	}
	factory := genRegistry[key]
	if factory == nil {
		return nil, fmt.Errorf("unsupported ai provider: %s", name)
	}
	return factory(args)
}

func NewEmbedProvider(name string, args interface{}) (IEmbedProvider, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return nil, fmt.Errorf("ai.provider is required")
	}
	factory := embedRegistry[key]
	if factory == nil {
		return nil, fmt.Errorf("unsupported ai embed provider: %s", name)
	}
	return factory(args)
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return fmt.Errorf("ai provider config is required")
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode ai provider config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode ai provider config: %w", err)
	}
	return nil
}

package generate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/raphaelgruber/genvault-go/internal/config"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/bedrock"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// LLMGenerator renders artifact templates through a langchaingo model.
type LLMGenerator struct {
	llm       llms.Model
	modelName string
	templates map[string]string
	logger    *slog.Logger
}

// NewGenerator creates the configured generator: an LLM-backed one for real
// providers, or the static renderer for ProviderStatic.
func NewGenerator(ctx context.Context, cfg config.Config, logger *slog.Logger) (Generator, error) {
	if cfg.LLMProvider == config.ProviderStatic {
		return NewStaticGenerator(nil), nil
	}

	var model llms.Model
	var err error

	switch cfg.LLMProvider {
	case config.ProviderOllama:
		model, err = ollama.New(
			ollama.WithModel(cfg.LLMModel),
			ollama.WithServerURL(cfg.OllamaHost),
		)
		if err != nil {
			return nil, fmt.Errorf("create ollama model: %w", err)
		}

	case config.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OpenAI API key required")
		}
		model, err = openai.New(
			openai.WithToken(cfg.OpenAIAPIKey),
			openai.WithModel(cfg.LLMModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create openai model: %w", err)
		}

	case config.ProviderAnthropic:
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("Anthropic API key required")
		}
		model, err = anthropic.New(
			anthropic.WithToken(cfg.AnthropicAPIKey),
			anthropic.WithModel(cfg.LLMModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create anthropic model: %w", err)
		}

	case config.ProviderBedrock:
		awsCfg, cfgErr := awsconfig.LoadDefaultConfig(ctx)
		if cfgErr != nil {
			return nil, fmt.Errorf("load AWS config: %w", cfgErr)
		}
		client := bedrockruntime.NewFromConfig(awsCfg)
		model, err = bedrock.New(
			bedrock.WithClient(client),
			bedrock.WithModel(cfg.LLMModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create bedrock model: %w", err)
		}

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.LLMProvider)
	}

	return &LLMGenerator{
		llm:       model,
		modelName: cfg.LLMModel,
		templates: DefaultTemplates,
		logger:    logger,
	}, nil
}

// ArtifactTypes returns the supported artifact types, sorted.
func (g *LLMGenerator) ArtifactTypes() []string {
	return sortedTypes(g.templates)
}

// Supports reports whether artifactType can be generated.
func (g *LLMGenerator) Supports(artifactType string) bool {
	_, ok := g.templates[artifactType]
	return ok
}

// Generate renders one artifact by prompting the model with the artifact
// type's template as the system message.
func (g *LLMGenerator) Generate(ctx context.Context, artifactType, requestText string, options map[string]any) (string, error) {
	template, ok := g.templates[artifactType]
	if !ok {
		return "", fmt.Errorf("unsupported artifact type: %s", artifactType)
	}

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, template),
		llms.TextParts(llms.ChatMessageTypeHuman, buildPrompt(requestText, options)),
	}

	g.logger.Debug("invoking model", "model", g.modelName, "artifact_type", artifactType)
	response, err := g.llm.GenerateContent(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("generate: model returned no choices")
	}

	content := strings.TrimSpace(response.Choices[0].Content)
	if content == "" {
		return "", fmt.Errorf("generate: model produced no usable content")
	}
	return content, nil
}

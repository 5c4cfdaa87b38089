package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/platformbuilds/compara-core/internal/config"
	"github.com/platformbuilds/compara-core/internal/models"
	"github.com/platformbuilds/compara-core/internal/monitoring"
	"github.com/platformbuilds/compara-core/pkg/logger"
)

// OpenAINarrativeGenerator implements NarrativeGenerator against any
// OpenAI-compatible chat-completion endpoint.
type OpenAINarrativeGenerator struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	timeout     time.Duration
	topSegments int
	logger      logger.Logger
}

func NewOpenAINarrativeGenerator(cfg config.AIConfig, topSegments int, log logger.Logger) (*OpenAINarrativeGenerator, error) {
	if cfg.OpenAI.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	clientConfig := openai.DefaultConfig(cfg.OpenAI.APIKey)
	if cfg.OpenAI.BaseURL != "" {
		clientConfig.BaseURL = cfg.OpenAI.BaseURL
	}

	return &OpenAINarrativeGenerator{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       cfg.OpenAI.Model,
		maxTokens:   cfg.OpenAI.MaxTokens,
		temperature: cfg.OpenAI.Temperature,
		timeout:     cfg.Timeout(),
		topSegments: topSegments,
		logger:      log,
	}, nil
}

// narrativeResponse is the JSON shape the model is instructed to emit.
type narrativeResponse struct {
	Summary            string   `json:"summary"`
	RecommendedActions []string `json:"recommendedActions"`
	Confidence         float64  `json:"confidence"`
}

// GenerateNarrative submits the grounded prompt and parses the structured
// response. The call is bounded by the configured timeout; a timeout is a
// failure like any other and leaves fallback to the caller.
func (g *OpenAINarrativeGenerator) GenerateNarrative(ctx context.Context, req NarrativeRequest) (*models.BusinessNarrative, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	prompt := buildNarrativePrompt(req, g.topSegments)
	g.logger.Debug("Calling narrative model", "model", g.model, "prompt_chars", len(prompt))

	resp, err := g.client.CreateChatCompletion(timeoutCtx, openai.ChatCompletionRequest{
		Model:       g.model,
		MaxTokens:   g.maxTokens,
		Temperature: g.temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		monitoring.RecordNarrativeFailure("api_error")
		return nil, fmt.Errorf("%w: chat completion failed: %v", models.ErrNarrativeUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		monitoring.RecordNarrativeFailure("empty_response")
		return nil, fmt.Errorf("%w: model returned no choices", models.ErrNarrativeUnavailable)
	}

	parsed, err := parseNarrativeContent(resp.Choices[0].Message.Content)
	if err != nil {
		monitoring.RecordNarrativeFailure("malformed_response")
		return nil, fmt.Errorf("%w: %v", models.ErrNarrativeUnavailable, err)
	}

	g.logger.Info("Narrative generated", "model", g.model,
		"tokens_used", resp.Usage.TotalTokens, "actions", len(parsed.RecommendedActions))

	return &models.BusinessNarrative{
		Summary:            parsed.Summary,
		RecommendedActions: parsed.RecommendedActions,
		Language:           req.Language,
		GeneratedBy:        models.SourceAIModel,
		Confidence:         parsed.Confidence,
		GeneratedAt:        time.Now().UTC(),
	}, nil
}

// parseNarrativeContent decodes the model output, tolerating the code fences
// some models wrap JSON in despite JSON mode.
func parseNarrativeContent(content string) (*narrativeResponse, error) {
	trimmed := strings.TrimSpace(content)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	var parsed narrativeResponse
	if err := json.Unmarshal([]byte(trimmed), &parsed); err != nil {
		return nil, fmt.Errorf("malformed narrative JSON: %v", err)
	}
	if parsed.Summary == "" {
		return nil, fmt.Errorf("narrative JSON missing summary")
	}
	return &parsed, nil
}

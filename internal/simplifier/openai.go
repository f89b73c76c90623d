package simplifier

import (
	"context"
	"fmt"
	"strings"

	"github.com/easy-language-api/internal/config"
	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
)

const systemPrompt = `You rewrite text into easy language (plain, accessible language) for readers with limited literacy.
Rules:
- Short sentences, one statement per sentence.
- Common words only. Explain unavoidable technical terms.
- Keep the meaning. Do not add information.
- If the input contains HTML tags, keep the tags and only rewrite the text between them.
Answer with the rewritten text only.`

// OpenAIClient calls an OpenAI-compatible chat completion endpoint to
// produce easy-language text.
type OpenAIClient struct {
	client *openai.Client
	cfg    *config.SimplifyConfig
	log    zerolog.Logger
}

// NewOpenAIClient creates a client against api.openai.com or, when a
// base URL is configured, any OpenAI-compatible gateway.
func NewOpenAIClient(cfg *config.SimplifyConfig, log zerolog.Logger) *OpenAIClient {
	var client *openai.Client
	if cfg.BaseURL != "" {
		clientConfig := openai.DefaultConfig(cfg.APIKey)
		clientConfig.BaseURL = cfg.BaseURL
		client = openai.NewClientWithConfig(clientConfig)
	} else {
		client = openai.NewClient(cfg.APIKey)
	}

	return &OpenAIClient{
		client: client,
		cfg:    cfg,
		log:    log.With().Str("component", "simplifier").Str("provider", "openai").Logger(),
	}
}

func (c *OpenAIClient) Name() string {
	return "openai"
}

// Call simplifies one text. The configured call timeout bounds the
// request; the orchestrator imposes no further timeout of its own.
func (c *OpenAIClient) Call(ctx context.Context, text, sourceLang, targetLang string) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	defer cancel()

	userPrompt := fmt.Sprintf("Source language: %s\nTarget language variant: %s\n\nText:\n%s", sourceLang, targetLang, text)

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Temperature: 0.2,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("simplification call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("simplification call returned no choices (id %s)", resp.ID)
	}

	simplified := strings.TrimSpace(resp.Choices[0].Message.Content)
	if simplified == "" {
		return nil, fmt.Errorf("simplification call returned empty text (id %s)", resp.ID)
	}

	c.log.Debug().
		Str("job_id", resp.ID).
		Int("input_len", len(text)).
		Int("output_len", len(simplified)).
		Msg("Simplification produced")

	return &Result{Text: simplified, JobID: resp.ID}, nil
}

// MaxRequestsPerInterval returns the configured rate budget
func (c *OpenAIClient) MaxRequestsPerInterval() int {
	return c.cfg.MaxRequests
}

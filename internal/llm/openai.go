package llm

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

const openAISystemMessage = "You are an expert frontend engineer. Reply with one fenced html block containing a complete, self-contained HTML5 document and nothing else."

// OpenAIClient talks to any OpenAI-compatible chat completions API.
type OpenAIClient struct {
	client *openai.Client
	model  string
	log    *slog.Logger
}

func NewOpenAIClient(apiKey, baseURL, model string, httpClient *http.Client, log *slog.Logger) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	if log == nil {
		log = slog.Default()
	}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		log:    log,
	}
}

func (c *OpenAIClient) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: openAISystemMessage},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: nonZero32(opts.Temperature),
		TopP:        nonZero32(opts.TopP),
		Seed:        opts.Seed,
	}
	if opts.MaxTokens != nil {
		req.MaxTokens = *opts.MaxTokens
	}

	start := time.Now()
	c.log.Debug("llm.openai.request", "model", c.model, "prompt_len", len(prompt))

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		c.log.Error("llm.openai.error", "err", err, "model", c.model, "elapsed_ms", time.Since(start).Milliseconds())
		return "", fmt.Errorf("%w: chat completion: %w", ErrTransport, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices in chat completion", ErrInvalidResponse)
	}

	content := resp.Choices[0].Message.Content
	c.log.Info("llm.openai.response",
		"model", resp.Model,
		"tokens_used", resp.Usage.TotalTokens,
		"response_length", len(content),
		"response_preview", preview(content, 120),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return content, nil
}

// Ping lists models, which every compatible server exposes without side effects.
func (c *OpenAIClient) Ping(ctx context.Context) error {
	if _, err := c.client.ListModels(ctx); err != nil {
		return fmt.Errorf("%w: list models: %w", ErrTransport, err)
	}
	return nil
}

// nonZero32 keeps an explicit zero on the wire; go-openai omits zero-valued
// sampling fields and the server would then apply its own default.
func nonZero32(v float64) float32 {
	if v == 0 {
		return math.SmallestNonzeroFloat32
	}
	return float32(v)
}

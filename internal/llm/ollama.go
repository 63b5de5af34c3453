package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// OllamaClient calls the native Ollama generate endpoint. go-openai cannot send
// num_ctx, so the request is built by hand.
type OllamaClient struct {
	baseURL    string
	model      string
	httpClient *http.Client
	log        *slog.Logger
}

func NewOllamaClient(baseURL, model string, httpClient *http.Client, log *slog.Logger) *OllamaClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if log == nil {
		log = slog.Default()
	}
	return &OllamaClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: httpClient,
		log:        log,
	}
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
	NumCtx      *int    `json:"num_ctx,omitempty"`
	NumPredict  *int    `json:"num_predict,omitempty"`
	Seed        *int    `json:"seed,omitempty"`
}

type ollamaGenerateRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaGenerateResponse struct {
	Response *string `json:"response"`
	Error    string  `json:"error,omitempty"`
}

func (c *OllamaClient) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	payload := ollamaGenerateRequest{
		Model:  c.model,
		Prompt: prompt,
		Stream: false,
		Options: ollamaOptions{
			Temperature: opts.Temperature,
			TopP:        opts.TopP,
			NumCtx:      opts.ContextSize,
			NumPredict:  opts.MaxTokens,
			Seed:        opts.Seed,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode ollama request: %w", err)
	}

	url := c.baseURL + "/api/generate"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: build ollama request: %w", ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	c.log.Debug("llm.ollama.request", "url", url, "model", c.model, "prompt_len", len(prompt))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Error("llm.ollama.send_error", "err", err, "elapsed_ms", time.Since(start).Milliseconds())
		return "", fmt.Errorf("%w: HTTP error calling Ollama: %w", ErrTransport, err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			c.log.Warn("llm.ollama.body_close_error", "err", err)
		}
	}(resp.Body)

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read ollama response: %w", ErrTransport, err)
	}

	c.log.Info("llm.ollama.response",
		"status", resp.StatusCode,
		"bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("%w: HTTP error calling Ollama: status %d: %s",
			ErrTransport, resp.StatusCode, preview(strings.TrimSpace(string(raw)), 200))
	}

	var out ollamaGenerateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("%w: Ollama returned an invalid payload: %w", ErrInvalidResponse, err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("%w: Ollama reported an error: %s", ErrTransport, out.Error)
	}
	if out.Response == nil {
		return "", fmt.Errorf("%w: Ollama returned an invalid payload: missing 'response' string", ErrInvalidResponse)
	}
	return *out.Response, nil
}

// Ping checks that the Ollama daemon answers on /api/tags.
func (c *OllamaClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("%w: build ping request: %w", ErrTransport, err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: ping ollama: %w", ErrTransport, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("%w: ping ollama: status %d", ErrTransport, resp.StatusCode)
	}
	return nil
}

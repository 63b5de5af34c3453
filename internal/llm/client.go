// Package llm talks to the text-generation backend that writes HTML pages.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/fedutinova/pagegen/internal/config"
	"github.com/fedutinova/pagegen/internal/job"
)

var (
	ErrTransport       = errors.New("model transport error")
	ErrInvalidResponse = errors.New("model returned an invalid payload")
)

// Generator produces raw model output for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts Options) (string, error)
}

// Pinger is implemented by backends that can report their own availability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options are the sampling knobs sent with every request. Nil pointers are left
// for the backend to decide.
type Options struct {
	Temperature float64
	TopP        float64
	Seed        *int
	ContextSize *int
	MaxTokens   *int
}

// Defaults fill in whatever a request leaves unset.
type Defaults struct {
	Temperature float64
	TopP        float64
	ContextSize int
	MaxTokens   int
}

func DefaultDefaults() Defaults {
	return Defaults{
		Temperature: 0.35,
		TopP:        0.95,
		ContextSize: 4096,
		MaxTokens:   512,
	}
}

func OptionsFromRequest(req job.Request, d Defaults) Options {
	opts := Options{
		Temperature: d.Temperature,
		TopP:        d.TopP,
		Seed:        req.Seed,
		ContextSize: req.ContextSize,
		MaxTokens:   req.MaxTokens,
	}
	if req.Temperature != nil {
		opts.Temperature = *req.Temperature
	}
	if req.TopP != nil {
		opts.TopP = *req.TopP
	}
	if opts.ContextSize == nil && d.ContextSize > 0 {
		n := d.ContextSize
		opts.ContextSize = &n
	}
	if opts.MaxTokens == nil && d.MaxTokens > 0 {
		n := d.MaxTokens
		opts.MaxTokens = &n
	}
	return opts
}

// NewGenerator builds the backend selected by LLM_PROVIDER.
func NewGenerator(cfg config.Config, log *slog.Logger) (Generator, error) {
	if log == nil {
		log = slog.Default()
	}
	// per-attempt deadlines come from the caller's context; this only bounds idle connections
	httpClient := &http.Client{
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	switch cfg.LLMProvider {
	case "", "ollama":
		log.Info("using ollama backend", "base_url", cfg.OllamaBaseURL, "model", cfg.OllamaModel)
		return NewOllamaClient(cfg.OllamaBaseURL, cfg.OllamaModel, httpClient, log), nil
	case "openai":
		if cfg.OpenAIAPIKey == "" && cfg.OpenAIBaseURL == "" {
			return nil, fmt.Errorf("openai provider requires OPENAI_API_KEY or OPENAI_BASE_URL")
		}
		log.Info("using openai-compatible backend", "base_url", cfg.OpenAIBaseURL, "model", cfg.OpenAIModel)
		return NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel, httpClient, log), nil
	default:
		return nil, fmt.Errorf("unknown LLM_PROVIDER %q", cfg.LLMProvider)
	}
}

func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOpenAIServer(t *testing.T, handler func(w http.ResponseWriter, body map[string]any)) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		handler(w, body)
	})
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[{"id":"gpt-4o-mini","object":"model"}]}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIClient_Generate(t *testing.T) {
	var got map[string]any
	srv := newOpenAIServer(t, func(w http.ResponseWriter, body map[string]any) {
		got = body
		_, _ = w.Write([]byte(`{
			"id":"chatcmpl-1","object":"chat.completion","model":"gpt-4o-mini",
			"choices":[{"index":0,"message":{"role":"assistant","content":"` + "```html\\n<p>hi</p>\\n```" + `"},"finish_reason":"stop"}],
			"usage":{"prompt_tokens":10,"completion_tokens":5,"total_tokens":15}
		}`))
	})

	c := NewOpenAIClient("sk-test", srv.URL+"/v1", "gpt-4o-mini", srv.Client(), nil)
	out, err := c.Generate(context.Background(), "build a page", Options{
		Temperature: 0.5,
		TopP:        0.9,
		Seed:        intPtr(3),
		MaxTokens:   intPtr(256),
	})
	require.NoError(t, err)
	assert.Equal(t, "```html\n<p>hi</p>\n```", out)

	assert.Equal(t, "gpt-4o-mini", got["model"])
	assert.Equal(t, float64(3), got["seed"])
	assert.Equal(t, float64(256), got["max_tokens"])
	msgs := got["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	user := msgs[1].(map[string]any)
	assert.Equal(t, "user", user["role"])
	assert.Equal(t, "build a page", user["content"])
}

func TestOpenAIClient_ZeroSamplingIsSent(t *testing.T) {
	var got map[string]any
	srv := newOpenAIServer(t, func(w http.ResponseWriter, body map[string]any) {
		got = body
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","model":"m",
			"choices":[{"index":0,"message":{"role":"assistant","content":"ok"},"finish_reason":"stop"}]}`))
	})

	_, err := NewOpenAIClient("sk-test", srv.URL+"/v1", "m", srv.Client(), nil).
		Generate(context.Background(), "p", Options{Temperature: 0, TopP: 0})
	require.NoError(t, err)

	require.Contains(t, got, "temperature")
	require.Contains(t, got, "top_p")
	assert.InDelta(t, 0, got["temperature"], 1e-9)
	assert.InDelta(t, 0, got["top_p"], 1e-9)
}

func TestOpenAIClient_NoChoices(t *testing.T) {
	srv := newOpenAIServer(t, func(w http.ResponseWriter, _ map[string]any) {
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","model":"m","choices":[]}`))
	})

	_, err := NewOpenAIClient("sk-test", srv.URL+"/v1", "m", srv.Client(), nil).
		Generate(context.Background(), "p", Options{})
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestOpenAIClient_APIError(t *testing.T) {
	srv := newOpenAIServer(t, func(w http.ResponseWriter, _ map[string]any) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited","type":"rate_limit"}}`))
	})

	_, err := NewOpenAIClient("sk-test", srv.URL+"/v1", "m", srv.Client(), nil).
		Generate(context.Background(), "p", Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransport)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestOpenAIClient_Ping(t *testing.T) {
	srv := newOpenAIServer(t, func(w http.ResponseWriter, _ map[string]any) {})
	c := NewOpenAIClient("sk-test", srv.URL+"/v1", "m", srv.Client(), nil)
	assert.NoError(t, c.Ping(context.Background()))
}

package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulseboard/pulse/internal/httpclient"
	"github.com/pulseboard/pulse/providers/llm"
)

func TestIsReasoningModel(t *testing.T) {
	tests := []struct {
		model string
		want  bool
	}{
		{"gpt-4o", false},
		{"gpt-4o-mini", false},
		{"gpt-5-mini", true},
		{"O3-mini", true},
		{"o1", true},
		{"llama3", false},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			assert.Equal(t, tt.want, IsReasoningModel(tt.model))
		})
	}
}

func TestRequestBody(t *testing.T) {
	standard, err := New(Config{APIKey: "sk-test", Model: "gpt-4o"})
	require.NoError(t, err)
	body := standard.requestBody(llm.Prompt{User: "hi", Temperature: 0.3})
	assert.Equal(t, 1024, body["max_tokens"])
	assert.Equal(t, float32(0.3), body["temperature"])
	assert.NotContains(t, body, "max_completion_tokens")

	reasoning, err := New(Config{APIKey: "sk-test", Model: "o3-mini"})
	require.NoError(t, err)
	body = reasoning.requestBody(llm.Prompt{User: "hi", MaxTokens: 200, Temperature: 0.3})
	assert.Equal(t, 1000, body["max_completion_tokens"])
	assert.NotContains(t, body, "temperature")
	assert.NotContains(t, body, "max_tokens")
}

func TestComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var body struct {
			Model    string        `json:"model"`
			Messages []chatMessage `json:"messages"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-4o-mini", body.Model)
		assert.Equal(t, []chatMessage{
			{Role: "system", Content: "Be brief."},
			{Role: "user", Content: "Summarise revenue."},
		}, body.Messages)

		_, _ = w.Write([]byte(`{
			"model": "gpt-4o-mini-2024-07-18",
			"choices": [{"message": {"role": "assistant", "content": "Revenue grew 4%."}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 5, "total_tokens": 17}
		}`))
	}))
	defer server.Close()

	c, err := New(Config{APIKey: "sk-test", BaseURL: server.URL + "/v1/"})
	require.NoError(t, err)

	got, err := c.Complete(context.Background(), llm.Prompt{System: "Be brief.", User: "Summarise revenue."})
	require.NoError(t, err)
	assert.Equal(t, &llm.Completion{
		Provider: "openai",
		Model:    "gpt-4o-mini-2024-07-18",
		Text:     "Revenue grew 4%.",
		Usage:    llm.Usage{PromptTokens: 12, CompletionTokens: 5, TotalTokens: 17},
	}, got)
}

func TestComplete_Errors(t *testing.T) {
	t.Run("invalid prompt", func(t *testing.T) {
		c, err := New(Config{APIKey: "sk-test"})
		require.NoError(t, err)
		_, err = c.Complete(context.Background(), llm.Prompt{})
		assert.ErrorIs(t, err, llm.ErrInvalidPrompt)
	})

	t.Run("unauthorized", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":{"message":"bad key"}}`, http.StatusUnauthorized)
		}))
		defer server.Close()

		c, err := New(Config{APIKey: "sk-test", BaseURL: server.URL})
		require.NoError(t, err)
		_, err = c.Complete(context.Background(), llm.Prompt{User: "hi"})
		assert.True(t, httpclient.IsStatus(err, http.StatusUnauthorized))
	})

	t.Run("empty output", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"choices":[{"message":{"content":""},"finish_reason":"length"}]}`))
		}))
		defer server.Close()

		c, err := New(Config{APIKey: "sk-test", BaseURL: server.URL, Model: "o1"})
		require.NoError(t, err)
		_, err = c.Complete(context.Background(), llm.Prompt{User: "hi"})
		assert.ErrorContains(t, err, "token budget")
	})
}

func TestNew_RequiresKey(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

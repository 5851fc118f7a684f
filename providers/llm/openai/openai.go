// Package openai completes prompts with the OpenAI chat completions API or
// any server that speaks it.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pulseboard/pulse/internal/config"
	"github.com/pulseboard/pulse/internal/httpclient"
	"github.com/pulseboard/pulse/internal/logging"
	"github.com/pulseboard/pulse/providers/llm"
	"github.com/pulseboard/pulse/registry"
)

const (
	EnvAPIKey  = "OPENAI_API_KEY"
	EnvBaseURL = "OPENAI_BASE_URL"
	EnvModel   = "OPENAI_MODEL"

	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4o-mini"

	defaultMaxTokens = 1024
)

// DefaultReasoningTokenMultiplier scales the token budget for reasoning
// models, which spend hidden chain-of-thought tokens out of
// max_completion_tokens.
const DefaultReasoningTokenMultiplier = 5

var reasoningModelPrefixes = []string{"gpt-5", "o1", "o3", "o4"}

func init() {
	llm.Contribute("openai", llm.Candidate{
		Name:         "openai",
		DisplayName:  "OpenAI",
		IsConfigured: IsConfigured,
		New: func() (llm.Model, error) {
			return New(Config{
				APIKey:  config.Get(EnvAPIKey, ""),
				BaseURL: config.Get(EnvBaseURL, DefaultBaseURL),
				Model:   config.Get(EnvModel, DefaultModel),
				Timeout: 180 * time.Second,
			})
		},
	})
}

// IsConfigured reports whether OPENAI_API_KEY is set.
func IsConfigured() bool {
	return config.Present(EnvAPIKey)
}

// IsReasoningModel reports whether model takes max_completion_tokens and
// rejects temperature. Matching is case-insensitive by prefix.
func IsReasoningModel(model string) bool {
	lower := strings.ToLower(model)
	for _, prefix := range reasoningModelPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

// Config selects the endpoint and model. Empty fields take the package
// defaults.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration

	// ReasoningTokenMultiplier overrides DefaultReasoningTokenMultiplier
	// when positive.
	ReasoningTokenMultiplier int
}

// Client implements llm.Model.
type Client struct {
	cfg    Config
	client *httpclient.BaseClient
	logger registry.Logger
}

// New creates a client. It fails only when the API key is missing.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: %s is required", EnvAPIKey)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.ReasoningTokenMultiplier <= 0 {
		cfg.ReasoningTokenMultiplier = DefaultReasoningTokenMultiplier
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	logger := logging.Default().With("openai", map[string]interface{}{"model": cfg.Model})
	return &Client{
		cfg:    cfg,
		client: httpclient.New("openai", cfg.Timeout, logger),
		logger: logger,
	}, nil
}

func (c *Client) Name() string        { return "openai" }
func (c *Client) DisplayName() string { return "OpenAI" }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage llm.Usage `json:"usage"`
}

// Complete calls /chat/completions with the user message, preceded by the
// system message when one is set.
func (c *Client) Complete(ctx context.Context, p llm.Prompt) (*llm.Completion, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	req, err := httpclient.NewJSONRequest(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", c.requestBody(p))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	start := time.Now()
	var resp chatResponse
	if err := c.client.DoJSON(ctx, req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("openai: response has no choices")
	}

	choice := resp.Choices[0]
	if strings.TrimSpace(choice.Message.Content) == "" && choice.FinishReason == "length" {
		return nil, errors.New("openai: token budget exhausted before any output was produced")
	}

	model := resp.Model
	if model == "" {
		model = c.cfg.Model
	}
	c.logger.Debug("Completion received", map[string]interface{}{
		"total_tokens": resp.Usage.TotalTokens,
		"duration_ms":  time.Since(start).Milliseconds(),
	})
	return &llm.Completion{
		Provider: c.Name(),
		Model:    model,
		Text:     choice.Message.Content,
		Usage:    resp.Usage,
	}, nil
}

func (c *Client) requestBody(p llm.Prompt) map[string]interface{} {
	messages := make([]chatMessage, 0, 2)
	if p.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: p.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: p.User})

	maxTokens := p.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}

	body := map[string]interface{}{
		"model":    c.cfg.Model,
		"messages": messages,
	}
	if IsReasoningModel(c.cfg.Model) {
		body["max_completion_tokens"] = maxTokens * c.cfg.ReasoningTokenMultiplier
	} else {
		body["max_tokens"] = maxTokens
		body["temperature"] = p.Temperature
	}
	return body
}

// Package llm defines the text completion contract used to summarise
// reports.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pulseboard/pulse/registry"
)

// DomainKey is the key this contract is registered under.
const DomainKey = "llm"

// Extensions is the namespace model providers contribute to.
var Extensions = registry.NewNamespace("providers/llm")

// ErrInvalidPrompt is returned for a prompt no model should be sent.
var ErrInvalidPrompt = errors.New("invalid prompt")

// Model completes prompts.
type Model interface {
	registry.Provider

	// Complete returns the model's answer to p.
	Complete(ctx context.Context, p Prompt) (*Completion, error)
}

// Candidate describes a model provider before activation.
type Candidate = registry.Candidate[Model]

// Contribute adds a model module to the llm namespace.
func Contribute(id string, c Candidate) {
	Extensions.Contribute(id, func() ([]any, error) {
		return []any{c}, nil
	})
}

// Prompt is a single-turn request. MaxTokens zero means the provider
// default; Temperature must be within [0, 2].
type Prompt struct {
	System      string  `json:"system,omitempty"`
	User        string  `json:"user"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float32 `json:"temperature,omitempty"`
}

// Validate requires a user message and checks the sampling parameters.
func (p Prompt) Validate() error {
	switch {
	case strings.TrimSpace(p.User) == "":
		return fmt.Errorf("%w: user message is required", ErrInvalidPrompt)
	case p.MaxTokens < 0:
		return fmt.Errorf("%w: max_tokens %d is negative", ErrInvalidPrompt, p.MaxTokens)
	case p.Temperature < 0 || p.Temperature > 2:
		return fmt.Errorf("%w: temperature %.2f outside [0, 2]", ErrInvalidPrompt, p.Temperature)
	}
	return nil
}

// Usage counts tokens billed for one completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Completion is the model output for one prompt.
type Completion struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Text     string `json:"text"`
	Usage    Usage  `json:"usage"`
}

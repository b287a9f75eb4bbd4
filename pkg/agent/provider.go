package agent

import (
	"context"
	"fmt"

	"github.com/harun/veda/internal/config"
	"github.com/harun/veda/pkg/history"
	"github.com/harun/veda/pkg/tokens"
)

// ModelClient streams one model response. onChunk is invoked for each
// incremental text delta; the full response is returned once the stream
// ends.
type ModelClient interface {
	Stream(ctx context.Context, request Request, onChunk func(StreamChunk)) (*Response, error)

	// Provider returns the provider name
	Provider() string
}

// Request contains the parameters for one model call
type Request struct {
	Model        string
	SystemPrompt string
	Messages     []history.Message
	Tools        []ToolSpec
	Temperature  float64
	MaxTokens    int
}

// ToolSpec describes a tool exposed to the model
type ToolSpec struct {
	Name        string
	Description string
	InputSchema map[string]interface{}
}

// Response is the complete model response after streaming ends
type Response struct {
	Content   string
	ToolCalls []history.ToolCall
	Usage     tokens.Usage
}

// StreamChunk is one incremental text delta
type StreamChunk struct {
	Text string
}

// ClientFactory creates model clients from AI profiles.
type ClientFactory interface {
	NewClient(profile config.AIProfile) (ModelClient, error)
}

// DefaultClientFactory creates SDK-backed clients
type DefaultClientFactory struct{}

// NewClient creates a model client for the profile's provider
func (f *DefaultClientFactory) NewClient(profile config.AIProfile) (ModelClient, error) {
	if profile.APIKey == "" {
		return nil, fmt.Errorf("profile %s has no API key", profile.ID)
	}

	switch profile.Provider {
	case "anthropic":
		return NewAnthropicClient(profile.APIKey), nil
	case "openai":
		return NewOpenAIClient(profile.APIKey), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", profile.Provider)
	}
}

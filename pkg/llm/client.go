// Package llm routes engine tasks to configured model roles and is the only
// path by which other components reach an external LLM.
package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/deepthink-ai/deepthink/pkg/config"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat message sent to a model.
type Message struct {
	Role    string
	Content string
}

// System builds a system message.
func System(content string) Message { return Message{Role: RoleSystem, Content: content} }

// User builds a user message.
func User(content string) Message { return Message{Role: RoleUser, Content: content} }

// Assistant builds an assistant message.
func Assistant(content string) Message { return Message{Role: RoleAssistant, Content: content} }

// ErrEmptyCompletion indicates the provider returned no choices.
var ErrEmptyCompletion = errors.New("empty completion from provider")

// roleClient wraps one OpenAI-compatible client bound to a configured role.
// Safe for concurrent invocation: the underlying SDK client is stateless
// per-call.
type roleClient struct {
	role   string
	client openai.Client
	cfg    *config.RoleConfig
}

// newRoleClient resolves the role against the registry and constructs its
// provider client. A missing API key fails here with a descriptive error.
func newRoleClient(registry *config.LLMRegistry, role string) (*roleClient, error) {
	roleCfg, providerCfg, apiKey, err := registry.Resolve(role)
	if err != nil {
		return nil, fmt.Errorf("resolving LLM role %s: %w", role, err)
	}
	client := openai.NewClient(
		option.WithBaseURL(providerCfg.BaseURL),
		option.WithAPIKey(apiKey),
	)
	return &roleClient{role: role, client: client, cfg: roleCfg}, nil
}

// complete performs one chat completion and returns the assistant text.
func (c *roleClient) complete(ctx context.Context, messages []Message) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.cfg.Model),
		Messages: toOpenAIMessages(messages),
	}
	if c.cfg.Temperature != nil {
		params.Temperature = openai.Float(*c.cfg.Temperature)
	}
	if c.cfg.MaxTokens != nil {
		params.MaxTokens = openai.Int(*c.cfg.MaxTokens)
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("chat completion (role %s, model %s): %w", c.role, c.cfg.Model, err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("%w (role %s)", ErrEmptyCompletion, c.role)
	}
	return completion.Choices[0].Message.Content, nil
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

// Package llm builds langchaingo models from presets and converts chat
// history and MCP tools into the shapes langchaingo expects.
package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/bedrock"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/isaacphi/mcpchat/internal/config"
	"github.com/isaacphi/mcpchat/internal/domain"
)

// Factory creates the model behind a preset
type Factory func(ctx context.Context, preset config.ModelPreset) (llms.Model, error)

// NewFactory returns a Factory that authenticates with keys. Empty keys fall
// back to the provider SDK's own environment lookup.
func NewFactory(keys config.Keys) Factory {
	return func(ctx context.Context, preset config.ModelPreset) (llms.Model, error) {
		return createLLMClient(ctx, preset, keys)
	}
}

func createLLMClient(ctx context.Context, modelCfg config.ModelPreset, keys config.Keys) (llms.Model, error) {
	var llm llms.Model
	var err error

	switch modelCfg.Provider {
	case "openai":
		opts := []openai.Option{openai.WithModel(modelCfg.Name)}
		if keys.OpenAI != "" {
			opts = append(opts, openai.WithToken(keys.OpenAI))
		}
		if modelCfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(modelCfg.BaseURL))
		}
		llm, err = openai.New(opts...)
	case "anthropic":
		opts := []anthropic.Option{anthropic.WithModel(modelCfg.Name)}
		if keys.Anthropic != "" {
			opts = append(opts, anthropic.WithToken(keys.Anthropic))
		}
		if modelCfg.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(modelCfg.BaseURL))
		}
		llm, err = anthropic.New(opts...)
	case "googleai":
		llm, err = googleai.New(
			ctx,
			googleai.WithDefaultModel(modelCfg.Name),
			googleai.WithAPIKey(keys.Gemini),
		)
	case "bedrock":
		// Credentials and region come from the AWS default chain
		llm, err = bedrock.New(bedrock.WithModel(modelCfg.Name))
	case "ollama":
		opts := []ollama.Option{ollama.WithModel(modelCfg.Name)}
		if modelCfg.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(modelCfg.BaseURL))
		}
		llm, err = ollama.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", modelCfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", modelCfg.Provider, err)
	}

	return llm, nil
}

// BuildMessages assembles the system prompt, prior history and the new user
// message into a langchaingo conversation.
func BuildMessages(systemPrompt string, history []domain.Message, content string) []llms.MessageContent {
	msgs := make([]llms.MessageContent, 0, len(history)+2)
	if systemPrompt != "" {
		msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt))
	}
	msgs = append(msgs, buildMessageHistory(history)...)
	return append(msgs, llms.TextParts(llms.ChatMessageTypeHuman, content))
}

func buildMessageHistory(messages []domain.Message) []llms.MessageContent {
	var history []llms.MessageContent
	for _, msg := range messages {
		if msg.Content == "" {
			continue
		}
		role := llms.ChatMessageTypeHuman
		if msg.Role == domain.RoleAssistant {
			role = llms.ChatMessageTypeAI
		}
		history = append(history, llms.TextParts(role, msg.Content))
	}
	return history
}

// ConvertTools exposes MCP tools to the model as functions named server__tool
func ConvertTools(tools []domain.Tool) []llms.Tool {
	result := make([]llms.Tool, 0, len(tools))
	for _, tool := range tools {
		result = append(result, llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        tool.FullName,
				Description: tool.Description,
				Parameters:  convertParameters(tool.Parameters),
			},
		})
	}
	return result
}

func convertParameters(params domain.Parameters) map[string]any {
	properties := make(map[string]any)
	for name, prop := range params.Properties {
		properties[name] = convertProperty(prop)
	}

	typ := params.Type
	if typ == "" {
		typ = "object"
	}
	required := params.Required
	if required == nil {
		required = []string{}
	}
	return map[string]any{
		"type":       typ,
		"properties": properties,
		"required":   required,
	}
}

func convertProperty(prop domain.Property) map[string]any {
	result := map[string]any{
		"type": prop.Type,
	}
	if prop.Description != "" {
		result["description"] = prop.Description
	}
	if len(prop.Enum) > 0 {
		result["enum"] = prop.Enum
	}
	if prop.Default != nil {
		result["default"] = prop.Default
	}

	if prop.Type == "array" && prop.Items != nil {
		result["items"] = convertProperty(*prop.Items)
	}

	if prop.Type == "object" && len(prop.Properties) > 0 {
		nested := make(map[string]any)
		for name, p := range prop.Properties {
			nested[name] = convertProperty(p)
		}
		result["properties"] = nested
		if len(prop.Required) > 0 {
			result["required"] = prop.Required
		}
	}

	return result
}

// CallOptions translates generation settings into langchaingo call options
func CallOptions(temperature float64, maxTokens int, tools []llms.Tool, stream func(ctx context.Context, chunk []byte) error) []llms.CallOption {
	opts := []llms.CallOption{
		llms.WithTemperature(temperature),
	}
	if maxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(maxTokens))
	}
	if len(tools) > 0 {
		opts = append(opts, llms.WithTools(tools))
	}
	if stream != nil {
		opts = append(opts, llms.WithStreamingFunc(stream))
	}
	return opts
}

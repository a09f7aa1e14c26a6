package agent

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/isaacphi/mcpchat/internal/domain"
)

// collect merges the text and tool calls of every choice. Some providers
// return text and tool use as separate choices.
func collect(choices []*llms.ContentChoice) (string, []llms.ToolCall) {
	var text strings.Builder
	var calls []llms.ToolCall
	for _, choice := range choices {
		if choice == nil {
			continue
		}
		text.WriteString(choice.Content)
		for _, tc := range choice.ToolCalls {
			if tc.FunctionCall == nil {
				continue
			}
			calls = append(calls, tc)
		}
	}
	return text.String(), calls
}

func selectionLabel(calls []llms.ToolCall) string {
	names := make([]string, 0, len(calls))
	seen := make(map[string]bool, len(calls))
	for _, c := range calls {
		if seen[c.FunctionCall.Name] {
			continue
		}
		seen[c.FunctionCall.Name] = true
		names = append(names, c.FunctionCall.Name)
	}
	return "Selected tools: " + strings.Join(names, ", ")
}

// aiMessage is the assistant turn that requested the tool calls
func aiMessage(text string, calls []llms.ToolCall) llms.MessageContent {
	parts := make([]llms.ContentPart, 0, len(calls)+1)
	if text != "" {
		parts = append(parts, llms.TextContent{Text: text})
	}
	for _, c := range calls {
		parts = append(parts, llms.ToolCall{
			ID:   c.ID,
			Type: "function",
			FunctionCall: &llms.FunctionCall{
				Name:      c.FunctionCall.Name,
				Arguments: c.FunctionCall.Arguments,
			},
		})
	}
	return llms.MessageContent{Role: llms.ChatMessageTypeAI, Parts: parts}
}

func parseArguments(raw string) (map[string]interface{}, error) {
	if strings.TrimSpace(raw) == "" {
		return map[string]interface{}{}, nil
	}
	var args map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("invalid argument format: %w", err)
	}
	if args == nil {
		args = map[string]interface{}{}
	}
	return args, nil
}

// validateArguments checks if the provided arguments match the tool's schema
func validateArguments(args map[string]interface{}, tool domain.Tool) error {
	for _, required := range tool.Parameters.Required {
		if _, exists := args[required]; !exists {
			return fmt.Errorf("missing required parameter: %s", required)
		}
	}

	for name, value := range args {
		prop, exists := tool.Parameters.Properties[name]
		if !exists {
			return fmt.Errorf("unknown parameter: %s", name)
		}
		// Null means "not provided" and is filtered before the call
		if value == nil {
			continue
		}

		switch prop.Type {
		case "string":
			if _, ok := value.(string); !ok {
				return fmt.Errorf("parameter %s must be a string", name)
			}
		case "number":
			if _, ok := value.(float64); !ok {
				return fmt.Errorf("parameter %s must be a number", name)
			}
		case "integer":
			if f, ok := value.(float64); !ok || f != math.Trunc(f) {
				return fmt.Errorf("parameter %s must be an integer", name)
			}
		case "boolean":
			if _, ok := value.(bool); !ok {
				return fmt.Errorf("parameter %s must be a boolean", name)
			}
		case "array":
			if _, ok := value.([]interface{}); !ok {
				return fmt.Errorf("parameter %s must be an array", name)
			}
		case "object":
			if _, ok := value.(map[string]interface{}); !ok {
				return fmt.Errorf("parameter %s must be an object", name)
			}
		}

		if len(prop.Enum) > 0 {
			if strVal, ok := value.(string); ok {
				valid := false
				for _, enum := range prop.Enum {
					if strVal == enum {
						valid = true
						break
					}
				}
				if !valid {
					return fmt.Errorf("parameter %s must be one of: %v", name, prop.Enum)
				}
			}
		}
	}

	return nil
}

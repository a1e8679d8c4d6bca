package protocol

import (
	openai "github.com/sashabaranov/go-openai"

	"github.com/voyago-ai/voyago"
)

// ToolDefinitions converts tool schemas into the chat completion tool
// declarations the model expects.
func ToolDefinitions(schemas []voyago.ToolSchema) []openai.Tool {
	defs := make([]openai.Tool, 0, len(schemas))
	for _, schema := range schemas {
		defs = append(defs, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        schema.Name,
				Description: schema.Description,
				Parameters:  schema.Parameters,
			},
		})
	}
	return defs
}

// FromCompletionMessage converts a model reply into the internal message
// form, carrying any tool calls through undecoded.
func FromCompletionMessage(msg openai.ChatCompletionMessage) voyago.ChatMessage {
	out := voyago.ChatMessage{
		Role:    msg.Role,
		Content: msg.Content,
	}
	for _, tc := range msg.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, voyago.RawToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return out
}

// ToCompletionMessages converts an internal transcript into the request
// form for the chat completion API.
func ToCompletionMessages(transcript []voyago.ChatMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(transcript))
	for _, msg := range transcript {
		cm := openai.ChatCompletionMessage{
			Role:       msg.Role,
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
		}
		for _, tc := range msg.ToolCalls {
			cm.ToolCalls = append(cm.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		out = append(out, cm)
	}
	return out
}

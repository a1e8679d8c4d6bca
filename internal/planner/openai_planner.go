package planner

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/voyago-ai/voyago"
	"github.com/voyago-ai/voyago/internal/protocol"
)

// ChatCompleter is the slice of the OpenAI client the planner needs.
// *openai.Client satisfies it.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIPlanner asks the chat model to either answer a query directly or
// request a batch of tool calls. It implements voyago.Planner.
type OpenAIPlanner struct {
	client   ChatCompleter
	handler  voyago.ProtocolHandler
	prompts  *Registry
	cache    voyago.Cache
	model    string
	logger   *zap.Logger
}

// PlannerOption configures an OpenAIPlanner.
type PlannerOption func(*OpenAIPlanner)

// WithModel overrides the chat model.
func WithModel(model string) PlannerOption {
	return func(p *OpenAIPlanner) { p.model = model }
}

// WithCache enables caching of planner replies.
func WithCache(cache voyago.Cache) PlannerOption {
	return func(p *OpenAIPlanner) { p.cache = cache }
}

// WithPlannerLogger sets the logger.
func WithPlannerLogger(logger *zap.Logger) PlannerOption {
	return func(p *OpenAIPlanner) { p.logger = logger }
}

// NewOpenAIPlanner creates a planner backed by the given chat client.
// The protocol handler is used to fold tool results back into the
// transcript during Summarize.
func NewOpenAIPlanner(client ChatCompleter, handler voyago.ProtocolHandler, options ...PlannerOption) (*OpenAIPlanner, error) {
	if client == nil {
		return nil, fmt.Errorf("chat client is required")
	}
	if handler == nil {
		return nil, fmt.Errorf("protocol handler is required")
	}
	prompts, err := NewRegistry()
	if err != nil {
		return nil, err
	}
	p := &OpenAIPlanner{
		client:  client,
		handler: handler,
		prompts: prompts,
		model:   openai.GPT4oMini,
		logger:  zap.NewNop(),
	}
	for _, opt := range options {
		opt(p)
	}
	return p, nil
}

// Plan implements voyago.Planner.
func (p *OpenAIPlanner) Plan(ctx context.Context, input voyago.PlannerInput) (*voyago.PlanResult, error) {
	cacheKey := p.planCacheKey(input)
	if p.cache != nil {
		if cached, found := p.cache.Get(ctx, cacheKey); found {
			if result, ok := cached.(*voyago.PlanResult); ok {
				p.logger.Debug("planner cache hit", zap.String("key", cacheKey))
				return clonePlanResult(result), nil
			}
		}
	}

	system, err := p.prompts.Render(PromptPlan, struct{ Destination string }{Destination: input.Query.Destination})
	if err != nil {
		return nil, err
	}

	transcript := []voyago.ChatMessage{
		{Role: voyago.RoleSystem, Content: system},
		{Role: voyago.RoleUser, Content: input.Query.Raw},
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    p.model,
		Messages: protocol.ToCompletionMessages(transcript),
		Tools:    protocol.ToolDefinitions(input.Schemas),
	})
	if err != nil {
		return nil, fmt.Errorf("planner completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("planner completion returned no choices")
	}

	message := protocol.FromCompletionMessage(resp.Choices[0].Message)
	result := &voyago.PlanResult{
		Message:    message,
		Transcript: append(transcript, message),
	}
	if len(message.ToolCalls) == 0 {
		result.Answer = message.Content
	}

	if p.cache != nil {
		p.cache.Set(ctx, cacheKey, clonePlanResult(result))
	}
	return result, nil
}

// Summarize implements voyago.Planner. Each tool result is encoded back
// onto the transcript before the model is asked for closing prose.
func (p *OpenAIPlanner) Summarize(ctx context.Context, transcript []voyago.ChatMessage, results []voyago.ToolResult) (string, error) {
	messages := make([]voyago.ChatMessage, 0, len(transcript)+len(results)+1)
	messages = append(messages, transcript...)
	for _, result := range results {
		messages = append(messages, p.handler.EncodeResult(result))
	}
	summaryPrompt, err := p.prompts.Render(PromptSummarize, nil)
	if err != nil {
		return "", err
	}
	messages = append(messages, voyago.ChatMessage{Role: voyago.RoleUser, Content: summaryPrompt})

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    p.model,
		Messages: protocol.ToCompletionMessages(messages),
	})
	if err != nil {
		return "", fmt.Errorf("summary completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("summary completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// planCacheKey builds a stable key from the query and the tool surface.
// Turn index and session data are excluded so identical queries share a
// cached reply.
func (p *OpenAIPlanner) planCacheKey(input voyago.PlannerInput) string {
	schemaNames := make([]string, 0, len(input.Schemas))
	for _, schema := range input.Schemas {
		schemaNames = append(schemaNames, schema.Name)
	}
	cacheable := struct {
		Query       string   `json:"query"`
		Destination string   `json:"destination"`
		Tools       []string `json:"tools"`
	}{
		Query:       input.Query.Raw,
		Destination: input.Query.Destination,
		Tools:       schemaNames,
	}

	raw, err := json.Marshal(cacheable)
	if err != nil {
		p.logger.Warn("failed to marshal planner input for cache key", zap.Error(err))
		return "planner:" + input.Query.Raw
	}
	hasher := sha1.New()
	hasher.Write(raw)
	return "planner:" + hex.EncodeToString(hasher.Sum(nil))
}

func clonePlanResult(result *voyago.PlanResult) *voyago.PlanResult {
	clone := *result
	clone.Transcript = make([]voyago.ChatMessage, len(result.Transcript))
	copy(clone.Transcript, result.Transcript)
	return &clone
}

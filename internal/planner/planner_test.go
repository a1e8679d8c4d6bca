package planner

import (
	"context"
	"errors"
	"sync"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voyago-ai/voyago"
	"github.com/voyago-ai/voyago/internal/protocol"
)

// stubChat replays canned completions and records every request.
type stubChat struct {
	mu       sync.Mutex
	requests []openai.ChatCompletionRequest
	replies  []openai.ChatCompletionMessage
	err      error
}

func (s *stubChat) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if s.err != nil {
		return openai.ChatCompletionResponse{}, s.err
	}
	reply := s.replies[0]
	if len(s.replies) > 1 {
		s.replies = s.replies[1:]
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: reply}},
	}, nil
}

func (s *stubChat) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// mapCache is a minimal voyago.Cache for tests.
type mapCache struct {
	mu    sync.Mutex
	items map[string]interface{}
}

func newMapCache() *mapCache {
	return &mapCache{items: make(map[string]interface{})}
}

func (c *mapCache) Get(_ context.Context, key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.items[key]
	return v, ok
}

func (c *mapCache) Set(_ context.Context, key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = value
}

func schemas() []voyago.ToolSchema {
	return []voyago.ToolSchema{
		{Name: voyago.ToolWeather, Description: "weather", Parameters: map[string]interface{}{"type": "object"}},
		{Name: voyago.ToolImages, Description: "images", Parameters: map[string]interface{}{"type": "object"}},
	}
}

func newTestPlanner(t *testing.T, chat ChatCompleter, options ...PlannerOption) *OpenAIPlanner {
	t.Helper()
	codec := protocol.NewCodec([]string{voyago.ToolWeather, voyago.ToolImages, voyago.ToolSearch})
	p, err := NewOpenAIPlanner(chat, codec, options...)
	require.NoError(t, err)
	return p
}

func TestPlan_DirectAnswer(t *testing.T) {
	chat := &stubChat{replies: []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleAssistant, Content: "Oslo is lovely in spring."},
	}}
	p := newTestPlanner(t, chat)

	result, err := p.Plan(context.Background(), voyago.PlannerInput{
		Query:   voyago.Query{Raw: "Tell me about Oslo", Destination: "Oslo"},
		Schemas: schemas(),
	})
	require.NoError(t, err)
	assert.Equal(t, "Oslo is lovely in spring.", result.Answer)
	assert.Empty(t, result.Message.ToolCalls)
	require.Len(t, result.Transcript, 3)
	assert.Equal(t, voyago.RoleSystem, result.Transcript[0].Role)
	assert.Equal(t, voyago.RoleUser, result.Transcript[1].Role)
	assert.Equal(t, voyago.RoleAssistant, result.Transcript[2].Role)

	// The tool surface must reach the model.
	require.Len(t, chat.requests, 1)
	require.Len(t, chat.requests[0].Tools, 2)
	assert.Equal(t, voyago.ToolWeather, chat.requests[0].Tools[0].Function.Name)
}

func TestPlan_ToolCallsCarriedThrough(t *testing.T) {
	chat := &stubChat{replies: []openai.ChatCompletionMessage{
		{
			Role: openai.ChatMessageRoleAssistant,
			ToolCalls: []openai.ToolCall{
				{ID: "call-1", Type: openai.ToolTypeFunction, Function: openai.FunctionCall{Name: voyago.ToolWeather, Arguments: `{"city":"Oslo"}`}},
				{ID: "call-2", Type: openai.ToolTypeFunction, Function: openai.FunctionCall{Name: voyago.ToolImages, Arguments: `{"city":"Oslo"}`}},
			},
		},
	}}
	p := newTestPlanner(t, chat)

	result, err := p.Plan(context.Background(), voyago.PlannerInput{
		Query:   voyago.Query{Raw: "Tell me about Oslo", Destination: "Oslo"},
		Schemas: schemas(),
	})
	require.NoError(t, err)
	assert.Empty(t, result.Answer)
	require.Len(t, result.Message.ToolCalls, 2)
	assert.Equal(t, "call-1", result.Message.ToolCalls[0].ID)
	assert.Equal(t, voyago.ToolWeather, result.Message.ToolCalls[0].Name)
	assert.Equal(t, `{"city":"Oslo"}`, result.Message.ToolCalls[0].Arguments)
}

func TestPlan_CachesReplies(t *testing.T) {
	chat := &stubChat{replies: []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleAssistant, Content: "cached answer"},
	}}
	p := newTestPlanner(t, chat, WithCache(newMapCache()))

	input := voyago.PlannerInput{
		Query:   voyago.Query{Raw: "Tell me about Oslo", Destination: "Oslo"},
		Schemas: schemas(),
	}

	first, err := p.Plan(context.Background(), input)
	require.NoError(t, err)
	second, err := p.Plan(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, 1, chat.callCount())
	assert.Equal(t, first.Answer, second.Answer)

	// A different turn index must still share the cached reply.
	input.Query.TurnIndex = 7
	third, err := p.Plan(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, 1, chat.callCount())
	assert.Equal(t, first.Answer, third.Answer)
}

func TestPlan_DistinctQueriesMissCache(t *testing.T) {
	chat := &stubChat{replies: []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleAssistant, Content: "answer"},
	}}
	p := newTestPlanner(t, chat, WithCache(newMapCache()))

	_, err := p.Plan(context.Background(), voyago.PlannerInput{Query: voyago.Query{Raw: "Tell me about Oslo"}})
	require.NoError(t, err)
	_, err = p.Plan(context.Background(), voyago.PlannerInput{Query: voyago.Query{Raw: "Tell me about Lima"}})
	require.NoError(t, err)
	assert.Equal(t, 2, chat.callCount())
}

func TestPlan_CompletionFailure(t *testing.T) {
	chat := &stubChat{err: errors.New("rate limited")}
	p := newTestPlanner(t, chat)

	_, err := p.Plan(context.Background(), voyago.PlannerInput{Query: voyago.Query{Raw: "Tell me about Oslo"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestSummarize_FoldsToolResultsIntoTranscript(t *testing.T) {
	chat := &stubChat{replies: []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleAssistant, Content: "Oslo is cold but charming."},
	}}
	p := newTestPlanner(t, chat)

	transcript := []voyago.ChatMessage{
		{Role: voyago.RoleUser, Content: "Tell me about Oslo"},
		{Role: voyago.RoleAssistant, ToolCalls: []voyago.RawToolCall{
			{ID: "call-1", Name: voyago.ToolWeather, Arguments: `{"city":"Oslo"}`},
		}},
	}
	results := []voyago.ToolResult{
		{CallID: "call-1", Name: voyago.ToolWeather, OK: true, Payload: map[string]interface{}{"city": "Oslo"}},
	}

	summary, err := p.Summarize(context.Background(), transcript, results)
	require.NoError(t, err)
	assert.Equal(t, "Oslo is cold but charming.", summary)

	require.Len(t, chat.requests, 1)
	messages := chat.requests[0].Messages
	require.Len(t, messages, 4)
	assert.Equal(t, openai.ChatMessageRoleTool, messages[2].Role)
	assert.Equal(t, "call-1", messages[2].ToolCallID)
	assert.Equal(t, openai.ChatMessageRoleUser, messages[3].Role)
	assert.Contains(t, messages[3].Content, "2-3 sentence summary")
}

func TestOpenAIClassifier_ExtractDestination(t *testing.T) {
	chat := &stubChat{replies: []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleAssistant, Content: " Paris. "},
	}}
	c, err := NewOpenAIClassifier(chat)
	require.NoError(t, err)

	destination, err := c.ExtractDestination(context.Background(), "Tell me about Paris", nil)
	require.NoError(t, err)
	assert.Equal(t, "Paris", destination)
}

func TestOpenAIClassifier_NoneMeansNoDestination(t *testing.T) {
	for _, reply := range []string{"None", "none.", "Unknown", ""} {
		chat := &stubChat{replies: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleAssistant, Content: reply},
		}}
		c, err := NewOpenAIClassifier(chat)
		require.NoError(t, err)

		destination, err := c.ExtractDestination(context.Background(), "What is the weather?", nil)
		require.NoError(t, err)
		assert.Empty(t, destination, "reply %q", reply)
	}
}

func TestOpenAIClassifier_ServiceFailure(t *testing.T) {
	chat := &stubChat{err: errors.New("connection refused")}
	c, err := NewOpenAIClassifier(chat)
	require.NoError(t, err)

	_, err = c.ExtractDestination(context.Background(), "Tell me about Paris", nil)
	require.Error(t, err)
}

func TestRuleClassifier_ExtractDestination(t *testing.T) {
	c := NewRuleClassifier()
	cases := []struct {
		query string
		want  string
	}{
		{"Tell me about Paris", "Paris"},
		{"weather in Tokyo?", "Tokyo"},
		{"Visit new-york please", "New York"},
		{"", ""},
		{"   ", ""},
	}
	for _, tc := range cases {
		got, err := c.ExtractDestination(context.Background(), tc.query, nil)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "query %q", tc.query)
	}
}

func TestFormatCityName(t *testing.T) {
	assert.Equal(t, "Paris", FormatCityName("PARIS"))
	assert.Equal(t, "New York", FormatCityName("new york"))
	assert.Equal(t, "Los Angeles", FormatCityName("los-angeles"))
	assert.Equal(t, "", FormatCityName(""))
	// Multi-byte first letters must capitalize as runes, not bytes.
	assert.Equal(t, "Évora", FormatCityName("évora"))
	assert.Equal(t, "Łódź", FormatCityName("łódź"))
	assert.Equal(t, "São Paulo", FormatCityName("são paulo"))
}

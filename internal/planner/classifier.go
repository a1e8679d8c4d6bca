package planner

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/voyago-ai/voyago"
)

// noneReplies are model answers that mean "no destination mentioned".
var noneReplies = map[string]struct{}{
	"":        {},
	"none":    {},
	"unknown": {},
}

// OpenAIClassifier extracts the destination a query is about by asking
// the chat model. It implements voyago.Classifier.
type OpenAIClassifier struct {
	client  ChatCompleter
	prompts *Registry
	model   string
	logger  *zap.Logger
}

// ClassifierOption configures an OpenAIClassifier.
type ClassifierOption func(*OpenAIClassifier)

// WithClassifierModel overrides the chat model used for extraction.
func WithClassifierModel(model string) ClassifierOption {
	return func(c *OpenAIClassifier) { c.model = model }
}

// WithClassifierLogger sets the logger.
func WithClassifierLogger(logger *zap.Logger) ClassifierOption {
	return func(c *OpenAIClassifier) { c.logger = logger }
}

// NewOpenAIClassifier creates a classifier backed by the given chat client.
func NewOpenAIClassifier(client ChatCompleter, options ...ClassifierOption) (*OpenAIClassifier, error) {
	if client == nil {
		return nil, fmt.Errorf("chat client is required")
	}
	prompts, err := NewRegistry()
	if err != nil {
		return nil, err
	}
	c := &OpenAIClassifier{
		client:  client,
		prompts: prompts,
		model:   openai.GPT4oMini,
		logger:  zap.NewNop(),
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// ExtractDestination asks the model to name the destination in the query.
// ("", nil) means the query mentions no destination.
func (c *OpenAIClassifier) ExtractDestination(ctx context.Context, query string, session *voyago.SessionState) (string, error) {
	prompt, err := c.prompts.Render(PromptClassify, struct{ Query string }{Query: query})
	if err != nil {
		return "", err
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0,
	})
	if err != nil {
		return "", fmt.Errorf("destination extraction failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("destination extraction returned no choices")
	}

	destination := strings.Trim(strings.TrimSpace(resp.Choices[0].Message.Content), ".")
	if _, none := noneReplies[strings.ToLower(destination)]; none {
		c.logger.Debug("no destination in query", zap.String("query", query))
		return "", nil
	}
	return FormatCityName(destination), nil
}

// RuleClassifier extracts a destination with a small set of phrase
// rules. It never calls a model; it backs the "rule" classifier mode
// for deployments that will not spend a model call per turn, and is
// the offline path in tests.
type RuleClassifier struct {
	prefixes []*regexp.Regexp
}

var rulePrefixes = []string{
	"tell me about",
	"what.*about",
	"weather in",
	"visit",
	"go to",
	"travel to",
	"information about",
	"facts about",
}

// NewRuleClassifier compiles the phrase rules.
func NewRuleClassifier() *RuleClassifier {
	prefixes := make([]*regexp.Regexp, 0, len(rulePrefixes))
	for _, p := range rulePrefixes {
		prefixes = append(prefixes, regexp.MustCompile("^"+p+`\s*`))
	}
	return &RuleClassifier{prefixes: prefixes}
}

// ExtractDestination strips leading question phrases and treats the
// remainder as the destination.
func (c *RuleClassifier) ExtractDestination(_ context.Context, query string, _ *voyago.SessionState) (string, error) {
	text := strings.ToLower(strings.TrimSpace(query))
	if text == "" {
		return "", nil
	}
	for _, prefix := range c.prefixes {
		text = prefix.ReplaceAllString(text, "")
	}
	for _, suffix := range []string{"please", "?", ".", "!"} {
		text = strings.ReplaceAll(text, suffix, "")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", nil
	}
	return FormatCityName(text), nil
}

// FormatCityName normalizes a raw city name: "new york" becomes
// "New York", "los-angeles" becomes "Los Angeles".
func FormatCityName(city string) string {
	if city == "" {
		return ""
	}
	city = strings.ReplaceAll(city, "-", " ")
	words := strings.Fields(city)
	for i, word := range words {
		// First rune, not first byte: city names are not ASCII-only.
		r, size := utf8.DecodeRuneInString(word)
		words[i] = string(unicode.ToUpper(r)) + strings.ToLower(word[size:])
	}
	return strings.Join(words, " ")
}

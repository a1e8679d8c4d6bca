// Package protocol implements the tool-call wire protocol between the
// planner model and the tool runtime. Decoding and encoding are done by
// hand so the runtime stays in control of dispatch: the model's framework
// never executes anything on its own.
package protocol

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/voyago-ai/voyago"
)

// Codec translates raw wire tool calls into typed calls and tool results
// back into protocol messages.
type Codec struct {
	supported map[string]struct{}
	logger    *zap.Logger
}

// CodecOption configures a Codec.
type CodecOption func(*Codec)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) CodecOption {
	return func(c *Codec) {
		c.logger = logger
	}
}

// NewCodec creates a codec that accepts the given tool names. Calls
// naming anything else are rejected at decode time.
func NewCodec(supportedTools []string, options ...CodecOption) *Codec {
	c := &Codec{
		supported: make(map[string]struct{}, len(supportedTools)),
		logger:    zap.NewNop(),
	}
	for _, name := range supportedTools {
		c.supported[name] = struct{}{}
	}

	for _, option := range options {
		option(c)
	}

	return c
}

// DecodeCalls validates and decodes a batch of raw tool calls. Calls that
// cannot be decoded (unknown tool, malformed argument JSON, duplicate or
// missing ID) come back as pre-failed results instead of being dropped,
// so the transcript still answers every call ID exactly once.
func (c *Codec) DecodeCalls(raw []voyago.RawToolCall) ([]voyago.ToolCall, []voyago.ToolResult) {
	calls := make([]voyago.ToolCall, 0, len(raw))
	var failed []voyago.ToolResult

	seen := make(map[string]struct{}, len(raw))

	for _, rc := range raw {
		if rc.ID == "" {
			c.logger.Warn("tool call without an id", zap.String("tool", rc.Name))
			failed = append(failed, c.failCall(rc, "tool call is missing an id"))
			continue
		}

		if _, dup := seen[rc.ID]; dup {
			c.logger.Warn("duplicate tool call id", zap.String("call_id", rc.ID))
			failed = append(failed, c.failCall(rc, fmt.Sprintf("duplicate tool call id '%s'", rc.ID)))
			continue
		}
		seen[rc.ID] = struct{}{}

		if _, ok := c.supported[rc.Name]; !ok {
			c.logger.Warn("unsupported tool requested",
				zap.String("call_id", rc.ID),
				zap.String("tool", rc.Name),
			)
			failed = append(failed, c.failCall(rc, fmt.Sprintf("unsupported tool '%s'", rc.Name)))
			continue
		}

		args := make(map[string]interface{})
		if rc.Arguments != "" {
			if err := json.Unmarshal([]byte(rc.Arguments), &args); err != nil {
				c.logger.Warn("malformed tool call arguments",
					zap.String("call_id", rc.ID),
					zap.String("tool", rc.Name),
					zap.Error(err),
				)
				failed = append(failed, c.failCall(rc, fmt.Sprintf("malformed arguments: %v", err)))
				continue
			}
		}

		calls = append(calls, voyago.ToolCall{
			ID:   rc.ID,
			Name: rc.Name,
			Args: args,
		})
	}

	return calls, failed
}

// EncodeResult turns one tool result into the protocol message that
// answers its call ID. Payloads are serialized as JSON; failures carry a
// structured error body rather than an empty reply.
func (c *Codec) EncodeResult(result voyago.ToolResult) voyago.ChatMessage {
	var body []byte
	var err error

	if result.OK {
		body, err = json.Marshal(result.Payload)
	} else {
		body, err = json.Marshal(map[string]interface{}{
			"error": result.Err,
			"tool":  result.Name,
		})
	}
	if err != nil {
		// Marshalling a map of JSON-safe values only fails on exotic
		// payloads. Degrade to a plain string body.
		body = []byte(fmt.Sprintf(`{"error":"unencodable tool result: %v"}`, err))
	}

	return voyago.ChatMessage{
		Role:       voyago.RoleTool,
		ToolCallID: result.CallID,
		Content:    string(body),
	}
}

func (c *Codec) failCall(rc voyago.RawToolCall, reason string) voyago.ToolResult {
	return voyago.ToolResult{
		CallID: rc.ID,
		Name:   rc.Name,
		OK:     false,
		Err:    voyago.NewProtocolDecodeError(reason, nil).Error(),
	}
}

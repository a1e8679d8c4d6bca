package voyago

import "context"

// Classifier extracts the destination a query is about. A return of
// ("", nil) means the query names no known destination; errors are
// reserved for service failures.
type Classifier interface {
	ExtractDestination(ctx context.Context, query string, session *SessionState) (string, error)
}

// Gate decides whether a query can be served from the curated catalog.
// Implementations must fail with a typed error rather than guessing when
// the underlying store is unreachable.
type Gate interface {
	Classify(ctx context.Context, query Query) (*SimilarityResult, error)
}

// Planner produces the next assistant turn for queries the gate rejected.
type Planner interface {
	// Plan asks the model for an answer or a batch of tool calls.
	Plan(ctx context.Context, input PlannerInput) (*PlanResult, error)

	// Summarize folds tool results back into the transcript and asks the
	// model for the final prose summary.
	Summarize(ctx context.Context, transcript []ChatMessage, results []ToolResult) (string, error)
}

// Tool represents one invocable provider action.
type Tool interface {
	// Execute performs the tool's action with decoded arguments.
	Execute(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error)

	// Schema returns the tool definition advertised to the planner.
	Schema() ToolSchema

	// Validate checks if the provided input is valid for this tool.
	// Returns nil if valid, error otherwise.
	Validate(input map[string]interface{}) error

	// Name returns the tool's name.
	Name() string
}

// Executor dispatches a batch of tool calls concurrently and returns one
// result per call, aligned with the input order.
type Executor interface {
	ExecuteAll(ctx context.Context, calls []ToolCall, tools map[string]Tool) ([]ToolResult, error)
}

// ProtocolHandler translates between the model's wire format and typed
// tool calls. DecodeCalls never drops a call ID: calls it cannot decode
// come back as pre-failed results.
type ProtocolHandler interface {
	DecodeCalls(raw []RawToolCall) ([]ToolCall, []ToolResult)
	EncodeResult(result ToolResult) ChatMessage
}

// SessionStore holds conversation state. Apply serializes updates per
// session and creates the session lazily on first use.
type SessionStore interface {
	Get(ctx context.Context, sessionID string) (*SessionState, error)
	Apply(ctx context.Context, sessionID string, update TurnUpdate) (*SessionState, error)
}

// Cache provides storage for frequently accessed data, like planner replies.
type Cache interface {
	Get(ctx context.Context, key string) (interface{}, bool)
	Set(ctx context.Context, key string, value interface{})
}

// Package voyago provides the core runtime for conversational travel queries.
package voyago

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/voyago-ai/voyago/internal/eventbus"
)

// Engine is the main entry point into the voyago runtime. It encapsulates
// all components required for executing conversational turns.
type Engine struct {
	// Core components
	classifier Classifier
	gate       Gate
	planner    Planner
	executor   Executor
	store      SessionStore
	protocol   ProtocolHandler
	eventBus   eventbus.EventBus
	logger     *zap.Logger

	// Available tools
	tools map[string]Tool

	// Configuration
	config Config
}

// Components holds references to the core components needed for state transitions.
type Components struct {
	Classifier Classifier
	Gate       Gate
	Planner    Planner
	Executor   Executor
	Store      SessionStore
	Protocol   ProtocolHandler
	Tools      map[string]Tool
	Config     Config
	Logger     *zap.Logger

	// Function to retrieve tool schemas
	GetSchemas func() []ToolSchema
}

// Config holds the configuration options for the voyago runtime.
type Config struct {
	// Maximum number of concurrent tool executions
	MaxConcurrentExecutions int

	// Retry configuration for provider calls
	MaxRetries int
	RetryDelay time.Duration

	// Per-call provider timeout
	CallTimeout time.Duration

	// Event bus configuration
	EnableEventBus      bool
	EventBusBufferSize  int
	EventBusWorkerCount int
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxConcurrentExecutions: 5,
		MaxRetries:              0,
		RetryDelay:              time.Second,
		CallTimeout:             time.Second * 10,
		EnableEventBus:          true,
		EventBusBufferSize:      100,
		EventBusWorkerCount:     5,
	}
}

// Option is a function that configures an Engine instance.
type Option func(*Engine)

// WithConfig sets the configuration for the engine.
func WithConfig(config Config) Option {
	return func(e *Engine) {
		e.config = config
	}
}

// WithClassifier sets the classifier component.
func WithClassifier(classifier Classifier) Option {
	return func(e *Engine) {
		e.classifier = classifier
	}
}

// WithGate sets the similarity gate component.
func WithGate(gate Gate) Option {
	return func(e *Engine) {
		e.gate = gate
	}
}

// WithPlanner sets the planner component.
func WithPlanner(planner Planner) Option {
	return func(e *Engine) {
		e.planner = planner
	}
}

// WithExecutor sets the fan-out executor component.
func WithExecutor(executor Executor) Option {
	return func(e *Engine) {
		e.executor = executor
	}
}

// WithSessionStore sets the session store component.
func WithSessionStore(store SessionStore) Option {
	return func(e *Engine) {
		e.store = store
	}
}

// WithProtocolHandler sets the tool protocol handler.
func WithProtocolHandler(protocol ProtocolHandler) Option {
	return func(e *Engine) {
		e.protocol = protocol
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithTools adds tools to the runtime.
func WithTools(tools map[string]Tool) Option {
	return func(e *Engine) {
		if e.tools == nil {
			e.tools = make(map[string]Tool)
		}

		for name, tool := range tools {
			e.tools[name] = tool
		}
	}
}

// New creates a new Engine instance with the provided options.
func New(ctx context.Context, options ...Option) (*Engine, error) {
	e := &Engine{
		config: DefaultConfig(),
		tools:  make(map[string]Tool),
	}

	for _, option := range options {
		option(e)
	}

	// Validate required components
	if e.classifier == nil {
		return nil, NewConfigurationError("classifier is required", nil)
	}

	if e.gate == nil {
		return nil, NewConfigurationError("similarity gate is required", nil)
	}

	if e.planner == nil {
		return nil, NewConfigurationError("planner is required", nil)
	}

	if e.executor == nil {
		return nil, NewConfigurationError("executor is required", nil)
	}

	if e.store == nil {
		return nil, NewConfigurationError("session store is required", nil)
	}

	if e.protocol == nil {
		return nil, NewConfigurationError("protocol handler is required", nil)
	}

	if len(e.tools) == 0 {
		return nil, NewConfigurationError("at least one tool is required", nil)
	}

	if e.logger == nil {
		e.logger = zap.NewNop()
	}

	// Initialize event bus if enabled but not provided
	if e.config.EnableEventBus && e.eventBus == nil {
		e.eventBus = eventbus.NewChannelEventBus(
			eventbus.WithBufferSize(e.config.EventBusBufferSize),
			eventbus.WithWorkerCount(e.config.EventBusWorkerCount),
			eventbus.WithLogger(e.logger),
		)
		e.logger.Debug("initialized default channel-based event bus")
	}

	return e, nil
}

// RegisterTool adds a new tool to the runtime.
func (e *Engine) RegisterTool(name string, tool Tool) error {
	if _, exists := e.tools[name]; exists {
		return fmt.Errorf("tool with name '%s' already exists", name)
	}

	e.tools[name] = tool
	return nil
}

// GetToolSchemas returns the schemas of all registered tools, suitable
// for advertising to the planner. The order is stable so planner prompts
// and cache keys stay deterministic.
func (e *Engine) GetToolSchemas() []ToolSchema {
	names := make([]string, 0, len(e.tools))
	for name := range e.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	schemas := make([]ToolSchema, 0, len(names))
	for _, name := range names {
		schemas = append(schemas, e.tools[name].Schema())
	}

	return schemas
}

// ProcessTurn handles an end-to-end turn execution through the runtime
// using a pushdown automaton state machine approach.
func (e *Engine) ProcessTurn(ctx context.Context, sessionID, query string) (*StructuredOutput, error) {
	if sessionID == "" {
		return nil, NewConfigurationError("session id is required", nil)
	}

	stateMachine := e.createStateMachine()

	turnContext := NewTurnContext(sessionID, query)

	return stateMachine.Execute(ctx, turnContext)
}

// GetSession returns a snapshot of the given session, or nil if it does
// not exist yet.
func (e *Engine) GetSession(ctx context.Context, sessionID string) (*SessionState, error) {
	return e.store.Get(ctx, sessionID)
}

// createStateMachine builds a state machine with all necessary transitions
// for the turn workflow.
func (e *Engine) createStateMachine() *StateMachine {
	var eventBus eventbus.EventBus
	if e.config.EnableEventBus {
		eventBus = e.eventBus
	}

	components := Components{
		Classifier: e.classifier,
		Gate:       e.gate,
		Planner:    e.planner,
		Executor:   e.executor,
		Store:      e.store,
		Protocol:   e.protocol,
		Tools:      make(map[string]Tool),
		Config:     e.config,
		Logger:     e.logger,
		GetSchemas: func() []ToolSchema {
			return e.GetToolSchemas()
		},
	}

	for name, tool := range e.tools {
		components.Tools[name] = tool
	}

	return CreateTurnStateMachine(components, eventBus)
}

// GetToolByName returns a tool by its name, or an error if not found.
func (e *Engine) GetToolByName(name string) (Tool, error) {
	if tool, exists := e.tools[name]; exists {
		return tool, nil
	}
	return nil, NewToolNotFoundError("lookup", name)
}

// ListTools returns a list of all registered tool names.
func (e *Engine) ListTools() []string {
	names := make([]string, 0, len(e.tools))
	for name := range e.tools {
		names = append(names, name)
	}
	return names
}

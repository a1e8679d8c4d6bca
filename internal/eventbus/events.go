package eventbus

import (
	"context"
	"time"
)

// EventType represents the type of an event
type EventType string

// Standard event types
const (
	// Turn lifecycle events
	EventTurnStarted   EventType = "turn_started"
	EventTurnCommitted EventType = "turn_committed"
	EventTurnFailure   EventType = "turn_failure"
	EventTurnCancelled EventType = "turn_cancelled"

	// Classification events
	EventClassificationStarted EventType = "classification_started"
	EventClassificationSuccess EventType = "classification_success"
	EventClassificationFailure EventType = "classification_failure"

	// Similarity gate events
	EventGateCheckStarted EventType = "gate_check_started"
	EventGateCheckHit     EventType = "gate_check_hit"
	EventGateCheckMiss    EventType = "gate_check_miss"
	EventGateCheckFailure EventType = "gate_check_failure"

	// Planner events
	EventPlannerInvokeStarted EventType = "planner_invoke_started"
	EventPlannerInvokeSuccess EventType = "planner_invoke_success"
	EventPlannerInvokeFailure EventType = "planner_invoke_failure"

	// Protocol decode events
	EventProtocolDecodeStarted EventType = "protocol_decode_started"
	EventProtocolDecodeSuccess EventType = "protocol_decode_success"
	EventProtocolDecodeFailure EventType = "protocol_decode_failure"

	// Fan-out events
	EventFanOutStarted EventType = "fan_out_started"
	EventFanOutSuccess EventType = "fan_out_success"
	EventFanOutPartial EventType = "fan_out_partial"
	EventFanOutFailure EventType = "fan_out_failure"

	// Tool call events
	EventToolCallStarted EventType = "tool_call_started"
	EventToolCallSuccess EventType = "tool_call_success"
	EventToolCallFailure EventType = "tool_call_failure"
	EventToolCallTimeout EventType = "tool_call_timeout"

	// System events
	EventSystemError   EventType = "system_error"
	EventSystemWarning EventType = "system_warning"
	EventSystemInfo    EventType = "system_info"
)

// EventHandler is a function that handles events
type EventHandler func(context.Context, Event) error

// Event represents something that has happened within the system
type Event interface {
	// Type returns the event type
	Type() EventType

	// Payload returns the event data
	Payload() interface{}

	// Metadata returns additional information about the event
	Metadata() map[string]interface{}

	// Timestamp returns when the event occurred
	Timestamp() int64

	// Source returns information about what generated the event
	Source() string
}

// EventBus is the central event dispatch system
type EventBus interface {
	// Publish sends an event to all subscribed handlers
	Publish(ctx context.Context, event Event) error

	// Subscribe registers a handler for specific event types
	// Returns a subscription ID that can be used to unsubscribe
	Subscribe(eventTypes []EventType, handler EventHandler) (string, error)

	// SubscribeAll registers a handler for all event types
	// Returns a subscription ID that can be used to unsubscribe
	SubscribeAll(handler EventHandler) (string, error)

	// Unsubscribe removes a subscription by ID
	Unsubscribe(subscriptionID string) error

	// Close shuts down the event bus, cleaning up resources
	Close() error
}

// BaseEvent is a simple implementation of the Event interface
type BaseEvent struct {
	eventType  EventType
	payload    interface{}
	metadata   map[string]interface{}
	timestamp  int64
	sourceInfo string
}

// NewEvent creates a new BaseEvent
func NewEvent(
	eventType EventType,
	payload interface{},
	source string,
	metadata map[string]interface{},
) *BaseEvent {
	if metadata == nil {
		metadata = make(map[string]interface{})
	}

	return &BaseEvent{
		eventType:  eventType,
		payload:    payload,
		metadata:   metadata,
		timestamp:  time.Now().UnixNano(),
		sourceInfo: source,
	}
}

// Type returns the event type
func (e *BaseEvent) Type() EventType {
	return e.eventType
}

// Payload returns the event data
func (e *BaseEvent) Payload() interface{} {
	return e.payload
}

// Metadata returns additional information about the event
func (e *BaseEvent) Metadata() map[string]interface{} {
	return e.metadata
}

// Timestamp returns when the event occurred
func (e *BaseEvent) Timestamp() int64 {
	return e.timestamp
}

// Source returns information about what generated the event
func (e *BaseEvent) Source() string {
	return e.sourceInfo
}

// WithMetadata adds or updates metadata and returns the same event
func (e *BaseEvent) WithMetadata(key string, value interface{}) *BaseEvent {
	e.metadata[key] = value
	return e
}

// AddMetadata adds multiple metadata entries at once and returns the same event
func (e *BaseEvent) AddMetadata(data map[string]interface{}) *BaseEvent {
	for k, v := range data {
		e.metadata[k] = v
	}
	return e
}

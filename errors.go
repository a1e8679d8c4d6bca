package voyago

import "fmt"

// Error codes for specific failure types
const (
	ErrCodeClassification  = "CLASSIFICATION_ERROR"
	ErrCodeGateUnavailable = "GATE_UNAVAILABLE"
	ErrCodeProtocolDecode  = "PROTOCOL_DECODE_ERROR"
	ErrCodeToolNotFound    = "TOOL_NOT_FOUND"
	ErrCodeProvider        = "PROVIDER_ERROR"
	ErrCodeProviderTimeout = "PROVIDER_TIMEOUT"
	ErrCodePlanner         = "PLANNER_ERROR"
	ErrCodeSessionConflict = "SESSION_CONFLICT"
	ErrCodeConfiguration   = "CONFIGURATION_ERROR"
	ErrCodeCancelled       = "TURN_CANCELLED"
	ErrCodeCache           = "CACHE_ERROR"
	ErrCodeInternal        = "INTERNAL_ERROR"
)

// VoyagoError is a custom error type for engine specific errors.
type VoyagoError struct {
	Code    string // A machine-readable error code (e.g., ErrCodeToolNotFound)
	Message string // A human-readable message
	Stage   string // The turn stage where the error occurred (e.g., "classify", "fan_out")
	Cause   error  // The underlying error, if any
}

// Error implements the error interface.
func (e *VoyagoError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Stage, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Stage, e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error, allowing for error chaining.
func (e *VoyagoError) Unwrap() error {
	return e.Cause
}

// NewError creates a new VoyagoError.
func NewError(code, stage, message string, cause error) *VoyagoError {
	return &VoyagoError{
		Code:    code,
		Stage:   stage,
		Message: message,
		Cause:   cause,
	}
}

// Specific error constructors

func NewClassificationError(cause error) *VoyagoError {
	return NewError(ErrCodeClassification, "classify", "destination extraction failed", cause)
}

func NewGateUnavailableError(cause error) *VoyagoError {
	return NewError(ErrCodeGateUnavailable, "gate_check", "similarity gate unavailable", cause)
}

func NewProtocolDecodeError(message string, cause error) *VoyagoError {
	return NewError(ErrCodeProtocolDecode, "protocol_decode", message, cause)
}

func NewToolNotFoundError(stage, toolName string) *VoyagoError {
	return NewError(ErrCodeToolNotFound, stage, fmt.Sprintf("tool '%s' not found", toolName), nil)
}

func NewProviderError(toolName string, cause error) *VoyagoError {
	return NewError(ErrCodeProvider, "fan_out", fmt.Sprintf("provider call '%s' failed", toolName), cause)
}

func NewProviderTimeoutError(toolName string, cause error) *VoyagoError {
	return NewError(ErrCodeProviderTimeout, "fan_out", fmt.Sprintf("provider call '%s' timed out", toolName), cause)
}

func NewPlannerError(cause error) *VoyagoError {
	return NewError(ErrCodePlanner, "planner_invoke", "planner invocation failed", cause)
}

func NewSessionConflictError(sessionID string, cause error) *VoyagoError {
	msg := fmt.Sprintf("concurrent update conflict on session '%s'", sessionID)
	return NewError(ErrCodeSessionConflict, "commit", msg, cause)
}

func NewConfigurationError(message string, cause error) *VoyagoError {
	return NewError(ErrCodeConfiguration, "initialization", message, cause)
}

func NewCancelledError(stage string, cause error) *VoyagoError {
	msg := "turn cancelled"
	if cause != nil && cause.Error() != "" && cause.Error() != "context canceled" {
		msg = fmt.Sprintf("turn cancelled: %v", cause)
	}
	return NewError(ErrCodeCancelled, stage, msg, cause)
}

func NewCacheError(stage, operation string, cause error) *VoyagoError {
	return NewError(ErrCodeCache, stage, fmt.Sprintf("cache operation '%s' failed", operation), cause)
}

func NewInternalError(stage, message string, cause error) *VoyagoError {
	return NewError(ErrCodeInternal, stage, message, cause)
}

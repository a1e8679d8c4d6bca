package voyago

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/voyago-ai/voyago/internal/eventbus"
)

// TurnState represents the current state of a turn execution.
type TurnState string

const (
	// StateStart is the initial state of the turn
	StateStart TurnState = "start"
	// StateClassify represents destination extraction
	StateClassify TurnState = "classify"
	// StateGateCheck represents the similarity gate decision
	StateGateCheck TurnState = "gate_check"
	// StateCachedFanOut represents the gate-hit path fetching providers around cached context
	StateCachedFanOut TurnState = "cached_fan_out"
	// StatePlannerInvoke represents the gate-miss planner call
	StatePlannerInvoke TurnState = "planner_invoke"
	// StateProtocolDecode represents decoding the planner's raw tool calls
	StateProtocolDecode TurnState = "protocol_decode"
	// StateFanOut represents concurrent dispatch of decoded tool calls
	StateFanOut TurnState = "fan_out"
	// StateFormat represents assembling the structured output
	StateFormat TurnState = "format"
	// StateCommitted represents the committed terminal state
	StateCommitted TurnState = "committed"
	// StateFailed represents a terminal failure
	StateFailed TurnState = "failed"
	// StateCancelled represents the cancelled terminal state
	StateCancelled TurnState = "cancelled"
)

// TurnContext contains the data needed for one turn's execution.
// It acts as the "tape" in the pushdown automaton.
type TurnContext struct {
	// Input parameters
	SessionID string
	Query     Query

	// Intermediate results
	Session     *SessionState
	GateResult  *SimilarityResult
	PlanResult  *PlanResult
	ToolCalls   []ToolCall
	ToolResults []ToolResult
	Output      *StructuredOutput

	// Error handling
	LastError  error
	ErrorStage string

	// State management
	CurrentState TurnState
	StateStack   []TurnState
	StateData    map[string]interface{}

	// Timestamp tracking
	StartTime       time.Time
	EndTime         time.Time
	StateStartTimes map[TurnState]time.Time
}

// NewTurnContext creates a new turn context for the given session and query.
func NewTurnContext(sessionID, rawQuery string) *TurnContext {
	return &TurnContext{
		SessionID:       sessionID,
		Query:           Query{Raw: rawQuery},
		CurrentState:    StateStart,
		StateStack:      []TurnState{},
		StateData:       make(map[string]interface{}),
		StartTime:       time.Now(),
		StateStartTimes: make(map[TurnState]time.Time),
	}
}

// PushState pushes the current state onto the stack and sets a new current state.
func (tc *TurnContext) PushState(state TurnState) {
	tc.StateStack = append(tc.StateStack, tc.CurrentState)
	tc.CurrentState = state
	tc.StateStartTimes[state] = time.Now()
}

// PopState pops the top state from the stack and sets it as the current state.
// Returns false if the stack is empty.
func (tc *TurnContext) PopState() bool {
	if len(tc.StateStack) == 0 {
		return false
	}
	lastIdx := len(tc.StateStack) - 1
	tc.CurrentState = tc.StateStack[lastIdx]
	tc.StateStack = tc.StateStack[:lastIdx]
	tc.StateStartTimes[tc.CurrentState] = time.Now()
	return true
}

// IsTerminal checks if the current state is a terminal state (Committed, Failed, Cancelled).
func (tc *TurnContext) IsTerminal() bool {
	return tc.CurrentState == StateCommitted || tc.CurrentState == StateFailed || tc.CurrentState == StateCancelled
}

// SetError sets the last error and error stage, transitioning to StateFailed.
func (tc *TurnContext) SetError(err error, stage string) {
	tc.LastError = err
	tc.ErrorStage = stage
	tc.CurrentState = StateFailed
	tc.StateStartTimes[StateFailed] = time.Now()
}

// SetCancelled sets the state to Cancelled and records the cancellation error.
// A cancelled turn commits nothing to the session.
func (tc *TurnContext) SetCancelled(err error, stage string) {
	tc.LastError = err
	tc.ErrorStage = stage
	tc.CurrentState = StateCancelled
	tc.StateStartTimes[StateCancelled] = time.Now()
}

// Commit marks the turn as committed and sets the end time.
func (tc *TurnContext) Commit() {
	tc.CurrentState = StateCommitted
	tc.EndTime = time.Now()
	tc.StateStartTimes[StateCommitted] = tc.EndTime
}

// GetTotalDuration returns the total duration of the turn so far.
func (tc *TurnContext) GetTotalDuration() time.Duration {
	if tc.CurrentState == StateCommitted {
		return tc.EndTime.Sub(tc.StartTime)
	}
	return time.Since(tc.StartTime)
}

// StateTransition defines a transition function for the state machine.
type StateTransition func(ctx context.Context, eventBus eventbus.EventBus, tCtx *TurnContext) (TurnState, error)

// StateMachine represents a finite state machine for turn execution.
type StateMachine struct {
	transitions map[TurnState]StateTransition
	eventBus    eventbus.EventBus
}

// NewStateMachine creates a new state machine with the provided transitions.
func NewStateMachine(eventBus eventbus.EventBus) *StateMachine {
	return &StateMachine{
		transitions: make(map[TurnState]StateTransition),
		eventBus:    eventBus,
	}
}

// RegisterTransition registers a state transition function.
func (sm *StateMachine) RegisterTransition(state TurnState, transition StateTransition) {
	sm.transitions[state] = transition
}

// publishCancelled emits the turn cancellation event. The turn's own
// context is already done at this point, so the event goes out on a
// fresh one or the bus would refuse it.
func (sm *StateMachine) publishCancelled(tCtx *TurnContext) {
	if sm.eventBus == nil {
		return
	}
	sm.eventBus.Publish(context.Background(), eventbus.NewEvent(
		eventbus.EventTurnCancelled,
		tCtx.Query.Raw,
		"StateMachine.Execute",
		map[string]interface{}{
			"session_id": tCtx.SessionID,
			"stage":      tCtx.ErrorStage,
		},
	))
}

// Execute runs the state machine until the turn commits, fails, or is cancelled.
func (sm *StateMachine) Execute(ctx context.Context, tCtx *TurnContext) (*StructuredOutput, error) {
	for !tCtx.IsTerminal() {
		// Check for context cancellation before executing the next state
		select {
		case <-ctx.Done():
			err := ctx.Err()
			currentStage := string(tCtx.CurrentState)
			tCtx.SetCancelled(err, currentStage)
			sm.publishCancelled(tCtx)
			return nil, NewCancelledError(currentStage, err)
		default:
		}

		transition, exists := sm.transitions[tCtx.CurrentState]
		if !exists {
			err := fmt.Errorf("no transition defined for state: %s", tCtx.CurrentState)
			currentStage := string(tCtx.CurrentState)
			tCtx.SetError(err, currentStage)
			return nil, err
		}

		// Execute the transition function for the current state
		nextState, err := transition(ctx, sm.eventBus, tCtx)

		if err != nil {
			currentStage := string(tCtx.CurrentState)
			// Cancellation may surface inside a transition instead of the
			// select above
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				tCtx.SetCancelled(err, currentStage)
				sm.publishCancelled(tCtx)
			} else {
				// Transitions normally call SetError themselves; cover the
				// ones that just return the error.
				if !tCtx.IsTerminal() {
					tCtx.SetError(err, currentStage)
				}
			}
			continue
		}

		if !tCtx.IsTerminal() {
			tCtx.CurrentState = nextState
			tCtx.StateStartTimes[nextState] = time.Now()
		}
	}

	if tCtx.CurrentState == StateCancelled {
		return nil, NewCancelledError(tCtx.ErrorStage, tCtx.LastError)
	}
	return tCtx.Output, tCtx.LastError
}

package voyago

import (
	"fmt"
	"time"

	"context"

	"go.uber.org/zap"

	"github.com/voyago-ai/voyago/internal/eventbus"
)

// CreateTurnStateMachine builds a complete state machine for the turn workflow.
func CreateTurnStateMachine(components Components, eventBus eventbus.EventBus) *StateMachine {
	sm := NewStateMachine(eventBus)

	// Register all state transitions
	sm.RegisterTransition(StateStart, createStartTransition(components))
	sm.RegisterTransition(StateClassify, createClassifyTransition(components))
	sm.RegisterTransition(StateGateCheck, createGateCheckTransition(components))
	sm.RegisterTransition(StateCachedFanOut, createCachedFanOutTransition(components))
	sm.RegisterTransition(StatePlannerInvoke, createPlannerInvokeTransition(components))
	sm.RegisterTransition(StateProtocolDecode, createProtocolDecodeTransition(components))
	sm.RegisterTransition(StateFanOut, createFanOutTransition(components))
	sm.RegisterTransition(StateFormat, createFormatTransition(components))
	sm.RegisterTransition(StateFailed, createFailedTransition(components))
	sm.RegisterTransition(StateCommitted, createCommittedTransition(components))
	sm.RegisterTransition(StateCancelled, createCancelledTransition(components))

	return sm
}

// createStartTransition loads the session snapshot and opens the turn.
func createStartTransition(components Components) StateTransition {
	return func(ctx context.Context, eb eventbus.EventBus, tCtx *TurnContext) (TurnState, error) {
		hasEventBus := eb != nil

		if hasEventBus {
			startEvent := eventbus.NewEvent(
				eventbus.EventTurnStarted,
				tCtx.Query.Raw,
				"StateMachine.Start",
				map[string]interface{}{
					"session_id": tCtx.SessionID,
					"timestamp":  time.Now().Format(time.RFC3339),
				},
			)
			eb.Publish(ctx, startEvent)
		}

		// A missing session is not an error. It is created lazily when the
		// first turn commits.
		session, err := components.Store.Get(ctx, tCtx.SessionID)
		if err != nil {
			return StateFailed, NewInternalError("start", "session lookup failed", err)
		}
		tCtx.Session = session
		if session != nil {
			tCtx.Query.TurnIndex = len(session.Turns)
		}

		return StateClassify, nil
	}
}

// createClassifyTransition extracts the destination the query is about,
// falling back to the session's current destination for follow-ups.
func createClassifyTransition(components Components) StateTransition {
	return func(ctx context.Context, eb eventbus.EventBus, tCtx *TurnContext) (TurnState, error) {
		hasEventBus := eb != nil

		if hasEventBus {
			eb.Publish(ctx, eventbus.NewEvent(
				eventbus.EventClassificationStarted,
				tCtx.Query.Raw,
				"StateMachine.Classify",
				nil,
			))
		}

		destination, err := components.Classifier.ExtractDestination(ctx, tCtx.Query.Raw, tCtx.Session)
		if err != nil {
			// Extraction failure is never fatal. The turn continues on
			// the search path with whatever context the session holds.
			cerr := NewClassificationError(err)
			components.Logger.Warn("destination extraction failed, continuing on search path",
				zap.String("session_id", tCtx.SessionID),
				zap.Error(cerr),
			)
			if hasEventBus {
				eb.Publish(ctx, eventbus.NewEvent(
					eventbus.EventClassificationFailure,
					cerr.Error(),
					"StateMachine.Classify",
					map[string]interface{}{"error": cerr.Error()},
				))
			}
			if tCtx.Session != nil {
				tCtx.Query.Destination = tCtx.Session.CurrentDestination
			}
			return StatePlannerInvoke, nil
		}

		// Ambiguity is not a failure. A query naming no destination
		// inherits the one the conversation is already about.
		if destination == "" && tCtx.Session != nil {
			destination = tCtx.Session.CurrentDestination
		}
		tCtx.Query.Destination = destination

		if hasEventBus {
			eb.Publish(ctx, eventbus.NewEvent(
				eventbus.EventClassificationSuccess,
				destination,
				"StateMachine.Classify",
				map[string]interface{}{"destination": destination},
			))
		}

		return StateGateCheck, nil
	}
}

// createGateCheckTransition consults the similarity gate. A gate outage
// fails open: the turn continues on the search path instead of aborting.
func createGateCheckTransition(components Components) StateTransition {
	return func(ctx context.Context, eb eventbus.EventBus, tCtx *TurnContext) (TurnState, error) {
		hasEventBus := eb != nil

		if hasEventBus {
			eb.Publish(ctx, eventbus.NewEvent(
				eventbus.EventGateCheckStarted,
				tCtx.Query,
				"StateMachine.GateCheck",
				nil,
			))
		}

		result, err := components.Gate.Classify(ctx, tCtx.Query)
		if err != nil {
			components.Logger.Warn("similarity gate unavailable, failing open to search",
				zap.String("session_id", tCtx.SessionID),
				zap.Error(err),
			)
			if hasEventBus {
				eb.Publish(ctx, eventbus.NewEvent(
					eventbus.EventGateCheckFailure,
					err.Error(),
					"StateMachine.GateCheck",
					map[string]interface{}{"error": err.Error()},
				))
			}
			tCtx.GateResult = &SimilarityResult{Hit: false}
			return StatePlannerInvoke, nil
		}

		tCtx.GateResult = result

		if result.Hit {
			if hasEventBus {
				eb.Publish(ctx, eventbus.NewEvent(
					eventbus.EventGateCheckHit,
					result,
					"StateMachine.GateCheck",
					map[string]interface{}{
						"destination": result.Entry.Name,
						"distance":    result.Distance,
					},
				))
			}
			return StateCachedFanOut, nil
		}

		if hasEventBus {
			eb.Publish(ctx, eventbus.NewEvent(
				eventbus.EventGateCheckMiss,
				result,
				"StateMachine.GateCheck",
				map[string]interface{}{"distance": result.Distance},
			))
		}
		return StatePlannerInvoke, nil
	}
}

// createCachedFanOutTransition serves a gate hit: no planner involvement,
// just concurrent provider fetches around the curated summary.
func createCachedFanOutTransition(components Components) StateTransition {
	return func(ctx context.Context, eb eventbus.EventBus, tCtx *TurnContext) (TurnState, error) {
		hasEventBus := eb != nil
		entry := tCtx.GateResult.Entry

		calls := []ToolCall{
			{
				ID:   fmt.Sprintf("cached-%s-%d", ToolWeather, tCtx.Query.TurnIndex),
				Name: ToolWeather,
				Args: map[string]interface{}{"city": entry.Name},
			},
			{
				ID:   fmt.Sprintf("cached-%s-%d", ToolImages, tCtx.Query.TurnIndex),
				Name: ToolImages,
				Args: map[string]interface{}{"city": entry.Name},
			},
		}
		tCtx.ToolCalls = calls

		if hasEventBus {
			eb.Publish(ctx, eventbus.NewEvent(
				eventbus.EventFanOutStarted,
				calls,
				"StateMachine.CachedFanOut",
				map[string]interface{}{"call_count": len(calls)},
			))
		}

		results, err := components.Executor.ExecuteAll(ctx, calls, components.Tools)
		if err != nil {
			if hasEventBus {
				eb.Publish(ctx, eventbus.NewEvent(
					eventbus.EventFanOutFailure,
					err.Error(),
					"StateMachine.CachedFanOut",
					map[string]interface{}{"error": err.Error()},
				))
			}
			return StateFailed, err
		}

		tCtx.ToolResults = results
		publishFanOutOutcome(ctx, eb, "StateMachine.CachedFanOut", results)

		return StateFormat, nil
	}
}

// createPlannerInvokeTransition handles the gate-miss path.
func createPlannerInvokeTransition(components Components) StateTransition {
	return func(ctx context.Context, eb eventbus.EventBus, tCtx *TurnContext) (TurnState, error) {
		hasEventBus := eb != nil

		input := PlannerInput{
			Query:   tCtx.Query,
			Schemas: components.GetSchemas(),
		}

		if hasEventBus {
			eb.Publish(ctx, eventbus.NewEvent(
				eventbus.EventPlannerInvokeStarted,
				input,
				"StateMachine.PlannerInvoke",
				map[string]interface{}{"schema_count": len(input.Schemas)},
			))
		}

		plan, err := components.Planner.Plan(ctx, input)
		if err != nil {
			if hasEventBus {
				eb.Publish(ctx, eventbus.NewEvent(
					eventbus.EventPlannerInvokeFailure,
					err.Error(),
					"StateMachine.PlannerInvoke",
					map[string]interface{}{"error": err.Error()},
				))
			}
			return StateFailed, NewPlannerError(err)
		}

		tCtx.PlanResult = plan

		if hasEventBus {
			eb.Publish(ctx, eventbus.NewEvent(
				eventbus.EventPlannerInvokeSuccess,
				plan,
				"StateMachine.PlannerInvoke",
				map[string]interface{}{
					"tool_call_count": len(plan.Message.ToolCalls),
					"has_answer":      plan.Answer != "",
				},
			))
		}

		// A plain text reply skips the tool pipeline entirely.
		if len(plan.Message.ToolCalls) == 0 {
			return StateFormat, nil
		}

		return StateProtocolDecode, nil
	}
}

// createProtocolDecodeTransition decodes the planner's raw tool calls.
// Undecodable calls become pre-failed results so every call ID is still
// answered exactly once.
func createProtocolDecodeTransition(components Components) StateTransition {
	return func(ctx context.Context, eb eventbus.EventBus, tCtx *TurnContext) (TurnState, error) {
		hasEventBus := eb != nil
		raw := tCtx.PlanResult.Message.ToolCalls

		if hasEventBus {
			eb.Publish(ctx, eventbus.NewEvent(
				eventbus.EventProtocolDecodeStarted,
				raw,
				"StateMachine.ProtocolDecode",
				map[string]interface{}{"raw_call_count": len(raw)},
			))
		}

		calls, preFailed := components.Protocol.DecodeCalls(raw)
		tCtx.ToolCalls = calls
		tCtx.ToolResults = preFailed

		if hasEventBus {
			evtType := eventbus.EventProtocolDecodeSuccess
			if len(preFailed) > 0 {
				evtType = eventbus.EventProtocolDecodeFailure
			}
			eb.Publish(ctx, eventbus.NewEvent(
				evtType,
				calls,
				"StateMachine.ProtocolDecode",
				map[string]interface{}{
					"decoded_count":    len(calls),
					"pre_failed_count": len(preFailed),
				},
			))
		}

		if len(calls) == 0 {
			return StateFormat, nil
		}

		return StateFanOut, nil
	}
}

// createFanOutTransition dispatches the decoded calls concurrently.
func createFanOutTransition(components Components) StateTransition {
	return func(ctx context.Context, eb eventbus.EventBus, tCtx *TurnContext) (TurnState, error) {
		hasEventBus := eb != nil

		if hasEventBus {
			eb.Publish(ctx, eventbus.NewEvent(
				eventbus.EventFanOutStarted,
				tCtx.ToolCalls,
				"StateMachine.FanOut",
				map[string]interface{}{"call_count": len(tCtx.ToolCalls)},
			))
		}

		results, err := components.Executor.ExecuteAll(ctx, tCtx.ToolCalls, components.Tools)
		if err != nil {
			if hasEventBus {
				eb.Publish(ctx, eventbus.NewEvent(
					eventbus.EventFanOutFailure,
					err.Error(),
					"StateMachine.FanOut",
					map[string]interface{}{"error": err.Error()},
				))
			}
			return StateFailed, err
		}

		// Pre-failed decode results come first, then dispatch results in
		// call order.
		tCtx.ToolResults = append(tCtx.ToolResults, results...)
		publishFanOutOutcome(ctx, eb, "StateMachine.FanOut", results)

		return StateFormat, nil
	}
}

// createFormatTransition assembles the structured output and commits the
// turn to the session store.
func createFormatTransition(components Components) StateTransition {
	return func(ctx context.Context, eb eventbus.EventBus, tCtx *TurnContext) (TurnState, error) {
		hasEventBus := eb != nil

		output, err := buildOutput(ctx, components, tCtx)
		if err != nil {
			if hasEventBus {
				eb.Publish(ctx, eventbus.NewEvent(
					eventbus.EventTurnFailure,
					err.Error(),
					"StateMachine.Format",
					map[string]interface{}{"error": err.Error()},
				))
			}
			return StateFailed, err
		}

		update := TurnUpdate{
			Record: TurnRecord{
				Index:       tCtx.Query.TurnIndex,
				Query:       tCtx.Query.Raw,
				Destination: output.Destination,
				Provenance:  output.Provenance,
				Output:      output,
				CommittedAt: time.Now(),
			},
			CurrentDestination: output.Destination,
		}
		if update.CurrentDestination == "" && tCtx.Session != nil {
			update.CurrentDestination = tCtx.Session.CurrentDestination
		}

		session, err := components.Store.Apply(ctx, tCtx.SessionID, update)
		if err != nil {
			return StateFailed, err
		}
		tCtx.Session = session
		tCtx.Output = output
		tCtx.Commit()

		if hasEventBus {
			eb.Publish(ctx, eventbus.NewEvent(
				eventbus.EventTurnCommitted,
				output,
				"StateMachine.Format",
				map[string]interface{}{
					"session_id": tCtx.SessionID,
					"turn_index": tCtx.Query.TurnIndex,
					"provenance": string(output.Provenance),
				},
			))
		}

		return StateCommitted, nil
	}
}

// buildOutput folds the tool results into a StructuredOutput.
func buildOutput(ctx context.Context, components Components, tCtx *TurnContext) (*StructuredOutput, error) {
	output := &StructuredOutput{
		Destination: tCtx.Query.Destination,
		Provenance:  ProvenanceSearch,
	}

	if tCtx.GateResult != nil && tCtx.GateResult.Hit {
		output.Provenance = ProvenanceCache
		output.Destination = tCtx.GateResult.Entry.Name
		output.Summary = tCtx.GateResult.Entry.Summary
	}

	for _, result := range tCtx.ToolResults {
		if !result.OK {
			if output.Errors == nil {
				output.Errors = make(map[string]string)
			}
			output.Errors[result.Name] = result.Err
			continue
		}
		switch result.Name {
		case ToolWeather:
			if forecast, ok := result.Payload["forecast"].([]WeatherPoint); ok {
				output.Weather = forecast
			}
		case ToolImages:
			if images, ok := result.Payload["images"].([]string); ok {
				output.Images = images
			}
		case ToolSearch:
			if notes, ok := result.Payload["result"].(string); ok {
				output.SearchNotes = notes
			}
		}
	}

	// The search path owes the caller a prose summary. Prefer the
	// planner's direct answer, otherwise fold the tool results back
	// through the model.
	if output.Provenance == ProvenanceSearch && tCtx.PlanResult != nil {
		if tCtx.PlanResult.Answer != "" {
			output.Summary = tCtx.PlanResult.Answer
		} else {
			summary, err := components.Planner.Summarize(ctx, tCtx.PlanResult.Transcript, tCtx.ToolResults)
			if err != nil {
				return nil, NewPlannerError(err)
			}
			output.Summary = summary
		}
	}

	return output, nil
}

// publishFanOutOutcome reports whether the fan-out completed cleanly or
// with isolated failures.
func publishFanOutOutcome(ctx context.Context, eb eventbus.EventBus, source string, results []ToolResult) {
	if eb == nil {
		return
	}

	failed := 0
	for _, r := range results {
		if !r.OK {
			failed++
		}
	}

	evtType := eventbus.EventFanOutSuccess
	if failed > 0 {
		evtType = eventbus.EventFanOutPartial
	}
	eb.Publish(ctx, eventbus.NewEvent(
		evtType,
		results,
		source,
		map[string]interface{}{
			"result_count": len(results),
			"failed_count": failed,
		},
	))
}

// createFailedTransition handles the failed terminal state.
func createFailedTransition(_ Components) StateTransition {
	return func(ctx context.Context, eb eventbus.EventBus, tCtx *TurnContext) (TurnState, error) {
		// The error is already recorded on the turn context; Execute
		// returns it once the loop observes the terminal state.
		return StateFailed, tCtx.LastError
	}
}

// createCommittedTransition handles the committed terminal state.
func createCommittedTransition(_ Components) StateTransition {
	return func(ctx context.Context, eb eventbus.EventBus, tCtx *TurnContext) (TurnState, error) {
		return StateCommitted, nil
	}
}

// createCancelledTransition handles the cancelled state.
func createCancelledTransition(_ Components) StateTransition {
	return func(ctx context.Context, eb eventbus.EventBus, tCtx *TurnContext) (TurnState, error) {
		return StateCancelled, tCtx.LastError
	}
}

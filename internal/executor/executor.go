// Package executor provides the concurrent fan-out executor for tool calls.
package executor

import (
	"context"
	"errors"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/voyago-ai/voyago"
	"github.com/voyago-ai/voyago/internal/eventbus"
)

// FanOutExecutor dispatches a batch of independent tool calls concurrently
// and joins on all of them. Failures and timeouts are isolated per call:
// one slow or broken provider never takes the batch down with it.
type FanOutExecutor struct {
	maxWorkers  int           // Max concurrent calls
	maxRetries  int           // Max retries per call
	retryDelay  time.Duration // Delay between retries
	callTimeout time.Duration // Per-call execution timeout

	logger   *zap.Logger
	eventBus eventbus.EventBus

	// Statistics and metrics
	metrics FanOutMetrics
}

// ExecutorOption represents an option for configuring the FanOutExecutor.
type ExecutorOption func(*FanOutExecutor)

// WithMaxWorkers sets the maximum number of concurrent calls.
func WithMaxWorkers(workers int) ExecutorOption {
	return func(e *FanOutExecutor) {
		e.maxWorkers = workers
	}
}

// WithMaxRetries sets the maximum number of retries for failed calls.
func WithMaxRetries(retries int) ExecutorOption {
	return func(e *FanOutExecutor) {
		e.maxRetries = retries
	}
}

// WithRetryDelay sets the delay between call retries.
func WithRetryDelay(delay time.Duration) ExecutorOption {
	return func(e *FanOutExecutor) {
		e.retryDelay = delay
	}
}

// WithCallTimeout sets the per-call execution timeout.
func WithCallTimeout(timeout time.Duration) ExecutorOption {
	return func(e *FanOutExecutor) {
		e.callTimeout = timeout
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) ExecutorOption {
	return func(e *FanOutExecutor) {
		e.logger = logger
	}
}

// WithEventBus makes the executor publish per-call lifecycle events
// (started, success, failure, timeout) to the given bus.
func WithEventBus(bus eventbus.EventBus) ExecutorOption {
	return func(e *FanOutExecutor) {
		e.eventBus = bus
	}
}

// NewExecutor creates a new fan-out executor with default settings.
func NewExecutor(options ...ExecutorOption) *FanOutExecutor {
	e := &FanOutExecutor{
		maxWorkers:  5,
		maxRetries:  0,
		retryDelay:  time.Second,
		callTimeout: time.Second * 10,
		logger:      zap.NewNop(),
	}

	for _, option := range options {
		option(e)
	}

	return e
}

// Metrics returns a snapshot of the execution metrics.
func (e *FanOutExecutor) Metrics() FanOutMetrics {
	return e.metrics.Copy()
}

// ExecuteAll dispatches every call concurrently and blocks until all of
// them have a result. The returned slice is aligned with the input: the
// result at index i answers calls[i], regardless of completion order.
// The only error ExecuteAll itself returns is cancellation of the whole
// batch; individual call failures come back as not-OK results.
func (e *FanOutExecutor) ExecuteAll(ctx context.Context, calls []voyago.ToolCall, tools map[string]voyago.Tool) ([]voyago.ToolResult, error) {
	if len(calls) == 0 {
		return []voyago.ToolResult{}, nil
	}

	startTime := time.Now()
	e.logger.Debug("starting fan-out execution", zap.Int("call_count", len(calls)))

	results := make([]voyago.ToolResult, len(calls))

	workerPool := pool.New().WithMaxGoroutines(e.maxWorkers)
	for i, call := range calls {
		i, call := i, call
		workerPool.Go(func() {
			results[i] = e.executeCall(ctx, call, tools)
		})
	}
	workerPool.Wait()

	if ctx.Err() != nil {
		return nil, voyago.NewCancelledError("fan_out", ctx.Err())
	}

	e.logger.Debug("fan-out execution finished",
		zap.Int("call_count", len(calls)),
		zap.Duration("duration", time.Since(startTime)),
	)

	return results, nil
}

// publishCallEvent emits one per-call lifecycle event if a bus is wired.
func (e *FanOutExecutor) publishCallEvent(ctx context.Context, eventType eventbus.EventType, call voyago.ToolCall, metadata map[string]interface{}) {
	if e.eventBus == nil {
		return
	}
	if metadata == nil {
		metadata = make(map[string]interface{})
	}
	metadata["call_id"] = call.ID
	metadata["tool"] = call.Name
	e.eventBus.Publish(ctx, eventbus.NewEvent(eventType, call.Name, "FanOutExecutor", metadata))
}

// executeCall runs one tool call to completion, including validation,
// per-attempt timeout and the retry budget. It always produces a result
// carrying the original call ID.
func (e *FanOutExecutor) executeCall(ctx context.Context, call voyago.ToolCall, tools map[string]voyago.Tool) voyago.ToolResult {
	result := voyago.ToolResult{
		CallID: call.ID,
		Name:   call.Name,
	}

	e.publishCallEvent(ctx, eventbus.EventToolCallStarted, call, nil)

	tool, exists := tools[call.Name]
	if !exists {
		err := voyago.NewToolNotFoundError("fan_out", call.Name)
		e.logger.Warn("tool not found", zap.String("call_id", call.ID), zap.String("tool", call.Name))
		result.Err = err.Error()
		e.metrics.record(false, false, 0, 0)
		e.publishCallEvent(ctx, eventbus.EventToolCallFailure, call, map[string]interface{}{"error": result.Err})
		return result
	}

	if err := tool.Validate(call.Args); err != nil {
		e.logger.Warn("tool input validation failed",
			zap.String("call_id", call.ID),
			zap.String("tool", call.Name),
			zap.Error(err),
		)
		result.Err = voyago.NewProviderError(call.Name, err).Error()
		e.metrics.record(false, false, 0, 0)
		e.publishCallEvent(ctx, eventbus.EventToolCallFailure, call, map[string]interface{}{"error": result.Err})
		return result
	}

	startTime := time.Now()
	var lastErr error
	timedOut := false
	retries := 0

	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if ctx.Err() != nil {
			lastErr = ctx.Err()
			break
		}

		if attempt > 0 {
			retries++
			select {
			case <-ctx.Done():
				lastErr = ctx.Err()
			case <-time.After(e.retryDelay):
			}
			if lastErr != nil {
				break
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
		payload, err := tool.Execute(callCtx, call.Args)
		cancel()

		if err == nil {
			result.OK = true
			result.Payload = payload
			e.metrics.record(true, false, time.Since(startTime), retries)
			e.publishCallEvent(ctx, eventbus.EventToolCallSuccess, call, map[string]interface{}{
				"duration": time.Since(startTime).String(),
			})
			return result
		}

		lastErr = err
		timedOut = errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil
		e.logger.Warn("tool call attempt failed",
			zap.String("call_id", call.ID),
			zap.String("tool", call.Name),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}

	if timedOut {
		result.Err = voyago.NewProviderTimeoutError(call.Name, lastErr).Error()
		e.publishCallEvent(ctx, eventbus.EventToolCallTimeout, call, map[string]interface{}{"error": result.Err})
	} else {
		result.Err = voyago.NewProviderError(call.Name, lastErr).Error()
		e.publishCallEvent(ctx, eventbus.EventToolCallFailure, call, map[string]interface{}{"error": result.Err})
	}
	e.metrics.record(false, timedOut, time.Since(startTime), retries)
	return result
}

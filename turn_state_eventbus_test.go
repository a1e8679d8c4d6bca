package voyago

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/voyago-ai/voyago/internal/eventbus"
)

func TestStateMachine_EventBus_EmitsTurnEvents(t *testing.T) {
	bus := eventbus.NewChannelEventBus(
		eventbus.WithBufferSize(10),
		eventbus.WithWorkerCount(1),
		eventbus.WithRetries(1, 10*time.Millisecond),
	)
	defer bus.Close()

	var mu sync.Mutex
	emitted := make(map[eventbus.EventType]bool)
	handler := func(ctx context.Context, evt eventbus.Event) error {
		if evt == nil {
			t.Error("event is nil")
			return nil
		}

		mu.Lock()
		if _, ok := emitted[evt.Type()]; !ok {
			t.Logf("event emitted: %v", evt.Type())
			emitted[evt.Type()] = true
		}
		mu.Unlock()
		return nil
	}

	_, err := bus.SubscribeAll(handler)
	if err != nil {
		t.Fatalf("SubscribeAll failed: %v", err)
	}

	engine := newDummyEngine()
	engine.config.EnableEventBus = true
	engine.eventBus = bus

	stateMachine := engine.createStateMachine()
	tCtx := NewTurnContext("session-1", "Tell me about Paris")
	_, err = stateMachine.Execute(context.Background(), tCtx)
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	// Wait briefly for events to be processed
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(emitted) == 0 {
		t.Fatal("expected at least one event to be emitted")
	}
	for _, want := range []eventbus.EventType{
		eventbus.EventTurnStarted,
		eventbus.EventClassificationSuccess,
		eventbus.EventGateCheckHit,
		eventbus.EventTurnCommitted,
	} {
		if !emitted[want] {
			t.Errorf("expected event %v to be emitted", want)
		}
	}
}

func TestStateMachine_EventBus_EmitsCancellation(t *testing.T) {
	bus := eventbus.NewChannelEventBus(
		eventbus.WithBufferSize(10),
		eventbus.WithWorkerCount(1),
		eventbus.WithRetries(1, 10*time.Millisecond),
	)
	defer bus.Close()

	var mu sync.Mutex
	emitted := make(map[eventbus.EventType]bool)
	_, err := bus.SubscribeAll(func(ctx context.Context, evt eventbus.Event) error {
		mu.Lock()
		emitted[evt.Type()] = true
		mu.Unlock()
		return nil
	})
	if err != nil {
		t.Fatalf("SubscribeAll failed: %v", err)
	}

	engine := newDummyEngine()
	engine.config.EnableEventBus = true
	engine.eventBus = bus

	stateMachine := engine.createStateMachine()
	tCtx := NewTurnContext("session-1", "Tell me about Paris")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = stateMachine.Execute(ctx, tCtx)
	if err == nil {
		t.Fatal("expected error for cancellation, got nil")
	}
	// The cancellation event must still go out even though the turn's
	// context is already done.
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if !emitted[eventbus.EventTurnCancelled] {
		t.Errorf("expected event %v to be emitted", eventbus.EventTurnCancelled)
	}
	if emitted[eventbus.EventTurnCommitted] {
		t.Error("a cancelled turn must not emit a committed event")
	}
}

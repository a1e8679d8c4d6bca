package eventbus

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestChannelEventBus_PublishAndSubscribe(t *testing.T) {
	eb := NewChannelEventBus(
		WithBufferSize(1),
		WithWorkerCount(1),
		WithRetries(1, 10*time.Millisecond),
	)
	defer eb.Close()

	received := make(chan string, 1)
	handler := func(ctx context.Context, event Event) error {
		received <- string(event.Type())
		return nil
	}
	_, err := eb.Subscribe([]EventType{EventToolCallSuccess}, handler)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	evt := NewEvent(EventToolCallSuccess, nil, "test", nil)
	err = eb.Publish(context.Background(), evt)
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	select {
	case typ := <-received:
		if typ != string(EventToolCallSuccess) {
			t.Errorf("expected event type %v, got %v", EventToolCallSuccess, typ)
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("timeout waiting for event handler")
	}
}

func TestChannelEventBus_SubscribeAllSeesEveryType(t *testing.T) {
	eb := NewChannelEventBus(
		WithBufferSize(4),
		WithWorkerCount(1),
		WithRetries(1, 10*time.Millisecond),
	)
	defer eb.Close()

	received := make(chan EventType, 4)
	_, err := eb.SubscribeAll(func(ctx context.Context, event Event) error {
		received <- event.Type()
		return nil
	})
	if err != nil {
		t.Fatalf("SubscribeAll failed: %v", err)
	}

	types := []EventType{EventTurnStarted, EventGateCheckHit, EventTurnCommitted}
	for _, typ := range types {
		if err := eb.Publish(context.Background(), NewEvent(typ, nil, "test", nil)); err != nil {
			t.Fatalf("Publish(%s) failed: %v", typ, err)
		}
	}

	for _, want := range types {
		select {
		case got := <-received:
			if got != want {
				t.Errorf("expected event type %v, got %v", want, got)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("timeout waiting for event %v", want)
		}
	}
}

func TestChannelEventBus_HandlerRetry(t *testing.T) {
	eb := NewChannelEventBus(
		WithBufferSize(1),
		WithWorkerCount(1),
		WithRetries(2, 10*time.Millisecond),
	)
	defer eb.Close()

	var mu sync.Mutex
	calls := 0
	handler := func(ctx context.Context, event Event) error {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls < 2 {
			return context.DeadlineExceeded
		}
		return nil
	}
	_, err := eb.Subscribe([]EventType{EventToolCallFailure}, handler)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	err = eb.Publish(context.Background(), NewEvent(EventToolCallFailure, nil, "test", nil))
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	if calls < 2 {
		t.Errorf("expected at least 2 calls, got %d", calls)
	}
	mu.Unlock()
}

func TestChannelEventBus_ContextCancellation(t *testing.T) {
	eb := NewChannelEventBus(
		WithBufferSize(1),
		WithWorkerCount(1),
		WithRetries(1, 10*time.Millisecond),
	)
	defer eb.Close()

	ctx, cancel := context.WithCancel(context.Background())
	received := make(chan struct{}, 1)
	handler := func(ctx context.Context, event Event) error {
		received <- struct{}{}
		return nil
	}
	_, err := eb.Subscribe([]EventType{EventFanOutStarted}, handler)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	cancel()
	// Publish may queue or report the cancelled context; either way the
	// handler must not run.
	_ = eb.Publish(ctx, NewEvent(EventFanOutStarted, nil, "test", nil))

	select {
	case <-received:
		t.Error("handler should not be called after context cancellation")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestChannelEventBus_Unsubscribe(t *testing.T) {
	eb := NewChannelEventBus(
		WithBufferSize(1),
		WithWorkerCount(1),
		WithRetries(1, 10*time.Millisecond),
	)
	defer eb.Close()

	received := make(chan struct{}, 1)
	id, err := eb.Subscribe([]EventType{EventTurnCommitted}, func(ctx context.Context, event Event) error {
		received <- struct{}{}
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	if err := eb.Unsubscribe(id); err != nil {
		t.Fatalf("Unsubscribe failed: %v", err)
	}

	if err := eb.Publish(context.Background(), NewEvent(EventTurnCommitted, nil, "test", nil)); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	select {
	case <-received:
		t.Error("handler should not be called after unsubscribe")
	case <-time.After(50 * time.Millisecond):
	}
}

package voyago

import "github.com/voyago-ai/voyago/internal/eventbus"

// WithEventBus sets the event bus component.
func WithEventBus(bus eventbus.EventBus) Option {
	return func(e *Engine) {
		e.eventBus = bus
	}
}

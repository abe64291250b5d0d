package counters

import (
	"fmt"
	"time"

	"github.com/Miszion/riftbound-online-backend/internal/game/rules"
)

// CounterOperations mutates card counters and emits the matching events.
type CounterOperations struct {
	eventBus *rules.EventBus
}

// NewCounterOperations creates a CounterOperations instance.
func NewCounterOperations(eventBus *rules.EventBus) *CounterOperations {
	return &CounterOperations{eventBus: eventBus}
}

// Add places counters on a card and emits COUNTER_ADDED.
func (co *CounterOperations) Add(cs Counters, cardID string, kind Kind, amount int, controllerID string, at time.Time) {
	if amount <= 0 {
		return
	}
	cs.Add(kind, amount)
	co.publish(rules.EventCounterAdded, cardID, kind, amount, controllerID, at)
}

// Remove takes counters off a card, emits COUNTER_REMOVED when any were
// removed, and returns the number removed.
func (co *CounterOperations) Remove(cs Counters, cardID string, kind Kind, amount int, controllerID string, at time.Time) int {
	removed := cs.Remove(kind, amount)
	if removed > 0 {
		co.publish(rules.EventCounterRemoved, cardID, kind, removed, controllerID, at)
	}
	return removed
}

func (co *CounterOperations) publish(et rules.EventType, cardID string, kind Kind, amount int, controllerID string, at time.Time) {
	if co.eventBus == nil {
		return
	}
	evt := rules.NewEventWithAmount(et, cardID, cardID, controllerID, amount, at)
	evt.Data = string(kind)
	evt.Metadata["counter_kind"] = string(kind)
	evt.Description = fmt.Sprintf("%s %d %s counter(s) on %s", et, amount, kind, cardID)
	co.eventBus.Publish(evt)
}

package rules

import (
	"sync"
	"time"
)

// EventType indicates the category of a rules event.
type EventType string

const (
	// Match/turn events
	EventMatchStarted   EventType = "MATCH_STARTED"
	EventMatchCompleted EventType = "MATCH_COMPLETED"
	EventTurnStarted    EventType = "TURN_STARTED"
	EventTurnEnded      EventType = "TURN_ENDED"
	EventPhaseChanged   EventType = "PHASE_CHANGED"

	// Setup events
	EventInitiativeChosen    EventType = "INITIATIVE_CHOSEN"
	EventBattlefieldSelected EventType = "BATTLEFIELD_SELECTED"
	EventMulliganSubmitted   EventType = "MULLIGAN_SUBMITTED"

	// Card events
	EventCardDrawn      EventType = "CARD_DRAWN"
	EventCardDiscarded  EventType = "CARD_DISCARDED"
	EventCardPlayed     EventType = "CARD_PLAYED"
	EventUnitMoved      EventType = "UNIT_MOVED"
	EventUnitDied       EventType = "UNIT_DIED"
	EventTokenCreated   EventType = "TOKEN_CREATED"
	EventRunesChanneled EventType = "RUNES_CHANNELED"

	// Combat events
	EventAttackDeclared   EventType = "ATTACK_DECLARED"
	EventBlockersDeclared EventType = "BLOCKERS_DECLARED"
	EventDamageDealt      EventType = "DAMAGE_DEALT"
	EventCombatResolved   EventType = "COMBAT_RESOLVED"

	// Battlefield events
	EventBattlefieldConquered EventType = "BATTLEFIELD_CONQUERED"
	EventBattlefieldHeld      EventType = "BATTLEFIELD_HELD"
	EventControlChanged       EventType = "CONTROL_CHANGED"
	EventPointsScored         EventType = "POINTS_SCORED"

	// Effect events
	EventCounterAdded    EventType = "COUNTER_ADDED"
	EventCounterRemoved  EventType = "COUNTER_REMOVED"
	EventEffectApplied   EventType = "EFFECT_APPLIED"
	EventEffectExpired   EventType = "EFFECT_EXPIRED"
	EventResourcesGained EventType = "RESOURCES_GAINED"

	// Chain events
	EventChainItemAdded    EventType = "CHAIN_ITEM_ADDED"
	EventChainItemResolved EventType = "CHAIN_ITEM_RESOLVED"
	EventPriorityPassed    EventType = "PRIORITY_PASSED"
	EventPriorityExpired   EventType = "PRIORITY_EXPIRED"

	// Side channel
	EventChatMessage  EventType = "CHAT_MESSAGE"
	EventLogEntry     EventType = "LOG_ENTRY"
	EventResultReport EventType = "RESULT_REPORTED"
	EventConceded     EventType = "CONCEDED"
)

// Event represents a state change that other subsystems may react to.
type Event struct {
	Type        EventType         `json:"type"`
	ID          string            `json:"id,omitempty"`
	TargetID    string            `json:"target_id,omitempty"`
	SourceID    string            `json:"source_id,omitempty"`
	Controller  string            `json:"controller,omitempty"`
	PlayerID    string            `json:"player_id,omitempty"`
	Amount      int               `json:"amount,omitempty"`
	Data        string            `json:"data,omitempty"`
	Targets     []string          `json:"targets,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Description string            `json:"description,omitempty"`
}

// Listener defines a callback that reacts to incoming events.
type Listener func(Event)

// TypedListener defines a callback that reacts to a specific event type.
type TypedListener struct {
	Handle    int
	EventType EventType
	Callback  func(Event)
}

// EventBus provides a synchronous publish/subscribe implementation with type filtering.
type EventBus struct {
	mu             sync.RWMutex
	listeners      map[int]Listener
	typedListeners map[EventType][]TypedListener
	nextHandle     int
}

// NewEventBus constructs a fresh event bus instance.
func NewEventBus() *EventBus {
	return &EventBus{
		listeners:      make(map[int]Listener),
		typedListeners: make(map[EventType][]TypedListener),
	}
}

// Subscribe registers a listener for all events and returns a handle.
func (bus *EventBus) Subscribe(listener Listener) int {
	if listener == nil {
		return -1
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	handle := bus.nextHandle
	bus.nextHandle++
	bus.listeners[handle] = listener
	return handle
}

// SubscribeTyped registers a listener for a specific event type.
func (bus *EventBus) SubscribeTyped(eventType EventType, callback func(Event)) int {
	if callback == nil {
		return -1
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	handle := bus.nextHandle
	bus.nextHandle++
	bus.typedListeners[eventType] = append(bus.typedListeners[eventType], TypedListener{
		Handle:    handle,
		EventType: eventType,
		Callback:  callback,
	})
	return handle
}

// Unsubscribe removes the listener identified by the provided handle.
func (bus *EventBus) Unsubscribe(handle int) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	delete(bus.listeners, handle)
	for eventType, listeners := range bus.typedListeners {
		for i := len(listeners) - 1; i >= 0; i-- {
			if listeners[i].Handle == handle {
				bus.typedListeners[eventType] = append(listeners[:i], listeners[i+1:]...)
				break
			}
		}
	}
}

// Publish delivers the event to all registered listeners synchronously.
// Listeners must not publish from inside a callback.
func (bus *EventBus) Publish(event Event) {
	bus.mu.RLock()
	defer bus.mu.RUnlock()

	for _, listener := range bus.listeners {
		listener(event)
	}
	for _, listener := range bus.typedListeners[event.Type] {
		listener.Callback(event)
	}
}

// NewEvent creates a new event with common fields populated.
func NewEvent(eventType EventType, targetID, sourceID, controllerID string, at time.Time) Event {
	return Event{
		Type:       eventType,
		TargetID:   targetID,
		SourceID:   sourceID,
		Controller: controllerID,
		PlayerID:   controllerID,
		Timestamp:  at,
		Metadata:   make(map[string]string),
	}
}

// NewEventWithAmount creates a new event with an amount value.
func NewEventWithAmount(eventType EventType, targetID, sourceID, controllerID string, amount int, at time.Time) Event {
	evt := NewEvent(eventType, targetID, sourceID, controllerID, at)
	evt.Amount = amount
	return evt
}

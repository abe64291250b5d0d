package rules

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/Miszion/riftbound-online-backend/internal/game/effects"
)

// AbilityTrigger binds a compiled card trigger to a live card instance.
type AbilityTrigger struct {
	ID          string
	SourceID    string
	CardID      string
	Controller  string
	Kind        effects.TriggerKind
	Operations  []effects.Operation
	Description string
	// Anywhere lets conquer/hold triggers fire regardless of where the
	// source is, as for gear and legends.
	Anywhere  bool
	Condition func(Event) bool
	Once      bool
}

var triggerEvents = map[effects.TriggerKind]EventType{
	effects.TriggerPlay:      EventCardPlayed,
	effects.TriggerAttack:    EventAttackDeclared,
	effects.TriggerDefend:    EventBlockersDeclared,
	effects.TriggerDeath:     EventUnitDied,
	effects.TriggerConquer:   EventBattlefieldConquered,
	effects.TriggerHold:      EventBattlefieldHeld,
	effects.TriggerTurnStart: EventTurnStarted,
	effects.TriggerTurnEnd:   EventTurnEnded,
}

// EventFor returns the event type a trigger kind listens for.
func EventFor(kind effects.TriggerKind) (EventType, bool) {
	et, ok := triggerEvents[kind]
	return et, ok
}

// TriggerManager stores and evaluates ability triggers against events.
type TriggerManager struct {
	mu       sync.Mutex
	triggers map[string]AbilityTrigger
	order    map[string]int
	next     int
}

// NewTriggerManager creates an empty trigger manager.
func NewTriggerManager() *TriggerManager {
	return &TriggerManager{
		triggers: make(map[string]AbilityTrigger),
		order:    make(map[string]int),
	}
}

// Register adds a new trigger to the manager.
func (tm *TriggerManager) Register(trigger AbilityTrigger) string {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	if trigger.ID == "" {
		trigger.ID = uuid.NewString()
	}
	tm.triggers[trigger.ID] = trigger
	tm.order[trigger.ID] = tm.next
	tm.next++
	return trigger.ID
}

// Unregister removes a trigger by ID.
func (tm *TriggerManager) Unregister(id string) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	delete(tm.triggers, id)
	delete(tm.order, id)
}

// UnregisterSource removes every trigger owned by a card instance.
func (tm *TriggerManager) UnregisterSource(sourceID string) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	for id, trig := range tm.triggers {
		if trig.SourceID == sourceID {
			delete(tm.triggers, id)
			delete(tm.order, id)
		}
	}
}

// Count returns the number of registered triggers.
func (tm *TriggerManager) Count() int {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return len(tm.triggers)
}

// Handle evaluates the event against all registered triggers and returns
// the chain items they produce, in registration order.
func (tm *TriggerManager) Handle(event Event) []ChainItem {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if len(tm.triggers) == 0 {
		return nil
	}

	var matched []AbilityTrigger
	for _, trigger := range tm.triggers {
		if triggerEvents[trigger.Kind] != event.Type {
			continue
		}
		if !matches(trigger, event) {
			continue
		}
		if trigger.Condition != nil && !trigger.Condition(event) {
			continue
		}
		matched = append(matched, trigger)
	}
	sort.Slice(matched, func(i, j int) bool {
		return tm.order[matched[i].ID] < tm.order[matched[j].ID]
	})

	items := make([]ChainItem, 0, len(matched))
	for _, trigger := range matched {
		items = append(items, ChainItem{
			ID:          uuid.NewString(),
			Controller:  trigger.Controller,
			Description: trigger.Description,
			Kind:        ChainItemTriggered,
			SourceID:    trigger.SourceID,
			CardID:      trigger.CardID,
			Timing:      effects.TimingAny,
			Operations:  append([]effects.Operation(nil), trigger.Operations...),
			Metadata:    map[string]string{"trigger": string(trigger.Kind), "event": event.ID},
		})
		if trigger.Once {
			delete(tm.triggers, trigger.ID)
			delete(tm.order, trigger.ID)
		}
	}
	return items
}

// matches applies the per-kind scoping rules: self-referential triggers
// only answer events about their own source, player triggers answer events
// for their controller.
func matches(trigger AbilityTrigger, event Event) bool {
	switch trigger.Kind {
	case effects.TriggerPlay, effects.TriggerDeath:
		return event.TargetID == trigger.SourceID
	case effects.TriggerAttack, effects.TriggerDefend:
		return containsID(event.Targets, trigger.SourceID)
	case effects.TriggerConquer, effects.TriggerHold:
		if event.Controller != trigger.Controller {
			return false
		}
		return trigger.Anywhere || containsID(event.Targets, trigger.SourceID)
	case effects.TriggerTurnStart, effects.TriggerTurnEnd:
		return event.PlayerID == trigger.Controller
	}
	return false
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

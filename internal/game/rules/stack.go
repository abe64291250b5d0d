package rules

import (
	"errors"

	"github.com/Miszion/riftbound-online-backend/internal/game/effects"
)

// ChainItemKind describes the type of object on the chain.
type ChainItemKind string

const (
	// ChainItemSpell represents a spell played by a player.
	ChainItemSpell ChainItemKind = "SPELL"
	// ChainItemTriggered represents a triggered ability.
	ChainItemTriggered ChainItemKind = "TRIGGERED"
)

// ChainItem is a single pending effect awaiting resolution. Items are plain
// data so the chain can be snapshotted; the engine resolves them by
// applying Operations against Targets.
type ChainItem struct {
	ID          string              `json:"id"`
	Controller  string              `json:"controller"`
	Description string              `json:"description"`
	Kind        ChainItemKind       `json:"kind"`
	SourceID    string              `json:"source_id"`
	CardID      string              `json:"card_id"`
	Timing      effects.Timing      `json:"timing"`
	Operations  []effects.Operation `json:"operations"`
	Targets     []string            `json:"targets,omitempty"`
	Metadata    map[string]string   `json:"metadata,omitempty"`
}

// ErrStackEmpty is returned when popping an empty stack.
var ErrStackEmpty = errors.New("stack empty")

// Stack is the LIFO list of pending chain items, topmost last.
type Stack struct {
	Items []ChainItem `json:"items"`
}

// Push adds an item to the top of the stack.
func (s *Stack) Push(item ChainItem) {
	s.Items = append(s.Items, item)
}

// Pop removes the top item from the stack.
func (s *Stack) Pop() (ChainItem, error) {
	if len(s.Items) == 0 {
		return ChainItem{}, ErrStackEmpty
	}
	idx := len(s.Items) - 1
	item := s.Items[idx]
	s.Items = s.Items[:idx]
	return item, nil
}

// Remove deletes an item from anywhere in the stack by ID.
func (s *Stack) Remove(id string) (ChainItem, bool) {
	for idx := len(s.Items) - 1; idx >= 0; idx-- {
		if s.Items[idx].ID == id {
			item := s.Items[idx]
			s.Items = append(s.Items[:idx], s.Items[idx+1:]...)
			return item, true
		}
	}
	return ChainItem{}, false
}

// Peek returns the top item without removing it.
func (s *Stack) Peek() (ChainItem, bool) {
	if len(s.Items) == 0 {
		return ChainItem{}, false
	}
	return s.Items[len(s.Items)-1], true
}

// List returns a copy of all stack items (topmost last).
func (s *Stack) List() []ChainItem {
	cpy := make([]ChainItem, len(s.Items))
	for i, item := range s.Items {
		cpy[i] = item.clone()
	}
	return cpy
}

// IsEmpty returns whether the stack is empty.
func (s *Stack) IsEmpty() bool {
	return len(s.Items) == 0
}

func (item ChainItem) clone() ChainItem {
	out := item
	out.Operations = append([]effects.Operation(nil), item.Operations...)
	out.Targets = append([]string(nil), item.Targets...)
	if item.Metadata != nil {
		out.Metadata = make(map[string]string, len(item.Metadata))
		for k, v := range item.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

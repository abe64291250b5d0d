// Package counters tracks the counters placed on card instances.
package counters

import "sort"

// Kind is a type of counter.
type Kind string

const (
	// Buff adds one might per counter until the unit leaves play.
	Buff Kind = "buff"
	// Shield absorbs one point of damage per counter.
	Shield Kind = "shield"
)

// Counters is a collection of counters keyed by kind. Counts never go
// below zero; a kind whose count reaches zero is removed.
type Counters map[Kind]int

// Add adds amount counters of kind. Non-positive amounts are ignored.
func (cs Counters) Add(kind Kind, amount int) {
	if amount <= 0 {
		return
	}
	cs[kind] += amount
}

// Remove removes up to amount counters of kind and returns how many were
// actually removed.
func (cs Counters) Remove(kind Kind, amount int) int {
	if amount <= 0 {
		return 0
	}
	have := cs[kind]
	if amount > have {
		amount = have
	}
	if have-amount == 0 {
		delete(cs, kind)
	} else {
		cs[kind] = have - amount
	}
	return amount
}

// Count returns the number of counters of kind.
func (cs Counters) Count(kind Kind) int {
	return cs[kind]
}

// Has returns true if there are any counters of kind.
func (cs Counters) Has(kind Kind) bool {
	return cs[kind] > 0
}

// Copy creates a deep copy of the collection.
func (cs Counters) Copy() Counters {
	out := make(Counters, len(cs))
	for k, v := range cs {
		out[k] = v
	}
	return out
}

// CounterView is a client-facing rendering of one counter kind.
type CounterView struct {
	Kind  Kind `json:"kind"`
	Count int  `json:"count"`
}

// ToView returns the counters sorted by kind.
func (cs Counters) ToView() []CounterView {
	out := make([]CounterView, 0, len(cs))
	for k, v := range cs {
		out = append(out, CounterView{Kind: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out
}

package effects

import "fmt"

// TaxonomyVersion is bumped whenever an OperationKind is added, removed or
// its classification pattern changes. Stored profiles carry the version
// they were produced with.
const TaxonomyVersion = 2

// OperationKind is the closed set of operations a card effect can perform.
type OperationKind string

const (
	OpDamage       OperationKind = "damage"
	OpBuff         OperationKind = "buff"
	OpDebuff       OperationKind = "debuff"
	OpDraw         OperationKind = "draw"
	OpDiscard      OperationKind = "discard"
	OpSummon       OperationKind = "summon"
	OpMove         OperationKind = "move"
	OpControl      OperationKind = "control"
	OpRemoval      OperationKind = "removal"
	OpResourceGain OperationKind = "resource_gain"
	OpChannel      OperationKind = "channel"
	OpShield       OperationKind = "shield"
	OpSearch       OperationKind = "search"
	OpHeal         OperationKind = "heal"
	OpStun         OperationKind = "stun"
	OpGeneric      OperationKind = "generic"
)

var operationKinds = map[OperationKind]struct{}{
	OpDamage: {}, OpBuff: {}, OpDebuff: {}, OpDraw: {}, OpDiscard: {},
	OpSummon: {}, OpMove: {}, OpControl: {}, OpRemoval: {}, OpResourceGain: {},
	OpChannel: {}, OpShield: {}, OpSearch: {}, OpHeal: {}, OpStun: {}, OpGeneric: {},
}

// Valid reports whether k is part of the taxonomy.
func (k OperationKind) Valid() bool {
	_, ok := operationKinds[k]
	return ok
}

// ParseOperationKind converts a stored string back into a kind.
func ParseOperationKind(s string) (OperationKind, error) {
	k := OperationKind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown operation kind %q", s)
	}
	return k, nil
}

// TargetMode describes how many targets an operation selects.
type TargetMode string

const (
	TargetNone     TargetMode = "none"
	TargetSingle   TargetMode = "single"
	TargetMultiple TargetMode = "multiple"
	TargetGlobal   TargetMode = "global"
)

var targetModeRank = map[TargetMode]int{
	TargetNone:     0,
	TargetSingle:   1,
	TargetMultiple: 2,
	TargetGlobal:   3,
}

// Wider returns the broader of two modes.
func (m TargetMode) Wider(other TargetMode) TargetMode {
	if targetModeRank[other] > targetModeRank[m] {
		return other
	}
	return m
}

// TargetHint narrows which objects an operation may select.
type TargetHint string

const (
	HintAny         TargetHint = "any"
	HintAlly        TargetHint = "ally"
	HintEnemy       TargetHint = "enemy"
	HintSelf        TargetHint = "self"
	HintBattlefield TargetHint = "battlefield"
)

// Timing is the priority-timing hint attached to a profile.
type Timing string

const (
	TimingMain     Timing = "main"
	TimingCombat   Timing = "combat"
	TimingReaction Timing = "reaction"
	TimingSetup    Timing = "setup"
	TimingAny      Timing = "any"
)

// Operation is one classified clause of a card effect.
type Operation struct {
	Kind              OperationKind `json:"kind"`
	Magnitude         *int          `json:"magnitude,omitempty"`
	TargetMode        TargetMode    `json:"target_mode"`
	TargetHint        TargetHint    `json:"target_hint"`
	RequiresSelection bool          `json:"requires_selection"`
	Text              string        `json:"text,omitempty"`
}

// Amount returns the magnitude or def when the size is contextual.
func (o Operation) Amount(def int) int {
	if o.Magnitude == nil {
		return def
	}
	return *o.Magnitude
}

// MaxTargets is the number of targets a selecting operation accepts.
func (o Operation) MaxTargets() int {
	switch o.TargetMode {
	case TargetSingle:
		return 1
	case TargetMultiple:
		return o.Amount(2)
	default:
		return 0
	}
}

// Profile is the precomputed classification of a card's effect text.
type Profile struct {
	Version     int         `json:"version"`
	Operations  []Operation `json:"operations"`
	TargetMode  TargetMode  `json:"target_mode"`
	Timing      Timing      `json:"timing"`
	Keywords    []Keyword   `json:"keywords,omitempty"`
	NeedsReview bool        `json:"needs_review"`
}

// AutoPlayable is false for profiles that fell back to a generic operation.
func (p Profile) AutoPlayable() bool {
	for _, op := range p.Operations {
		if op.Kind == OpGeneric {
			return false
		}
	}
	return true
}

// RequiresSelection reports whether any operation needs chosen targets.
func (p Profile) RequiresSelection() bool {
	for _, op := range p.Operations {
		if op.RequiresSelection {
			return true
		}
	}
	return false
}

// Keyword is a bracketed rules keyword printed on a card.
type Keyword string

const (
	KeywordTank     Keyword = "tank"
	KeywordAssault  Keyword = "assault"
	KeywordReaction Keyword = "reaction"
	KeywordAction   Keyword = "action"
	KeywordShield   Keyword = "shield"
)

// Has reports whether the profile lists keyword k.
func (p Profile) Has(k Keyword) bool {
	for _, kw := range p.Keywords {
		if kw == k {
			return true
		}
	}
	return false
}

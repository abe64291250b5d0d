// Package targeting validates the targets chosen for card operations.
package targeting

import (
	"fmt"

	"github.com/Miszion/riftbound-online-backend/internal/game/effects"
)

// TargetType represents the type of object an operation selects.
type TargetType string

const (
	// TargetTypeUnit targets units on the board.
	TargetTypeUnit TargetType = "UNIT"
	// TargetTypeBattlefield targets battlefields.
	TargetTypeBattlefield TargetType = "BATTLEFIELD"
)

// TargetRequirement defines what targets an operation requires.
type TargetRequirement struct {
	Type       TargetType
	Hint       effects.TargetHint
	MinTargets int
	MaxTargets int
	// Optional is set for "up to N" selections, which still need one target.
	Optional    bool
	Description string
}

// RequirementFor derives the target requirement of an operation. The
// second result is false when the operation selects nothing.
func RequirementFor(op effects.Operation) (TargetRequirement, bool) {
	if !op.RequiresSelection {
		return TargetRequirement{}, false
	}
	req := TargetRequirement{
		Type:       TargetTypeUnit,
		Hint:       op.TargetHint,
		MinTargets: 1,
		MaxTargets: op.MaxTargets(),
	}
	if op.TargetHint == effects.HintBattlefield || op.Kind == effects.OpControl {
		req.Type = TargetTypeBattlefield
	}
	if op.TargetMode == effects.TargetMultiple {
		req.Optional = true
	}
	if req.MaxTargets < req.MinTargets {
		req.MaxTargets = req.MinTargets
	}
	req.Description = fmt.Sprintf("%s %s (%d-%d)", op.TargetHint, req.Type, req.MinTargets, req.MaxTargets)
	return req, true
}

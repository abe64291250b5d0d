package targeting

import (
	"github.com/Miszion/riftbound-online-backend/internal/apperr"
	"github.com/Miszion/riftbound-online-backend/internal/game/effects"
)

// TargetValidator validates that selected targets are legal.
type TargetValidator struct {
	gameState TargetGameStateAccessor
}

// TargetGameStateAccessor provides access to match state needed for target validation.
type TargetGameStateAccessor interface {
	// FindUnitForTarget finds a unit on the board by instance ID.
	FindUnitForTarget(unitID string) (TargetCardInfo, bool)
	// FindBattlefieldForTarget finds a battlefield by ID.
	FindBattlefieldForTarget(battlefieldID string) (TargetBattlefieldInfo, bool)
}

// TargetCardInfo provides information about a unit for target validation.
type TargetCardInfo struct {
	ID            string
	Name          string
	ControllerID  string
	OwnerID       string
	BattlefieldID string
	Exhausted     bool
}

// TargetBattlefieldInfo provides information about a battlefield for target validation.
type TargetBattlefieldInfo struct {
	ID           string
	Name         string
	ControllerID string
}

// NewTargetValidator creates a new target validator.
func NewTargetValidator(gameState TargetGameStateAccessor) *TargetValidator {
	return &TargetValidator{gameState: gameState}
}

// ValidateTargets checks the count, uniqueness and legality of targets
// chosen by actor for requirement.
func (tv *TargetValidator) ValidateTargets(actor string, targets []string, requirement TargetRequirement) error {
	if tv == nil || tv.gameState == nil {
		return apperr.New(apperr.CodeInternal, "target validator not initialized")
	}
	if len(targets) < requirement.MinTargets {
		return apperr.WithMetadata(apperr.CodeTargeting, "not enough targets", map[string]string{
			"required": requirement.Description,
		})
	}
	if requirement.MaxTargets > 0 && len(targets) > requirement.MaxTargets {
		return apperr.WithMetadata(apperr.CodeTargeting, "too many targets", map[string]string{
			"required": requirement.Description,
		})
	}
	seen := make(map[string]bool, len(targets))
	for _, id := range targets {
		if seen[id] {
			return apperr.New(apperr.CodeTargeting, "target %s chosen twice", id)
		}
		seen[id] = true
		if err := tv.ValidateTarget(actor, id, requirement); err != nil {
			return err
		}
	}
	return nil
}

// ValidateTarget checks if a single target ID is valid for the given requirement.
func (tv *TargetValidator) ValidateTarget(actor, targetID string, requirement TargetRequirement) error {
	switch requirement.Type {
	case TargetTypeBattlefield:
		bf, ok := tv.gameState.FindBattlefieldForTarget(targetID)
		if !ok {
			return apperr.New(apperr.CodeTargeting, "battlefield %s not found", targetID)
		}
		return checkHint(actor, bf.ControllerID, requirement.Hint, targetID, true)
	default:
		unit, ok := tv.gameState.FindUnitForTarget(targetID)
		if !ok {
			return apperr.New(apperr.CodeTargeting, "unit %s is not on the board", targetID)
		}
		return checkHint(actor, unit.ControllerID, requirement.Hint, targetID, false)
	}
}

func checkHint(actor, controller string, hint effects.TargetHint, id string, battlefield bool) error {
	switch hint {
	case effects.HintAlly, effects.HintSelf:
		if controller != actor {
			return apperr.New(apperr.CodeTargeting, "%s is not controlled by %s", id, actor)
		}
	case effects.HintEnemy:
		if controller == actor || (controller == "" && !battlefield) {
			return apperr.New(apperr.CodeTargeting, "%s is not an enemy", id)
		}
	}
	return nil
}

package game

import (
	"github.com/Miszion/riftbound-online-backend/internal/apperr"
	"github.com/Miszion/riftbound-online-backend/internal/game/catalog"
	"github.com/Miszion/riftbound-online-backend/internal/game/effects"
	"github.com/Miszion/riftbound-online-backend/internal/game/rules"
)

// ActionKind names a player verb.
type ActionKind string

const (
	ActionSubmitInitiative  ActionKind = "submit_initiative_choice"
	ActionSelectBattlefield ActionKind = "select_battlefield"
	ActionSubmitMulligan    ActionKind = "submit_mulligan"
	ActionPlayCard          ActionKind = "play_card"
	ActionDeclareAttacker   ActionKind = "declare_attacker"
	ActionMoveUnit          ActionKind = "move_unit"
	ActionDeclareBlockers   ActionKind = "declare_blockers"
	ActionPassPriority      ActionKind = "pass_priority"
	ActionAdvancePhase      ActionKind = "advance_phase"
	ActionConcede           ActionKind = "concede"
	ActionChat              ActionKind = "chat"
	ActionLog               ActionKind = "log"
	ActionReportResult      ActionKind = "report_result"
)

// Action is one request from a player. Only the fields relevant to Kind
// are read.
type Action struct {
	Kind ActionKind `json:"kind"`
	// GoFirst answers the initiative choice.
	GoFirst bool `json:"go_first,omitempty"`
	// BattlefieldID is the card ID picked during setup.
	BattlefieldID string `json:"battlefield_id,omitempty"`
	// Indices are hand positions returned by a mulligan.
	Indices []int `json:"indices,omitempty"`
	// HandIndex is the hand position of the card to play.
	HandIndex int `json:"hand_index,omitempty"`
	// Targets are chosen card instance or battlefield IDs.
	Targets []string `json:"targets,omitempty"`
	// Destination is "base" or a battlefield ID.
	Destination string `json:"destination,omitempty"`
	// UnitID is the unit that attacks or moves.
	UnitID string `json:"unit_id,omitempty"`
	// Blockers are base units committed to defend.
	Blockers []string `json:"blockers,omitempty"`
	// Message is the chat or log text.
	Message string `json:"message,omitempty"`
	// Winner is the reported match winner.
	Winner string `json:"winner,omitempty"`
}

// DestinationBase is the destination value for a player's base.
const DestinationBase = "base"

// class returns the guard class of the action. Playing a card depends on
// the card's timing, so the hand is consulted.
func (a Action) class(hand []*CardInstance) (rules.ActionClass, error) {
	switch a.Kind {
	case ActionSubmitInitiative, ActionSelectBattlefield, ActionSubmitMulligan:
		return rules.ClassSetup, nil
	case ActionPlayCard:
		if a.HandIndex < 0 || a.HandIndex >= len(hand) {
			return rules.ClassMain, nil
		}
		card := hand[a.HandIndex].Card
		if card == nil || card.Type != catalog.TypeSpell {
			return rules.ClassMain, nil
		}
		switch card.Profile.Timing {
		case effects.TimingReaction:
			return rules.ClassReaction, nil
		case effects.TimingCombat, effects.TimingAny:
			return rules.ClassAction, nil
		}
		return rules.ClassMain, nil
	case ActionMoveUnit:
		return rules.ClassMain, nil
	case ActionDeclareAttacker:
		return rules.ClassAttack, nil
	case ActionDeclareBlockers:
		return rules.ClassBlock, nil
	case ActionPassPriority:
		return rules.ClassPass, nil
	case ActionAdvancePhase:
		return rules.ClassAdvance, nil
	case ActionConcede:
		return rules.ClassCancel, nil
	case ActionChat, ActionLog, ActionReportResult:
		return rules.ClassSide, nil
	}
	return 0, apperr.New(apperr.CodeValidation, "unknown action %q", a.Kind)
}

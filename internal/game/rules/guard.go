package rules

import (
	"github.com/Miszion/riftbound-online-backend/internal/apperr"
)

// ActionClass is the timing class of an action, as far as the guard cares.
type ActionClass int

const (
	// ClassSetup covers initiative, battlefield selection and mulligan.
	ClassSetup ActionClass = iota
	// ClassMain covers main-timing plays and unit movement.
	ClassMain
	// ClassAttack is an attack declaration.
	ClassAttack
	// ClassAction covers combat-timed spells, legal on the active turn, in a
	// combat window and in response to a pending chain.
	ClassAction
	// ClassReaction covers reaction-timed spells.
	ClassReaction
	// ClassAdvance moves the turn to the next phase.
	ClassAdvance
	// ClassPass passes priority in an open window.
	ClassPass
	// ClassBlock commits blockers in a combat window.
	ClassBlock
	// ClassCancel covers concede; always accepted.
	ClassCancel
	// ClassSide covers chat, log entries and result reports.
	ClassSide
)

// GuardState is the part of the match the guard needs.
type GuardState struct {
	Phase        Phase
	ActivePlayer string
	Chain        *Chain
}

// CanAct is the single authority on whether actor may take an action of
// class right now. It only judges timing; resource and target legality are
// checked by the engine afterwards.
func CanAct(st GuardState, actor string, class ActionClass) error {
	if class == ClassCancel || class == ClassSide {
		return nil
	}
	if st.Phase == PhaseCompleted {
		return apperr.New(apperr.CodeMatchCompleted, "match is completed")
	}
	if st.Phase == PhaseSetup {
		if class != ClassSetup {
			return apperr.New(apperr.CodeInvalidPhaseAction, "match is still in setup")
		}
		return nil
	}
	if class == ClassSetup {
		return apperr.New(apperr.CodeInvalidPhaseAction, "setup is over")
	}

	if st.Chain != nil && st.Chain.Window != nil {
		w := st.Chain.Window
		if actor != w.Holder {
			return apperr.New(apperr.CodePriorityViolation, "waiting for %s to respond", w.Holder)
		}
		switch {
		case st.Chain.State() == ChainClosed:
			if class == ClassReaction || class == ClassAction || class == ClassPass {
				return nil
			}
			return apperr.New(apperr.CodePriorityViolation, "only reaction or combat-timed plays are legal while the chain is pending")
		case w.Kind == WindowCombat:
			if class == ClassReaction || class == ClassAction || class == ClassPass || class == ClassBlock {
				return nil
			}
			return apperr.New(apperr.CodePriorityViolation, "only combat responses are legal during an attack")
		}
	}

	if class == ClassPass || class == ClassBlock {
		return apperr.New(apperr.CodeInvalidPhaseAction, "no priority window is open")
	}
	if actor != st.ActivePlayer {
		return apperr.New(apperr.CodeNotYourTurn, "it is %s's turn", st.ActivePlayer)
	}

	switch class {
	case ClassMain:
		if !st.Phase.IsMain() {
			return apperr.New(apperr.CodeInvalidPhaseAction, "%s is not a main phase", st.Phase)
		}
	case ClassAttack:
		if st.Phase != PhaseCombat {
			return apperr.New(apperr.CodeInvalidPhaseAction, "attacks are declared in the combat phase")
		}
	case ClassAction, ClassReaction, ClassAdvance:
		if !st.Phase.IsMain() && st.Phase != PhaseCombat {
			return apperr.New(apperr.CodeInvalidPhaseAction, "%s does not accept actions", st.Phase)
		}
	}
	return nil
}

package rules

import (
	"fmt"
	"strings"
)

// Phase represents the phases of a turn plus the setup and terminal states.
type Phase int

const (
	PhaseSetup Phase = iota
	PhaseBeginning
	PhaseMain1
	PhaseCombat
	PhaseMain2
	PhaseEnd
	PhaseCompleted
)

var phaseNames = map[Phase]string{
	PhaseSetup:     "SETUP",
	PhaseBeginning: "BEGINNING",
	PhaseMain1:     "MAIN_1",
	PhaseCombat:    "COMBAT",
	PhaseMain2:     "MAIN_2",
	PhaseEnd:       "END",
	PhaseCompleted: "COMPLETED",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("PHASE_%d", int(p))
}

// MarshalText encodes the phase by name.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText decodes a phase name.
func (p *Phase) UnmarshalText(b []byte) error {
	for phase, name := range phaseNames {
		if name == string(b) {
			*p = phase
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", string(b))
}

// IsMain reports whether players may take main-timing actions.
func (p Phase) IsMain() bool {
	return p == PhaseMain1 || p == PhaseMain2
}

// SetupStep is the sub-sequence run before the first turn.
type SetupStep int

const (
	SetupInitiative SetupStep = iota
	SetupBattlefield
	SetupMulligan
	SetupDone
)

var setupStepNames = map[SetupStep]string{
	SetupInitiative:  "INITIATIVE",
	SetupBattlefield: "BATTLEFIELD",
	SetupMulligan:    "MULLIGAN",
	SetupDone:        "DONE",
}

func (s SetupStep) String() string {
	if name, ok := setupStepNames[s]; ok {
		return name
	}
	return fmt.Sprintf("SETUP_%d", int(s))
}

// MarshalText encodes the step by name.
func (s SetupStep) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a step name.
func (s *SetupStep) UnmarshalText(b []byte) error {
	for step, name := range setupStepNames {
		if name == string(b) {
			*s = step
			return nil
		}
	}
	return fmt.Errorf("unknown setup step %q", string(b))
}

// turnSequence is the order phases run in within a turn.
var turnSequence = []Phase{PhaseBeginning, PhaseMain1, PhaseCombat, PhaseMain2, PhaseEnd}

// TurnManager tracks the active player and turn progression. It is a
// plain value so match snapshots can carry it.
type TurnManager struct {
	Number       int    `json:"number"`
	Phase        Phase  `json:"phase"`
	ActivePlayer string `json:"active_player"`
}

// NewTurnManager creates a turn manager in the setup phase.
func NewTurnManager(activePlayer string) *TurnManager {
	return &TurnManager{
		Number:       0,
		Phase:        PhaseSetup,
		ActivePlayer: strings.TrimSpace(activePlayer),
	}
}

// Start leaves setup and begins turn 1 for firstPlayer.
func (tm *TurnManager) Start(firstPlayer string) Phase {
	tm.Number = 1
	tm.Phase = PhaseBeginning
	tm.ActivePlayer = strings.TrimSpace(firstPlayer)
	return tm.Phase
}

// Advance moves to the next phase. After the end phase the turn number is
// incremented and the active player rotates to nextActivePlayer.
func (tm *TurnManager) Advance(nextActivePlayer string) Phase {
	if tm.Phase == PhaseSetup || tm.Phase == PhaseCompleted {
		return tm.Phase
	}
	idx := 0
	for i, p := range turnSequence {
		if p == tm.Phase {
			idx = i
			break
		}
	}
	idx++
	if idx >= len(turnSequence) {
		idx = 0
		tm.Number++
		if next := strings.TrimSpace(nextActivePlayer); next != "" {
			tm.ActivePlayer = next
		}
	}
	tm.Phase = turnSequence[idx]
	return tm.Phase
}

// Complete moves the turn machine to its terminal state.
func (tm *TurnManager) Complete() {
	tm.Phase = PhaseCompleted
}

// CurrentPhase returns the phase currently in progress.
func (tm *TurnManager) CurrentPhase() Phase {
	return tm.Phase
}

// TurnNumber returns the current turn number (1-based, 0 during setup).
func (tm *TurnManager) TurnNumber() int {
	return tm.Number
}

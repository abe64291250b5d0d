package game

import (
	"sort"

	"github.com/Miszion/riftbound-online-backend/internal/apperr"
	"github.com/Miszion/riftbound-online-backend/internal/game/effects"
	"github.com/Miszion/riftbound-online-backend/internal/game/rules"
)

// assaultBonus is the extra might an [Assault] unit has while attacking.
const assaultBonus = 1

// readyUnit returns a unit the actor controls that can move this turn.
func (s *step) readyUnit(unitID string) (*CardInstance, error) {
	u, ok := s.st.FindCard(unitID)
	if !ok || !onBoard(u) {
		return nil, apperr.New(apperr.CodeValidation, "unit %s is not on the board", unitID)
	}
	if u.Controller != s.actor {
		return nil, apperr.New(apperr.CodeValidation, "unit %s is not yours", unitID)
	}
	if u.Exhausted {
		return nil, apperr.New(apperr.CodeValidation, "unit %s is exhausted", unitID)
	}
	if Stunned(s.st, u) {
		return nil, apperr.New(apperr.CodeValidation, "unit %s is stunned", unitID)
	}
	return u, nil
}

// moveUnit is a main-phase move between base and a battlefield. Entering
// an uncontrolled or enemy-controlled empty battlefield conquers it.
func (s *step) moveUnit(unitID, destination string) error {
	u, err := s.readyUnit(unitID)
	if err != nil {
		return err
	}
	opp := s.st.Opponent(s.actor)

	if destination == DestinationBase || destination == "" {
		if u.Location.Zone != ZoneBattlefield {
			return apperr.New(apperr.CodeValidation, "unit %s is already at base", unitID)
		}
		u.Exhausted = true
		s.recall(u)
		return nil
	}

	b, ok := s.st.Battlefield(destination)
	if !ok {
		return apperr.New(apperr.CodeValidation, "battlefield %s not found", destination)
	}
	if u.Location.Zone != ZoneBase {
		return apperr.New(apperr.CodeValidation, "units move to a battlefield from base")
	}
	if len(b.unitsOf(opp)) > 0 {
		return apperr.New(apperr.CodeInvalidPhaseAction, "battlefield %s is occupied; attack it in combat", b.Name)
	}

	s.enter(u, b)
	if b.Controller != s.actor {
		s.conquer(s.actor, b)
	}
	return nil
}

func (s *step) enter(u *CardInstance, b *Battlefield) {
	_, _ = s.moveCard(u.ID, ZoneBattlefield, b.ID)
	u.Exhausted = true
	ev := s.event(rules.EventUnitMoved, u.ID, u.ID, u.Controller)
	ev.Data = b.ID
	s.emit(ev)
}

// declareAttacker sends a unit into a battlefield during the combat phase.
// With no defenders present the battlefield is conquered on arrival;
// otherwise the defender gets a combat window.
func (s *step) declareAttacker(unitID, destination string) error {
	if s.st.Combat != nil {
		return apperr.New(apperr.CodeInvalidPhaseAction, "an attack is already in progress")
	}
	u, err := s.readyUnit(unitID)
	if err != nil {
		return err
	}
	b, ok := s.st.Battlefield(destination)
	if !ok {
		return apperr.New(apperr.CodeValidation, "battlefield %s not found", destination)
	}
	if u.Location.BattlefieldID == b.ID {
		return apperr.New(apperr.CodeValidation, "unit %s is already at %s", unitID, b.Name)
	}

	opp := s.st.Opponent(s.actor)
	s.enter(u, b)
	if u.Activation == nil {
		u.Activation = make(map[string]int)
	}
	u.Activation["attacked_turn"] = s.st.Turn.Number

	attackers := b.unitsOf(s.actor)
	ev := s.event(rules.EventAttackDeclared, b.ID, u.ID, s.actor)
	ev.Targets = unitIDs(attackers)
	s.emit(ev)

	if len(b.unitsOf(opp)) == 0 {
		if b.Controller != s.actor {
			s.conquer(s.actor, b)
		}
		return nil
	}
	s.st.Combat = &CombatState{
		BattlefieldID: b.ID,
		Attacker:      s.actor,
		Defender:      opp,
		Attackers:     unitIDs(attackers),
		Stage:         CombatDeclared,
	}
	b.Contesting = []string{s.actor, opp}
	return nil
}

// declareBlockers commits ready base units of the defender to the
// contested battlefield and closes the combat window.
func (s *step) declareBlockers(blockers []string) error {
	c := s.st.Combat
	if c == nil || c.Stage != CombatDeclared || c.Defender != s.actor {
		return apperr.New(apperr.CodeInvalidPhaseAction, "no attack to block")
	}
	b, ok := s.st.Battlefield(c.BattlefieldID)
	if !ok {
		return apperr.New(apperr.CodeInternal, "combat battlefield %s missing", c.BattlefieldID)
	}
	seen := make(map[string]bool, len(blockers))
	units := make([]*CardInstance, 0, len(blockers))
	for _, id := range blockers {
		if seen[id] {
			return apperr.New(apperr.CodeValidation, "blocker %s listed twice", id)
		}
		seen[id] = true
		u, err := s.readyUnit(id)
		if err != nil {
			return err
		}
		if u.Location.Zone != ZoneBase {
			return apperr.New(apperr.CodeValidation, "blocker %s must come from base", id)
		}
		units = append(units, u)
	}

	s.st.Chain.Settle()
	for _, u := range units {
		s.enter(u, b)
	}
	c.Blockers = append([]string(nil), blockers...)
	c.Stage = CombatBlocked

	ev := s.event(rules.EventBlockersDeclared, b.ID, "", s.actor)
	ev.Targets = unitIDs(b.unitsOf(s.actor))
	s.emit(ev)
	return nil
}

// progressCombat moves a pending combat forward when no window is open.
// It reports whether anything changed.
func (s *step) progressCombat() bool {
	c := s.st.Combat
	if c == nil {
		return false
	}
	b, ok := s.st.Battlefield(c.BattlefieldID)
	if !ok {
		s.st.Combat = nil
		return true
	}
	if len(b.unitsOf(c.Attacker)) == 0 || len(b.unitsOf(c.Defender)) == 0 {
		s.resolveCombat()
		return true
	}
	if c.Stage == CombatDeclared {
		if err := s.st.Chain.OpenCombatWindow(c.Defender, s.now, s.e.opts.PriorityWindow); err != nil {
			return false
		}
		return false
	}
	s.resolveCombat()
	return true
}

// resolveCombat deals damage simultaneously between the units in contact,
// removes the dead and settles control. Players and battlefields never
// take damage.
func (s *step) resolveCombat() {
	c := s.st.Combat
	s.st.Combat = nil
	b, ok := s.st.Battlefield(c.BattlefieldID)
	if !ok {
		return
	}
	b.Contesting = nil

	attackers := b.unitsOf(c.Attacker)
	defenders := b.unitsOf(c.Defender)
	atkPower, defPower := 0, 0
	for _, u := range attackers {
		if Stunned(s.st, u) {
			continue
		}
		atkPower += s.might(u)
		if u.Card != nil && u.Card.Profile.Has(effects.KeywordAssault) {
			atkPower += assaultBonus
		}
	}
	for _, u := range defenders {
		if !Stunned(s.st, u) {
			defPower += s.might(u)
		}
	}

	s.assignDamage(b.ID, c.Attacker, defenders, atkPower)
	s.assignDamage(b.ID, c.Defender, attackers, defPower)
	s.checkDeaths()

	attackers = b.unitsOf(c.Attacker)
	defenders = b.unitsOf(c.Defender)
	outcome := "stalemate"
	switch {
	case len(attackers) > 0 && len(defenders) == 0:
		outcome = "attacker"
		if b.Controller != c.Attacker {
			s.conquer(c.Attacker, b)
		}
	case len(defenders) > 0 && len(attackers) == 0:
		outcome = "defender"
		s.setController(b, c.Defender)
	case len(attackers) > 0:
		for _, u := range attackers {
			s.recall(u)
		}
	default:
		outcome = "wiped"
		s.setController(b, "")
	}

	ev := s.event(rules.EventCombatResolved, b.ID, b.ID, c.Attacker)
	ev.Data = outcome
	s.emit(ev)
}

// assignDamage spreads power over units: tanks first, then whichever unit
// dies to the least damage. Power left after every unit is lethal is lost.
func (s *step) assignDamage(battlefieldID, source string, units []*CardInstance, power int) {
	ordered := append([]*CardInstance(nil), units...)
	sort.SliceStable(ordered, func(i, j int) bool {
		ti, tj := isTank(ordered[i]), isTank(ordered[j])
		if ti != tj {
			return ti
		}
		return s.toughness(ordered[i]) < s.toughness(ordered[j])
	})
	for _, u := range ordered {
		if power <= 0 {
			return
		}
		give := min(power, max(s.toughness(u), 0))
		if give == 0 {
			continue
		}
		power -= give
		s.dealDamage(battlefieldID, source, u, give)
	}
}

func isTank(u *CardInstance) bool {
	return u.Card != nil && u.Card.Profile.Has(effects.KeywordTank)
}

// conquer hands a battlefield to player and scores it once per turn.
func (s *step) conquer(player string, b *Battlefield) {
	s.setController(b, player)
	ev := s.event(rules.EventBattlefieldConquered, b.ID, b.ID, player)
	ev.Targets = unitIDs(b.unitsOf(player))
	s.emit(ev)
	s.score(player, 1, "conquer", b.ID)
}

// setController is the only place battlefield control changes.
func (s *step) setController(b *Battlefield, player string) {
	if b.Controller == player {
		return
	}
	prev := b.Controller
	b.Controller = player
	ev := s.event(rules.EventControlChanged, b.ID, b.ID, player)
	ev.Metadata["previous"] = prev
	s.emit(ev)
}

package game

import (
	"sort"
	"strings"
	"time"

	"github.com/Miszion/riftbound-online-backend/internal/apperr"
	"github.com/Miszion/riftbound-online-backend/internal/game/catalog"
	"github.com/Miszion/riftbound-online-backend/internal/game/counters"
	"github.com/Miszion/riftbound-online-backend/internal/game/effects"
	"github.com/Miszion/riftbound-online-backend/internal/game/rules"
	"github.com/Miszion/riftbound-online-backend/internal/game/targeting"
)

// ApplyOperation applies one classified operation from source to a copy of
// st. Targets are validated against the operation's mode and hint before
// anything changes; on error st is returned untouched.
func ApplyOperation(cat *catalog.Catalog, st *MatchState, source *CardInstance, op effects.Operation, targets []string, now time.Time) (*MatchState, []rules.Event, error) {
	if source == nil {
		return st, nil, apperr.New(apperr.CodeValidation, "operation source is required")
	}
	e := newEngine(cat, DefaultOptions(), nil, func() time.Time { return now }, 1)
	work := st.Clone()
	s := e.newStep(work, source.Controller, now)
	if err := s.applyOperation(source.Controller, source.ID, op, targets); err != nil {
		return st, nil, err
	}
	return work, s.events, nil
}

// applyOperation resolves op for controller. Selection is validated first
// so a rejected operation leaves no partial change.
func (s *step) applyOperation(controller, sourceID string, op effects.Operation, chosen []string) error {
	targets, err := s.resolveTargets(controller, sourceID, op, chosen)
	if err != nil {
		return err
	}

	applied := s.event(rules.EventEffectApplied, sourceID, sourceID, controller)
	applied.Data = string(op.Kind)
	applied.Targets = targets
	applied.Amount = op.Amount(0)

	switch op.Kind {
	case effects.OpDamage:
		for _, u := range s.units(targets) {
			s.dealDamage(sourceID, controller, u, op.Amount(1))
		}
		s.emit(applied)
		s.checkDeaths()
	case effects.OpBuff:
		amount := op.Amount(1)
		for _, u := range s.units(targets) {
			if thisTurn(op) {
				s.addTempEffect(controller, sourceID, u.ID, TempBuff, amount)
			} else {
				s.counters.Add(u.Counters, u.ID, counters.Buff, amount, controller, s.now)
			}
		}
		s.emit(applied)
	case effects.OpDebuff:
		for _, u := range s.units(targets) {
			s.addTempEffect(controller, sourceID, u.ID, TempDebuff, op.Amount(1))
		}
		s.emit(applied)
		s.checkDeaths()
	case effects.OpStun:
		for _, u := range s.units(targets) {
			s.addTempEffect(controller, sourceID, u.ID, TempStun, 1)
		}
		s.emit(applied)
	case effects.OpShield:
		for _, u := range s.units(targets) {
			s.counters.Add(u.Counters, u.ID, counters.Shield, op.Amount(1), controller, s.now)
		}
		s.emit(applied)
	case effects.OpHeal:
		for _, u := range s.units(targets) {
			healed := min(u.Damage, op.Amount(1))
			u.Damage -= healed
		}
		s.emit(applied)
	case effects.OpRemoval:
		s.emit(applied)
		for _, u := range s.units(targets) {
			s.kill(u)
		}
	case effects.OpMove:
		for _, u := range s.units(targets) {
			if u.Location.Zone == ZoneBattlefield {
				s.recall(u)
			}
		}
		s.emit(applied)
	case effects.OpControl:
		for _, id := range targets {
			if b, ok := s.st.Battlefield(id); ok {
				s.setController(b, controller)
			}
		}
		s.emit(applied)
	case effects.OpDraw:
		s.emit(applied)
		s.drawCards(s.player(s.scopedPlayer(controller, op)), op.Amount(1))
	case effects.OpDiscard:
		p := s.player(s.scopedPlayer(controller, op))
		for i := 0; i < op.Amount(1) && len(p.Hand) > 0; i++ {
			c := p.Hand[len(p.Hand)-1]
			if _, err := s.moveCard(c.ID, ZoneTrash, ""); err != nil {
				return err
			}
			s.emit(s.event(rules.EventCardDiscarded, c.ID, sourceID, p.ID))
		}
		s.emit(applied)
	case effects.OpSummon:
		for i := 0; i < op.Amount(1); i++ {
			if err := s.summonToken(controller, sourceID, op); err != nil {
				return err
			}
		}
		s.emit(applied)
	case effects.OpResourceGain:
		p := s.player(controller)
		p.Pool.AddEnergy(op.Amount(1))
		s.emit(rules.NewEventWithAmount(rules.EventResourcesGained, controller, sourceID, controller, op.Amount(1), s.now))
		s.emit(applied)
	case effects.OpChannel:
		s.channel(s.player(controller), op.Amount(1))
		s.emit(applied)
	case effects.OpSearch:
		s.search(s.player(controller), op.Amount(3), sourceID)
		s.emit(applied)
	case effects.OpGeneric:
		s.logf(controller, "manual resolution required: %s", op.Text)
	default:
		return apperr.New(apperr.CodeValidation, "unsupported operation %s", op.Kind)
	}
	return nil
}

// resolveTargets turns an operation's targeting mode into concrete IDs.
func (s *step) resolveTargets(controller, sourceID string, op effects.Operation, chosen []string) ([]string, error) {
	if op.RequiresSelection {
		req, _ := targeting.RequirementFor(op)
		if err := s.targets.ValidateTargets(controller, chosen, req); err != nil {
			return nil, err
		}
		return append([]string(nil), chosen...), nil
	}
	switch op.TargetMode {
	case effects.TargetGlobal:
		return s.candidates(controller, op, 0), nil
	case effects.TargetSingle, effects.TargetMultiple:
		if op.TargetHint == effects.HintSelf && sourceID != "" {
			return []string{sourceID}, nil
		}
	}
	return nil, nil
}

// candidates lists legal objects for op in preference order, capped at
// limit when limit is positive.
func (s *step) candidates(controller string, op effects.Operation, limit int) []string {
	var out []string
	if op.TargetHint == effects.HintBattlefield || op.Kind == effects.OpControl {
		for _, b := range s.st.Battlefields {
			if b.Controller != controller {
				out = append(out, b.ID)
			}
		}
	} else {
		var units []*CardInstance
		for _, u := range s.st.UnitsOnBoard() {
			switch op.TargetHint {
			case effects.HintEnemy:
				if u.Controller == controller {
					continue
				}
			case effects.HintAlly, effects.HintSelf:
				if u.Controller != controller {
					continue
				}
			}
			units = append(units, u)
		}
		sort.SliceStable(units, func(i, j int) bool {
			return s.toughness(units[i]) < s.toughness(units[j])
		})
		out = unitIDs(units)
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s *step) scopedPlayer(controller string, op effects.Operation) string {
	if op.TargetHint == effects.HintEnemy {
		return s.st.Opponent(controller)
	}
	return controller
}

func thisTurn(op effects.Operation) bool {
	return strings.Contains(op.Text, "this turn")
}

func (s *step) units(ids []string) []*CardInstance {
	var out []*CardInstance
	for _, id := range ids {
		if c, ok := s.st.FindCard(id); ok && onBoard(c) {
			out = append(out, c)
		}
	}
	return out
}

func onBoard(c *CardInstance) bool {
	return c.Location.Zone == ZoneBase || c.Location.Zone == ZoneBattlefield
}

func (s *step) addTempEffect(controller, sourceID, targetID, kind string, amount int) {
	p := s.player(controller)
	p.TempEffects = append(p.TempEffects, TempEffect{
		ID:        s.e.newID(),
		SourceID:  sourceID,
		TargetID:  targetID,
		Kind:      kind,
		Amount:    amount,
		Remaining: 1,
	})
}

// might is the unit's current strength: printed might, buff counters and
// temporary modifiers, never below zero.
func (s *step) might(u *CardInstance) int {
	return Might(s.st, u)
}

// Might computes a unit's current might within st.
func Might(st *MatchState, u *CardInstance) int {
	m := u.Counters.Count(counters.Buff)
	if u.Card != nil {
		m += u.Card.Might
	}
	for _, p := range st.Players {
		for _, te := range p.TempEffects {
			if te.TargetID != u.ID {
				continue
			}
			switch te.Kind {
			case TempBuff:
				m += te.Amount
			case TempDebuff:
				m -= te.Amount
			}
		}
	}
	return max(m, 0)
}

// Stunned reports whether a stun effect is active on u.
func Stunned(st *MatchState, u *CardInstance) bool {
	for _, p := range st.Players {
		for _, te := range p.TempEffects {
			if te.TargetID == u.ID && te.Kind == TempStun {
				return true
			}
		}
	}
	return false
}

// toughness is the damage the unit can still take, shields included.
func (s *step) toughness(u *CardInstance) int {
	return s.might(u) - u.Damage + u.Counters.Count(counters.Shield)
}

// dealDamage marks damage on a unit after shields absorb what they can.
// Damage only ever lands on units.
func (s *step) dealDamage(sourceID, controller string, u *CardInstance, amount int) {
	if amount <= 0 {
		return
	}
	absorbed := s.counters.Remove(u.Counters, u.ID, counters.Shield, amount, u.Controller, s.now)
	amount -= absorbed
	if amount <= 0 {
		return
	}
	u.Damage += amount
	ev := rules.NewEventWithAmount(rules.EventDamageDealt, u.ID, sourceID, controller, amount, s.now)
	ev.Metadata["victim_controller"] = u.Controller
	s.emit(ev)
}

// checkDeaths moves every unit with no remaining toughness to the trash.
func (s *step) checkDeaths() {
	for _, u := range s.st.UnitsOnBoard() {
		if u.Damage >= s.might(u) {
			s.kill(u)
		}
	}
}

// kill removes a unit from the board. Tokens cease to exist.
func (s *step) kill(u *CardInstance) {
	if _, ok := s.st.take(u.ID); !ok {
		return
	}
	ev := s.event(rules.EventUnitDied, u.ID, u.ID, u.Controller)
	if u.Location.BattlefieldID != "" {
		ev.Metadata["battlefield"] = u.Location.BattlefieldID
	}
	s.emit(ev)
	s.triggers.UnregisterSource(u.ID)
	s.dropEffectsOn(u.ID)

	u.Damage = 0
	u.Exhausted = false
	u.Counters = counters.Counters{}
	u.Controller = u.Owner
	if u.Card != nil && u.Card.Type == catalog.TypeToken {
		return
	}
	_ = s.st.put(u, ZoneTrash, "")
}

func (s *step) dropEffectsOn(id string) {
	for _, p := range s.st.Players {
		kept := p.TempEffects[:0]
		for _, te := range p.TempEffects {
			if te.TargetID != id {
				kept = append(kept, te)
			}
		}
		p.TempEffects = kept
	}
}

// recall returns a unit at a battlefield to its controller's base.
func (s *step) recall(u *CardInstance) {
	from := u.Location.BattlefieldID
	if _, err := s.moveCard(u.ID, ZoneBase, ""); err != nil {
		return
	}
	ev := s.event(rules.EventUnitMoved, u.ID, from, u.Controller)
	ev.Data = DestinationBase
	s.emit(ev)
}

func (s *step) summonToken(controller, sourceID string, op effects.Operation) error {
	var token *catalog.Card
	for _, c := range s.e.catalog.ByType(catalog.TypeToken) {
		if token == nil || strings.Contains(op.Text, strings.ToLower(c.Name)) {
			token = c
		}
	}
	if token == nil {
		return apperr.New(apperr.CodeInternal, "catalog has no token card")
	}
	inst := s.e.newInstance(controller, token.ID, ZoneBase)
	inst.Exhausted = true
	if err := s.st.put(inst, ZoneBase, ""); err != nil {
		return err
	}
	s.registerTriggers(inst)
	ev := s.event(rules.EventTokenCreated, inst.ID, sourceID, controller)
	ev.Metadata["card_id"] = token.ID
	s.emit(ev)
	return nil
}

// search looks at the top n cards and puts the first unit among them into
// the hand; the rest keep their order.
func (s *step) search(p *Player, n int, sourceID string) {
	for i := 0; i < n && i < len(p.Deck); i++ {
		c := p.Deck[i]
		if c.Card == nil || c.Card.Type != catalog.TypeUnit {
			continue
		}
		p.Deck = append(p.Deck[:i:i], p.Deck[i+1:]...)
		c.Location = Location{Zone: ZoneHand}
		p.Hand = append(p.Hand, c)
		ev := s.event(rules.EventCardDrawn, c.ID, sourceID, p.ID)
		ev.Metadata["search"] = "true"
		s.emit(ev)
		return
	}
}

// targetView exposes the board to the target validator.
type targetView struct {
	st *MatchState
}

func (v targetView) FindUnitForTarget(id string) (targeting.TargetCardInfo, bool) {
	for _, u := range v.st.UnitsOnBoard() {
		if u.ID != id {
			continue
		}
		info := targeting.TargetCardInfo{
			ID:            u.ID,
			ControllerID:  u.Controller,
			OwnerID:       u.Owner,
			BattlefieldID: u.Location.BattlefieldID,
			Exhausted:     u.Exhausted,
		}
		if u.Card != nil {
			info.Name = u.Card.Name
		}
		return info, true
	}
	return targeting.TargetCardInfo{}, false
}

func (v targetView) FindBattlefieldForTarget(id string) (targeting.TargetBattlefieldInfo, bool) {
	b, ok := v.st.Battlefield(id)
	if !ok {
		return targeting.TargetBattlefieldInfo{}, false
	}
	return targeting.TargetBattlefieldInfo{ID: b.ID, Name: b.Name, ControllerID: b.Controller}, true
}

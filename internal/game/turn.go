package game

import (
	"github.com/Miszion/riftbound-online-backend/internal/apperr"
	"github.com/Miszion/riftbound-online-backend/internal/game/resource"
	"github.com/Miszion/riftbound-online-backend/internal/game/rules"
)

func (s *step) phaseChanged() {
	ev := rules.NewEventWithAmount(rules.EventPhaseChanged, s.st.ID, "", s.st.Turn.ActivePlayer, s.st.Turn.Number, s.now)
	ev.Data = s.st.Turn.Phase.String()
	s.emit(ev)
}

// advancePhase moves the active player's turn forward. Leaving Main2 runs
// the end phase and the opponent's beginning phase.
func (s *step) advancePhase() error {
	if s.st.Combat != nil {
		return apperr.New(apperr.CodeInvalidPhaseAction, "combat at %s is unresolved", s.st.Combat.BattlefieldID)
	}
	tm := &s.st.Turn
	switch tm.Phase {
	case rules.PhaseMain1, rules.PhaseCombat:
		tm.Advance("")
		s.phaseChanged()
	case rules.PhaseMain2:
		tm.Advance("")
		s.phaseChanged()
		s.endTurn()
	default:
		return apperr.New(apperr.CodeInvalidPhaseAction, "cannot advance from %s", tm.Phase)
	}
	return nil
}

// beginTurn runs the automatic beginning phase of the active player:
// awaken, hold scoring, channel, refill and draw. The first player skips
// the draw on turn 1.
func (s *step) beginTurn() {
	st := s.st
	active := st.Turn.ActivePlayer
	p := s.player(active)

	s.emit(rules.NewEventWithAmount(rules.EventTurnStarted, st.ID, "", active, st.Turn.Number, s.now))

	for _, c := range p.Base {
		c.Exhausted = false
	}
	for _, c := range p.Gear {
		c.Exhausted = false
	}
	for _, b := range st.Battlefields {
		for _, u := range b.unitsOf(active) {
			u.Exhausted = false
		}
	}

	for _, b := range st.Battlefields {
		if b.Controller != active {
			continue
		}
		ev := s.event(rules.EventBattlefieldHeld, b.ID, b.ID, active)
		ev.Targets = unitIDs(b.unitsOf(active))
		s.emit(ev)
		s.score(active, 1, "hold", b.ID)
		if s.done() {
			return
		}
	}

	n := s.e.opts.ChannelPerTurn
	if p.BonusChannelPending {
		n += s.e.opts.SecondPlayerBonus
		p.BonusChannelPending = false
	}
	s.channel(p, n)
	s.refill(p)

	if !(st.Turn.Number == 1 && active == st.FirstPlayer) {
		if !s.drawCards(p, 1) {
			return
		}
	}

	st.Turn.Advance("")
	s.phaseChanged()
}

// channel moves up to n runes from the top of the rune deck into play.
func (s *step) channel(p *Player, n int) {
	moved := 0
	for ; moved < n && len(p.RuneDeck) > 0; moved++ {
		r := p.RuneDeck[0]
		p.RuneDeck = p.RuneDeck[1:]
		r.Location = Location{Zone: ZoneRunes}
		p.Runes = append(p.Runes, r)
	}
	if moved > 0 {
		s.emit(rules.NewEventWithAmount(rules.EventRunesChanneled, p.ID, "", p.ID, moved, s.now))
	}
}

// refill resets the pool to one energy per rune plus one power of each
// rune's domain.
func (s *step) refill(p *Player) {
	p.Pool = resource.NewPool()
	for _, r := range p.Runes {
		p.Pool.AddEnergy(1)
		if r.Card != nil {
			if d := r.Card.Domain(); d != "" {
				p.Pool.AddPower(d, 1)
			}
		}
	}
}

// endTurn heals marked damage, ticks temporary effects, empties the pool
// and hands the turn to the opponent.
func (s *step) endTurn() {
	st := s.st
	active := st.Turn.ActivePlayer
	s.emit(rules.NewEventWithAmount(rules.EventTurnEnded, st.ID, "", active, st.Turn.Number, s.now))

	for _, u := range st.UnitsOnBoard() {
		u.Damage = 0
	}
	for _, p := range st.Players {
		kept := p.TempEffects[:0]
		for _, te := range p.TempEffects {
			te.Remaining--
			if te.Remaining > 0 {
				kept = append(kept, te)
				continue
			}
			ev := s.event(rules.EventEffectExpired, te.TargetID, te.SourceID, p.ID)
			ev.Data = te.Kind
			s.emit(ev)
		}
		p.TempEffects = kept
	}
	s.player(active).Pool.Empty()

	st.Turn.Advance(st.Opponent(active))
	s.phaseChanged()
	s.beginTurn()
}

// score adds points to the ledger and checks the victory threshold.
func (s *step) score(player string, amount int, reason, battlefieldID string) {
	if s.done() || amount <= 0 {
		return
	}
	if battlefieldID != "" && s.alreadyScored(player, battlefieldID) {
		return
	}
	p := s.player(player)
	p.Points += amount
	s.st.Ledger = append(s.st.Ledger, ScoreEntry{
		Player:      player,
		Amount:      amount,
		Reason:      reason,
		Battlefield: battlefieldID,
		Turn:        s.st.Turn.Number,
	})
	ev := rules.NewEventWithAmount(rules.EventPointsScored, player, battlefieldID, player, amount, s.now)
	ev.Data = reason
	ev.Metadata["battlefield"] = battlefieldID
	s.emit(ev)

	if p.Points >= s.e.opts.VictoryScore {
		s.complete(player, ReasonScoreThreshold)
	}
}

// alreadyScored reports whether player scored battlefield this turn. The
// step's own events are newer than the engine's scoring watcher.
func (s *step) alreadyScored(player, battlefieldID string) bool {
	for i := len(s.events) - 1; i >= 0; i-- {
		ev := s.events[i]
		switch {
		case ev.Type == rules.EventTurnStarted:
			return false
		case ev.Type == rules.EventPointsScored && ev.PlayerID == player && ev.Metadata["battlefield"] == battlefieldID:
			return true
		}
	}
	return s.e.scoring.Scored(player, battlefieldID)
}

func unitIDs(units []*CardInstance) []string {
	out := make([]string, len(units))
	for i, u := range units {
		out[i] = u.ID
	}
	return out
}

package game

import (
	"sort"
	"time"

	"github.com/Miszion/riftbound-online-backend/internal/apperr"
	"github.com/Miszion/riftbound-online-backend/internal/game/rules"
)

func (s *step) requireSetupStep(want rules.SetupStep) error {
	if s.st.SetupStep != want {
		return apperr.New(apperr.CodeInvalidPhaseAction, "setup is at the %s step", s.st.SetupStep)
	}
	return nil
}

// submitInitiative lets the coin flip winner decide who takes turn 1.
func (s *step) submitInitiative(goFirst bool) error {
	if err := s.requireSetupStep(rules.SetupInitiative); err != nil {
		return err
	}
	if s.actor != s.st.CoinFlipWinner {
		return apperr.New(apperr.CodeNotYourTurn, "%s won the coin flip", s.st.CoinFlipWinner)
	}
	first := s.actor
	if !goFirst {
		first = s.st.Opponent(s.actor)
	}
	s.chooseFirst(first)
	return nil
}

func (s *step) chooseFirst(first string) {
	st := s.st
	st.FirstPlayer = first
	st.Turn.ActivePlayer = first
	s.player(st.Opponent(first)).BonusChannelPending = s.e.opts.SecondPlayerBonus > 0

	ev := s.event(rules.EventInitiativeChosen, st.ID, "", st.CoinFlipWinner)
	ev.Data = first
	s.emit(ev)

	st.SetupStep = rules.SetupBattlefield
	st.SetupDeadline = s.now.Add(s.e.opts.SetupWindow)
}

// selectBattlefield records a player's battlefield pick; once both have
// picked the board is built, first player's battlefield first.
func (s *step) selectBattlefield(playerID, cardID string) error {
	if err := s.requireSetupStep(rules.SetupBattlefield); err != nil {
		return err
	}
	p := s.player(playerID)
	if p.BattlefieldChoice != "" {
		return apperr.New(apperr.CodeValidation, "battlefield already selected")
	}
	offered := false
	for _, id := range p.BattlefieldOptions {
		if id == cardID {
			offered = true
			break
		}
	}
	if !offered {
		return apperr.New(apperr.CodeValidation, "battlefield %s is not in your deck", cardID)
	}
	p.BattlefieldChoice = cardID
	s.emit(s.event(rules.EventBattlefieldSelected, cardID, "", playerID))

	other := s.player(s.st.Opponent(playerID))
	if other.BattlefieldChoice == "" {
		return nil
	}
	order := []*Player{s.player(s.st.FirstPlayer), s.player(s.st.Opponent(s.st.FirstPlayer))}
	for _, owner := range order {
		name := owner.BattlefieldChoice
		if card, ok := s.e.catalog.Get(owner.BattlefieldChoice); ok {
			name = card.Name
		}
		s.st.Battlefields = append(s.st.Battlefields, &Battlefield{
			ID:     s.e.newID(),
			CardID: owner.BattlefieldChoice,
			Name:   name,
			Owner:  owner.ID,
		})
	}
	s.st.SetupStep = rules.SetupMulligan
	s.st.SetupDeadline = s.now.Add(s.e.opts.SetupWindow)
	return nil
}

// submitMulligan sends the chosen hand cards to the bottom of the deck and
// draws as many replacements. Deck plus hand size is unchanged.
func (s *step) submitMulligan(playerID string, indices []int) error {
	if err := s.requireSetupStep(rules.SetupMulligan); err != nil {
		return err
	}
	p := s.player(playerID)
	if p.Mulligan.Submitted {
		return apperr.New(apperr.CodeValidation, "mulligan already submitted")
	}
	if len(indices) > s.e.opts.MulliganLimit {
		return apperr.New(apperr.CodeValidation, "at most %d cards may be replaced", s.e.opts.MulliganLimit)
	}
	seen := make(map[int]bool, len(indices))
	for _, idx := range indices {
		if idx < 0 || idx >= len(p.Hand) {
			return apperr.New(apperr.CodeValidation, "hand index %d out of range", idx)
		}
		if seen[idx] {
			return apperr.New(apperr.CodeValidation, "hand index %d repeated", idx)
		}
		seen[idx] = true
	}

	sorted := append([]int(nil), indices...)
	sort.Sort(sort.Reverse(sort.IntSlice(sorted)))
	returned := make([]*CardInstance, 0, len(sorted))
	for _, idx := range sorted {
		c := p.Hand[idx]
		p.Hand = append(p.Hand[:idx:idx], p.Hand[idx+1:]...)
		returned = append(returned, c)
	}
	for i := len(returned) - 1; i >= 0; i-- {
		returned[i].Location = Location{Zone: ZoneDeck}
		p.Deck = append(p.Deck, returned[i])
	}
	s.drawCards(p, len(returned))

	p.Mulligan = MulliganState{Submitted: true, Replaced: len(returned)}
	s.emit(rules.NewEventWithAmount(rules.EventMulliganSubmitted, s.st.ID, "", playerID, len(returned), s.now))

	if s.player(s.st.Opponent(playerID)).Mulligan.Submitted {
		s.startMatch()
	}
	return nil
}

func (s *step) startMatch() {
	st := s.st
	st.SetupStep = rules.SetupDone
	st.SetupDeadline = time.Time{}
	st.Status = StatusInProgress
	st.Turn.Start(st.FirstPlayer)
	s.phaseChanged()
	s.beginTurn()
}

// expireSetup auto-resolves the current setup step: the coin flip winner
// goes first, battlefields default to the first option and pending
// mulligans keep their hand.
func (s *step) expireSetup() error {
	switch s.st.SetupStep {
	case rules.SetupInitiative:
		s.chooseFirst(s.st.CoinFlipWinner)
	case rules.SetupBattlefield:
		for _, p := range []*Player{s.st.Players[0], s.st.Players[1]} {
			if p.BattlefieldChoice != "" || len(p.BattlefieldOptions) == 0 {
				continue
			}
			if err := s.selectBattlefield(p.ID, p.BattlefieldOptions[0]); err != nil {
				return err
			}
		}
	case rules.SetupMulligan:
		for _, p := range []*Player{s.st.Players[0], s.st.Players[1]} {
			if p.Mulligan.Submitted || s.done() || s.st.Status != StatusSetup {
				continue
			}
			if err := s.submitMulligan(p.ID, nil); err != nil {
				return err
			}
		}
	}
	return nil
}

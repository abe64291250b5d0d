package game

import (
	"github.com/Miszion/riftbound-online-backend/internal/apperr"
	"github.com/Miszion/riftbound-online-backend/internal/game/catalog"
	"github.com/Miszion/riftbound-online-backend/internal/game/counters"
	"github.com/Miszion/riftbound-online-backend/internal/game/effects"
	"github.com/Miszion/riftbound-online-backend/internal/game/rules"
	"github.com/Miszion/riftbound-online-backend/internal/game/targeting"
)

// playCard plays the card at a hand index. Every check runs before the
// first mutation: targets, destination, then payment.
func (s *step) playCard(a Action) error {
	p := s.player(s.actor)
	if a.HandIndex < 0 || a.HandIndex >= len(p.Hand) {
		return apperr.New(apperr.CodeValidation, "hand index %d out of range", a.HandIndex)
	}
	inst := p.Hand[a.HandIndex]
	card := inst.Card
	if card == nil || !card.Type.Playable() {
		return apperr.New(apperr.CodeValidation, "card %s cannot be played", inst.CardID)
	}

	switch card.Type {
	case catalog.TypeSpell:
		if err := s.validateSelections(card.Static, a.Targets); err != nil {
			return err
		}
	case catalog.TypeUnit:
		if len(a.Targets) > 0 {
			if err := s.validateSelections(triggerOps(card, effects.TriggerPlay), a.Targets); err != nil {
				return err
			}
		}
	}

	zone, bfID := ZoneBase, ""
	switch card.Type {
	case catalog.TypeGear:
		zone = ZoneGear
	case catalog.TypeSpell:
		zone = ZoneEffects
	case catalog.TypeUnit:
		if a.Destination != "" && a.Destination != DestinationBase {
			b, ok := s.st.Battlefield(a.Destination)
			if !ok {
				return apperr.New(apperr.CodeValidation, "battlefield %s not found", a.Destination)
			}
			if b.Controller != s.actor {
				return apperr.New(apperr.CodeValidation, "units can only be played to battlefields you control")
			}
			zone, bfID = ZoneBattlefield, b.ID
		}
	}

	if err := p.Pool.Pay(card.Price); err != nil {
		return err
	}

	if _, err := s.moveCard(inst.ID, zone, bfID); err != nil {
		return err
	}
	inst.Controller = s.actor

	played := s.event(rules.EventCardPlayed, inst.ID, inst.ID, s.actor)
	played.Metadata["card_id"] = inst.CardID
	played.Metadata["card_type"] = string(card.Type)
	played.Description = card.Name

	switch card.Type {
	case catalog.TypeSpell:
		s.emit(played)
		item := rules.ChainItem{
			ID:          s.e.newID(),
			Controller:  s.actor,
			Description: card.Name,
			Kind:        rules.ChainItemSpell,
			SourceID:    inst.ID,
			CardID:      inst.CardID,
			Timing:      card.Profile.Timing,
			Operations:  spellOps(card),
			Targets:     append([]string(nil), a.Targets...),
		}
		if !card.Profile.AutoPlayable() {
			item.Metadata = map[string]string{"needs_review": "true"}
		}
		s.st.Chain.Push(item, s.st.Opponent(s.actor), s.now, s.e.opts.PriorityWindow)
		added := s.event(rules.EventChainItemAdded, item.ID, inst.ID, s.actor)
		added.Description = item.Description
		added.Targets = item.Targets
		s.emit(added)
	default:
		inst.Exhausted = true
		if card.Profile.Has(effects.KeywordShield) {
			s.counters.Add(inst.Counters, inst.ID, counters.Shield, 1, s.actor, s.now)
		}
		s.registerTriggers(inst)
		before := len(s.pending)
		s.emit(played)
		if len(a.Targets) > 0 {
			for i := before; i < len(s.pending); i++ {
				if s.pending[i].SourceID == inst.ID {
					s.pending[i].Targets = append([]string(nil), a.Targets...)
				}
			}
		}
	}
	return nil
}

// validateSelections checks chosen targets against every selecting
// operation.
func (s *step) validateSelections(ops []effects.Operation, chosen []string) error {
	for _, op := range ops {
		req, ok := targeting.RequirementFor(op)
		if !ok {
			continue
		}
		if err := s.targets.ValidateTargets(s.actor, chosen, req); err != nil {
			return err
		}
	}
	return nil
}

// spellOps is what a spell does on resolution. Text the classifier could
// not read resolves as its single generic operation.
func spellOps(card *catalog.Card) []effects.Operation {
	if len(card.Static) == 0 && card.Profile.NeedsReview {
		return append([]effects.Operation(nil), card.Profile.Operations...)
	}
	return append([]effects.Operation(nil), card.Static...)
}

func triggerOps(card *catalog.Card, kind effects.TriggerKind) []effects.Operation {
	var out []effects.Operation
	for _, t := range card.Triggers {
		if t.Kind == kind {
			out = append(out, t.Operations...)
		}
	}
	return out
}

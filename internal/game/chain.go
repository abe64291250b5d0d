package game

import (
	"fmt"

	"github.com/Miszion/riftbound-online-backend/internal/game/effects"
	"github.com/Miszion/riftbound-online-backend/internal/game/rules"
	"github.com/Miszion/riftbound-online-backend/internal/game/targeting"
)

// passPriority passes the open window. Two passes in a row resolve the
// chain; a pass in a combat window declines to block.
func (s *step) passPriority(player string, expired bool) error {
	chain := s.st.Chain
	outcome, err := chain.Pass(player, s.st.Opponent(player), s.now, s.e.opts.PriorityWindow)
	if err != nil {
		return err
	}
	et := rules.EventPriorityPassed
	if expired {
		et = rules.EventPriorityExpired
	}
	s.emit(s.event(et, s.st.ID, "", player))

	switch outcome {
	case rules.PassResolveChain:
		s.resolveChain()
	case rules.PassCloseCombat:
		if s.st.Combat != nil {
			s.st.Combat.Stage = CombatBlocked
		}
	}
	return nil
}

// resolveChain resolves every pending item, newest first, then reopens the
// chain.
func (s *step) resolveChain() {
	chain := s.st.Chain
	for !chain.IsEmpty() && !s.done() {
		item, err := chain.Pop()
		if err != nil {
			break
		}
		s.resolveItem(item)
	}
	chain.Settle()
}

// resolveItem applies each operation of a chain item. Targets that became
// illegal since the item was put on the chain are dropped; an operation
// left without a legal target fizzles.
func (s *step) resolveItem(item rules.ChainItem) {
	for _, op := range item.Operations {
		if s.done() {
			return
		}
		targets := item.Targets
		if op.RequiresSelection {
			targets = s.legalTargets(item.Controller, op, item.Targets)
			if len(targets) == 0 {
				s.logf(item.Controller, "%s fizzled: no legal target for %s", item.Description, op.Kind)
				continue
			}
		}
		if err := s.applyOperation(item.Controller, item.SourceID, op, targets); err != nil {
			s.logf(item.Controller, "%s: %s not applied: %v", item.Description, op.Kind, err)
		}
	}
	if item.Kind == rules.ChainItemSpell {
		if c, ok := s.st.FindCard(item.SourceID); ok && c.Location.Zone == ZoneEffects {
			_, _ = s.moveCard(c.ID, ZoneTrash, "")
		}
	}
	ev := s.event(rules.EventChainItemResolved, item.ID, item.SourceID, item.Controller)
	ev.Description = item.Description
	s.emit(ev)
}

// expire handles a lapsed deadline as if the waiting player had acted.
func (s *step) expire() error {
	if s.st.Status == StatusSetup {
		return s.expireSetup()
	}
	holder, ok := s.st.Chain.Expired(s.now)
	if !ok {
		return nil
	}
	return s.passPriority(holder, true)
}

// autoTargets picks targets for a triggered item, which has no player to
// choose them: weakest legal units first, or the first battlefield the
// controller does not hold.
func (s *step) autoTargets(item rules.ChainItem) []string {
	for _, op := range item.Operations {
		if !op.RequiresSelection {
			continue
		}
		return s.candidates(item.Controller, op, op.MaxTargets())
	}
	return nil
}

func (s *step) legalTargets(controller string, op effects.Operation, chosen []string) []string {
	req, ok := targeting.RequirementFor(op)
	if !ok {
		return chosen
	}
	var out []string
	for _, id := range chosen {
		if err := s.targets.ValidateTarget(controller, id, req); err == nil {
			out = append(out, id)
		}
	}
	if req.MaxTargets > 0 && len(out) > req.MaxTargets {
		out = out[:req.MaxTargets]
	}
	return out
}

func (s *step) logf(player, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	s.appendLog(player, "system", msg)
	ev := s.event(rules.EventLogEntry, s.st.ID, "", player)
	ev.Data = msg
	s.emit(ev)
}

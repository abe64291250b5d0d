package game

import (
	"time"

	"github.com/google/uuid"

	"github.com/Miszion/riftbound-online-backend/internal/apperr"
	"github.com/Miszion/riftbound-online-backend/internal/game/catalog"
	"github.com/Miszion/riftbound-online-backend/internal/game/counters"
	"github.com/Miszion/riftbound-online-backend/internal/game/rules"
	"github.com/Miszion/riftbound-online-backend/internal/game/targeting"
)

// step carries one mutation of a working state: the events it raised and
// the triggered chain items waiting to be put on the chain.
type step struct {
	e        *Engine
	st       *MatchState
	actor    string
	now      time.Time
	bus      *rules.EventBus
	triggers *rules.TriggerManager
	counters *counters.CounterOperations
	targets  *targeting.TargetValidator
	events   []rules.Event
	pending  []rules.ChainItem
}

func (e *Engine) newStep(st *MatchState, actor string, now time.Time) *step {
	s := &step{
		e:        e,
		st:       st,
		actor:    actor,
		now:      now,
		bus:      rules.NewEventBus(),
		triggers: rules.NewTriggerManager(),
	}
	s.counters = counters.NewCounterOperations(s.bus)
	s.targets = targeting.NewTargetValidator(targetView{st})
	s.bus.Subscribe(func(ev rules.Event) {
		s.events = append(s.events, ev)
		s.pending = append(s.pending, s.triggers.Handle(ev)...)
	})
	for _, p := range st.Players {
		for _, c := range p.Base {
			s.registerTriggers(c)
		}
		for _, c := range p.Gear {
			s.registerTriggers(c)
		}
	}
	for _, b := range st.Battlefields {
		for _, u := range b.Units {
			s.registerTriggers(u)
		}
	}
	return s
}

func (s *step) registerTriggers(c *CardInstance) {
	if c.Card == nil {
		return
	}
	for _, trig := range c.Card.Triggers {
		s.triggers.Register(rules.AbilityTrigger{
			SourceID:    c.ID,
			CardID:      c.CardID,
			Controller:  c.Controller,
			Kind:        trig.Kind,
			Operations:  trig.Operations,
			Description: c.Card.Name + ": " + trig.Text,
			Anywhere:    c.Card.Type == catalog.TypeGear,
		})
	}
}

func (s *step) event(et rules.EventType, targetID, sourceID, player string) rules.Event {
	return rules.NewEvent(et, targetID, sourceID, player, s.now)
}

func (s *step) emit(ev rules.Event) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	s.bus.Publish(ev)
}

func (s *step) done() bool {
	return s.st.Status == StatusCompleted
}

func (s *step) player(id string) *Player {
	p, _ := s.st.Player(id)
	return p
}

func (s *step) dispatch(a Action) error {
	switch a.Kind {
	case ActionSubmitInitiative:
		return s.submitInitiative(a.GoFirst)
	case ActionSelectBattlefield:
		return s.selectBattlefield(s.actor, a.BattlefieldID)
	case ActionSubmitMulligan:
		return s.submitMulligan(s.actor, a.Indices)
	case ActionPlayCard:
		return s.playCard(a)
	case ActionDeclareAttacker:
		return s.declareAttacker(a.UnitID, a.Destination)
	case ActionMoveUnit:
		return s.moveUnit(a.UnitID, a.Destination)
	case ActionDeclareBlockers:
		return s.declareBlockers(a.Blockers)
	case ActionPassPriority:
		return s.passPriority(s.actor, false)
	case ActionAdvancePhase:
		return s.advancePhase()
	case ActionConcede:
		return s.concede()
	case ActionChat, ActionLog:
		return s.record(a.Kind, a.Message)
	case ActionReportResult:
		return s.reportResult(a.Winner)
	}
	return apperr.New(apperr.CodeValidation, "unknown action %q", a.Kind)
}

// settle puts triggered items on the chain and moves pending combat forward
// until the match waits on a player again.
func (s *step) settle() {
	for i := 0; i < 64 && !s.done(); i++ {
		s.flushTriggers()
		if s.st.Chain.Window != nil || !s.st.Chain.IsEmpty() {
			return
		}
		if !s.progressCombat() {
			return
		}
	}
}

func (s *step) flushTriggers() {
	for len(s.pending) > 0 && !s.done() {
		items := s.pending
		s.pending = nil
		for _, item := range items {
			if len(item.Targets) == 0 {
				item.Targets = s.autoTargets(item)
			}
			s.st.Chain.Push(item, s.st.Opponent(item.Controller), s.now, s.e.opts.PriorityWindow)
			ev := s.event(rules.EventChainItemAdded, item.ID, item.SourceID, item.Controller)
			ev.Description = item.Description
			ev.Targets = item.Targets
			s.emit(ev)
		}
	}
}

// complete ends the match. The first terminal transition wins.
func (s *step) complete(winner, reason string) {
	if s.done() {
		return
	}
	st := s.st
	st.Status = StatusCompleted
	st.Turn.Complete()
	st.Winner = winner
	st.EndReason = reason
	st.CompletedAt = s.now
	st.Chain.Settle()
	st.Combat = nil
	s.pending = nil
	ev := s.event(rules.EventMatchCompleted, st.ID, "", winner)
	ev.Data = reason
	s.emit(ev)
}

// drawCards draws n cards from the top of the deck. An empty deck burns
// the player out and the opponent wins; false is returned in that case.
func (s *step) drawCards(p *Player, n int) bool {
	for i := 0; i < n; i++ {
		if len(p.Deck) == 0 {
			if s.st.Status != StatusSetup {
				s.complete(s.st.Opponent(p.ID), ReasonDeckExhausted)
			}
			return false
		}
		c := p.Deck[0]
		p.Deck = p.Deck[1:]
		c.Location = Location{Zone: ZoneHand}
		p.Hand = append(p.Hand, c)
		s.emit(s.event(rules.EventCardDrawn, c.ID, "", p.ID))
	}
	return true
}

// take removes the instance from whichever zone holds it.
func (m *MatchState) take(id string) (*CardInstance, bool) {
	for _, p := range m.Players {
		for _, z := range p.zones() {
			for i, c := range *z.cards {
				if c.ID == id {
					*z.cards = append((*z.cards)[:i:i], (*z.cards)[i+1:]...)
					return c, true
				}
			}
		}
	}
	for _, b := range m.Battlefields {
		for i, u := range b.Units {
			if u.ID == id {
				b.Units = append(b.Units[:i:i], b.Units[i+1:]...)
				return u, true
			}
		}
	}
	return nil, false
}

// put places an instance into a zone. Private zones belong to the owner,
// board zones to the controller.
func (m *MatchState) put(c *CardInstance, zone Zone, battlefieldID string) error {
	if zone == ZoneBattlefield {
		b, ok := m.Battlefield(battlefieldID)
		if !ok {
			return apperr.New(apperr.CodeValidation, "battlefield %s not found", battlefieldID)
		}
		c.Location = Location{Zone: ZoneBattlefield, BattlefieldID: b.ID}
		b.Units = append(b.Units, c)
		return nil
	}
	holder := c.Owner
	switch zone {
	case ZoneBase, ZoneGear, ZoneEffects:
		holder = c.Controller
	}
	p, ok := m.Player(holder)
	if !ok {
		return apperr.New(apperr.CodeInternal, "no player %s for card %s", holder, c.ID)
	}
	for _, z := range p.zones() {
		if z.zone == zone {
			c.Location = Location{Zone: zone}
			*z.cards = append(*z.cards, c)
			return nil
		}
	}
	return apperr.New(apperr.CodeInternal, "unknown zone %s", zone)
}

// moveCard moves an instance between zones.
func (s *step) moveCard(id string, zone Zone, battlefieldID string) (*CardInstance, error) {
	c, ok := s.st.take(id)
	if !ok {
		return nil, apperr.New(apperr.CodeValidation, "card %s not found", id)
	}
	if err := s.st.put(c, zone, battlefieldID); err != nil {
		return nil, err
	}
	return c, nil
}

// record appends a chat message or log line. No game state is touched.
func (s *step) record(kind ActionKind, message string) error {
	if message == "" {
		return apperr.New(apperr.CodeValidation, "message is empty")
	}
	s.appendLog(s.actor, string(kind), message)
	et := rules.EventChatMessage
	if kind == ActionLog {
		et = rules.EventLogEntry
	}
	ev := s.event(et, s.st.ID, "", s.actor)
	ev.Data = message
	s.emit(ev)
	return nil
}

func (s *step) appendLog(player, kind, message string) {
	s.st.Log = append(s.st.Log, LogEntry{Player: player, Kind: kind, Message: message, At: s.now})
	if limit := s.e.opts.HistoryLimit; limit > 0 && len(s.st.Log) > limit {
		s.st.Log = append([]LogEntry(nil), s.st.Log[len(s.st.Log)-limit:]...)
	}
}

func (s *step) concede() error {
	p := s.player(s.actor)
	p.Conceded = true
	s.emit(s.event(rules.EventConceded, s.st.ID, "", s.actor))
	s.complete(s.st.Opponent(s.actor), ReasonConcede)
	return nil
}

// reportResult completes the match once both players name the same winner.
func (s *step) reportResult(winner string) error {
	if _, ok := s.st.Player(winner); !ok {
		return apperr.New(apperr.CodeValidation, "winner %s is not in the match", winner)
	}
	if s.st.Reports == nil {
		s.st.Reports = make(map[string]string)
	}
	s.st.Reports[s.actor] = winner
	ev := s.event(rules.EventResultReport, s.st.ID, "", s.actor)
	ev.Data = winner
	s.emit(ev)

	a, b := s.st.Reports[s.st.Players[0].ID], s.st.Reports[s.st.Players[1].ID]
	if a != "" && a == b {
		s.complete(winner, ReasonReported)
	}
	return nil
}

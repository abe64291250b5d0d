package game

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Miszion/riftbound-online-backend/internal/apperr"
	"github.com/Miszion/riftbound-online-backend/internal/game/resource"
	"github.com/Miszion/riftbound-online-backend/internal/game/rules"
)

func TestInitializeDealsOpeningHands(t *testing.T) {
	h := newMatch(t, 7)
	st := h.e.State()

	assert.Equal(t, StatusSetup, st.Status)
	assert.Equal(t, rules.SetupInitiative, st.SetupStep)
	assert.Contains(t, []string{alice, bob}, st.CoinFlipWinner)
	for _, p := range st.Players {
		assert.Len(t, p.Hand, DefaultOptions().OpeningHand, p.ID)
		assert.Len(t, p.Deck, DefaultOptions().MainDeckMin-DefaultOptions().OpeningHand, p.ID)
		assert.Len(t, p.RuneDeck, DefaultOptions().RuneDeckSize, p.ID)
		assert.Empty(t, p.Runes)
	}
	assert.Equal(t, "setup", h.e.Started().SnapshotReason())
	requireInvariants(t, st)
}

func TestInitializeIsDeterministicForSeed(t *testing.T) {
	a := newMatch(t, 99).e.State()
	b := newMatch(t, 99).e.State()

	assert.Equal(t, a.CoinFlipWinner, b.CoinFlipWinner)
	for i := range a.Players {
		for j := range a.Players[i].Deck {
			assert.Equal(t, a.Players[i].Deck[j].CardID, b.Players[i].Deck[j].CardID)
			assert.Equal(t, a.Players[i].Deck[j].ID, b.Players[i].Deck[j].ID)
		}
	}
}

func TestInitializeRejectsIllegalDeck(t *testing.T) {
	deck := minimalDeck(alice + "-deck")
	deck.MainDeck = deck.MainDeck[:39]
	deck.RuneDeck = append(deck.RuneDeck, "fury-brawler")

	_, err := Initialize(Config{
		MatchID: "bad",
		Seats: [2]Seat{
			{PlayerID: alice, Deck: deck},
			{PlayerID: bob, Deck: minimalDeck(bob + "-deck")},
		},
		Catalog: defaultCatalog(t),
	})
	require.Error(t, err)
	assert.Equal(t, apperr.CodeInvalidDeck, apperr.CodeOf(err))
	md := apperr.MetadataOf(err)
	assert.Equal(t, alice, md["player"])
	assert.Contains(t, md, "main_deck")
	assert.Contains(t, md, "rune_deck")
	assert.Contains(t, md, "rune_deck_type:fury-brawler")
}

func TestInitializeRejectsMissingPlayers(t *testing.T) {
	_, err := Initialize(Config{MatchID: "m", Catalog: defaultCatalog(t)})
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))
}

func TestSetupCompletesWithOpeningHands(t *testing.T) {
	h, first, second := startedMatch(t)
	st := h.e.State()

	assert.Equal(t, StatusInProgress, st.Status)
	assert.Equal(t, rules.SetupDone, st.SetupStep)
	assert.Equal(t, first, st.FirstPlayer)
	assert.Equal(t, first, st.Turn.ActivePlayer)
	assert.Equal(t, rules.PhaseMain1, st.Turn.Phase)
	assert.Equal(t, 1, st.Turn.Number)
	require.Len(t, st.Battlefields, 2)

	fp, _ := st.Player(first)
	sp, _ := st.Player(second)
	assert.Len(t, fp.Hand, DefaultOptions().OpeningHand)
	assert.Len(t, sp.Hand, DefaultOptions().OpeningHand)
	assert.Len(t, fp.Runes, DefaultOptions().ChannelPerTurn)
	assert.Equal(t, DefaultOptions().ChannelPerTurn, fp.Pool.Energy)
	assert.True(t, sp.BonusChannelPending)
	requireInvariants(t, st)
}

func TestInitiativeBelongsToCoinFlipWinner(t *testing.T) {
	h := newMatch(t, 3)
	loser := h.e.State().Opponent(h.e.State().CoinFlipWinner)

	_, _, err := h.apply(loser, Action{Kind: ActionSubmitInitiative, GoFirst: true})
	assert.Equal(t, apperr.CodeNotYourTurn, apperr.CodeOf(err))

	_, _, err = h.apply(loser, Action{Kind: ActionSubmitMulligan})
	assert.Equal(t, apperr.CodeInvalidPhaseAction, apperr.CodeOf(err))
}

func TestInitiativeCanHandFirstTurnToOpponent(t *testing.T) {
	h := newMatch(t, 3)
	winner := h.e.State().CoinFlipWinner
	h.mustApply(winner, Action{Kind: ActionSubmitInitiative, GoFirst: false})

	st := h.e.State()
	assert.Equal(t, st.Opponent(winner), st.FirstPlayer)
	p, _ := st.Player(winner)
	assert.True(t, p.BonusChannelPending)
}

func TestSelectBattlefieldRejectsForeignCard(t *testing.T) {
	h := newMatch(t, 3)
	winner := h.e.State().CoinFlipWinner
	h.mustApply(winner, Action{Kind: ActionSubmitInitiative, GoFirst: true})

	_, _, err := h.apply(alice, Action{Kind: ActionSelectBattlefield, BattlefieldID: "bf-star-spire"})
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))
}

func TestMulliganPreservesCardinality(t *testing.T) {
	h := newMatch(t, 11)
	winner := h.e.State().CoinFlipWinner
	h.mustApply(winner, Action{Kind: ActionSubmitInitiative, GoFirst: true})
	for _, id := range []string{alice, bob} {
		p, _ := h.e.State().Player(id)
		h.mustApply(id, Action{Kind: ActionSelectBattlefield, BattlefieldID: p.BattlefieldOptions[1]})
	}

	before, _ := h.e.State().Player(alice)
	returned := []string{before.Hand[0].ID, before.Hand[2].ID}
	total := len(before.Hand) + len(before.Deck)

	h.mustApply(alice, Action{Kind: ActionSubmitMulligan, Indices: []int{0, 2}})

	after, _ := h.e.State().Player(alice)
	assert.Len(t, after.Hand, DefaultOptions().OpeningHand)
	assert.Equal(t, total, len(after.Hand)+len(after.Deck))
	assert.Equal(t, returned, []string{after.Deck[len(after.Deck)-2].ID, after.Deck[len(after.Deck)-1].ID})
	assert.Equal(t, 2, after.Mulligan.Replaced)
	requireInvariants(t, h.e.State())
}

func TestMulliganValidation(t *testing.T) {
	h := newMatch(t, 11)
	h.mustApply(h.e.State().CoinFlipWinner, Action{Kind: ActionSubmitInitiative, GoFirst: true})
	for _, id := range []string{alice, bob} {
		p, _ := h.e.State().Player(id)
		h.mustApply(id, Action{Kind: ActionSelectBattlefield, BattlefieldID: p.BattlefieldOptions[0]})
	}

	tests := []struct {
		name    string
		indices []int
	}{
		{"over limit", []int{0, 1, 2}},
		{"out of range", []int{9}},
		{"repeated", []int{1, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := h.apply(alice, Action{Kind: ActionSubmitMulligan, Indices: tt.indices})
			assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))
		})
	}

	h.mustApply(alice, Action{Kind: ActionSubmitMulligan})
	_, _, err := h.apply(alice, Action{Kind: ActionSubmitMulligan})
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))
}

func TestSetupDeadlineAutoResolves(t *testing.T) {
	h := newMatch(t, 5)
	st := h.e.State()

	_, _, due := h.e.Tick(t0.Add(time.Second))
	assert.False(t, due)

	deadline, ok := h.e.NextDeadline()
	require.True(t, ok)
	for i := 0; i < 3; i++ {
		_, d, due := h.e.Tick(deadline)
		require.True(t, due, "step %d", i)
		assert.Equal(t, ActionTimeout, d.Action)
		deadline, _ = h.e.NextDeadline()
	}

	after := h.e.State()
	assert.Equal(t, StatusInProgress, after.Status)
	assert.Equal(t, st.CoinFlipWinner, after.FirstPlayer)
	require.Len(t, after.Battlefields, 2)
	for _, p := range after.Players {
		assert.Equal(t, p.BattlefieldOptions[0], p.BattlefieldChoice)
		assert.Equal(t, 0, p.Mulligan.Replaced)
	}
}

func TestPlayCardWithoutResourcesFails(t *testing.T) {
	h, first, _ := startedMatch(t)
	h.setPool(first, 0, nil)
	unit := h.addCard(first, "fury-brawler", ZoneHand, "")

	before := h.e.State()
	idx := handIndex(t, before, first, unit.ID)
	st, _, err := h.apply(first, Action{Kind: ActionPlayCard, HandIndex: idx})

	require.Error(t, err)
	assert.Equal(t, apperr.CodeInsufficientResources, apperr.CodeOf(err))
	bp, _ := before.Player(first)
	ap, _ := st.Player(first)
	assert.Equal(t, unitIDs(bp.Hand), unitIDs(ap.Hand))
	assert.Equal(t, before.Seq, st.Seq)
}

func TestPlayUnitToBase(t *testing.T) {
	h, first, _ := startedMatch(t)
	h.setPool(first, 3, map[resource.Domain]int{resource.DomainFury: 1})
	unit := h.addCard(first, "fury-raider", ZoneHand, "")

	d := h.mustApply(first, Action{Kind: ActionPlayCard, HandIndex: handIndex(t, h.e.State(), first, unit.ID)})

	c := h.card(unit.ID)
	assert.Equal(t, ZoneBase, c.Location.Zone)
	assert.True(t, c.Exhausted)
	p, _ := h.e.State().Player(first)
	assert.Equal(t, 1, p.Pool.Energy)
	assert.Equal(t, 0, p.Pool.PowerOf(resource.DomainFury))
	played := eventsOf(d, rules.EventCardPlayed)
	require.Len(t, played, 1)
	assert.Equal(t, "fury-raider", played[0].Metadata["card_id"])
	assert.Equal(t, 1, h.e.CardsPlayedThisTurn(first))
	requireInvariants(t, h.e.State())
}

func TestPlayTriggerDrawsCard(t *testing.T) {
	h, first, _ := startedMatch(t)
	h.setPool(first, 5, map[resource.Domain]int{resource.DomainMind: 1})
	scholar := h.addCard(first, "mind-scholar", ZoneHand, "")
	before, _ := h.e.State().Player(first)
	handSize := len(before.Hand)

	d := h.mustApply(first, Action{Kind: ActionPlayCard, HandIndex: handIndex(t, h.e.State(), first, scholar.ID)})

	// The trigger waits on the chain until both players pass.
	st := h.e.State()
	assert.Equal(t, rules.ChainClosed, st.Chain.State())
	assert.Len(t, eventsOf(d, rules.EventChainItemAdded), 1)

	second := st.Opponent(first)
	h.mustApply(second, Action{Kind: ActionPassPriority})
	h.mustApply(first, Action{Kind: ActionPassPriority})

	p, _ := h.e.State().Player(first)
	assert.Len(t, p.Hand, handSize)
	assert.Equal(t, rules.ChainOpen, h.e.State().Chain.State())
}

func TestMoveIntoEmptyBattlefieldConquersWithoutDamage(t *testing.T) {
	h, first, _ := startedMatch(t)
	unit := h.addCard(first, "fury-brawler", ZoneBase, "")
	bf := h.battlefield(0)
	require.Empty(t, bf.Controller)

	d := h.mustApply(first, Action{Kind: ActionMoveUnit, UnitID: unit.ID, Destination: bf.ID})

	assert.Equal(t, first, h.battlefield(0).Controller)
	assert.Empty(t, eventsOf(d, rules.EventDamageDealt))
	assert.Len(t, eventsOf(d, rules.EventBattlefieldConquered), 1)
	st := h.e.State()
	require.Len(t, st.Ledger, 1)
	assert.Equal(t, ScoreEntry{Player: first, Amount: 1, Reason: "conquer", Battlefield: bf.ID, Turn: 1}, st.Ledger[0])
	c := h.card(unit.ID)
	assert.Equal(t, Location{Zone: ZoneBattlefield, BattlefieldID: bf.ID}, c.Location)
	assert.True(t, c.Exhausted)
}

func TestConquerScoresOncePerBattlefieldPerTurn(t *testing.T) {
	h, first, second := startedMatch(t)
	a := h.addCard(first, "fury-brawler", ZoneBase, "")
	b := h.addCard(first, "body-charger", ZoneBase, "")
	bf := h.battlefield(0)

	h.mustApply(first, Action{Kind: ActionMoveUnit, UnitID: a.ID, Destination: bf.ID})
	h.setController(bf.ID, second)
	h.edit(func(st *MatchState) {
		b, _ := st.Battlefield(bf.ID)
		for _, u := range b.Units {
			st.take(u.ID)
			_ = st.put(u, ZoneBase, "")
		}
	})
	h.mustApply(first, Action{Kind: ActionMoveUnit, UnitID: b.ID, Destination: bf.ID})

	st := h.e.State()
	assert.Equal(t, first, h.battlefield(0).Controller)
	p, _ := st.Player(first)
	assert.Equal(t, 1, p.Points)
}

func TestMoveIntoOccupiedBattlefieldRequiresCombat(t *testing.T) {
	h, first, second := startedMatch(t)
	unit := h.addCard(first, "fury-brawler", ZoneBase, "")
	bf := h.battlefield(1)
	h.addCard(second, "calm-sentinel", ZoneBattlefield, bf.ID)

	_, _, err := h.apply(first, Action{Kind: ActionMoveUnit, UnitID: unit.ID, Destination: bf.ID})
	assert.Equal(t, apperr.CodeInvalidPhaseAction, apperr.CodeOf(err))
}

func TestBurnOutWhenDrawingFromEmptyDeck(t *testing.T) {
	h, first, second := startedMatch(t)
	h.edit(func(st *MatchState) {
		p, _ := st.Player(second)
		p.Banished = append(p.Banished, p.Deck...)
		for _, c := range p.Deck {
			c.Location = Location{Zone: ZoneBanished}
		}
		p.Deck = nil
	})

	h.mustApply(first, Action{Kind: ActionAdvancePhase})
	h.mustApply(first, Action{Kind: ActionAdvancePhase})
	d := h.mustApply(first, Action{Kind: ActionAdvancePhase})

	assert.True(t, d.Completed)
	assert.Equal(t, first, d.Winner)
	assert.Equal(t, ReasonDeckExhausted, d.Reason)
	assert.Equal(t, "completed", d.SnapshotReason())
	st := h.e.State()
	assert.Equal(t, StatusCompleted, st.Status)
	assert.Equal(t, rules.PhaseCompleted, st.Turn.Phase)

	_, _, err := h.apply(second, Action{Kind: ActionAdvancePhase})
	assert.ErrorIs(t, err, apperr.ErrMatchCompleted)
}

func TestTurnRotationChannelsAndDraws(t *testing.T) {
	h, first, second := startedMatch(t)
	before, _ := h.e.State().Player(second)
	hand := len(before.Hand)

	h.mustApply(first, Action{Kind: ActionAdvancePhase})
	h.mustApply(first, Action{Kind: ActionAdvancePhase})
	d := h.mustApply(first, Action{Kind: ActionAdvancePhase})

	assert.True(t, d.PhaseChanged)
	st := h.e.State()
	assert.Equal(t, second, st.Turn.ActivePlayer)
	assert.Equal(t, 2, st.Turn.Number)
	assert.Equal(t, rules.PhaseMain1, st.Turn.Phase)
	p, _ := st.Player(second)
	assert.Len(t, p.Hand, hand+1)
	opts := DefaultOptions()
	assert.Len(t, p.Runes, opts.ChannelPerTurn+opts.SecondPlayerBonus)
	assert.False(t, p.BonusChannelPending)
	fp, _ := st.Player(first)
	assert.Equal(t, 0, fp.Pool.Energy)
}

func TestHoldScoresAtTurnStart(t *testing.T) {
	h, first, _ := startedMatch(t)
	bf := h.battlefield(0)
	h.addCard(first, "fury-brawler", ZoneBattlefield, bf.ID)
	h.setController(bf.ID, first)

	for i := 0; i < 3; i++ {
		h.mustApply(first, Action{Kind: ActionAdvancePhase})
	}
	second := h.e.State().Turn.ActivePlayer
	for i := 0; i < 3; i++ {
		h.mustApply(second, Action{Kind: ActionAdvancePhase})
	}

	st := h.e.State()
	require.NotEmpty(t, st.Ledger)
	last := st.Ledger[len(st.Ledger)-1]
	assert.Equal(t, ScoreEntry{Player: first, Amount: 1, Reason: "hold", Battlefield: bf.ID, Turn: 3}, last)
}

func TestVictoryScoreCompletesMatch(t *testing.T) {
	h, first, _ := startedMatch(t)
	h.edit(func(st *MatchState) {
		p, _ := st.Player(first)
		p.Points = DefaultOptions().VictoryScore - 1
	})
	unit := h.addCard(first, "fury-brawler", ZoneBase, "")

	d := h.mustApply(first, Action{Kind: ActionMoveUnit, UnitID: unit.ID, Destination: h.battlefield(0).ID})

	assert.True(t, d.Completed)
	assert.Equal(t, first, d.Winner)
	assert.Equal(t, ReasonScoreThreshold, d.Reason)
}

func TestGuardRejectsOutOfTurnActions(t *testing.T) {
	h, first, second := startedMatch(t)
	unit := h.addCard(first, "fury-brawler", ZoneBase, "")

	tests := []struct {
		name   string
		actor  string
		action Action
		code   apperr.Code
	}{
		{"opponent advances", second, Action{Kind: ActionAdvancePhase}, apperr.CodeNotYourTurn},
		{"attack in main phase", first, Action{Kind: ActionDeclareAttacker, UnitID: unit.ID, Destination: h.battlefield(0).ID}, apperr.CodeInvalidPhaseAction},
		{"pass without window", first, Action{Kind: ActionPassPriority}, apperr.CodeInvalidPhaseAction},
		{"setup after start", first, Action{Kind: ActionSubmitMulligan}, apperr.CodeInvalidPhaseAction},
		{"block without attack", second, Action{Kind: ActionDeclareBlockers}, apperr.CodeInvalidPhaseAction},
		{"unknown action", first, Action{Kind: "shuffle"}, apperr.CodeValidation},
		{"stranger", "mallory", Action{Kind: ActionAdvancePhase}, apperr.CodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := h.e.State().Seq
			_, _, err := h.apply(tt.actor, tt.action)
			require.Error(t, err)
			assert.Equal(t, tt.code, apperr.CodeOf(err))
			assert.Equal(t, before, h.e.State().Seq)
		})
	}
}

func TestSideChannelLeavesGameStateAlone(t *testing.T) {
	h, first, second := startedMatch(t)
	before := h.e.State()

	d := h.mustApply(second, Action{Kind: ActionChat, Message: "gl hf"})
	h.mustApply(first, Action{Kind: ActionLog, Message: "thinking"})
	_, _, err := h.apply(first, Action{Kind: ActionChat})
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))

	after := h.e.State()
	assert.Len(t, eventsOf(d, rules.EventChatMessage), 1)
	require.Len(t, after.Log, len(before.Log)+2)
	assert.Equal(t, LogEntry{Player: second, Kind: string(ActionChat), Message: "gl hf", At: t0}, after.Log[len(after.Log)-2])
	assert.Equal(t, before.Turn, after.Turn)
	assert.Equal(t, before.Seq+2, after.Seq)
}

func TestConcedeIsAlwaysAccepted(t *testing.T) {
	h, first, second := startedMatch(t)
	enemy := h.addCard(second, "calm-sentinel", ZoneBase, "")
	spell := h.addCard(first, "fury-firebrand", ZoneHand, "")
	h.setPool(first, 5, map[resource.Domain]int{resource.DomainFury: 1})
	h.mustApply(first, Action{Kind: ActionPlayCard, HandIndex: handIndex(t, h.e.State(), first, spell.ID), Targets: []string{enemy.ID}})

	// first is not the window holder but may still concede.
	d := h.mustApply(first, Action{Kind: ActionConcede})
	assert.True(t, d.Completed)
	assert.Equal(t, second, d.Winner)
	assert.Equal(t, ReasonConcede, d.Reason)
	assert.Nil(t, h.e.State().Chain.Window)
}

func TestReportResultNeedsAgreement(t *testing.T) {
	h, first, second := startedMatch(t)

	d := h.mustApply(first, Action{Kind: ActionReportResult, Winner: second})
	assert.False(t, d.Completed)
	d = h.mustApply(second, Action{Kind: ActionReportResult, Winner: first})
	assert.False(t, d.Completed)
	d = h.mustApply(second, Action{Kind: ActionReportResult, Winner: second})
	assert.True(t, d.Completed)
	assert.Equal(t, ReasonReported, d.Reason)
	assert.Equal(t, second, d.Winner)

	_, _, err := newMatch(t, 1).apply(alice, Action{Kind: ActionReportResult, Winner: "nobody"})
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))
}

func TestHistoryIsBounded(t *testing.T) {
	h, first, _ := startedMatch(t)
	limit := DefaultOptions().HistoryLimit
	for i := 0; i < limit+5; i++ {
		h.mustApply(first, Action{Kind: ActionChat, Message: "spam"})
	}
	st := h.e.State()
	assert.Len(t, st.History, limit)
	assert.Len(t, st.Log, limit)
	assert.Equal(t, st.Seq, st.History[len(st.History)-1].Seq)
	assert.Empty(t, st.History[len(st.History)-1].Detail)
}

func TestRandomLegalPlayKeepsInvariants(t *testing.T) {
	h, _, _ := startedMatch(t)
	for step := 0; step < 120; step++ {
		st := h.e.State()
		if st.Status == StatusCompleted {
			break
		}
		actor := st.Turn.ActivePlayer
		if w := st.Chain.Window; w != nil {
			h.mustApply(w.Holder, Action{Kind: ActionPassPriority})
			requireInvariants(t, h.e.State())
			continue
		}
		if st.Turn.Phase.IsMain() && tryPlayUnit(h, st, actor) {
			requireInvariants(t, h.e.State())
			continue
		}
		if st.Turn.Phase == rules.PhaseCombat && tryAttack(h, st, actor) {
			requireInvariants(t, h.e.State())
			continue
		}
		h.mustApply(actor, Action{Kind: ActionAdvancePhase})
		requireInvariants(t, h.e.State())
	}
}

func tryPlayUnit(h *matchHarness, st *MatchState, actor string) bool {
	p, _ := st.Player(actor)
	for i, c := range p.Hand {
		if c.Card.Type != "unit" || !p.Pool.CanPay(c.Card.Price) {
			continue
		}
		_, _, err := h.apply(actor, Action{Kind: ActionPlayCard, HandIndex: i})
		require.NoError(h.t, err)
		return true
	}
	return false
}

func tryAttack(h *matchHarness, st *MatchState, actor string) bool {
	if st.Combat != nil {
		return false
	}
	p, _ := st.Player(actor)
	for _, u := range p.Base {
		if u.Exhausted || Stunned(st, u) {
			continue
		}
		for _, b := range st.Battlefields {
			if b.Controller == actor {
				continue
			}
			_, _, err := h.apply(actor, Action{Kind: ActionDeclareAttacker, UnitID: u.ID, Destination: b.ID})
			require.NoError(h.t, err)
			return true
		}
	}
	return false
}

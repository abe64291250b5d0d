package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Miszion/riftbound-online-backend/internal/apperr"
	"github.com/Miszion/riftbound-online-backend/internal/game/counters"
	"github.com/Miszion/riftbound-online-backend/internal/game/rules"
)

// toCombat advances the active player from Main1 to the combat phase.
func toCombat(t *testing.T, h *matchHarness, first string) {
	t.Helper()
	h.mustApply(first, Action{Kind: ActionAdvancePhase})
	require.Equal(t, rules.PhaseCombat, h.e.State().Turn.Phase)
}

func requireUnitDamageOnly(t *testing.T, st *MatchState, events []rules.Event) {
	t.Helper()
	for _, ev := range events {
		if ev.Type != rules.EventDamageDealt {
			continue
		}
		_, isPlayer := st.Player(ev.TargetID)
		_, isBattlefield := st.Battlefield(ev.TargetID)
		assert.False(t, isPlayer, "damage to player %s", ev.TargetID)
		assert.False(t, isBattlefield, "damage to battlefield %s", ev.TargetID)
		_, isCard := st.FindCard(ev.TargetID)
		assert.True(t, isCard, "damage to unknown %s", ev.TargetID)
	}
}

func TestAttackIntoEmptyBattlefieldConquers(t *testing.T) {
	h, first, second := startedMatch(t)
	unit := h.addCard(first, "fury-brawler", ZoneBase, "")
	bf := h.battlefield(1)
	h.setController(bf.ID, second)
	toCombat(t, h, first)

	d := h.mustApply(first, Action{Kind: ActionDeclareAttacker, UnitID: unit.ID, Destination: bf.ID})

	assert.Equal(t, first, h.battlefield(1).Controller)
	assert.Nil(t, h.e.State().Combat)
	assert.Empty(t, eventsOf(d, rules.EventDamageDealt))
	changed := eventsOf(d, rules.EventControlChanged)
	require.Len(t, changed, 1)
	assert.Equal(t, second, changed[0].Metadata["previous"])
	assert.Len(t, eventsOf(d, rules.EventAttackDeclared), 1)
}

func TestAttackerWinsAfterDefenderPasses(t *testing.T) {
	h, first, second := startedMatch(t)
	bruiser := h.addCard(first, "body-bruiser", ZoneBase, "")
	bf := h.battlefield(0)
	defender := h.addCard(second, "fury-brawler", ZoneBattlefield, bf.ID)
	h.setController(bf.ID, second)
	toCombat(t, h, first)

	h.mustApply(first, Action{Kind: ActionDeclareAttacker, UnitID: bruiser.ID, Destination: bf.ID})
	st := h.e.State()
	require.NotNil(t, st.Combat)
	assert.Equal(t, CombatDeclared, st.Combat.Stage)
	require.NotNil(t, st.Chain.Window)
	assert.Equal(t, rules.WindowCombat, st.Chain.Window.Kind)
	assert.Equal(t, second, st.Chain.Window.Holder)
	assert.ElementsMatch(t, []string{first, second}, st.Battlefields[0].Contesting)

	_, _, err := h.apply(first, Action{Kind: ActionAdvancePhase})
	assert.Equal(t, apperr.CodePriorityViolation, apperr.CodeOf(err))

	d := h.mustApply(second, Action{Kind: ActionPassPriority})

	st = h.e.State()
	assert.Nil(t, st.Combat)
	assert.Nil(t, st.Chain.Window)
	assert.Equal(t, first, st.Battlefields[0].Controller)
	assert.Empty(t, st.Battlefields[0].Contesting)
	assert.Equal(t, ZoneTrash, h.card(defender.ID).Location.Zone)
	b := h.card(bruiser.ID)
	assert.Equal(t, ZoneBattlefield, b.Location.Zone)
	assert.Equal(t, 2, b.Damage)
	resolved := eventsOf(d, rules.EventCombatResolved)
	require.Len(t, resolved, 1)
	assert.Equal(t, "attacker", resolved[0].Data)
	requireUnitDamageOnly(t, st, d.Events)
	requireInvariants(t, st)

	// Marked damage heals at end of turn.
	h.mustApply(first, Action{Kind: ActionAdvancePhase})
	h.mustApply(first, Action{Kind: ActionAdvancePhase})
	assert.Equal(t, 0, h.card(bruiser.ID).Damage)
}

func TestDefenderHoldsWhenAttackerDies(t *testing.T) {
	h, first, second := startedMatch(t)
	brawler := h.addCard(first, "fury-brawler", ZoneBase, "")
	bf := h.battlefield(0)
	warden := h.addCard(second, "calm-warden", ZoneBattlefield, bf.ID)
	h.setController(bf.ID, second)
	toCombat(t, h, first)

	h.mustApply(first, Action{Kind: ActionDeclareAttacker, UnitID: brawler.ID, Destination: bf.ID})
	d := h.mustApply(second, Action{Kind: ActionPassPriority})

	assert.Equal(t, ZoneTrash, h.card(brawler.ID).Location.Zone)
	assert.Equal(t, 2, h.card(warden.ID).Damage)
	assert.Equal(t, second, h.battlefield(0).Controller)
	assert.Equal(t, "defender", eventsOf(d, rules.EventCombatResolved)[0].Data)
	assert.Empty(t, eventsOf(d, rules.EventPointsScored))
}

func TestBothSidesSurvivingRecallsAttackers(t *testing.T) {
	h, first, second := startedMatch(t)
	brawler := h.addCard(first, "fury-brawler", ZoneBase, "")
	bf := h.battlefield(0)
	warden := h.addCard(second, "calm-warden", ZoneBattlefield, bf.ID)
	h.setController(bf.ID, second)
	h.edit(func(st *MatchState) {
		p, _ := st.Player(first)
		p.TempEffects = append(p.TempEffects, TempEffect{ID: "stun", TargetID: warden.ID, Kind: TempStun, Remaining: 1})
	})
	toCombat(t, h, first)

	h.mustApply(first, Action{Kind: ActionDeclareAttacker, UnitID: brawler.ID, Destination: bf.ID})
	d := h.mustApply(second, Action{Kind: ActionPassPriority})

	assert.Equal(t, "stalemate", eventsOf(d, rules.EventCombatResolved)[0].Data)
	b := h.card(brawler.ID)
	assert.Equal(t, ZoneBase, b.Location.Zone)
	assert.Equal(t, 0, b.Damage)
	assert.Equal(t, 2, h.card(warden.ID).Damage)
	assert.Equal(t, second, h.battlefield(0).Controller)
}

func TestMutualDestructionLeavesBattlefieldUncontrolled(t *testing.T) {
	h, first, second := startedMatch(t)
	a := h.addCard(first, "fury-brawler", ZoneBase, "")
	bf := h.battlefield(0)
	h.addCard(second, "fury-brawler", ZoneBattlefield, bf.ID)
	h.setController(bf.ID, second)
	toCombat(t, h, first)

	h.mustApply(first, Action{Kind: ActionDeclareAttacker, UnitID: a.ID, Destination: bf.ID})
	d := h.mustApply(second, Action{Kind: ActionPassPriority})

	assert.Equal(t, "wiped", eventsOf(d, rules.EventCombatResolved)[0].Data)
	assert.Empty(t, h.battlefield(0).Controller)
	assert.Empty(t, h.battlefield(0).Units)
	assert.Len(t, eventsOf(d, rules.EventUnitDied), 2)
}

func TestBlockersJoinAndTanksSoakFirst(t *testing.T) {
	h, first, second := startedMatch(t)
	bruiser := h.addCard(first, "body-bruiser", ZoneBase, "")
	bf := h.battlefield(0)
	brawler := h.addCard(second, "fury-brawler", ZoneBattlefield, bf.ID)
	sentinel := h.addCard(second, "calm-sentinel", ZoneBase, "")
	h.setController(bf.ID, second)
	toCombat(t, h, first)

	h.mustApply(first, Action{Kind: ActionDeclareAttacker, UnitID: bruiser.ID, Destination: bf.ID})

	_, _, err := h.apply(second, Action{Kind: ActionDeclareBlockers, Blockers: []string{sentinel.ID, sentinel.ID}})
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))
	_, _, err = h.apply(second, Action{Kind: ActionDeclareBlockers, Blockers: []string{brawler.ID}})
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))

	d := h.mustApply(second, Action{Kind: ActionDeclareBlockers, Blockers: []string{sentinel.ID}})

	blocked := eventsOf(d, rules.EventBlockersDeclared)
	require.Len(t, blocked, 1)
	assert.ElementsMatch(t, []string{brawler.ID, sentinel.ID}, blocked[0].Targets)

	damage := eventsOf(d, rules.EventDamageDealt)
	require.Len(t, damage, 3)
	assert.Equal(t, sentinel.ID, damage[0].TargetID)
	assert.Equal(t, 3, damage[0].Amount)
	assert.Equal(t, brawler.ID, damage[1].TargetID)
	assert.Equal(t, 2, damage[1].Amount)
	assert.Equal(t, bruiser.ID, damage[2].TargetID)
	assert.Equal(t, 5, damage[2].Amount)

	st := h.e.State()
	assert.Equal(t, "wiped", eventsOf(d, rules.EventCombatResolved)[0].Data)
	assert.Empty(t, st.Battlefields[0].Controller)
	requireUnitDamageOnly(t, st, d.Events)
	requireInvariants(t, st)
}

func TestShieldAbsorbsCombatDamage(t *testing.T) {
	h, first, second := startedMatch(t)
	bruiser := h.addCard(first, "body-bruiser", ZoneBase, "")
	bf := h.battlefield(0)
	warden := h.addCard(second, "calm-warden", ZoneBattlefield, bf.ID)
	h.edit(func(st *MatchState) {
		c, _ := st.FindCard(warden.ID)
		c.Counters.Add(counters.Shield, 1)
	})
	h.setController(bf.ID, second)
	toCombat(t, h, first)

	h.mustApply(first, Action{Kind: ActionDeclareAttacker, UnitID: bruiser.ID, Destination: bf.ID})
	d := h.mustApply(second, Action{Kind: ActionPassPriority})

	// 5 power against toughness 4 plus one shield: the shield soaks 1.
	w := h.card(warden.ID)
	assert.Equal(t, ZoneTrash, w.Location.Zone)
	assert.Len(t, eventsOf(d, rules.EventCounterRemoved), 1)
	assert.Equal(t, 4, h.card(bruiser.ID).Damage)
	assert.Equal(t, first, h.battlefield(0).Controller)
}

func TestAssaultAddsMightWhileAttacking(t *testing.T) {
	h, first, second := startedMatch(t)
	charger := h.addCard(first, "body-charger", ZoneBase, "")
	bf := h.battlefield(0)
	sentinel := h.addCard(second, "calm-sentinel", ZoneBattlefield, bf.ID)
	h.setController(bf.ID, second)
	toCombat(t, h, first)

	h.mustApply(first, Action{Kind: ActionDeclareAttacker, UnitID: charger.ID, Destination: bf.ID})
	h.mustApply(second, Action{Kind: ActionPassPriority})

	assert.Equal(t, ZoneTrash, h.card(sentinel.ID).Location.Zone)
	assert.Equal(t, ZoneTrash, h.card(charger.ID).Location.Zone)
}

func TestAttackRules(t *testing.T) {
	h, first, second := startedMatch(t)
	unit := h.addCard(first, "fury-brawler", ZoneBase, "")
	tired := h.addCard(first, "fury-brawler", ZoneBase, "")
	h.edit(func(st *MatchState) {
		c, _ := st.FindCard(tired.ID)
		c.Exhausted = true
	})
	enemy := h.addCard(second, "fury-brawler", ZoneBase, "")
	bf := h.battlefield(0)
	toCombat(t, h, first)

	tests := []struct {
		name   string
		action Action
		code   apperr.Code
	}{
		{"exhausted", Action{Kind: ActionDeclareAttacker, UnitID: tired.ID, Destination: bf.ID}, apperr.CodeValidation},
		{"enemy unit", Action{Kind: ActionDeclareAttacker, UnitID: enemy.ID, Destination: bf.ID}, apperr.CodeValidation},
		{"unknown battlefield", Action{Kind: ActionDeclareAttacker, UnitID: unit.ID, Destination: "nowhere"}, apperr.CodeValidation},
		{"move in combat", Action{Kind: ActionMoveUnit, UnitID: unit.ID, Destination: bf.ID}, apperr.CodeInvalidPhaseAction},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := h.apply(first, tt.action)
			assert.Equal(t, tt.code, apperr.CodeOf(err))
		})
	}
}

func TestAttackTriggerTargetsEnemy(t *testing.T) {
	h, first, second := startedMatch(t)
	raider := h.addCard(first, "fury-raider", ZoneBase, "")
	bf := h.battlefield(0)
	defender := h.addCard(second, "fury-brawler", ZoneBattlefield, bf.ID)
	h.setController(bf.ID, second)
	toCombat(t, h, first)

	d := h.mustApply(first, Action{Kind: ActionDeclareAttacker, UnitID: raider.ID, Destination: bf.ID})
	added := eventsOf(d, rules.EventChainItemAdded)
	require.Len(t, added, 1)
	assert.Equal(t, []string{defender.ID}, added[0].Targets)
	assert.Equal(t, rules.WindowChain, h.e.State().Chain.Window.Kind)

	h.mustApply(second, Action{Kind: ActionPassPriority})
	h.mustApply(first, Action{Kind: ActionPassPriority})

	// The trigger resolved; the combat window is now open.
	st := h.e.State()
	assert.Equal(t, 1, h.card(defender.ID).Damage)
	require.NotNil(t, st.Chain.Window)
	assert.Equal(t, rules.WindowCombat, st.Chain.Window.Kind)

	d = h.mustApply(second, Action{Kind: ActionPassPriority})
	assert.Equal(t, "attacker", eventsOf(d, rules.EventCombatResolved)[0].Data)
	assert.Equal(t, first, h.battlefield(0).Controller)
}

func TestDeathknellTriggersOnDeath(t *testing.T) {
	h, first, second := startedMatch(t)
	berserker := h.addCard(second, "fury-berserker", ZoneBase, "")
	victim := h.addCard(first, "fury-brawler", ZoneBase, "")
	castFirebrand(t, h, first, berserker.ID)

	h.mustApply(second, Action{Kind: ActionPassPriority})
	d := h.mustApply(first, Action{Kind: ActionPassPriority})

	require.Len(t, eventsOf(d, rules.EventUnitDied), 1)
	st := h.e.State()
	require.Len(t, st.Chain.Items, 1)
	assert.Equal(t, rules.ChainItemTriggered, st.Chain.Items[0].Kind)
	assert.Equal(t, []string{victim.ID}, st.Chain.Items[0].Targets)
	assert.Equal(t, first, st.Chain.Window.Holder)

	h.mustApply(first, Action{Kind: ActionPassPriority})
	h.mustApply(second, Action{Kind: ActionPassPriority})
	assert.Equal(t, ZoneTrash, h.card(victim.ID).Location.Zone)
}

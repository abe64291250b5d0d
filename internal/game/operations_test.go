package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Miszion/riftbound-online-backend/internal/apperr"
	"github.com/Miszion/riftbound-online-backend/internal/game/counters"
	"github.com/Miszion/riftbound-online-backend/internal/game/effects"
	"github.com/Miszion/riftbound-online-backend/internal/game/resource"
	"github.com/Miszion/riftbound-online-backend/internal/game/rules"
)

func staticOp(t *testing.T, h *matchHarness, cardID string) effects.Operation {
	t.Helper()
	card, ok := h.e.Catalog().Get(cardID)
	require.True(t, ok, cardID)
	require.NotEmpty(t, card.Static, cardID)
	return card.Static[0]
}

func TestApplyOperationRejectsIllegalTargetAtomically(t *testing.T) {
	h, first, second := startedMatch(t)
	source := h.addCard(first, "fury-firebrand", ZoneEffects, "")
	own := h.addCard(first, "fury-brawler", ZoneBase, "")
	enemy := h.addCard(second, "fury-brawler", ZoneBase, "")
	op := staticOp(t, h, "fury-firebrand")
	st := h.e.State()

	out, events, err := ApplyOperation(h.e.Catalog(), st, source, op, []string{own.ID}, t0)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeTargeting, apperr.CodeOf(err))
	assert.Same(t, st, out)
	assert.Nil(t, events)

	out, events, err = ApplyOperation(h.e.Catalog(), st, source, op, []string{own.ID, enemy.ID}, t0)
	require.Error(t, err)
	assert.Same(t, st, out)

	out, events, err = ApplyOperation(h.e.Catalog(), st, source, op, []string{enemy.ID}, t0)
	require.NoError(t, err)
	assert.NotSame(t, st, out)
	victim, _ := out.FindCard(enemy.ID)
	assert.Equal(t, ZoneTrash, victim.Location.Zone)
	original, _ := st.FindCard(enemy.ID)
	assert.Equal(t, ZoneBase, original.Location.Zone)
	assert.Equal(t, 0, original.Damage)
	assert.NotEmpty(t, events)
}

func TestApplyOperationKinds(t *testing.T) {
	h, first, second := startedMatch(t)
	source := h.addCard(first, "fury-brawler", ZoneBase, "")
	ally := h.addCard(first, "body-bruiser", ZoneBase, "")
	enemy := h.addCard(second, "calm-warden", ZoneBase, "")
	bf := h.battlefield(0)
	amount := func(n int) *int { return &n }

	tests := []struct {
		name    string
		op      effects.Operation
		targets []string
		check   func(t *testing.T, st *MatchState, events []rules.Event)
	}{
		{
			name:    "permanent buff",
			op:      effects.Operation{Kind: effects.OpBuff, Magnitude: amount(2), TargetMode: effects.TargetSingle, TargetHint: effects.HintAlly, RequiresSelection: true, Text: "give a friendly unit +2 might"},
			targets: []string{ally.ID},
			check: func(t *testing.T, st *MatchState, _ []rules.Event) {
				u, _ := st.FindCard(ally.ID)
				assert.Equal(t, 2, u.Counters.Count(counters.Buff))
				assert.Equal(t, 7, Might(st, u))
			},
		},
		{
			name:    "buff this turn",
			op:      effects.Operation{Kind: effects.OpBuff, Magnitude: amount(2), TargetMode: effects.TargetSingle, TargetHint: effects.HintAlly, RequiresSelection: true, Text: "give a friendly unit +2 might this turn"},
			targets: []string{ally.ID},
			check: func(t *testing.T, st *MatchState, _ []rules.Event) {
				u, _ := st.FindCard(ally.ID)
				assert.Equal(t, 0, u.Counters.Count(counters.Buff))
				assert.Equal(t, 7, Might(st, u))
				p, _ := st.Player(first)
				require.Len(t, p.TempEffects, 1)
				assert.Equal(t, TempBuff, p.TempEffects[0].Kind)
			},
		},
		{
			name:    "debuff",
			op:      effects.Operation{Kind: effects.OpDebuff, Magnitude: amount(2), TargetMode: effects.TargetSingle, TargetHint: effects.HintEnemy, RequiresSelection: true},
			targets: []string{enemy.ID},
			check: func(t *testing.T, st *MatchState, _ []rules.Event) {
				u, _ := st.FindCard(enemy.ID)
				assert.Equal(t, 2, Might(st, u))
			},
		},
		{
			name:    "stun",
			op:      effects.Operation{Kind: effects.OpStun, TargetMode: effects.TargetSingle, TargetHint: effects.HintEnemy, RequiresSelection: true},
			targets: []string{enemy.ID},
			check: func(t *testing.T, st *MatchState, _ []rules.Event) {
				u, _ := st.FindCard(enemy.ID)
				assert.True(t, Stunned(st, u))
			},
		},
		{
			name:    "removal",
			op:      effects.Operation{Kind: effects.OpRemoval, TargetMode: effects.TargetSingle, TargetHint: effects.HintEnemy, RequiresSelection: true},
			targets: []string{enemy.ID},
			check: func(t *testing.T, st *MatchState, events []rules.Event) {
				u, _ := st.FindCard(enemy.ID)
				assert.Equal(t, ZoneTrash, u.Location.Zone)
				assert.Equal(t, second, u.Controller)
			},
		},
		{
			name:    "global damage",
			op:      effects.Operation{Kind: effects.OpDamage, Magnitude: amount(2), TargetMode: effects.TargetGlobal, TargetHint: effects.HintEnemy},
			check: func(t *testing.T, st *MatchState, events []rules.Event) {
				u, _ := st.FindCard(enemy.ID)
				assert.Equal(t, 2, u.Damage)
				a, _ := st.FindCard(ally.ID)
				assert.Equal(t, 0, a.Damage)
			},
		},
		{
			name:    "control battlefield",
			op:      effects.Operation{Kind: effects.OpControl, TargetMode: effects.TargetSingle, TargetHint: effects.HintBattlefield, RequiresSelection: true},
			targets: []string{bf.ID},
			check: func(t *testing.T, st *MatchState, events []rules.Event) {
				b, _ := st.Battlefield(bf.ID)
				assert.Equal(t, first, b.Controller)
				p, _ := st.Player(first)
				assert.Equal(t, 0, p.Points)
			},
		},
		{
			name: "opponent discards",
			op:   effects.Operation{Kind: effects.OpDiscard, Magnitude: amount(1), TargetMode: effects.TargetNone, TargetHint: effects.HintEnemy},
			check: func(t *testing.T, st *MatchState, events []rules.Event) {
				p, _ := st.Player(second)
				assert.Len(t, p.Hand, DefaultOptions().OpeningHand-1)
				assert.Len(t, p.Trash, 1)
			},
		},
		{
			name: "summon token",
			op:   effects.Operation{Kind: effects.OpSummon, TargetMode: effects.TargetNone, Text: "play a recruit token"},
			check: func(t *testing.T, st *MatchState, events []rules.Event) {
				p, _ := st.Player(first)
				last := p.Base[len(p.Base)-1]
				assert.Equal(t, "token-recruit", last.CardID)
				assert.True(t, last.Exhausted)
			},
		},
		{
			name: "resource gain",
			op:   effects.Operation{Kind: effects.OpResourceGain, Magnitude: amount(1), TargetMode: effects.TargetNone},
			check: func(t *testing.T, st *MatchState, events []rules.Event) {
				p, _ := st.Player(first)
				assert.Equal(t, DefaultOptions().ChannelPerTurn+1, p.Pool.Energy)
			},
		},
		{
			name: "channel rune",
			op:   effects.Operation{Kind: effects.OpChannel, Magnitude: amount(1), TargetMode: effects.TargetNone},
			check: func(t *testing.T, st *MatchState, events []rules.Event) {
				before, _ := h.e.State().Player(first)
				p, _ := st.Player(first)
				assert.Len(t, p.Runes, len(before.Runes)+1)
				assert.Len(t, p.RuneDeck, len(before.RuneDeck)-1)
				assert.Equal(t, before.Pool.Energy, p.Pool.Energy, "channelled runes fill the pool at the next refill")
				require.NotEmpty(t, events)
				var channelled int
				for _, ev := range events {
					if ev.Type == rules.EventRunesChanneled {
						channelled += ev.Amount
					}
				}
				assert.Equal(t, 1, channelled)
			},
		},
		{
			name: "draw",
			op:   effects.Operation{Kind: effects.OpDraw, Magnitude: amount(2), TargetMode: effects.TargetNone},
			check: func(t *testing.T, st *MatchState, events []rules.Event) {
				p, _ := st.Player(first)
				assert.Len(t, p.Hand, DefaultOptions().OpeningHand+2)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := h.e.State()
			out, events, err := ApplyOperation(h.e.Catalog(), st, source, tt.op, tt.targets, t0)
			require.NoError(t, err)
			tt.check(t, out, events)
			requireInvariants(t, out)
		})
	}
}

func TestTokensVanishWhenKilled(t *testing.T) {
	h, first, second := startedMatch(t)
	source := h.addCard(second, "fury-brawler", ZoneBase, "")
	token := h.addCard(first, "token-recruit", ZoneBase, "")
	op := effects.Operation{Kind: effects.OpRemoval, TargetMode: effects.TargetSingle, TargetHint: effects.HintEnemy, RequiresSelection: true}

	out, _, err := ApplyOperation(h.e.Catalog(), h.e.State(), source, op, []string{token.ID}, t0)
	require.NoError(t, err)
	_, found := out.FindCard(token.ID)
	assert.False(t, found)
}

func TestTempEffectsExpireAtEndOfTurn(t *testing.T) {
	h, first, _ := startedMatch(t)
	ally := h.addCard(first, "fury-brawler", ZoneBase, "")
	growth := h.addCard(first, "body-growth", ZoneHand, "")
	h.setPool(first, 2, map[resource.Domain]int{resource.DomainBody: 1})

	h.mustApply(first, Action{Kind: ActionPlayCard, HandIndex: handIndex(t, h.e.State(), first, growth.ID), Targets: []string{ally.ID}})
	second := h.e.State().Opponent(first)
	h.mustApply(second, Action{Kind: ActionPassPriority})
	h.mustApply(first, Action{Kind: ActionPassPriority})
	st := h.e.State()
	assert.Equal(t, 4, Might(st, h.card(ally.ID)))

	h.mustApply(first, Action{Kind: ActionAdvancePhase})
	h.mustApply(first, Action{Kind: ActionAdvancePhase})
	d := h.mustApply(first, Action{Kind: ActionAdvancePhase})

	assert.Len(t, eventsOf(d, rules.EventEffectExpired), 1)
	assert.Equal(t, 2, Might(h.e.State(), h.card(ally.ID)))
}

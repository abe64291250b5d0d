package effects

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyOperations(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		kind      OperationKind
		magnitude *int
		mode      TargetMode
		hint      TargetHint
		selects   bool
	}{
		{"damage", "Deal 3 damage to an enemy unit.", OpDamage, intPtr(3), TargetSingle, HintEnemy, true},
		{"spelled damage", "Deal five damage to all enemy units.", OpDamage, intPtr(5), TargetGlobal, HintEnemy, false},
		{"contextual damage", "Deal damage equal to its might to an enemy unit.", OpDamage, nil, TargetSingle, HintEnemy, true},
		{"draw", "Draw two cards.", OpDraw, intPtr(2), TargetNone, HintSelf, false},
		{"buff", "Give a friendly unit +2 might this turn.", OpBuff, intPtr(2), TargetSingle, HintAlly, true},
		{"debuff", "Give an enemy unit -2 might this turn.", OpDebuff, intPtr(2), TargetSingle, HintEnemy, true},
		{"removal beats damage", "Kill all units with 2 might or less.", OpRemoval, nil, TargetGlobal, HintAny, false},
		{"control", "Take control of a battlefield.", OpControl, nil, TargetSingle, HintBattlefield, true},
		{"channel", "Channel 1 rune.", OpChannel, intPtr(1), TargetNone, HintSelf, false},
		{"channel spelled out", "Channel two runes.", OpChannel, intPtr(2), TargetNone, HintSelf, false},
		{"resource", "Gain 2 energy.", OpResourceGain, intPtr(2), TargetNone, HintSelf, false},
		{"shield", "Prevent the next 2 damage to a friendly unit.", OpShield, intPtr(2), TargetSingle, HintAlly, true},
		{"heal", "Heal a friendly unit.", OpHeal, nil, TargetSingle, HintAlly, true},
		{"move", "Recall up to two units.", OpMove, intPtr(2), TargetMultiple, HintAny, true},
		{"stun", "Stun an enemy unit.", OpStun, nil, TargetSingle, HintEnemy, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Classify(tt.text)
			require.Len(t, p.Operations, 1)
			op := p.Operations[0]
			assert.Equal(t, tt.kind, op.Kind)
			assert.Equal(t, tt.magnitude, op.Magnitude)
			assert.Equal(t, tt.mode, op.TargetMode)
			assert.Equal(t, tt.hint, op.TargetHint)
			assert.Equal(t, tt.selects, op.RequiresSelection)
			assert.Equal(t, TaxonomyVersion, p.Version)
			assert.False(t, p.NeedsReview)
		})
	}
}

func TestClassifyMultipleClauses(t *testing.T) {
	p := Classify("Draw 1, then discard 1.")
	require.Len(t, p.Operations, 2)
	assert.Equal(t, OpDraw, p.Operations[0].Kind)
	assert.Equal(t, OpDiscard, p.Operations[1].Kind)
	assert.Equal(t, 1, p.Operations[1].Amount(0))
	assert.Equal(t, TargetNone, p.TargetMode)
}

func TestClassifyFallsBackToGeneric(t *testing.T) {
	p := Classify("Your opponent reveals their hand.")
	require.Len(t, p.Operations, 1)
	assert.Equal(t, OpGeneric, p.Operations[0].Kind)
	assert.True(t, p.NeedsReview)
	assert.False(t, p.AutoPlayable())
}

func TestClassifyEmptyText(t *testing.T) {
	p := Classify("   ")
	assert.Empty(t, p.Operations)
	assert.False(t, p.NeedsReview)
	assert.True(t, p.AutoPlayable())
	assert.Equal(t, TimingMain, p.Timing)
}

func TestClassifyTimingAndKeywords(t *testing.T) {
	tests := []struct {
		text   string
		timing Timing
	}{
		{"[Reaction] Deal 2 damage to a unit.", TimingReaction},
		{"[Action] Give a friendly unit +1 might this turn.", TimingCombat},
		{"At the start of the game, draw 1.", TimingSetup},
		{"Draw 1.", TimingMain},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.timing, Classify(tt.text).Timing)
		})
	}

	p := Classify("[Tank] [Assault]")
	assert.True(t, p.Has(KeywordTank))
	assert.True(t, p.Has(KeywordAssault))
	assert.Empty(t, p.Operations)
}

func TestCompileTriggers(t *testing.T) {
	trigs := CompileTriggers("When I conquer, deal 1 damage to an enemy unit. At the start of your turn, buff me.")
	require.Len(t, trigs, 2)

	assert.Equal(t, TriggerConquer, trigs[0].Kind)
	require.Len(t, trigs[0].Operations, 1)
	assert.Equal(t, OpDamage, trigs[0].Operations[0].Kind)
	assert.Equal(t, 1, trigs[0].Operations[0].Amount(0))

	assert.Equal(t, TriggerTurnStart, trigs[1].Kind)
	require.Len(t, trigs[1].Operations, 1)
	assert.Equal(t, OpBuff, trigs[1].Operations[0].Kind)
	assert.Equal(t, HintSelf, trigs[1].Operations[0].TargetHint)
	assert.False(t, trigs[1].Operations[0].RequiresSelection)
}

func TestCompileTriggersSkipsLeadingKeywords(t *testing.T) {
	trigs := CompileTriggers("[Tank] When you play me, draw 1.")
	require.Len(t, trigs, 1)
	assert.Equal(t, TriggerPlay, trigs[0].Kind)
	assert.Equal(t, OpDraw, trigs[0].Operations[0].Kind)

	death := CompileTriggers("Deathknell - Draw 1.")
	require.Len(t, death, 1)
	assert.Equal(t, TriggerDeath, death[0].Kind)

	assert.Empty(t, StaticOperations("[Tank] When you play me, draw 1."))
	assert.Len(t, StaticOperations("Draw 1. When I attack, buff me."), 1)
}

func TestParseOperationKind(t *testing.T) {
	k, err := ParseOperationKind("damage")
	require.NoError(t, err)
	assert.Equal(t, OpDamage, k)

	_, err = ParseOperationKind("teleport")
	assert.Error(t, err)
}

func intPtr(v int) *int { return &v }

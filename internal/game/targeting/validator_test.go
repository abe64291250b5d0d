package targeting

import (
	"testing"

	"github.com/Miszion/riftbound-online-backend/internal/apperr"
	"github.com/Miszion/riftbound-online-backend/internal/game/effects"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeState struct {
	units        map[string]TargetCardInfo
	battlefields map[string]TargetBattlefieldInfo
}

func (f fakeState) FindUnitForTarget(id string) (TargetCardInfo, bool) {
	u, ok := f.units[id]
	return u, ok
}

func (f fakeState) FindBattlefieldForTarget(id string) (TargetBattlefieldInfo, bool) {
	b, ok := f.battlefields[id]
	return b, ok
}

func newFakeState() fakeState {
	return fakeState{
		units: map[string]TargetCardInfo{
			"a1": {ID: "a1", ControllerID: "alice"},
			"a2": {ID: "a2", ControllerID: "alice"},
			"b1": {ID: "b1", ControllerID: "bob"},
		},
		battlefields: map[string]TargetBattlefieldInfo{
			"bf-1": {ID: "bf-1", ControllerID: "bob"},
			"bf-2": {ID: "bf-2"},
		},
	}
}

func TestRequirementFor(t *testing.T) {
	op := effects.Classify("Deal 3 damage to an enemy unit.").Operations[0]
	req, ok := RequirementFor(op)
	require.True(t, ok)
	assert.Equal(t, TargetTypeUnit, req.Type)
	assert.Equal(t, 1, req.MinTargets)
	assert.Equal(t, 1, req.MaxTargets)

	control := effects.Classify("Take control of a battlefield.").Operations[0]
	req, ok = RequirementFor(control)
	require.True(t, ok)
	assert.Equal(t, TargetTypeBattlefield, req.Type)

	_, ok = RequirementFor(effects.Classify("Draw 2.").Operations[0])
	assert.False(t, ok)
}

func TestValidateTargets(t *testing.T) {
	tv := NewTargetValidator(newFakeState())
	enemyUnit := TargetRequirement{Type: TargetTypeUnit, Hint: effects.HintEnemy, MinTargets: 1, MaxTargets: 1}
	allyUpTo2 := TargetRequirement{Type: TargetTypeUnit, Hint: effects.HintAlly, MinTargets: 1, MaxTargets: 2}
	anyBattlefield := TargetRequirement{Type: TargetTypeBattlefield, Hint: effects.HintBattlefield, MinTargets: 1, MaxTargets: 1}

	tests := []struct {
		name    string
		targets []string
		req     TargetRequirement
		ok      bool
	}{
		{"enemy unit", []string{"b1"}, enemyUnit, true},
		{"own unit as enemy", []string{"a1"}, enemyUnit, false},
		{"missing target", nil, enemyUnit, false},
		{"too many", []string{"b1", "a1"}, enemyUnit, false},
		{"unknown unit", []string{"zz"}, enemyUnit, false},
		{"two allies", []string{"a1", "a2"}, allyUpTo2, true},
		{"duplicate", []string{"a1", "a1"}, allyUpTo2, false},
		{"battlefield", []string{"bf-2"}, anyBattlefield, true},
		{"unit as battlefield", []string{"a1"}, anyBattlefield, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tv.ValidateTargets("alice", tt.targets, tt.req)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, apperr.CodeTargeting, apperr.CodeOf(err))
		})
	}
}

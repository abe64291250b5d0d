package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotRoundTrip(t *testing.T) {
	h, first, _ := startedMatch(t)
	h.addCard(first, "calm-warden", ZoneBase, "")
	st := h.e.State()

	snap, err := NewSnapshot(st, "action:play_card", t0)
	require.NoError(t, err)
	assert.Equal(t, st.ID, snap.MatchID)
	assert.Equal(t, st.Seq, snap.Seq)
	assert.Len(t, snap.Checksum, 64)
	assert.True(t, snap.Verify())

	again, err := NewSnapshot(st, "action:play_card", t0)
	require.NoError(t, err)
	assert.Equal(t, snap.Checksum, again.Checksum)

	decoded, err := snap.Decode(h.e.Catalog())
	require.NoError(t, err)
	assert.Equal(t, st.Turn, decoded.Turn)
	p, _ := decoded.Player(first)
	orig, _ := st.Player(first)
	require.Len(t, p.Base, len(orig.Base))
	require.NotNil(t, p.Base[0].Card)
	assert.Equal(t, "calm-warden", p.Base[0].Card.ID)
	assert.NotNil(t, p.Base[0].Counters)
	requireInvariants(t, decoded)
}

func TestSnapshotRejectsTampering(t *testing.T) {
	h, _, _ := startedMatch(t)
	snap, err := NewSnapshot(h.e.State(), "completed", t0)
	require.NoError(t, err)

	snap.State = append([]byte(nil), snap.State...)
	snap.State[len(snap.State)-2] ^= 1
	assert.False(t, snap.Verify())
	_, err = snap.Decode(h.e.Catalog())
	assert.ErrorContains(t, err, "checksum mismatch")

	snap.Version = 99
	_, err = snap.Decode(h.e.Catalog())
	assert.ErrorContains(t, err, "unsupported version")
}

func TestResultOf(t *testing.T) {
	h, first, second := startedMatch(t)
	_, ok := ResultOf(h.e.State())
	assert.False(t, ok)

	h.mustApply(second, Action{Kind: ActionConcede})
	r, ok := ResultOf(h.e.State())
	require.True(t, ok)
	assert.Equal(t, "match-1", r.MatchID)
	assert.Equal(t, first, r.Winner)
	assert.Equal(t, second, r.Loser())
	assert.Equal(t, "concede", r.Reason)
	assert.ElementsMatch(t, []string{alice, bob}, r.Players[:])
}

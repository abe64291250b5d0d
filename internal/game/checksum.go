package game

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/Miszion/riftbound-online-backend/internal/game/catalog"
	"github.com/Miszion/riftbound-online-backend/internal/game/rules"
)

// SnapshotVersion is bumped whenever the encoded MatchState changes shape.
const SnapshotVersion = 1

// Snapshot is a checksummed, encoded copy of a match state.
type Snapshot struct {
	MatchID  string          `json:"match_id"`
	Seq      int64           `json:"seq"`
	Reason   string          `json:"reason"`
	Version  int             `json:"version"`
	Checksum string          `json:"checksum"`
	State    json.RawMessage `json:"state"`
	TakenAt  time.Time       `json:"taken_at"`
}

// NewSnapshot encodes st. encoding/json writes struct fields in declaration
// order and map keys sorted, so equal states always hash equally.
func NewSnapshot(st *MatchState, reason string, at time.Time) (Snapshot, error) {
	data, err := json.Marshal(st)
	if err != nil {
		return Snapshot{}, fmt.Errorf("encode match %s: %w", st.ID, err)
	}
	return Snapshot{
		MatchID:  st.ID,
		Seq:      st.Seq,
		Reason:   reason,
		Version:  SnapshotVersion,
		Checksum: Checksum(data),
		State:    data,
		TakenAt:  at,
	}, nil
}

// Checksum returns the hex blake2b-256 digest of data.
func Checksum(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Verify reports whether the stored checksum matches the encoded state.
func (s Snapshot) Verify() bool {
	return Checksum(s.State) == s.Checksum
}

// Decode verifies and decodes the state, relinking card definitions from cat.
func (s Snapshot) Decode(cat *catalog.Catalog) (*MatchState, error) {
	if s.Version != SnapshotVersion {
		return nil, fmt.Errorf("snapshot %s/%d: unsupported version %d", s.MatchID, s.Seq, s.Version)
	}
	if !s.Verify() {
		return nil, fmt.Errorf("snapshot %s/%d: checksum mismatch", s.MatchID, s.Seq)
	}
	var st MatchState
	if err := json.Unmarshal(s.State, &st); err != nil {
		return nil, fmt.Errorf("decode snapshot %s/%d: %w", s.MatchID, s.Seq, err)
	}
	if st.Chain == nil {
		st.Chain = rules.NewChain()
	}
	st.Relink(cat)
	return &st, nil
}

package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Miszion/riftbound-online-backend/internal/apperr"
	"github.com/Miszion/riftbound-online-backend/internal/game"
)

// SnapshotRepository stores match snapshots keyed by (match, seq).
type SnapshotRepository struct {
	db *DB
}

func NewSnapshotRepository(db *DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// SaveSnapshot writes snap. Saving the same sequence twice keeps the first.
func (r *SnapshotRepository) SaveSnapshot(ctx context.Context, snap game.Snapshot) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO match_snapshots (match_id, seq, reason, version, checksum, state, taken_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (match_id, seq) DO NOTHING`,
		snap.MatchID, snap.Seq, snap.Reason, snap.Version, snap.Checksum, []byte(snap.State), snap.TakenAt,
	)
	if err != nil {
		return fmt.Errorf("save snapshot %s@%d: %w", snap.MatchID, snap.Seq, err)
	}
	return nil
}

// LatestSnapshot returns the highest sequence stored for matchID.
func (r *SnapshotRepository) LatestSnapshot(ctx context.Context, matchID string) (game.Snapshot, error) {
	var (
		snap  game.Snapshot
		state []byte
	)
	err := r.db.pool.QueryRow(ctx, `
		SELECT match_id, seq, reason, version, checksum, state, taken_at
		  FROM match_snapshots
		 WHERE match_id = $1
		 ORDER BY seq DESC
		 LIMIT 1`, matchID,
	).Scan(&snap.MatchID, &snap.Seq, &snap.Reason, &snap.Version, &snap.Checksum, &state, &snap.TakenAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return game.Snapshot{}, apperr.New(apperr.CodeMatchNotFound, "no snapshot for match %s", matchID)
	}
	if err != nil {
		return game.Snapshot{}, fmt.Errorf("load snapshot %s: %w", matchID, err)
	}
	snap.State = state
	return snap, nil
}

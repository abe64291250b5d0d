package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Miszion/riftbound-online-backend/internal/apperr"
	"github.com/Miszion/riftbound-online-backend/internal/matchmaking"
)

// QueueStore is a matchmaking.Store backed by the matchmaking_queue table.
type QueueStore struct {
	db *DB
}

var _ matchmaking.Store = (*QueueStore)(nil)

func NewQueueStore(db *DB) *QueueStore {
	return &QueueStore{db: db}
}

const queueColumns = `mode, user_id, deck_id, state, skill_rating, queued_at, match_id, opponent_id, expires_at, version`

func scanEntry(row pgx.Row) (matchmaking.Entry, error) {
	var (
		e          matchmaking.Entry
		state      string
		matchID    *string
		opponentID *string
		expiresAt  *time.Time
	)
	if err := row.Scan(&e.Mode, &e.UserID, &e.DeckID, &state, &e.SkillRating, &e.QueuedAt,
		&matchID, &opponentID, &expiresAt, &e.Version); err != nil {
		return matchmaking.Entry{}, err
	}
	e.State = matchmaking.State(state)
	if matchID != nil {
		e.MatchID = *matchID
	}
	if opponentID != nil {
		e.OpponentID = *opponentID
	}
	if expiresAt != nil {
		e.ExpiresAt = *expiresAt
	}
	return e, nil
}

func (s *QueueStore) Insert(ctx context.Context, e matchmaking.Entry) (matchmaking.Entry, bool, error) {
	stored, err := scanEntry(s.db.pool.QueryRow(ctx, `
		INSERT INTO matchmaking_queue (mode, user_id, deck_id, state, skill_rating, queued_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (mode, user_id) DO NOTHING
		RETURNING `+queueColumns,
		e.Mode, e.UserID, e.DeckID, string(matchmaking.StateQueued), e.SkillRating, e.QueuedAt,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		existing, err := s.Get(ctx, e.Mode, e.UserID)
		return existing, false, err
	}
	if err != nil {
		return matchmaking.Entry{}, false, fmt.Errorf("insert queue entry: %w", err)
	}
	return stored, true, nil
}

func (s *QueueStore) Get(ctx context.Context, mode, userID string) (matchmaking.Entry, error) {
	e, err := scanEntry(s.db.pool.QueryRow(ctx,
		`SELECT `+queueColumns+` FROM matchmaking_queue WHERE mode = $1 AND user_id = $2`, mode, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return matchmaking.Entry{}, apperr.New(apperr.CodeEntryNotFound, "%s is not queued for %s", userID, mode)
	}
	if err != nil {
		return matchmaking.Entry{}, fmt.Errorf("load queue entry: %w", err)
	}
	return e, nil
}

func (s *QueueStore) Delete(ctx context.Context, mode, userID string) error {
	if _, err := s.db.pool.Exec(ctx,
		`DELETE FROM matchmaking_queue WHERE mode = $1 AND user_id = $2`, mode, userID); err != nil {
		return fmt.Errorf("delete queue entry: %w", err)
	}
	return nil
}

func (s *QueueStore) ListQueued(ctx context.Context, mode string) ([]matchmaking.Entry, error) {
	rows, err := s.db.pool.Query(ctx, `
		SELECT `+queueColumns+`
		  FROM matchmaking_queue
		 WHERE mode = $1 AND state = $2
		 ORDER BY queued_at`, mode, string(matchmaking.StateQueued))
	if err != nil {
		return nil, fmt.Errorf("list queue: %w", err)
	}
	defer rows.Close()

	var out []matchmaking.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan queue entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

var errClaimLost = errors.New("claim lost")

// ClaimPair updates both rows only where state and version are unchanged.
// Versions come from one sequence, so a re-inserted row never reuses one.
// If either update misses, the transaction rolls back.
func (s *QueueStore) ClaimPair(ctx context.Context, a, b matchmaking.Entry, matchID string, expiresAt time.Time) error {
	if a.Mode == b.Mode && a.UserID == b.UserID {
		return apperr.New(apperr.CodeValidation, "cannot pair %s with itself", a.UserID)
	}
	err := pgx.BeginTxFunc(ctx, s.db.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, p := range [][2]matchmaking.Entry{{a, b}, {b, a}} {
			self, other := p[0], p[1]
			tag, err := tx.Exec(ctx, `
				UPDATE matchmaking_queue
				   SET state = $3, match_id = $4, opponent_id = $5, expires_at = $6, version = nextval('matchmaking_queue_version_seq')
				 WHERE mode = $1 AND user_id = $2 AND state = $7 AND version = $8`,
				self.Mode, self.UserID, string(matchmaking.StateMatched), matchID, other.UserID, expiresAt,
				string(matchmaking.StateQueued), self.Version,
			)
			if err != nil {
				return err
			}
			if tag.RowsAffected() != 1 {
				return errClaimLost
			}
		}
		return nil
	})
	if errors.Is(err, errClaimLost) {
		return apperr.New(apperr.CodeEntryClaimed, "entries %s/%s changed since read", a.UserID, b.UserID)
	}
	if err != nil {
		return fmt.Errorf("claim pair: %w", err)
	}
	return nil
}

func (s *QueueStore) Release(ctx context.Context, mode, matchID string, userIDs ...string) error {
	if _, err := s.db.pool.Exec(ctx, `
		UPDATE matchmaking_queue
		   SET state = $4, match_id = NULL, opponent_id = NULL, expires_at = NULL, version = nextval('matchmaking_queue_version_seq')
		 WHERE mode = $1 AND match_id = $2 AND user_id = ANY($3) AND state = $5`,
		mode, matchID, userIDs, string(matchmaking.StateQueued), string(matchmaking.StateMatched),
	); err != nil {
		return fmt.Errorf("release %s: %w", matchID, err)
	}
	return nil
}

func (s *QueueStore) PurgeMatched(ctx context.Context, now time.Time) (int, error) {
	tag, err := s.db.pool.Exec(ctx,
		`DELETE FROM matchmaking_queue WHERE state = $1 AND expires_at < $2`,
		string(matchmaking.StateMatched), now)
	if err != nil {
		return 0, fmt.Errorf("purge matched entries: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

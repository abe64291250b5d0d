package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/Miszion/riftbound-online-backend/internal/game"
	"github.com/Miszion/riftbound-online-backend/internal/rating"
)

// ResultRepository records match results and the ratings they move.
type ResultRepository struct {
	db     *DB
	logger *zap.Logger
}

func NewResultRepository(db *DB, logger *zap.Logger) *ResultRepository {
	return &ResultRepository{db: db, logger: logger}
}

// Rating returns userID's rating for mode, rating.Initial if unrated.
func (r *ResultRepository) Rating(ctx context.Context, userID, mode string) (int, error) {
	var v int
	err := r.db.pool.QueryRow(ctx,
		`SELECT rating FROM player_ratings WHERE user_id = $1 AND mode = $2`, userID, mode,
	).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return rating.Initial, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load rating for %s: %w", userID, err)
	}
	return v, nil
}

// RecordMatchResult stores res and applies the Elo update to both players in
// one transaction. Recording the same match twice is a no-op.
func (r *ResultRepository) RecordMatchResult(ctx context.Context, res game.Result) error {
	var applied bool
	err := pgx.BeginTxFunc(ctx, r.db.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			INSERT INTO match_results
				(match_id, mode, player_a, player_b, winner, reason, points_a, points_b, turns, started_at, completed_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (match_id) DO NOTHING`,
			res.MatchID, res.Mode, res.Players[0], res.Players[1], res.Winner, res.Reason,
			res.Points[0], res.Points[1], res.Turns, res.StartedAt, res.CompletedAt,
		)
		if err != nil {
			return fmt.Errorf("insert result: %w", err)
		}
		if tag.RowsAffected() == 0 || res.Mode == "" {
			return nil
		}
		applied = true
		return applyRatings(ctx, tx, res)
	})
	if err != nil {
		return fmt.Errorf("record result %s: %w", res.MatchID, err)
	}
	if applied && r.logger != nil {
		r.logger.Info("match result recorded",
			zap.String("match_id", res.MatchID),
			zap.String("winner", res.Winner),
			zap.String("reason", res.Reason),
		)
	}
	return nil
}

func applyRatings(ctx context.Context, tx pgx.Tx, res game.Result) error {
	// Rows are locked in a fixed order so concurrent results cannot deadlock.
	locked := []string{res.Players[0], res.Players[1]}
	sort.Strings(locked)
	current := make(map[string]int, 2)
	for _, id := range locked {
		if _, err := tx.Exec(ctx, `
			INSERT INTO player_ratings (user_id, mode, rating) VALUES ($1, $2, $3)
			ON CONFLICT (user_id, mode) DO NOTHING`, id, res.Mode, rating.Initial); err != nil {
			return fmt.Errorf("seed rating for %s: %w", id, err)
		}
		var v int
		if err := tx.QueryRow(ctx,
			`SELECT rating FROM player_ratings WHERE user_id = $1 AND mode = $2 FOR UPDATE`, id, res.Mode,
		).Scan(&v); err != nil {
			return fmt.Errorf("lock rating for %s: %w", id, err)
		}
		current[id] = v
	}

	outcome := rating.Draw
	switch res.Winner {
	case res.Players[0]:
		outcome = rating.Win
	case res.Players[1]:
		outcome = rating.Loss
	}
	a, b := res.Players[0], res.Players[1]
	newA, newB := rating.Update(current[a], current[b], outcome)

	for _, u := range []struct {
		id            string
		before, after int
	}{{a, current[a], newA}, {b, current[b], newB}} {
		if _, err := tx.Exec(ctx, `
			UPDATE player_ratings SET rating = $3, games = games + 1, updated_at = now()
			 WHERE user_id = $1 AND mode = $2`, u.id, res.Mode, u.after); err != nil {
			return fmt.Errorf("update rating for %s: %w", u.id, err)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO rating_history (match_id, user_id, mode, old_rating, new_rating)
			VALUES ($1, $2, $3, $4, $5)`, res.MatchID, u.id, res.Mode, u.before, u.after); err != nil {
			return fmt.Errorf("record rating history for %s: %w", u.id, err)
		}
	}
	return nil
}

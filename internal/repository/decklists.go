package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Miszion/riftbound-online-backend/internal/apperr"
	"github.com/Miszion/riftbound-online-backend/internal/game"
)

// DecklistRepository stores players' decklists.
type DecklistRepository struct {
	db *DB
}

func NewDecklistRepository(db *DB) *DecklistRepository {
	return &DecklistRepository{db: db}
}

const decklistColumns = `id, user_id, name, main_deck, rune_deck, battlefields, side_deck`

// LoadDecklist returns deckID owned by userID. An empty deckID picks the
// user's default deck, falling back to the most recently updated one.
func (r *DecklistRepository) LoadDecklist(ctx context.Context, userID, deckID string) (game.Decklist, error) {
	var row pgx.Row
	if deckID == "" {
		row = r.db.pool.QueryRow(ctx, `SELECT `+decklistColumns+`
			  FROM decklists
			 WHERE user_id = $1
			 ORDER BY is_default DESC, updated_at DESC
			 LIMIT 1`, userID)
	} else {
		row = r.db.pool.QueryRow(ctx, `SELECT `+decklistColumns+`
			  FROM decklists
			 WHERE id = $1 AND user_id = $2`, deckID, userID)
	}

	var d game.Decklist
	err := row.Scan(&d.ID, &d.UserID, &d.Name, &d.MainDeck, &d.RuneDeck, &d.Battlefields, &d.SideDeck)
	if errors.Is(err, pgx.ErrNoRows) {
		return game.Decklist{}, apperr.New(apperr.CodeInvalidDeck, "no decklist %q for %s", deckID, userID)
	}
	if err != nil {
		return game.Decklist{}, fmt.Errorf("load decklist for %s: %w", userID, err)
	}
	return d, nil
}

// SaveDecklist inserts or replaces d. When isDefault is set every other deck
// of the user loses the default flag in the same transaction.
func (r *DecklistRepository) SaveDecklist(ctx context.Context, d game.Decklist, isDefault bool) error {
	side := d.SideDeck
	if side == nil {
		side = []string{}
	}
	err := pgx.BeginTxFunc(ctx, r.db.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if isDefault {
			if _, err := tx.Exec(ctx, `UPDATE decklists SET is_default = FALSE WHERE user_id = $1 AND id <> $2`, d.UserID, d.ID); err != nil {
				return err
			}
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO decklists (id, user_id, name, main_deck, rune_deck, battlefields, side_deck, is_default)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (id) DO UPDATE
			   SET name = EXCLUDED.name,
			       main_deck = EXCLUDED.main_deck,
			       rune_deck = EXCLUDED.rune_deck,
			       battlefields = EXCLUDED.battlefields,
			       side_deck = EXCLUDED.side_deck,
			       is_default = EXCLUDED.is_default,
			       updated_at = now()
			 WHERE decklists.user_id = EXCLUDED.user_id`,
			d.ID, d.UserID, d.Name, d.MainDeck, d.RuneDeck, d.Battlefields, side, isDefault,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("save decklist %s: %w", d.ID, err)
	}
	return nil
}

package matchmaking

import (
	"context"

	"github.com/Miszion/riftbound-online-backend/internal/apperr"
	"github.com/Miszion/riftbound-online-backend/internal/game"
)

// StarterDecks hands every player the built-in starter deck.
type StarterDecks struct{}

func (StarterDecks) LoadDecklist(_ context.Context, userID, _ string) (game.Decklist, error) {
	return game.StarterDeck(userID, 0), nil
}

// FallbackDecks asks Primary first and falls back to the starter deck when
// the player has no saved deck. Other failures are returned as is.
type FallbackDecks struct {
	Primary DeckLoader
}

func (f FallbackDecks) LoadDecklist(ctx context.Context, userID, deckID string) (game.Decklist, error) {
	if f.Primary == nil {
		return StarterDecks{}.LoadDecklist(ctx, userID, deckID)
	}
	d, err := f.Primary.LoadDecklist(ctx, userID, deckID)
	if apperr.IsCode(err, apperr.CodeInvalidDeck) && deckID == "" {
		return StarterDecks{}.LoadDecklist(ctx, userID, deckID)
	}
	return d, err
}

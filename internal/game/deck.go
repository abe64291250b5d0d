package game

import (
	"fmt"
	"strconv"

	"github.com/Miszion/riftbound-online-backend/internal/apperr"
	"github.com/Miszion/riftbound-online-backend/internal/game/catalog"
)

// Decklist is a player's registered deck.
type Decklist struct {
	ID           string   `json:"id"`
	UserID       string   `json:"user_id"`
	Name         string   `json:"name"`
	MainDeck     []string `json:"main_deck"`
	RuneDeck     []string `json:"rune_deck"`
	Battlefields []string `json:"battlefields"`
	SideDeck     []string `json:"side_deck,omitempty"`
}

// ValidateDeck checks construction rules and reports every violation in
// the error metadata.
func ValidateDeck(cat *catalog.Catalog, deck Decklist, opts Options) error {
	violations := make(map[string]string)

	if n := len(deck.MainDeck); n < opts.MainDeckMin || n > opts.MainDeckMax {
		violations["main_deck"] = fmt.Sprintf("has %d cards, needs %d-%d", n, opts.MainDeckMin, opts.MainDeckMax)
	}
	if n := len(deck.RuneDeck); n != opts.RuneDeckSize {
		violations["rune_deck"] = fmt.Sprintf("has %d cards, needs %d", n, opts.RuneDeckSize)
	}
	if n := len(deck.Battlefields); n != opts.BattlefieldCount {
		violations["battlefields"] = fmt.Sprintf("has %d cards, needs %d", n, opts.BattlefieldCount)
	}
	if n := len(deck.SideDeck); n > opts.SideDeckMax {
		violations["side_deck"] = fmt.Sprintf("has %d cards, allows %d", n, opts.SideDeckMax)
	}

	copies := make(map[string]int)
	check := func(section string, ids []string, allowed func(catalog.CardType) bool) {
		for i, id := range ids {
			card, ok := cat.Get(id)
			if !ok {
				violations["unknown:"+id] = section + "[" + strconv.Itoa(i) + "]"
				continue
			}
			if !allowed(card.Type) {
				violations[section+"_type:"+id] = "type " + string(card.Type) + " is not allowed"
				continue
			}
			if section == "main_deck" || section == "side_deck" {
				copies[card.Name]++
			}
		}
	}
	check("main_deck", deck.MainDeck, catalog.CardType.Playable)
	check("side_deck", deck.SideDeck, catalog.CardType.Playable)
	check("rune_deck", deck.RuneDeck, func(t catalog.CardType) bool { return t == catalog.TypeRune })
	check("battlefields", deck.Battlefields, func(t catalog.CardType) bool { return t == catalog.TypeBattlefield })

	for name, n := range copies {
		if n > opts.CopyLimit {
			violations["copies:"+name] = fmt.Sprintf("%d copies, limit %d", n, opts.CopyLimit)
		}
	}

	if len(violations) > 0 {
		return apperr.WithMetadata(apperr.CodeInvalidDeck,
			fmt.Sprintf("deck %q has %d violation(s)", deck.ID, len(violations)), violations)
	}
	return nil
}

var (
	starterMain = []string{
		"fury-brawler", "calm-sentinel", "calm-warden", "body-charger", "body-bruiser",
		"calm-monk", "fury-raider", "fury-berserker", "mind-scholar", "fury-firebrand",
		"mind-insight", "body-growth", "chaos-hex", "chaos-daze",
	}
	starterRunes        = []string{"rune-fury", "rune-calm", "rune-body", "rune-mind", "rune-chaos", "rune-order"}
	starterBattlefields = [2][]string{
		{"bf-sunken-temple", "bf-windswept-hillock", "bf-emerald-grove"},
		{"bf-ashen-forge", "bf-star-spire", "bf-broken-ruins"},
	}
)

// StarterDeck returns a legal minimum-size deck from the built-in catalog
// for players who have not saved one. variant picks one of two battlefield
// sets.
func StarterDeck(userID string, variant int) Decklist {
	opts := DefaultOptions()
	d := Decklist{ID: "starter-" + userID, UserID: userID, Name: "Starter"}
	for len(d.MainDeck) < opts.MainDeckMin {
		d.MainDeck = append(d.MainDeck, starterMain[len(d.MainDeck)/opts.CopyLimit])
	}
	for len(d.RuneDeck) < opts.RuneDeckSize {
		d.RuneDeck = append(d.RuneDeck, starterRunes[len(d.RuneDeck)%len(starterRunes)])
	}
	d.Battlefields = append([]string(nil), starterBattlefields[variant&1]...)
	return d
}

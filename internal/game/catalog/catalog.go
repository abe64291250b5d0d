// Package catalog holds the immutable card data shared by every match.
// Effect profiles and triggers are computed once when a catalog is loaded.
package catalog

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/elliotchance/pie/v2"

	"github.com/Miszion/riftbound-online-backend/internal/game/effects"
	"github.com/Miszion/riftbound-online-backend/internal/game/resource"
)

//go:embed data/default.json
var defaultSet []byte

// CardType is the printed type line of a card.
type CardType string

const (
	TypeUnit        CardType = "unit"
	TypeSpell       CardType = "spell"
	TypeGear        CardType = "gear"
	TypeRune        CardType = "rune"
	TypeBattlefield CardType = "battlefield"
	TypeToken       CardType = "token"
)

func (t CardType) valid() bool {
	switch t {
	case TypeUnit, TypeSpell, TypeGear, TypeRune, TypeBattlefield, TypeToken:
		return true
	}
	return false
}

// Playable reports whether the type can be played from hand.
func (t CardType) Playable() bool {
	return t == TypeUnit || t == TypeSpell || t == TypeGear
}

// Record is the on-disk shape of a card.
type Record struct {
	ID      string            `json:"id"`
	Name    string            `json:"name"`
	Type    CardType          `json:"type"`
	Domains []resource.Domain `json:"domains,omitempty"`
	Cost    string            `json:"cost,omitempty"`
	Might   int               `json:"might,omitempty"`
	Text    string            `json:"text,omitempty"`
}

// Card is read-only catalog data. Instances in a match share it by pointer.
type Card struct {
	Record
	Price    resource.Cost       `json:"price"`
	Profile  effects.Profile     `json:"profile"`
	Triggers []effects.Trigger   `json:"triggers,omitempty"`
	Static   []effects.Operation `json:"static,omitempty"`
}

// Domain returns the first domain of the card, or "" for colourless cards.
func (c *Card) Domain() resource.Domain {
	if len(c.Domains) == 0 {
		return ""
	}
	return c.Domains[0]
}

// Catalog is an immutable set of cards keyed by ID.
type Catalog struct {
	cards map[string]*Card
	ids   []string
}

// New builds a catalog from records, classifying every card's text.
func New(records []Record) (*Catalog, error) {
	c := &Catalog{cards: make(map[string]*Card, len(records))}
	for i, rec := range records {
		if rec.ID == "" {
			return nil, fmt.Errorf("card %d: id is required", i)
		}
		if _, dup := c.cards[rec.ID]; dup {
			return nil, fmt.Errorf("card %s: duplicate id", rec.ID)
		}
		if !rec.Type.valid() {
			return nil, fmt.Errorf("card %s: unknown type %q", rec.ID, rec.Type)
		}
		for _, d := range rec.Domains {
			if _, err := resource.ParseDomain(string(d)); err != nil {
				return nil, fmt.Errorf("card %s: %w", rec.ID, err)
			}
		}
		if rec.Type == TypeRune && len(rec.Domains) != 1 {
			return nil, fmt.Errorf("card %s: rune must have exactly one domain", rec.ID)
		}
		price, err := resource.ParseCost(rec.Cost)
		if err != nil {
			return nil, fmt.Errorf("card %s: %w", rec.ID, err)
		}
		card := &Card{
			Record:   rec,
			Price:    price,
			Profile:  effects.Classify(rec.Text),
			Triggers: effects.CompileTriggers(rec.Text),
			Static:   effects.StaticOperations(rec.Text),
		}
		c.cards[rec.ID] = card
		c.ids = append(c.ids, rec.ID)
	}
	sort.Strings(c.ids)
	return c, nil
}

// Load decodes a JSON array of records.
func Load(r io.Reader) (*Catalog, error) {
	var records []Record
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return New(records)
}

// LoadFile loads a catalog from a JSON file.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Default returns the built-in card set.
func Default() (*Catalog, error) {
	return Load(bytes.NewReader(defaultSet))
}

// Get looks up a card by ID.
func (c *Catalog) Get(id string) (*Card, bool) {
	card, ok := c.cards[id]
	return card, ok
}

// Len returns the number of cards.
func (c *Catalog) Len() int {
	return len(c.ids)
}

// All returns every card ordered by ID.
func (c *Catalog) All() []*Card {
	return pie.Map(c.ids, func(id string) *Card { return c.cards[id] })
}

// ByType returns the cards of type t ordered by ID.
func (c *Catalog) ByType(t CardType) []*Card {
	return pie.Filter(c.All(), func(card *Card) bool { return card.Type == t })
}

// NeedsReview returns cards whose text fell back to a generic operation.
func (c *Catalog) NeedsReview() []*Card {
	return pie.Filter(c.All(), func(card *Card) bool { return card.Profile.NeedsReview })
}

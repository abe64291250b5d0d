package game

import (
	"time"

	"github.com/Miszion/riftbound-online-backend/internal/game/catalog"
	"github.com/Miszion/riftbound-online-backend/internal/game/counters"
	"github.com/Miszion/riftbound-online-backend/internal/game/resource"
	"github.com/Miszion/riftbound-online-backend/internal/game/rules"
)

// Status is the lifecycle state of a match.
type Status string

const (
	StatusSetup      Status = "setup"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// End reasons recorded on completed matches.
const (
	ReasonDeckExhausted  = "deck-exhausted"
	ReasonScoreThreshold = "score-threshold"
	ReasonConcede        = "concede"
	ReasonReported       = "reported"
)

// Zone names where a card instance can live.
type Zone string

const (
	ZoneDeck        Zone = "deck"
	ZoneHand        Zone = "hand"
	ZoneBase        Zone = "base"
	ZoneBattlefield Zone = "battlefield"
	ZoneGear        Zone = "gear"
	ZoneEffects     Zone = "effects"
	ZoneTrash       Zone = "trash"
	ZoneBanished    Zone = "banished"
	ZoneRuneDeck    Zone = "rune_deck"
	ZoneRunes       Zone = "runes"
	ZoneSideDeck    Zone = "side_deck"
)

// Location pins a card instance to a zone, plus the battlefield for units
// in contact.
type Location struct {
	Zone          Zone   `json:"zone"`
	BattlefieldID string `json:"battlefield_id,omitempty"`
}

// CardInstance is one physical card in a match.
type CardInstance struct {
	ID         string            `json:"id"`
	CardID     string            `json:"card_id"`
	Card       *catalog.Card     `json:"-"`
	Owner      string            `json:"owner"`
	Controller string            `json:"controller"`
	Location   Location          `json:"location"`
	Damage     int               `json:"damage"`
	Exhausted  bool              `json:"exhausted"`
	Counters   counters.Counters `json:"counters,omitempty"`
	// Activation holds per-ability state that persists across turns, such
	// as the turn a unit last attacked.
	Activation map[string]int `json:"activation,omitempty"`
}

func (c *CardInstance) clone() *CardInstance {
	out := *c
	out.Counters = c.Counters.Copy()
	if c.Activation != nil {
		out.Activation = make(map[string]int, len(c.Activation))
		for k, v := range c.Activation {
			out.Activation[k] = v
		}
	}
	return &out
}

// TempEffect is a modifier that expires after Remaining end phases.
type TempEffect struct {
	ID        string `json:"id"`
	SourceID  string `json:"source_id"`
	TargetID  string `json:"target_id"`
	Kind      string `json:"kind"`
	Amount    int    `json:"amount"`
	Remaining int    `json:"remaining"`
}

// Temp effect kinds.
const (
	TempBuff   = "buff"
	TempDebuff = "debuff"
	TempStun   = "stun"
)

// MulliganState tracks a player's setup progress.
type MulliganState struct {
	Submitted bool `json:"submitted"`
	Replaced  int  `json:"replaced"`
}

// Player is one seat of a match.
type Player struct {
	ID                  string          `json:"id"`
	DeckID              string          `json:"deck_id"`
	Hand                []*CardInstance `json:"hand"`
	Deck                []*CardInstance `json:"deck"`
	SideDeck            []*CardInstance `json:"side_deck"`
	RuneDeck            []*CardInstance `json:"rune_deck"`
	Runes               []*CardInstance `json:"runes"`
	Base                []*CardInstance `json:"base"`
	Gear                []*CardInstance `json:"gear"`
	Effects             []*CardInstance `json:"effects"`
	Trash               []*CardInstance `json:"trash"`
	Banished            []*CardInstance `json:"banished"`
	Pool                resource.Pool   `json:"pool"`
	TempEffects         []TempEffect    `json:"temp_effects"`
	Points              int             `json:"points"`
	BattlefieldOptions  []string        `json:"battlefield_options"`
	BattlefieldChoice   string          `json:"battlefield_choice,omitempty"`
	Mulligan            MulliganState   `json:"mulligan"`
	BonusChannelPending bool            `json:"bonus_channel_pending"`
	Conceded            bool            `json:"conceded"`
}

func cloneCards(in []*CardInstance) []*CardInstance {
	out := make([]*CardInstance, len(in))
	for i, c := range in {
		out[i] = c.clone()
	}
	return out
}

func (p *Player) clone() *Player {
	out := *p
	out.Hand = cloneCards(p.Hand)
	out.Deck = cloneCards(p.Deck)
	out.SideDeck = cloneCards(p.SideDeck)
	out.RuneDeck = cloneCards(p.RuneDeck)
	out.Runes = cloneCards(p.Runes)
	out.Base = cloneCards(p.Base)
	out.Gear = cloneCards(p.Gear)
	out.Effects = cloneCards(p.Effects)
	out.Trash = cloneCards(p.Trash)
	out.Banished = cloneCards(p.Banished)
	out.Pool = p.Pool.Copy()
	out.TempEffects = append([]TempEffect(nil), p.TempEffects...)
	out.BattlefieldOptions = append([]string(nil), p.BattlefieldOptions...)
	return &out
}

// zones lists every card slice of the player with its zone name.
func (p *Player) zones() []struct {
	zone  Zone
	cards *[]*CardInstance
} {
	return []struct {
		zone  Zone
		cards *[]*CardInstance
	}{
		{ZoneDeck, &p.Deck}, {ZoneHand, &p.Hand}, {ZoneBase, &p.Base}, {ZoneGear, &p.Gear},
		{ZoneEffects, &p.Effects}, {ZoneTrash, &p.Trash}, {ZoneBanished, &p.Banished},
		{ZoneRuneDeck, &p.RuneDeck}, {ZoneRunes, &p.Runes}, {ZoneSideDeck, &p.SideDeck},
	}
}

// Battlefield is a contested zone on the board.
type Battlefield struct {
	ID         string          `json:"id"`
	CardID     string          `json:"card_id"`
	Name       string          `json:"name"`
	Owner      string          `json:"owner"`
	Controller string          `json:"controller,omitempty"`
	Contesting []string        `json:"contesting,omitempty"`
	Units      []*CardInstance `json:"units"`
}

func (b *Battlefield) clone() *Battlefield {
	out := *b
	out.Contesting = append([]string(nil), b.Contesting...)
	out.Units = cloneCards(b.Units)
	return &out
}

// unitsOf returns the units at the battlefield controlled by player.
func (b *Battlefield) unitsOf(player string) []*CardInstance {
	var out []*CardInstance
	for _, u := range b.Units {
		if u.Controller == player {
			out = append(out, u)
		}
	}
	return out
}

// Combat stages.
const (
	CombatDeclared = "declared"
	CombatBlocked  = "blocked"
)

// CombatState describes an attack awaiting resolution.
type CombatState struct {
	BattlefieldID string   `json:"battlefield_id"`
	Attacker      string   `json:"attacker"`
	Defender      string   `json:"defender"`
	Attackers     []string `json:"attackers"`
	Blockers      []string `json:"blockers,omitempty"`
	Stage         string   `json:"stage"`
}

// ScoreEntry is one line of the victory point ledger.
type ScoreEntry struct {
	Player      string `json:"player"`
	Amount      int    `json:"amount"`
	Reason      string `json:"reason"`
	Battlefield string `json:"battlefield,omitempty"`
	Turn        int    `json:"turn"`
}

// HistoryEntry records an applied action.
type HistoryEntry struct {
	Seq    int64       `json:"seq"`
	Actor  string      `json:"actor"`
	Kind   ActionKind  `json:"kind"`
	Turn   int         `json:"turn"`
	Phase  rules.Phase `json:"phase"`
	At     time.Time   `json:"at"`
	Detail string      `json:"detail,omitempty"`
}

// LogEntry is a chat message or free-form log line.
type LogEntry struct {
	Player  string    `json:"player"`
	Kind    string    `json:"kind"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// MatchState is the complete, serialisable state of one match.
type MatchState struct {
	ID             string             `json:"id"`
	Mode           string             `json:"mode,omitempty"`
	Seq            int64              `json:"seq"`
	Players        [2]*Player         `json:"players"`
	Turn           rules.TurnManager  `json:"turn"`
	Status         Status             `json:"status"`
	SetupStep      rules.SetupStep    `json:"setup_step"`
	SetupDeadline  time.Time          `json:"setup_deadline"`
	CoinFlipWinner string             `json:"coin_flip_winner"`
	FirstPlayer    string             `json:"first_player,omitempty"`
	Chain          *rules.Chain       `json:"chain"`
	Battlefields   []*Battlefield     `json:"battlefields"`
	Combat         *CombatState       `json:"combat,omitempty"`
	History        []HistoryEntry     `json:"history"`
	Ledger         []ScoreEntry       `json:"ledger"`
	Log            []LogEntry         `json:"log"`
	Reports        map[string]string  `json:"reports,omitempty"`
	Winner         string             `json:"winner,omitempty"`
	EndReason      string             `json:"end_reason,omitempty"`
	StartedAt      time.Time          `json:"started_at"`
	CompletedAt    time.Time          `json:"completed_at,omitempty"`
}

// Clone returns a deep copy that shares only immutable catalog data.
func (m *MatchState) Clone() *MatchState {
	out := *m
	for i, p := range m.Players {
		out.Players[i] = p.clone()
	}
	out.Chain = m.Chain.Clone()
	out.Battlefields = make([]*Battlefield, len(m.Battlefields))
	for i, b := range m.Battlefields {
		out.Battlefields[i] = b.clone()
	}
	if m.Combat != nil {
		c := *m.Combat
		c.Attackers = append([]string(nil), m.Combat.Attackers...)
		c.Blockers = append([]string(nil), m.Combat.Blockers...)
		out.Combat = &c
	}
	out.History = append([]HistoryEntry(nil), m.History...)
	out.Ledger = append([]ScoreEntry(nil), m.Ledger...)
	out.Log = append([]LogEntry(nil), m.Log...)
	if m.Reports != nil {
		out.Reports = make(map[string]string, len(m.Reports))
		for k, v := range m.Reports {
			out.Reports[k] = v
		}
	}
	return &out
}

// Relink restores catalog pointers after a state was decoded from JSON.
func (m *MatchState) Relink(cat *catalog.Catalog) {
	m.eachCard(func(c *CardInstance) {
		c.Card, _ = cat.Get(c.CardID)
		if c.Counters == nil {
			c.Counters = counters.Counters{}
		}
	})
}

func (m *MatchState) eachCard(fn func(*CardInstance)) {
	for _, p := range m.Players {
		for _, z := range p.zones() {
			for _, c := range *z.cards {
				fn(c)
			}
		}
	}
	for _, b := range m.Battlefields {
		for _, u := range b.Units {
			fn(u)
		}
	}
}

// Player returns the seat with the given ID.
func (m *MatchState) Player(id string) (*Player, bool) {
	for _, p := range m.Players {
		if p.ID == id {
			return p, true
		}
	}
	return nil, false
}

// Opponent returns the other seat's player ID.
func (m *MatchState) Opponent(id string) string {
	if m.Players[0].ID == id {
		return m.Players[1].ID
	}
	return m.Players[0].ID
}

// Battlefield returns the battlefield with the given ID.
func (m *MatchState) Battlefield(id string) (*Battlefield, bool) {
	for _, b := range m.Battlefields {
		if b.ID == id {
			return b, true
		}
	}
	return nil, false
}

// FindCard locates a card instance anywhere in the match.
func (m *MatchState) FindCard(id string) (*CardInstance, bool) {
	var found *CardInstance
	m.eachCard(func(c *CardInstance) {
		if c.ID == id {
			found = c
		}
	})
	return found, found != nil
}

// UnitsOnBoard returns every unit in a base or at a battlefield.
func (m *MatchState) UnitsOnBoard() []*CardInstance {
	var out []*CardInstance
	for _, p := range m.Players {
		out = append(out, p.Base...)
	}
	for _, b := range m.Battlefields {
		out = append(out, b.Units...)
	}
	return out
}

// ZoneCount returns how many zones hold the instance; used by invariant checks.
func (m *MatchState) ZoneCount(id string) int {
	n := 0
	m.eachCard(func(c *CardInstance) {
		if c.ID == id {
			n++
		}
	})
	return n
}

func (m *MatchState) guardState() rules.GuardState {
	return rules.GuardState{Phase: m.Turn.Phase, ActivePlayer: m.Turn.ActivePlayer, Chain: m.Chain}
}

package game

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Miszion/riftbound-online-backend/internal/game/catalog"
	"github.com/Miszion/riftbound-online-backend/internal/game/counters"
	"github.com/Miszion/riftbound-online-backend/internal/game/resource"
	"github.com/Miszion/riftbound-online-backend/internal/game/rules"
)

const (
	alice = "alice"
	bob   = "bob"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

var mainPool = []string{
	"fury-brawler", "calm-sentinel", "calm-warden", "body-charger", "body-bruiser",
	"calm-monk", "fury-raider", "fury-berserker", "mind-scholar", "fury-firebrand",
	"mind-insight", "body-growth", "chaos-hex", "chaos-daze",
}

// minimalDeck builds a legal deck of exactly the minimum main deck size.
func minimalDeck(id string) Decklist {
	opts := DefaultOptions()
	d := Decklist{ID: id, Name: id}
	for len(d.MainDeck) < opts.MainDeckMin {
		d.MainDeck = append(d.MainDeck, mainPool[len(d.MainDeck)/opts.CopyLimit])
	}
	runes := []string{"rune-fury", "rune-calm", "rune-body", "rune-mind", "rune-chaos", "rune-order"}
	for len(d.RuneDeck) < opts.RuneDeckSize {
		d.RuneDeck = append(d.RuneDeck, runes[len(d.RuneDeck)%len(runes)])
	}
	d.Battlefields = []string{"bf-sunken-temple", "bf-windswept-hillock", "bf-emerald-grove"}
	if id == bob+"-deck" {
		d.Battlefields = []string{"bf-ashen-forge", "bf-star-spire", "bf-broken-ruins"}
	}
	return d
}

func defaultCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.Default()
	require.NoError(t, err)
	return cat
}

// matchHarness drives one engine with a controllable clock.
type matchHarness struct {
	t   *testing.T
	e   *Engine
	now time.Time
}

func newMatch(t *testing.T, seed uint64) *matchHarness {
	t.Helper()
	h := &matchHarness{t: t, now: t0}
	e, err := Initialize(Config{
		MatchID: "match-1",
		Mode:    "ranked",
		Seats: [2]Seat{
			{PlayerID: alice, Deck: minimalDeck(alice + "-deck")},
			{PlayerID: bob, Deck: minimalDeck(bob + "-deck")},
		},
		Catalog: defaultCatalog(t),
		Logger:  zaptest.NewLogger(t),
		Clock:   func() time.Time { return h.now },
		Seed:    seed,
	})
	require.NoError(t, err)
	h.e = e
	return h
}

// startedMatch runs setup with default choices. The coin flip winner goes
// first; both keep their hands.
func startedMatch(t *testing.T) (h *matchHarness, first, second string) {
	t.Helper()
	h = newMatch(t, 42)
	st := h.e.State()
	first = st.CoinFlipWinner
	second = st.Opponent(first)

	h.mustApply(first, Action{Kind: ActionSubmitInitiative, GoFirst: true})
	for _, id := range []string{first, second} {
		p, _ := h.e.State().Player(id)
		h.mustApply(id, Action{Kind: ActionSelectBattlefield, BattlefieldID: p.BattlefieldOptions[0]})
	}
	h.mustApply(first, Action{Kind: ActionSubmitMulligan})
	h.mustApply(second, Action{Kind: ActionSubmitMulligan})
	require.Equal(t, StatusInProgress, h.e.State().Status)
	return h, first, second
}

func (h *matchHarness) apply(actor string, a Action) (*MatchState, Delta, error) {
	return h.e.Apply(actor, a)
}

func (h *matchHarness) mustApply(actor string, a Action) Delta {
	h.t.Helper()
	_, d, err := h.e.Apply(actor, a)
	require.NoError(h.t, err, "%s by %s", a.Kind, actor)
	return d
}

// edit mutates the live state directly to arrange a scenario.
func (h *matchHarness) edit(fn func(st *MatchState)) {
	h.e.mu.Lock()
	defer h.e.mu.Unlock()
	fn(h.e.state)
}

// addCard creates an instance of cardID in zone for owner. A non-empty
// battlefieldID places a unit there.
func (h *matchHarness) addCard(owner, cardID string, zone Zone, battlefieldID string) *CardInstance {
	h.t.Helper()
	var inst *CardInstance
	h.edit(func(st *MatchState) {
		inst = h.e.newInstance(owner, cardID, zone)
		require.NotNil(h.t, inst.Card, cardID)
		require.NoError(h.t, st.put(inst, zone, battlefieldID))
	})
	return inst
}

func (h *matchHarness) setPool(player string, energy int, power map[resource.Domain]int) {
	h.edit(func(st *MatchState) {
		p, _ := st.Player(player)
		p.Pool = resource.NewPool()
		p.Pool.AddEnergy(energy)
		for d, n := range power {
			p.Pool.AddPower(d, n)
		}
	})
}

func (h *matchHarness) setController(battlefieldID, player string) {
	h.edit(func(st *MatchState) {
		b, _ := st.Battlefield(battlefieldID)
		b.Controller = player
	})
}

func (h *matchHarness) battlefield(i int) *Battlefield {
	return h.e.State().Battlefields[i]
}

func (h *matchHarness) card(id string) *CardInstance {
	h.t.Helper()
	c, ok := h.e.State().FindCard(id)
	require.True(h.t, ok, "card %s not found", id)
	return c
}

func handIndex(t *testing.T, st *MatchState, player, instanceID string) int {
	t.Helper()
	p, _ := st.Player(player)
	for i, c := range p.Hand {
		if c.ID == instanceID {
			return i
		}
	}
	t.Fatalf("%s not in %s's hand", instanceID, player)
	return -1
}

func eventsOf(d Delta, et rules.EventType) []rules.Event {
	var out []rules.Event
	for _, ev := range d.Events {
		if ev.Type == et {
			out = append(out, ev)
		}
	}
	return out
}

// requireInvariants checks that every instance sits in exactly one zone
// and that no pool is negative.
func requireInvariants(t *testing.T, st *MatchState) {
	t.Helper()
	st.eachCard(func(c *CardInstance) {
		require.Equal(t, 1, st.ZoneCount(c.ID), "instance %s (%s)", c.ID, c.CardID)
	})
	for _, p := range st.Players {
		require.GreaterOrEqual(t, p.Pool.Energy, 0, p.ID)
		for d, n := range p.Pool.Power {
			require.GreaterOrEqual(t, n, 0, "%s %s", p.ID, d)
		}
		for _, c := range p.Base {
			require.GreaterOrEqual(t, c.Counters.Count(counters.Shield), 0)
		}
	}
}

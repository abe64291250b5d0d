// Package game implements the authoritative match engine: setup, turns and
// phases, combat, the reaction chain and operation resolution.
package game

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Miszion/riftbound-online-backend/internal/apperr"
	"github.com/Miszion/riftbound-online-backend/internal/game/catalog"
	"github.com/Miszion/riftbound-online-backend/internal/game/counters"
	"github.com/Miszion/riftbound-online-backend/internal/game/resource"
	"github.com/Miszion/riftbound-online-backend/internal/game/rules"
)

// Kinds recorded for changes no player action caused.
const (
	ActionInitialize ActionKind = "initialize"
	ActionTimeout    ActionKind = "timeout"
)

// Seat pairs a player with the deck they bring.
type Seat struct {
	PlayerID string   `json:"player_id"`
	Deck     Decklist `json:"deck"`
}

// Config describes a match to initialize.
type Config struct {
	MatchID string
	Mode    string
	Seats   [2]Seat
	Catalog *catalog.Catalog
	Options Options
	Logger  *zap.Logger
	// Clock defaults to time.Now.
	Clock func() time.Time
	// Seed makes shuffles and the coin flip reproducible; zero picks a
	// random seed.
	Seed uint64
}

// Delta describes what one successful action changed.
type Delta struct {
	MatchID      string        `json:"match_id"`
	Seq          int64         `json:"seq"`
	Actor        string        `json:"actor,omitempty"`
	Action       ActionKind    `json:"action"`
	Events       []rules.Event `json:"events"`
	PhaseChanged bool          `json:"phase_changed"`
	Completed    bool          `json:"completed"`
	Winner       string        `json:"winner,omitempty"`
	Reason       string        `json:"reason,omitempty"`
}

// SnapshotReason is the reason recorded with the snapshot of this delta.
func (d Delta) SnapshotReason() string {
	switch {
	case d.Completed:
		return "completed"
	case d.Action == ActionInitialize:
		return "setup"
	}
	return "action:" + string(d.Action)
}

// Engine owns one match. All mutations are serialised by mu and applied to
// a clone that replaces the state only when the action succeeds.
type Engine struct {
	mu       sync.RWMutex
	state    *MatchState
	catalog  *catalog.Catalog
	opts     Options
	rng      *rand.Rand
	entropy  *rand.ChaCha8
	clock    func() time.Time
	logger   *zap.Logger
	watchers *rules.WatcherRegistry
	scoring  *rules.ScoringWatcher
	played   *rules.CardsPlayedWatcher
	started  Delta
}

func newEngine(cat *catalog.Catalog, opts Options, logger *zap.Logger, clock func() time.Time, seed uint64) *Engine {
	if clock == nil {
		clock = time.Now
	}
	if seed == 0 {
		seed = rand.Uint64()
	}
	var key [32]byte
	binary.LittleEndian.PutUint64(key[:], seed)
	entropy := rand.NewChaCha8(key)
	e := &Engine{
		catalog:  cat,
		opts:     opts,
		rng:      rand.New(entropy),
		entropy:  entropy,
		clock:    clock,
		logger:   logger,
		watchers: rules.NewWatcherRegistry(),
		scoring:  rules.NewScoringWatcher(),
		played:   rules.NewCardsPlayedWatcher(),
	}
	e.watchers.AddWatcher(e.scoring)
	e.watchers.AddWatcher(e.played)
	return e
}

// Initialize validates both decks, shuffles, deals opening hands and
// enters setup at the initiative step.
func Initialize(cfg Config) (*Engine, error) {
	if cfg.MatchID == "" {
		return nil, apperr.New(apperr.CodeValidation, "match id is required")
	}
	if cfg.Catalog == nil {
		return nil, fmt.Errorf("initialize match %s: catalog is required", cfg.MatchID)
	}
	a, b := cfg.Seats[0].PlayerID, cfg.Seats[1].PlayerID
	if a == "" || b == "" || a == b {
		return nil, apperr.New(apperr.CodeValidation, "a match needs two distinct players")
	}
	opts := cfg.Options
	if opts == (Options{}) {
		opts = DefaultOptions()
	}
	for _, seat := range cfg.Seats {
		if err := ValidateDeck(cfg.Catalog, seat.Deck, opts); err != nil {
			var ae *apperr.Error
			if errors.As(err, &ae) {
				ae.Metadata["player"] = seat.PlayerID
			}
			return nil, err
		}
	}

	e := newEngine(cfg.Catalog, opts, cfg.Logger, cfg.Clock, cfg.Seed)
	now := e.clock()

	st := &MatchState{
		ID:        cfg.MatchID,
		Mode:      cfg.Mode,
		Status:    StatusSetup,
		SetupStep: rules.SetupInitiative,
		Chain:     rules.NewChain(),
		StartedAt: now,
	}
	for i, seat := range cfg.Seats {
		st.Players[i] = e.newPlayer(seat)
	}
	st.CoinFlipWinner = st.Players[e.rng.IntN(2)].ID
	st.Turn = *rules.NewTurnManager(st.CoinFlipWinner)
	st.SetupDeadline = now.Add(opts.SetupWindow)

	s := e.newStep(st, "", now)
	for _, p := range st.Players {
		s.drawCards(p, opts.OpeningHand)
	}
	start := s.event(rules.EventMatchStarted, st.ID, "", st.CoinFlipWinner)
	start.Data = cfg.Mode
	s.emit(start)

	e.state = st
	e.commit(s)
	e.started = Delta{MatchID: st.ID, Action: ActionInitialize, Events: s.events}
	if e.logger != nil {
		e.logger.Info("match initialized",
			zap.String("match_id", st.ID),
			zap.String("mode", cfg.Mode),
			zap.String("coin_flip_winner", st.CoinFlipWinner),
		)
	}
	return e, nil
}

func (e *Engine) newPlayer(seat Seat) *Player {
	p := &Player{
		ID:                 seat.PlayerID,
		DeckID:             seat.Deck.ID,
		Pool:               resource.NewPool(),
		BattlefieldOptions: append([]string(nil), seat.Deck.Battlefields...),
	}
	p.Deck = e.instances(seat.PlayerID, seat.Deck.MainDeck, ZoneDeck)
	p.RuneDeck = e.instances(seat.PlayerID, seat.Deck.RuneDeck, ZoneRuneDeck)
	p.SideDeck = e.instances(seat.PlayerID, seat.Deck.SideDeck, ZoneSideDeck)
	e.rng.Shuffle(len(p.Deck), func(i, j int) { p.Deck[i], p.Deck[j] = p.Deck[j], p.Deck[i] })
	e.rng.Shuffle(len(p.RuneDeck), func(i, j int) { p.RuneDeck[i], p.RuneDeck[j] = p.RuneDeck[j], p.RuneDeck[i] })
	return p
}

func (e *Engine) instances(owner string, ids []string, zone Zone) []*CardInstance {
	out := make([]*CardInstance, 0, len(ids))
	for _, id := range ids {
		out = append(out, e.newInstance(owner, id, zone))
	}
	return out
}

func (e *Engine) newInstance(owner, cardID string, zone Zone) *CardInstance {
	card, _ := e.catalog.Get(cardID)
	return &CardInstance{
		ID:         e.newID(),
		CardID:     cardID,
		Card:       card,
		Owner:      owner,
		Controller: owner,
		Location:   Location{Zone: zone},
		Counters:   counters.Counters{},
	}
}

// newID draws UUIDs from the match entropy so seeded matches replay
// identically.
func (e *Engine) newID() string {
	return uuid.Must(uuid.NewRandomFromReader(e.entropy)).String()
}

// Started returns the delta produced by Initialize.
func (e *Engine) Started() Delta {
	return e.started
}

// ID returns the match ID.
func (e *Engine) ID() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.ID
}

// State returns a consistent copy of the match state.
func (e *Engine) State() *MatchState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.Clone()
}

// Catalog returns the card catalog the match was created with.
func (e *Engine) Catalog() *catalog.Catalog {
	return e.catalog
}

// Apply validates and applies one action. On failure the state is left
// untouched and the error carries an apperr code.
func (e *Engine) Apply(actor string, action Action) (*MatchState, Delta, error) {
	return e.apply(actor, action, nil)
}

// CommitFunc receives a committed state and its delta. It runs while the
// engine still holds its lock, so calls for one match arrive in seq order
// and must not block.
type CommitFunc func(*MatchState, Delta)

func (e *Engine) apply(actor string, action Action, commit CommitFunc) (*MatchState, Delta, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state.Status == StatusCompleted {
		return e.state.Clone(), Delta{}, apperr.ErrMatchCompleted
	}
	p, ok := e.state.Player(actor)
	if !ok {
		return e.state.Clone(), Delta{}, apperr.New(apperr.CodeValidation, "player %s is not in match %s", actor, e.state.ID)
	}
	class, err := action.class(p.Hand)
	if err != nil {
		return e.state.Clone(), Delta{}, err
	}
	if err := rules.CanAct(e.state.guardState(), actor, class); err != nil {
		return e.state.Clone(), Delta{}, err
	}

	work := e.state.Clone()
	s := e.newStep(work, actor, e.clock())
	if err := s.dispatch(action); err != nil {
		if e.logger != nil {
			e.logger.Debug("action rejected",
				zap.String("match_id", work.ID),
				zap.String("player_id", actor),
				zap.String("action", string(action.Kind)),
				zap.Error(err),
			)
		}
		return e.state.Clone(), Delta{}, err
	}
	s.settle()

	delta := e.finish(s, actor, action.Kind, action.Message)
	st := e.state.Clone()
	if commit != nil {
		commit(st, delta)
	}
	return st, delta, nil
}

// Tick applies deadline expiry at now: lapsed priority windows count as a
// pass by their holder and lapsed setup steps are auto-resolved. The bool
// is false when nothing was due. The returned state is the one the delta
// produced.
func (e *Engine) Tick(now time.Time) (*MatchState, Delta, bool) {
	return e.tick(now, nil)
}

func (e *Engine) tick(now time.Time, commit CommitFunc) (*MatchState, Delta, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := e.state
	if st.Status == StatusCompleted {
		return nil, Delta{}, false
	}
	due := false
	if st.Status == StatusSetup {
		due = !st.SetupDeadline.IsZero() && !now.Before(st.SetupDeadline)
	} else {
		_, due = st.Chain.Expired(now)
	}
	if !due {
		return nil, Delta{}, false
	}

	work := st.Clone()
	s := e.newStep(work, "", now)
	if err := s.expire(); err != nil {
		if e.logger != nil {
			e.logger.Error("deadline handling failed", zap.String("match_id", work.ID), zap.Error(err))
		}
		return nil, Delta{}, false
	}
	s.settle()
	delta := e.finish(s, "", ActionTimeout, "")
	out := e.state.Clone()
	if commit != nil {
		commit(out, delta)
	}
	return out, delta, true
}

// NextDeadline returns the earliest pending deadline, if any.
func (e *Engine) NextDeadline() (time.Time, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	st := e.state
	switch {
	case st.Status == StatusCompleted:
		return time.Time{}, false
	case st.Status == StatusSetup:
		return st.SetupDeadline, !st.SetupDeadline.IsZero()
	case st.Chain.Window != nil:
		return st.Chain.Window.Deadline, true
	}
	return time.Time{}, false
}

// finish swaps in the working state and builds the delta. Callers hold mu.
func (e *Engine) finish(s *step, actor string, kind ActionKind, detail string) Delta {
	work := s.st
	prev := e.state
	work.Seq++
	if kind == ActionChat || kind == ActionLog {
		detail = ""
	}
	work.History = append(work.History, HistoryEntry{
		Seq:    work.Seq,
		Actor:  actor,
		Kind:   kind,
		Turn:   work.Turn.Number,
		Phase:  work.Turn.Phase,
		At:     s.now,
		Detail: detail,
	})
	if limit := e.opts.HistoryLimit; limit > 0 && len(work.History) > limit {
		work.History = append([]HistoryEntry(nil), work.History[len(work.History)-limit:]...)
	}
	e.state = work
	e.commit(s)

	delta := Delta{
		MatchID:      work.ID,
		Seq:          work.Seq,
		Actor:        actor,
		Action:       kind,
		Events:       s.events,
		PhaseChanged: prev.Turn.Phase != work.Turn.Phase || prev.Turn.Number != work.Turn.Number,
		Completed:    work.Status == StatusCompleted,
		Winner:       work.Winner,
		Reason:       work.EndReason,
	}
	if e.logger != nil && delta.Completed {
		e.logger.Info("match completed",
			zap.String("match_id", work.ID),
			zap.String("winner", work.Winner),
			zap.String("reason", work.EndReason),
		)
	}
	return delta
}

// commit feeds the step's events to the watchers once they are durable in
// the engine state.
func (e *Engine) commit(s *step) {
	for _, ev := range s.events {
		if ev.Type == rules.EventTurnStarted {
			e.watchers.ResetWatchers()
		}
		e.watchers.NotifyWatchers(ev)
	}
}

// CardsPlayedThisTurn reports how many cards player has played this turn.
func (e *Engine) CardsPlayedThisTurn(player string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.played.Count(player)
}

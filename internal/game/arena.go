package game

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Miszion/riftbound-online-backend/internal/apperr"
	"github.com/Miszion/riftbound-online-backend/internal/game/catalog"
)

const tracerName = "github.com/Miszion/riftbound-online-backend/internal/game"

// Sink receives every committed change, in seq order per match: it is
// called while the engine still holds its lock. Implementations must not
// block, and persistence and publishing failures never fail an applied
// action.
type Sink interface {
	MatchUpdated(ctx context.Context, st *MatchState, delta Delta)
}

type nopSink struct{}

func (nopSink) MatchUpdated(context.Context, *MatchState, Delta) {}

// ArenaConfig configures an Arena.
type ArenaConfig struct {
	Catalog *catalog.Catalog
	Options Options
	Logger  *zap.Logger
	Clock   func() time.Time
	Metrics *ArenaMetrics
}

// Arena is the registry of live matches, one engine per match id.
type Arena struct {
	mu      sync.RWMutex
	matches map[string]*Engine
	catalog *catalog.Catalog
	opts    Options
	logger  *zap.Logger
	clock   func() time.Time
	metrics *ArenaMetrics
	sink    Sink
	tracer  trace.Tracer
}

// NewArena creates an empty arena.
func NewArena(cfg ArenaConfig) *Arena {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Options == (Options{}) {
		cfg.Options = DefaultOptions()
	}
	return &Arena{
		matches: make(map[string]*Engine),
		catalog: cfg.Catalog,
		opts:    cfg.Options,
		logger:  cfg.Logger,
		clock:   cfg.Clock,
		metrics: cfg.Metrics,
		sink:    nopSink{},
		tracer:  otel.Tracer(tracerName),
	}
}

// SetSink installs the receiver of committed changes. It must be called
// before the arena serves traffic.
func (a *Arena) SetSink(s Sink) {
	if s == nil {
		s = nopSink{}
	}
	a.sink = s
}

// Create initializes and registers a match. A duplicate id fails with
// MATCH_EXISTS and leaves the existing match untouched.
func (a *Arena) Create(ctx context.Context, cfg Config) (*Engine, error) {
	ctx, span := a.tracer.Start(ctx, "arena.create", trace.WithAttributes(
		attribute.String("match_id", cfg.MatchID),
		attribute.String("mode", cfg.Mode),
	))
	defer span.End()

	if cfg.Catalog == nil {
		cfg.Catalog = a.catalog
	}
	if cfg.Options == (Options{}) {
		cfg.Options = a.opts
	}
	if cfg.Logger == nil {
		cfg.Logger = a.logger
	}
	if cfg.Clock == nil {
		cfg.Clock = a.clock
	}

	a.mu.Lock()
	if _, exists := a.matches[cfg.MatchID]; exists {
		a.mu.Unlock()
		err := apperr.New(apperr.CodeMatchExists, "match %s already exists", cfg.MatchID)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	e, err := Initialize(cfg)
	if err != nil {
		a.mu.Unlock()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	a.matches[cfg.MatchID] = e
	// Announced before unlocking so no action on the match can be
	// published ahead of its setup state.
	a.sink.MatchUpdated(ctx, e.State(), e.Started())
	a.mu.Unlock()

	a.metrics.matchAdded()
	return e, nil
}

// StartMatch creates a match for two seated players. The matchmaking
// coordinator calls it once a pair has been claimed.
func (a *Arena) StartMatch(ctx context.Context, matchID, mode string, seats [2]Seat) error {
	_, err := a.Create(ctx, Config{MatchID: matchID, Mode: mode, Seats: seats})
	return err
}

// Get returns the engine for matchID.
func (a *Arena) Get(matchID string) (*Engine, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	e, ok := a.matches[matchID]
	if !ok {
		return nil, apperr.New(apperr.CodeMatchNotFound, "match %s not found", matchID)
	}
	return e, nil
}

// Apply routes one action to its match and returns the actor's redacted
// view. The view is returned on failure too, reflecting the unchanged state.
func (a *Arena) Apply(ctx context.Context, matchID, actor string, action Action) (PlayerView, Delta, error) {
	ctx, span := a.tracer.Start(ctx, "arena.apply", trace.WithAttributes(
		attribute.String("match_id", matchID),
		attribute.String("player_id", actor),
		attribute.String("action", string(action.Kind)),
	))
	defer span.End()

	e, err := a.Get(matchID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return PlayerView{}, Delta{}, err
	}
	st, delta, err := e.apply(actor, action, func(st *MatchState, d Delta) {
		a.sink.MatchUpdated(ctx, st, d)
	})
	view, viewErr := BuildView(st, actor)
	if err != nil {
		a.metrics.actionRejected(action.Kind, err)
		span.SetAttributes(attribute.String("error_code", string(apperr.CodeOf(err))))
		span.SetStatus(codes.Error, err.Error())
		return view, Delta{}, err
	}
	a.metrics.actionApplied(action.Kind)
	span.SetAttributes(attribute.Int64("seq", delta.Seq))
	return view, delta, viewErr
}

// View returns playerID's redacted view of matchID.
func (a *Arena) View(matchID, playerID string) (PlayerView, error) {
	e, err := a.Get(matchID)
	if err != nil {
		return PlayerView{}, err
	}
	return e.View(playerID)
}

// Archive drops a match from the registry. It is called once the match
// result has been durably recorded.
func (a *Arena) Archive(matchID string) {
	a.mu.Lock()
	_, ok := a.matches[matchID]
	delete(a.matches, matchID)
	a.mu.Unlock()
	if !ok {
		return
	}
	a.metrics.matchRemoved()
	if a.logger != nil {
		a.logger.Info("match archived", zap.String("match_id", matchID))
	}
}

// Len returns the number of registered matches.
func (a *Arena) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.matches)
}

// IDs returns the registered match ids.
func (a *Arena) IDs() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]string, 0, len(a.matches))
	for id := range a.matches {
		out = append(out, id)
	}
	return out
}

// Tick applies due deadlines across every match and returns how many
// matches changed.
func (a *Arena) Tick(ctx context.Context, now time.Time) int {
	a.mu.RLock()
	engines := make([]*Engine, 0, len(a.matches))
	for _, e := range a.matches {
		engines = append(engines, e)
	}
	a.mu.RUnlock()

	changed := 0
	for _, e := range engines {
		_, _, ok := e.tick(now, func(st *MatchState, d Delta) {
			a.sink.MatchUpdated(ctx, st, d)
		})
		if !ok {
			continue
		}
		changed++
		a.metrics.deadlineExpired()
	}
	return changed
}

// RunDeadlines ticks every interval until ctx is cancelled.
func (a *Arena) RunDeadlines(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.Tick(ctx, a.clock())
		}
	}
}

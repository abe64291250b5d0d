package matchmaking

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/elliotchance/pie/v2"
	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Miszion/riftbound-online-backend/internal/apperr"
	"github.com/Miszion/riftbound-online-backend/internal/game"
)

const tracerName = "riftbound/matchmaking"

// DefaultRating is assumed for players without a recorded rating.
const DefaultRating = 1500

// DeckLoader resolves the decklist a player queued with. An empty deckID
// selects the player's most recent deck.
type DeckLoader interface {
	LoadDecklist(ctx context.Context, userID, deckID string) (game.Decklist, error)
}

// RatingSource returns a player's current rating for a mode.
type RatingSource interface {
	Rating(ctx context.Context, userID, mode string) (int, error)
}

// Spawner starts a match for a claimed pair. The arena implements it.
type Spawner interface {
	StartMatch(ctx context.Context, matchID, mode string, seats [2]game.Seat) error
}

// Config wires a Coordinator.
type Config struct {
	Store   Store
	Decks   DeckLoader
	Ratings RatingSource
	Spawner Spawner
	// Modes lists the queues Run sweeps. Join rejects other modes when set.
	Modes         []string
	Policy        TolerancePolicy
	SweepInterval time.Duration
	// MatchedTTL is how long a matched entry stays visible to its player.
	MatchedTTL time.Duration
	Clock      func() time.Time
	Logger     *zap.Logger
	Metrics    *Metrics
	// Entropy feeds match ids. Defaults to ulid.DefaultEntropy.
	Entropy io.Reader
}

// Coordinator runs the matchmaking queues.
type Coordinator struct {
	store    Store
	decks    DeckLoader
	ratings  RatingSource
	spawner  Spawner
	modes    []string
	policy   TolerancePolicy
	interval time.Duration
	ttl      time.Duration
	clock    func() time.Time
	logger   *zap.Logger
	metrics  *Metrics
	tracer   trace.Tracer

	idMu    sync.Mutex
	entropy io.Reader
}

// NewCoordinator validates cfg and fills in defaults.
func NewCoordinator(cfg Config) (*Coordinator, error) {
	if cfg.Store == nil {
		return nil, errors.New("matchmaking: store is required")
	}
	if cfg.Decks == nil {
		return nil, errors.New("matchmaking: deck loader is required")
	}
	if cfg.Spawner == nil {
		return nil, errors.New("matchmaking: spawner is required")
	}
	if cfg.Policy.Base == 0 && cfg.Policy.Max == 0 && len(cfg.Policy.Steps) == 0 {
		cfg.Policy = DefaultTolerance()
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 2 * time.Second
	}
	if cfg.MatchedTTL <= 0 {
		cfg.MatchedTTL = 5 * time.Minute
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Entropy == nil {
		cfg.Entropy = ulid.DefaultEntropy()
	}
	return &Coordinator{
		store:    cfg.Store,
		decks:    cfg.Decks,
		ratings:  cfg.Ratings,
		spawner:  cfg.Spawner,
		modes:    pie.Unique(cfg.Modes),
		policy:   cfg.Policy,
		interval: cfg.SweepInterval,
		ttl:      cfg.MatchedTTL,
		clock:    cfg.Clock,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		tracer:   otel.Tracer(tracerName),
		entropy:  cfg.Entropy,
	}, nil
}

// Modes returns the configured queue modes.
func (c *Coordinator) Modes() []string {
	return append([]string(nil), c.modes...)
}

// Join queues userID for mode. Joining again is a no-op that reports the
// existing entry, including its match once it has been paired.
func (c *Coordinator) Join(ctx context.Context, userID, mode, deckID string) (QueueStatus, error) {
	if strings.TrimSpace(userID) == "" {
		return QueueStatus{}, apperr.New(apperr.CodeValidation, "user id is required")
	}
	if err := c.checkMode(mode); err != nil {
		return QueueStatus{}, err
	}
	rating := DefaultRating
	if c.ratings != nil {
		r, err := c.ratings.Rating(ctx, userID, mode)
		if err != nil {
			return QueueStatus{}, fmt.Errorf("load rating for %s: %w", userID, err)
		}
		rating = r
	}

	now := c.clock()
	stored, created, err := c.store.Insert(ctx, Entry{
		Mode:        mode,
		UserID:      userID,
		DeckID:      deckID,
		State:       StateQueued,
		SkillRating: rating,
		QueuedAt:    now,
	})
	if err != nil {
		return QueueStatus{}, fmt.Errorf("queue %s for %s: %w", userID, mode, err)
	}
	if created && c.logger != nil {
		c.logger.Info("player queued",
			zap.String("player_id", userID),
			zap.String("mode", mode),
			zap.Int("rating", rating),
		)
	}
	return statusOf(stored, now, c.policy), nil
}

// Leave removes userID from mode's queue. It never fails for a missing
// entry.
func (c *Coordinator) Leave(ctx context.Context, userID, mode string) error {
	if err := c.store.Delete(ctx, mode, userID); err != nil {
		return fmt.Errorf("leave %s for %s: %w", userID, mode, err)
	}
	if c.logger != nil {
		c.logger.Info("player left queue", zap.String("player_id", userID), zap.String("mode", mode))
	}
	return nil
}

// Status reports userID's entry in mode.
func (c *Coordinator) Status(ctx context.Context, userID, mode string) (QueueStatus, error) {
	e, err := c.store.Get(ctx, mode, userID)
	if err != nil {
		return QueueStatus{}, err
	}
	return statusOf(e, c.clock(), c.policy), nil
}

type pairKey struct {
	a, b string
}

func keyOf(a, b Entry) pairKey {
	if a.UserID > b.UserID {
		a, b = b, a
	}
	return pairKey{a.UserID, b.UserID}
}

// Sweep pairs queued entries of mode until a pass forms no new match and
// returns how many matches it formed. Pairs that fail to start are rolled
// back and not retried within the same sweep.
func (c *Coordinator) Sweep(ctx context.Context, mode string) (int, error) {
	ctx, span := c.tracer.Start(ctx, "matchmaking.sweep", trace.WithAttributes(attribute.String("mode", mode)))
	defer span.End()

	start := time.Now()
	depth := -1
	formed := 0
	skip := make(map[pairKey]struct{})
	defer func() {
		c.metrics.observeSweep(mode, max(depth, 0), time.Since(start))
		span.SetAttributes(attribute.Int("formed", formed))
	}()

	for {
		if err := ctx.Err(); err != nil {
			return formed, err
		}
		entries, err := c.store.ListQueued(ctx, mode)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return formed, fmt.Errorf("list %s queue: %w", mode, err)
		}
		if depth < 0 {
			depth = len(entries)
		}
		outcome, err := c.pass(ctx, mode, entries, skip)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return formed, err
		}
		switch outcome {
		case passIdle:
			return formed, nil
		case passFormed:
			formed++
		}
	}
}

type passOutcome int

const (
	passIdle passOutcome = iota
	passFormed
	// passRolledBack means a claimed pair was released, so the entries read
	// for this pass are stale.
	passRolledBack
)

// pass claims and starts the first pairable couple, oldest entries first.
func (c *Coordinator) pass(ctx context.Context, mode string, entries []Entry, skip map[pairKey]struct{}) (passOutcome, error) {
	ordered := pie.SortUsing(entries, func(a, b Entry) bool {
		if a.QueuedAt.Equal(b.QueuedAt) {
			return a.UserID < b.UserID
		}
		return a.QueuedAt.Before(b.QueuedAt)
	})
	now := c.clock()
	for i := 0; i < len(ordered); i++ {
		for j := i + 1; j < len(ordered); j++ {
			a, b := ordered[i], ordered[j]
			if _, skipped := skip[keyOf(a, b)]; skipped {
				continue
			}
			if !c.policy.Within(a, b, now) {
				continue
			}
			matchID := c.newMatchID(now)
			err := c.store.ClaimPair(ctx, a, b, matchID, now.Add(c.ttl))
			if apperr.IsCode(err, apperr.CodeEntryClaimed) {
				c.metrics.claimConflict(mode)
				if c.logger != nil {
					c.logger.Debug("pair claimed concurrently",
						zap.String("mode", mode),
						zap.String("player_a", a.UserID),
						zap.String("player_b", b.UserID),
					)
				}
				continue
			}
			if err != nil {
				return passIdle, fmt.Errorf("claim %s/%s: %w", a.UserID, b.UserID, err)
			}
			if err := c.formMatch(ctx, mode, matchID, a, b); err != nil {
				skip[keyOf(a, b)] = struct{}{}
				return passRolledBack, nil
			}
			return passFormed, nil
		}
	}
	return passIdle, nil
}

// formMatch starts the engine for a claimed pair. Any failure releases both
// entries back to the queue.
func (c *Coordinator) formMatch(ctx context.Context, mode, matchID string, a, b Entry) error {
	ctx, span := c.tracer.Start(ctx, "matchmaking.form_match", trace.WithAttributes(
		attribute.String("mode", mode),
		attribute.String("match_id", matchID),
	))
	defer span.End()

	var seats [2]game.Seat
	for i, e := range [2]Entry{a, b} {
		deck, err := c.decks.LoadDecklist(ctx, e.UserID, e.DeckID)
		if err != nil {
			c.rollback(ctx, mode, matchID, "deck_lookup", err, a, b)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
		seats[i] = game.Seat{PlayerID: e.UserID, Deck: deck}
	}
	if err := c.spawner.StartMatch(ctx, matchID, mode, seats); err != nil {
		c.rollback(ctx, mode, matchID, "spawn", err, a, b)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	c.metrics.matchFormed(mode)
	if c.logger != nil {
		c.logger.Info("match formed",
			zap.String("match_id", matchID),
			zap.String("mode", mode),
			zap.String("player_a", a.UserID),
			zap.String("player_b", b.UserID),
			zap.Int("rating_gap", abs(a.SkillRating-b.SkillRating)),
		)
	}
	return nil
}

func (c *Coordinator) rollback(ctx context.Context, mode, matchID, reason string, cause error, a, b Entry) {
	c.metrics.rolledBack(mode, reason)
	err := c.store.Release(context.WithoutCancel(ctx), mode, matchID, a.UserID, b.UserID)
	if c.logger == nil {
		return
	}
	c.logger.Warn("match formation rolled back",
		zap.String("match_id", matchID),
		zap.String("mode", mode),
		zap.String("reason", reason),
		zap.Error(cause),
	)
	if err != nil {
		c.logger.Error("release claimed entries", zap.String("match_id", matchID), zap.Error(err))
	}
}

// SweepAll sweeps every configured mode concurrently.
func (c *Coordinator) SweepAll(ctx context.Context) (int, error) {
	var (
		g     errgroup.Group
		mu    sync.Mutex
		total int
	)
	for _, mode := range c.modes {
		g.Go(func() error {
			n, err := c.Sweep(ctx, mode)
			mu.Lock()
			total += n
			mu.Unlock()
			return err
		})
	}
	err := g.Wait()
	return total, err
}

// Purge drops matched entries whose visibility window has passed.
func (c *Coordinator) Purge(ctx context.Context) (int, error) {
	n, err := c.store.PurgeMatched(ctx, c.clock())
	if err != nil {
		return 0, fmt.Errorf("purge matched entries: %w", err)
	}
	if n > 0 && c.logger != nil {
		c.logger.Debug("purged matched entries", zap.Int("count", n))
	}
	return n, nil
}

// Run sweeps and purges on every interval until ctx is cancelled.
func (c *Coordinator) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := c.SweepAll(ctx); err != nil && ctx.Err() == nil && c.logger != nil {
				c.logger.Error("sweep failed", zap.Error(err))
			}
			if _, err := c.Purge(ctx); err != nil && c.logger != nil {
				c.logger.Error("purge failed", zap.Error(err))
			}
		}
	}
}

func (c *Coordinator) checkMode(mode string) error {
	if strings.TrimSpace(mode) == "" {
		return apperr.New(apperr.CodeValidation, "mode is required")
	}
	if len(c.modes) > 0 && !pie.Contains(c.modes, mode) {
		return apperr.New(apperr.CodeValidation, "unknown mode %q", mode)
	}
	return nil
}

func (c *Coordinator) newMatchID(now time.Time) string {
	c.idMu.Lock()
	defer c.idMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(now), c.entropy).String()
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

package statesync

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Miszion/riftbound-online-backend/internal/game"
)

// SnapshotSaver persists snapshots.
type SnapshotSaver interface {
	SaveSnapshot(ctx context.Context, snap game.Snapshot) error
}

// ResultRecorder durably records match results.
type ResultRecorder interface {
	RecordMatchResult(ctx context.Context, res game.Result) error
}

// Archiver drops a match once its result is recorded.
type Archiver interface {
	Archive(matchID string)
}

// Config wires a Synchronizer. Nil collaborators disable their concern.
type Config struct {
	Snapshots SnapshotSaver
	Results   ResultRecorder
	Publisher Publisher
	Archiver  Archiver
	Logger    *zap.Logger
	Clock     func() time.Time

	// QueueSize bounds pending snapshots and pending publishes each.
	QueueSize int
	// SnapshotRetries is the number of attempts per snapshot.
	SnapshotRetries uint
	SnapshotTimeout time.Duration
	PublishTimeout  time.Duration
	// ResultMaxBackoff caps the wait between result attempts. Results are
	// retried until they succeed or the synchronizer stops.
	ResultMaxBackoff time.Duration
	// InitialBackoff is the first retry delay for all workers.
	InitialBackoff time.Duration
}

type publishJob struct {
	st         *game.MatchState
	delta      game.Delta
	at         time.Time
	withResult bool
}

// Synchronizer is the arena's sink. Snapshots and publishes are queued and
// handled in order by one worker each; a full queue drops the item. Results
// are never dropped.
type Synchronizer struct {
	cfg       Config
	logger    *zap.Logger
	snapshots chan game.Snapshot
	publishes chan publishJob

	mu        sync.Mutex
	finished  map[string]struct{}
	recording sync.WaitGroup

	life   context.Context
	cancel context.CancelFunc
}

var _ game.Sink = (*Synchronizer)(nil)

func New(cfg Config) *Synchronizer {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.SnapshotRetries == 0 {
		cfg.SnapshotRetries = 3
	}
	if cfg.SnapshotTimeout <= 0 {
		cfg.SnapshotTimeout = 5 * time.Second
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 2 * time.Second
	}
	if cfg.ResultMaxBackoff <= 0 {
		cfg.ResultMaxBackoff = 30 * time.Second
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 200 * time.Millisecond
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	life, cancel := context.WithCancel(context.Background())
	return &Synchronizer{
		cfg:       cfg,
		logger:    cfg.Logger,
		snapshots: make(chan game.Snapshot, cfg.QueueSize),
		publishes: make(chan publishJob, cfg.QueueSize),
		finished:  make(map[string]struct{}),
		life:      life,
		cancel:    cancel,
	}
}

// MatchUpdated queues the work for one committed change. It never blocks on
// storage or the network.
func (s *Synchronizer) MatchUpdated(_ context.Context, st *game.MatchState, d game.Delta) {
	now := s.cfg.Clock()

	if s.cfg.Snapshots != nil {
		snap, err := game.NewSnapshot(st, d.SnapshotReason(), now)
		if err != nil {
			s.logError("encode snapshot", st.ID, err)
		} else {
			select {
			case s.snapshots <- snap:
			default:
				if s.logger != nil {
					s.logger.Warn("snapshot queue full, dropping", zap.String("match_id", st.ID), zap.Int64("seq", st.Seq))
				}
			}
		}
	}

	first := d.Completed && s.markFinished(st.ID)

	if s.cfg.Publisher != nil {
		select {
		case s.publishes <- publishJob{st: st, delta: d, at: now, withResult: first}:
		default:
			if s.logger != nil {
				s.logger.Warn("publish queue full, dropping", zap.String("match_id", st.ID), zap.Int64("seq", st.Seq))
			}
		}
	}

	if first {
		if res, ok := game.ResultOf(st); ok {
			s.recording.Add(1)
			go s.recordResult(res)
		}
	}
}

func (s *Synchronizer) markFinished(matchID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, done := s.finished[matchID]; done {
		return false
	}
	s.finished[matchID] = struct{}{}
	return true
}

// Run works the queues until ctx is cancelled, then saves what is still
// queued, stops result retries and waits for them.
func (s *Synchronizer) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.snapshotLoop(ctx)
		return nil
	})
	g.Go(func() error {
		s.publishLoop(ctx)
		return nil
	})
	err := g.Wait()
	s.drainSnapshots()
	s.cancel()
	s.recording.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (s *Synchronizer) snapshotLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-s.snapshots:
			s.saveSnapshot(ctx, snap, s.cfg.SnapshotRetries)
		}
	}
}

func (s *Synchronizer) drainSnapshots() {
	for {
		select {
		case snap := <-s.snapshots:
			s.saveSnapshot(context.Background(), snap, 1)
		default:
			return
		}
	}
}

func (s *Synchronizer) saveSnapshot(ctx context.Context, snap game.Snapshot, tries uint) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.cfg.InitialBackoff
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt, cancel := context.WithTimeout(ctx, s.cfg.SnapshotTimeout)
		defer cancel()
		return struct{}{}, s.cfg.Snapshots.SaveSnapshot(attempt, snap)
	}, backoff.WithBackOff(b), backoff.WithMaxTries(tries))
	if err != nil && s.logger != nil {
		s.logger.Warn("snapshot dropped",
			zap.String("match_id", snap.MatchID),
			zap.Int64("seq", snap.Seq),
			zap.String("reason", snap.Reason),
			zap.Error(err),
		)
	}
}

// recordResult retries until the result is stored, then archives the match.
func (s *Synchronizer) recordResult(res game.Result) {
	defer s.recording.Done()
	if s.cfg.Results == nil {
		s.archive(res.MatchID)
		return
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.cfg.InitialBackoff
	b.MaxInterval = s.cfg.ResultMaxBackoff
	_, err := backoff.Retry(s.life, func() (struct{}, error) {
		return struct{}{}, s.cfg.Results.RecordMatchResult(s.life, res)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			if s.logger != nil {
				s.logger.Warn("recording result failed, retrying",
					zap.String("match_id", res.MatchID),
					zap.Duration("next", next),
					zap.Error(err),
				)
			}
		}),
	)
	if err != nil {
		s.logError("result not recorded before shutdown", res.MatchID, err)
		return
	}
	s.archive(res.MatchID)
}

func (s *Synchronizer) archive(matchID string) {
	if s.cfg.Archiver != nil {
		s.cfg.Archiver.Archive(matchID)
	}
}

func (s *Synchronizer) publishLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-s.publishes:
			s.publish(ctx, job)
		}
	}
}

func (s *Synchronizer) publish(ctx context.Context, job publishJob) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.PublishTimeout)
	defer cancel()

	pub := s.cfg.Publisher
	for _, msg := range messages(job.st, job.delta, job.at, job.withResult) {
		var err error
		if msg.PlayerID != "" {
			err = pub.PublishPlayer(ctx, msg.MatchID, msg.PlayerID, msg)
		} else {
			err = pub.PublishMatch(ctx, msg.MatchID, msg)
		}
		if err != nil && s.logger != nil {
			s.logger.Warn("publish failed",
				zap.String("match_id", msg.MatchID),
				zap.String("type", msg.Type),
				zap.Error(err),
			)
		}
	}

	h, ok := pub.(Historian)
	if !ok || job.delta.Action == game.ActionInitialize {
		return
	}
	rec := ActionRecord{
		MatchID: job.st.ID,
		Seq:     job.delta.Seq,
		Actor:   job.delta.Actor,
		Action:  job.delta.Action,
		Events:  job.delta.Events,
		At:      job.at,
	}
	if err := h.RecordAction(ctx, rec); err != nil && s.logger != nil {
		s.logger.Warn("history append failed", zap.String("match_id", rec.MatchID), zap.Error(err))
	}
}

func (s *Synchronizer) logError(msg, matchID string, err error) {
	if s.logger != nil {
		s.logger.Error(msg, zap.String("match_id", matchID), zap.Error(err))
	}
}

package matchmaking

import (
	"context"
	"sync"
	"time"

	"github.com/elliotchance/pie/v2"

	"github.com/Miszion/riftbound-online-backend/internal/apperr"
)

// Store persists queue entries. Every state transition is conditional on
// the entry's current state and version, so two sweeps can never claim the
// same player.
type Store interface {
	// Insert adds e unless an entry for (mode, user) exists. It returns the
	// stored entry and whether it was created.
	Insert(ctx context.Context, e Entry) (Entry, bool, error)
	// Get fails with ENTRY_NOT_FOUND when no entry exists.
	Get(ctx context.Context, mode, userID string) (Entry, error)
	// Delete removes the entry if present.
	Delete(ctx context.Context, mode, userID string) error
	// ListQueued returns the queued entries of mode in no particular order.
	ListQueued(ctx context.Context, mode string) ([]Entry, error)
	// ClaimPair moves a and b from queued to matched only if neither has
	// changed since it was read. Otherwise nothing changes and the error is
	// ENTRY_CLAIMED.
	ClaimPair(ctx context.Context, a, b Entry, matchID string, expiresAt time.Time) error
	// Release returns entries matched into matchID to the queue.
	Release(ctx context.Context, mode, matchID string, userIDs ...string) error
	// PurgeMatched deletes matched entries that expired before now.
	PurgeMatched(ctx context.Context, now time.Time) (int, error)
}

type entryKey struct {
	mode   string
	userID string
}

// MemoryStore is a Store held in process memory. Versions come from one
// store-wide counter, so an entry that is deleted and re-inserted never
// repeats a version an earlier read could hold.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[entryKey]Entry
	version int64
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[entryKey]Entry)}
}

func (s *MemoryStore) Insert(_ context.Context, e Entry) (Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := entryKey{e.Mode, e.UserID}
	if existing, ok := s.entries[k]; ok {
		return existing, false, nil
	}
	e.Version = s.nextVersion()
	s.entries[k] = e
	return e, true, nil
}

func (s *MemoryStore) Get(_ context.Context, mode, userID string) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[entryKey{mode, userID}]
	if !ok {
		return Entry{}, apperr.New(apperr.CodeEntryNotFound, "%s is not queued for %s", userID, mode)
	}
	return e, nil
}

func (s *MemoryStore) Delete(_ context.Context, mode, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, entryKey{mode, userID})
	return nil
}

func (s *MemoryStore) ListQueued(_ context.Context, mode string) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, 0, len(s.entries))
	for k, e := range s.entries {
		if k.mode == mode && e.State == StateQueued {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *MemoryStore) ClaimPair(_ context.Context, a, b Entry, matchID string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ka, kb := entryKey{a.Mode, a.UserID}, entryKey{b.Mode, b.UserID}
	if ka == kb {
		return apperr.New(apperr.CodeValidation, "cannot pair %s with itself", a.UserID)
	}
	curA, okA := s.entries[ka]
	curB, okB := s.entries[kb]
	if !okA || !okB || !claimable(curA, a) || !claimable(curB, b) {
		return apperr.New(apperr.CodeEntryClaimed, "entries %s/%s changed since read", a.UserID, b.UserID)
	}
	s.entries[ka] = matched(curA, matchID, b.UserID, expiresAt, s.nextVersion())
	s.entries[kb] = matched(curB, matchID, a.UserID, expiresAt, s.nextVersion())
	return nil
}

func (s *MemoryStore) Release(_ context.Context, mode, matchID string, userIDs ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range pie.Unique(userIDs) {
		k := entryKey{mode, id}
		e, ok := s.entries[k]
		if !ok || e.State != StateMatched || e.MatchID != matchID {
			continue
		}
		s.entries[k] = released(e, s.nextVersion())
	}
	return nil
}

func (s *MemoryStore) PurgeMatched(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, e := range s.entries {
		if e.State == StateMatched && !e.ExpiresAt.IsZero() && e.ExpiresAt.Before(now) {
			delete(s.entries, k)
			n++
		}
	}
	return n, nil
}

// nextVersion must be called with mu held.
func (s *MemoryStore) nextVersion() int64 {
	s.version++
	return s.version
}

func claimable(current, read Entry) bool {
	return current.State == StateQueued && current.Version == read.Version
}

func matched(e Entry, matchID, opponentID string, expiresAt time.Time, version int64) Entry {
	e.State = StateMatched
	e.MatchID = matchID
	e.OpponentID = opponentID
	e.ExpiresAt = expiresAt
	e.Version = version
	return e
}

func released(e Entry, version int64) Entry {
	e.State = StateQueued
	e.MatchID = ""
	e.OpponentID = ""
	e.ExpiresAt = time.Time{}
	e.Version = version
	return e
}

package rules

import (
	"sync"
)

// WatcherScope defines the scope of a watcher's tracking.
type WatcherScope int

const (
	// WatcherScopeMatch tracks events for the entire match.
	WatcherScopeMatch WatcherScope = iota
	// WatcherScopePlayer tracks events for a specific player.
	WatcherScopePlayer
)

// String returns the string representation of the watcher scope.
func (ws WatcherScope) String() string {
	switch ws {
	case WatcherScopeMatch:
		return "MATCH"
	case WatcherScopePlayer:
		return "PLAYER"
	default:
		return "UNKNOWN"
	}
}

// Watcher observes events and tracks per-turn conditions.
type Watcher interface {
	// Watch is called for every published event.
	Watch(event Event)
	// Reset clears per-turn state; called at the start of every turn.
	Reset()
	// Key returns a unique key for this watcher instance.
	Key() string
	// Scope returns the scope of this watcher.
	Scope() WatcherScope
}

// BaseWatcher provides the key and scope bookkeeping for watchers.
type BaseWatcher struct {
	scope WatcherScope
	key   string
}

// NewBaseWatcher creates a base watcher.
func NewBaseWatcher(scope WatcherScope, key string) *BaseWatcher {
	return &BaseWatcher{scope: scope, key: key}
}

// Scope returns the watcher's scope.
func (bw *BaseWatcher) Scope() WatcherScope {
	return bw.scope
}

// Key returns the unique key for this watcher.
func (bw *BaseWatcher) Key() string {
	return bw.key
}

// WatcherRegistry manages watchers for a match.
type WatcherRegistry struct {
	mu       sync.RWMutex
	watchers map[string]Watcher
}

// NewWatcherRegistry creates a new watcher registry.
func NewWatcherRegistry() *WatcherRegistry {
	return &WatcherRegistry{watchers: make(map[string]Watcher)}
}

// AddWatcher adds a watcher to the registry, replacing one with the same key.
func (wr *WatcherRegistry) AddWatcher(watcher Watcher) {
	if watcher == nil {
		return
	}
	wr.mu.Lock()
	defer wr.mu.Unlock()
	wr.watchers[watcher.Key()] = watcher
}

// GetWatcher retrieves a watcher by key.
func (wr *WatcherRegistry) GetWatcher(key string) Watcher {
	wr.mu.RLock()
	defer wr.mu.RUnlock()
	return wr.watchers[key]
}

// ResetWatchers resets all watchers.
func (wr *WatcherRegistry) ResetWatchers() {
	wr.mu.RLock()
	defer wr.mu.RUnlock()
	for _, watcher := range wr.watchers {
		watcher.Reset()
	}
}

// NotifyWatchers notifies all watchers of an event.
func (wr *WatcherRegistry) NotifyWatchers(event Event) {
	wr.mu.RLock()
	defer wr.mu.RUnlock()
	for _, watcher := range wr.watchers {
		watcher.Watch(event)
	}
}

// ScoringWatcherKey is the registry key of the scoring watcher.
const ScoringWatcherKey = "scoring"

// ScoringWatcher remembers which battlefields each player has scored this
// turn, so a battlefield scores at most once per player per turn.
type ScoringWatcher struct {
	*BaseWatcher
	scored map[string]map[string]bool
}

// NewScoringWatcher creates an empty scoring watcher.
func NewScoringWatcher() *ScoringWatcher {
	return &ScoringWatcher{
		BaseWatcher: NewBaseWatcher(WatcherScopeMatch, ScoringWatcherKey),
		scored:      make(map[string]map[string]bool),
	}
}

// Watch records POINTS_SCORED events that name a battlefield.
func (w *ScoringWatcher) Watch(event Event) {
	if event.Type != EventPointsScored {
		return
	}
	bf := event.Metadata["battlefield"]
	if bf == "" {
		return
	}
	if w.scored[event.PlayerID] == nil {
		w.scored[event.PlayerID] = make(map[string]bool)
	}
	w.scored[event.PlayerID][bf] = true
}

// Scored reports whether player already scored battlefield this turn.
func (w *ScoringWatcher) Scored(player, battlefield string) bool {
	return w.scored[player][battlefield]
}

// Reset clears the per-turn record.
func (w *ScoringWatcher) Reset() {
	w.scored = make(map[string]map[string]bool)
}

// CardsPlayedWatcherKey is the registry key of the cards-played watcher.
const CardsPlayedWatcherKey = "cards_played"

// CardsPlayedWatcher counts the cards each player played this turn.
type CardsPlayedWatcher struct {
	*BaseWatcher
	counts map[string]int
}

// NewCardsPlayedWatcher creates an empty cards-played watcher.
func NewCardsPlayedWatcher() *CardsPlayedWatcher {
	return &CardsPlayedWatcher{
		BaseWatcher: NewBaseWatcher(WatcherScopePlayer, CardsPlayedWatcherKey),
		counts:      make(map[string]int),
	}
}

// Watch counts CARD_PLAYED events.
func (w *CardsPlayedWatcher) Watch(event Event) {
	if event.Type == EventCardPlayed {
		w.counts[event.PlayerID]++
	}
}

// Count returns how many cards player played this turn.
func (w *CardsPlayedWatcher) Count(player string) int {
	return w.counts[player]
}

// Reset clears the counts.
func (w *CardsPlayedWatcher) Reset() {
	w.counts = make(map[string]int)
}

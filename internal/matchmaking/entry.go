// Package matchmaking pairs queued players by skill rating and hands each
// pair to the arena as a new match.
package matchmaking

import (
	"time"
)

// State is the lifecycle state of a queue entry.
type State string

const (
	StateQueued  State = "queued"
	StateMatched State = "matched"
)

// Entry is one player waiting in one mode's queue. (Mode, UserID) is unique.
type Entry struct {
	Mode        string    `json:"mode"`
	UserID      string    `json:"user_id"`
	DeckID      string    `json:"deck_id,omitempty"`
	State       State     `json:"state"`
	SkillRating int       `json:"skill_rating"`
	QueuedAt    time.Time `json:"queued_at"`
	MatchID     string    `json:"match_id,omitempty"`
	OpponentID  string    `json:"opponent_id,omitempty"`
	ExpiresAt   time.Time `json:"expires_at,omitempty"`
	// Version increases on every state transition and guards claims.
	Version int64 `json:"version"`
}

// Wait returns how long the entry has been queued at now.
func (e Entry) Wait(now time.Time) time.Duration {
	if now.Before(e.QueuedAt) {
		return 0
	}
	return now.Sub(e.QueuedAt)
}

// QueueStatus is what a player sees about their place in the queue.
type QueueStatus struct {
	Mode        string    `json:"mode"`
	State       State     `json:"state"`
	MatchID     string    `json:"match_id,omitempty"`
	OpponentID  string    `json:"opponent_id,omitempty"`
	QueuedAt    time.Time `json:"queued_at"`
	WaitSeconds float64   `json:"wait_seconds"`
	Tolerance   int       `json:"tolerance"`
}

func statusOf(e Entry, now time.Time, policy TolerancePolicy) QueueStatus {
	wait := e.Wait(now)
	return QueueStatus{
		Mode:        e.Mode,
		State:       e.State,
		MatchID:     e.MatchID,
		OpponentID:  e.OpponentID,
		QueuedAt:    e.QueuedAt,
		WaitSeconds: wait.Seconds(),
		Tolerance:   policy.Allowed(wait),
	}
}

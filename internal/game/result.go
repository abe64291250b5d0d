package game

import "time"

// Result is the durable outcome of a completed match.
type Result struct {
	MatchID     string    `json:"match_id"`
	Mode        string    `json:"mode,omitempty"`
	Players     [2]string `json:"players"`
	Winner      string    `json:"winner,omitempty"`
	Reason      string    `json:"reason"`
	Points      [2]int    `json:"points"`
	Turns       int       `json:"turns"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
}

// Loser returns the player who did not win, empty for a draw.
func (r Result) Loser() string {
	switch r.Winner {
	case r.Players[0]:
		return r.Players[1]
	case r.Players[1]:
		return r.Players[0]
	}
	return ""
}

// ResultOf extracts the result of st. It reports false while the match is
// still running.
func ResultOf(st *MatchState) (Result, bool) {
	if st == nil || st.Status != StatusCompleted {
		return Result{}, false
	}
	r := Result{
		MatchID:     st.ID,
		Mode:        st.Mode,
		Winner:      st.Winner,
		Reason:      st.EndReason,
		Turns:       st.Turn.Number,
		StartedAt:   st.StartedAt,
		CompletedAt: st.CompletedAt,
	}
	for i, p := range st.Players {
		r.Players[i] = p.ID
		r.Points[i] = p.Points
	}
	return r, true
}

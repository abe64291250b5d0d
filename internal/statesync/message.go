// Package statesync moves committed match state out of the arena: snapshots
// to storage, results to the ledger and events to subscribers.
package statesync

import (
	"time"

	"github.com/Miszion/riftbound-online-backend/internal/game"
	"github.com/Miszion/riftbound-online-backend/internal/game/rules"
)

// Message types.
const (
	TypeState          = "match_state"
	TypeView           = "player_view"
	TypeCardPlayed     = "card_played"
	TypeAttackDeclared = "attack_declared"
	TypePhaseChanged   = "phase_changed"
	TypeMatchResult    = "match_result"
	TypeError          = "error"
)

// Message is one published event.
type Message struct {
	Type     string    `json:"type"`
	MatchID  string    `json:"match_id"`
	PlayerID string    `json:"player_id,omitempty"`
	Seq      int64     `json:"seq"`
	At       time.Time `json:"at"`
	Payload  any       `json:"payload,omitempty"`
}

// Public reports whether every participant may see the message.
func (m Message) Public() bool {
	return m.Type != TypeState && m.Type != TypeView
}

// PhasePayload accompanies phase_changed.
type PhasePayload struct {
	Turn         int         `json:"turn"`
	Phase        rules.Phase `json:"phase"`
	ActivePlayer string      `json:"active_player"`
}

// ErrorPayload is sent to a socket whose action was rejected. View is the
// sender's view of the unchanged state.
type ErrorPayload struct {
	Code     string            `json:"code"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata,omitempty"`
	View     *game.PlayerView  `json:"view,omitempty"`
}

// ActionRecord is what the historian receives per committed action.
type ActionRecord struct {
	MatchID string          `json:"match_id"`
	Seq     int64           `json:"seq"`
	Actor   string          `json:"actor,omitempty"`
	Action  game.ActionKind `json:"action"`
	Events  []rules.Event   `json:"events"`
	At      time.Time       `json:"at"`
}

// messages expands one delta into the messages subscribers receive, in
// publish order.
func messages(st *game.MatchState, d game.Delta, at time.Time, withResult bool) []Message {
	base := Message{MatchID: st.ID, Seq: st.Seq, At: at}
	var out []Message

	full := base
	full.Type = TypeState
	full.Payload = st
	out = append(out, full)

	for _, p := range st.Players {
		view, err := game.BuildView(st, p.ID)
		if err != nil {
			continue
		}
		m := base
		m.Type = TypeView
		m.PlayerID = p.ID
		m.Payload = view
		out = append(out, m)
	}

	for _, ev := range d.Events {
		m := base
		switch ev.Type {
		case rules.EventCardPlayed:
			m.Type = TypeCardPlayed
		case rules.EventAttackDeclared:
			m.Type = TypeAttackDeclared
		default:
			continue
		}
		m.Payload = ev
		out = append(out, m)
	}

	if d.PhaseChanged {
		m := base
		m.Type = TypePhaseChanged
		m.Payload = PhasePayload{Turn: st.Turn.Number, Phase: st.Turn.Phase, ActivePlayer: st.Turn.ActivePlayer}
		out = append(out, m)
	}

	if withResult {
		if res, ok := game.ResultOf(st); ok {
			m := base
			m.Type = TypeMatchResult
			m.Payload = res
			out = append(out, m)
		}
	}
	return out
}

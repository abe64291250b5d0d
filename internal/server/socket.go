package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/Miszion/riftbound-online-backend/internal/apperr"
	"github.com/Miszion/riftbound-online-backend/internal/auth"
	"github.com/Miszion/riftbound-online-backend/internal/game"
	"github.com/Miszion/riftbound-online-backend/internal/statesync"
)

const socketActionTimeout = 5 * time.Second

// handleSocket follows one match for the caller. Inbound frames are actions.
// Committed changes reach the socket through the hub; rejections come back
// as error messages on the same socket only.
func (a *API) handleSocket(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFrom(r.Context())
	matchID := r.PathValue("id")

	view, err := a.cfg.Matches.View(matchID, user)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	// Hijacked connections outlive the request context.
	base := context.WithoutCancel(r.Context())
	err = a.cfg.Hub.Serve(w, r, statesync.Session{
		MatchID:  matchID,
		PlayerID: user,
		Hello: []statesync.Message{{
			Type:     statesync.TypeView,
			MatchID:  matchID,
			PlayerID: user,
			Seq:      view.Seq,
			At:       time.Now(),
			Payload:  view,
		}},
		OnMessage: func(c *statesync.Client, data []byte) {
			a.socketAction(base, c, data)
		},
	})
	if err != nil && a.logger != nil {
		a.logger.Debug("websocket upgrade failed", zap.String("match_id", matchID), zap.String("player_id", user), zap.Error(err))
	}
}

func (a *API) socketAction(base context.Context, c *statesync.Client, data []byte) {
	var action game.Action
	if err := json.Unmarshal(data, &action); err != nil {
		view, _ := a.cfg.Matches.View(c.MatchID(), c.PlayerID())
		a.socketError(c, apperr.Wrap(apperr.CodeValidation, "malformed action", err), view)
		return
	}
	ctx, cancel := context.WithTimeout(base, socketActionTimeout)
	defer cancel()
	if view, _, err := a.cfg.Matches.Apply(ctx, c.MatchID(), c.PlayerID(), action); err != nil {
		a.socketError(c, err, view)
	}
}

func (a *API) socketError(c *statesync.Client, err error, view game.PlayerView) {
	body := errorBodyOf(err)
	payload := statesync.ErrorPayload{
		Code:     string(body.Code),
		Message:  body.Message,
		Metadata: body.Metadata,
	}
	msg := statesync.Message{
		Type:     statesync.TypeError,
		MatchID:  c.MatchID(),
		PlayerID: c.PlayerID(),
		At:       time.Now(),
	}
	if view.MatchID != "" {
		payload.View = &view
		msg.Seq = view.Seq
	}
	msg.Payload = payload
	a.cfg.Hub.Send(c, msg)
}

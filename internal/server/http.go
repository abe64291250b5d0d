package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Miszion/riftbound-online-backend/internal/apperr"
	"github.com/Miszion/riftbound-online-backend/internal/auth"
	"github.com/Miszion/riftbound-online-backend/internal/game"
	"github.com/Miszion/riftbound-online-backend/internal/matchmaking"
	"github.com/Miszion/riftbound-online-backend/internal/statesync"
)

// Queue is the matchmaking surface the API exposes.
type Queue interface {
	Join(ctx context.Context, userID, mode, deckID string) (matchmaking.QueueStatus, error)
	Leave(ctx context.Context, userID, mode string) error
	Status(ctx context.Context, userID, mode string) (matchmaking.QueueStatus, error)
}

// Matches routes actions and view requests to live matches.
type Matches interface {
	Apply(ctx context.Context, matchID, actor string, action game.Action) (game.PlayerView, game.Delta, error)
	View(matchID, playerID string) (game.PlayerView, error)
}

// Verifier turns a bearer token into a user ID.
type Verifier interface {
	Verify(token string) (string, error)
	FromHeader(header string) (string, error)
}

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// APIConfig wires the HTTP API.
type APIConfig struct {
	Queue    Queue
	Matches  Matches
	Hub      *statesync.Hub
	Tokens   Verifier
	Gatherer prometheus.Gatherer
	Checks   map[string]HealthCheck
	Logger   *zap.Logger
}

// API serves the HTTP and WebSocket routes.
type API struct {
	cfg    APIConfig
	logger *zap.Logger
	mux    *http.ServeMux
}

func NewAPI(cfg APIConfig) (*API, error) {
	if cfg.Queue == nil || cfg.Matches == nil || cfg.Tokens == nil {
		return nil, errors.New("server: queue, matches and tokens are required")
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	a := &API{cfg: cfg, logger: cfg.Logger, mux: http.NewServeMux()}

	a.mux.HandleFunc("GET /healthz", a.handleHealth)
	a.mux.Handle("GET /metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))

	a.mux.Handle("POST /v1/queue/{mode}/join", a.authed(a.handleJoin))
	a.mux.Handle("POST /v1/queue/{mode}/leave", a.authed(a.handleLeave))
	a.mux.Handle("GET /v1/queue/{mode}", a.authed(a.handleStatus))
	a.mux.Handle("GET /v1/matches/{id}", a.authed(a.handleView))
	a.mux.Handle("POST /v1/matches/{id}/actions", a.authed(a.handleAction))
	if cfg.Hub != nil {
		a.mux.Handle("GET /v1/matches/{id}/ws", a.authed(a.handleSocket))
	}
	return a, nil
}

func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mux.ServeHTTP(w, r)
}

// authed verifies the bearer token. Browsers cannot set headers on a
// WebSocket handshake, so access_token is accepted as a query parameter too.
func (a *API) authed(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var (
			user string
			err  error
		)
		if token := r.URL.Query().Get("access_token"); token != "" {
			user, err = a.cfg.Tokens.Verify(token)
		} else {
			user, err = a.cfg.Tokens.FromHeader(r.Header.Get("Authorization"))
		}
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		next(w, r.WithContext(auth.WithUser(r.Context(), user)))
	})
}

type joinRequest struct {
	DeckID string `json:"deck_id"`
}

func (a *API) handleJoin(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFrom(r.Context())
	var req joinRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
			a.writeError(w, r, apperr.Wrap(apperr.CodeValidation, "malformed join request", err))
			return
		}
	}
	status, err := a.cfg.Queue.Join(r.Context(), user, r.PathValue("mode"), req.DeckID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, status)
}

func (a *API) handleLeave(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFrom(r.Context())
	if err := a.cfg.Queue.Leave(r.Context(), user, r.PathValue("mode")); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleStatus(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFrom(r.Context())
	status, err := a.cfg.Queue.Status(r.Context(), user, r.PathValue("mode"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, status)
}

func (a *API) handleView(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFrom(r.Context())
	view, err := a.cfg.Matches.View(r.PathValue("id"), user)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, view)
}

// maxRequestBytes bounds every JSON request body.
const maxRequestBytes = 64 << 10

// actionResponse answers every action, accepted or not. View is the actor's
// redacted view after the action, or of the unchanged state on rejection;
// it is absent only when the match or the player could not be resolved.
type actionResponse struct {
	OK     bool             `json:"ok"`
	Seq    int64            `json:"seq,omitempty"`
	Events int              `json:"events,omitempty"`
	View   *game.PlayerView `json:"view,omitempty"`
	Error  *errorBody       `json:"error,omitempty"`
}

func (a *API) handleAction(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFrom(r.Context())
	matchID := r.PathValue("id")
	var action game.Action
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&action); err != nil {
		view, _ := a.cfg.Matches.View(matchID, user)
		a.writeActionError(w, r, apperr.Wrap(apperr.CodeValidation, "malformed action", err), view)
		return
	}
	view, delta, err := a.cfg.Matches.Apply(r.Context(), matchID, user, action)
	if err != nil {
		a.writeActionError(w, r, err, view)
		return
	}
	a.writeJSON(w, http.StatusOK, actionResponse{OK: true, Seq: delta.Seq, Events: len(delta.Events), View: &view})
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{Status: "ok", Checks: make(map[string]string, len(a.cfg.Checks))}
	code := http.StatusOK
	for name, check := range a.cfg.Checks {
		if err := check(ctx); err != nil {
			resp.Checks[name] = err.Error()
			resp.Status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	a.writeJSON(w, code, resp)
}

package server

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/Miszion/riftbound-online-backend/internal/apperr"
	"github.com/Miszion/riftbound-online-backend/internal/game"
)

type errorBody struct {
	Code     apperr.Code       `json:"code"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func errorBodyOf(err error) errorBody {
	code := apperr.CodeOf(err)
	if code == apperr.CodeUnknown {
		// Foreign errors may carry infrastructure detail.
		return errorBody{Code: apperr.CodeInternal, Message: "internal error"}
	}
	msg := err.Error()
	if code == apperr.CodeUnauthenticated {
		msg = "authentication required"
	}
	return errorBody{Code: code, Message: msg, Metadata: apperr.MetadataOf(err)}
}

func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	body := errorBodyOf(err)
	a.writeJSON(w, a.failureStatus(r, body, err), body)
}

// writeActionError rejects an action and still returns the caller's view
// when one could be built.
func (a *API) writeActionError(w http.ResponseWriter, r *http.Request, err error, view game.PlayerView) {
	body := errorBodyOf(err)
	resp := actionResponse{Error: &body}
	if view.MatchID != "" {
		resp.View = &view
		resp.Seq = view.Seq
	}
	a.writeJSON(w, a.failureStatus(r, body, err), resp)
}

func (a *API) failureStatus(r *http.Request, body errorBody, err error) int {
	status := body.Code.HTTPStatus()
	if status >= http.StatusInternalServerError && a.logger != nil {
		a.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	return status
}

func (a *API) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil && a.logger != nil {
		a.logger.Debug("write response failed", zap.Error(err))
	}
}

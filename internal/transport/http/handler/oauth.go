package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-auth-broker/internal/application/callback"
	"github.com/go-auth-broker/internal/application/oauthflow"
	"github.com/go-auth-broker/internal/application/oauthresult"
	"github.com/go-chi/chi/v5"
)

// OAuthHandler handles flow start, provider callbacks and result delivery.
type OAuthHandler struct {
	flow          oauthflow.Service
	callback      callback.Service
	results       oauthresult.Service
	clientBaseURL string
}

func NewOAuthHandler(flow oauthflow.Service, cb callback.Service, results oauthresult.Service, clientBaseURL string) *OAuthHandler {
	return &OAuthHandler{flow: flow, callback: cb, results: results, clientBaseURL: clientBaseURL}
}

func (h *OAuthHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req oauthflow.StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	resp, err := h.flow.Start(r.Context(), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Callback completes a provider redirect. Google sends code+state as query
// parameters; Apple posts them as form fields (response_mode=form_post). The
// browser is always redirected to the client result page — either with a
// one-time delivery token or, when the state could not be redeemed, a bare
// error marker.
func (h *OAuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid callback payload")
		return
	}
	state := r.Form.Get("state")
	if state == "" {
		writeError(w, http.StatusBadRequest, "missing state")
		return
	}

	var redirectURL string
	var err error
	switch chi.URLParam(r, "provider") {
	case "google":
		redirectURL, err = h.callback.CompleteGoogle(r.Context(), state, r.Form.Get("code"))
	case "apple":
		redirectURL, err = h.callback.CompleteApple(r.Context(), state, r.Form.Get("id_token"))
	default:
		writeError(w, http.StatusBadRequest, "unknown provider")
		return
	}
	if err != nil {
		// The state could not be redeemed; nothing was published.
		http.Redirect(w, r, h.clientBaseURL+"/auth/result?error=invalid_state", http.StatusFound)
		return
	}
	http.Redirect(w, r, redirectURL, http.StatusFound)
}

// Result delivers a relayed outcome exactly once.
func (h *OAuthHandler) Result(w http.ResponseWriter, r *http.Request) {
	outcome, err := h.results.Consume(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

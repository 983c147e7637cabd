package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-auth-broker/internal/application/signup"
	"github.com/go-chi/chi/v5"
)

// SignupHandler handles signup verification creation and consumption.
type SignupHandler struct {
	svc signup.Service
}

func NewSignupHandler(svc signup.Service) *SignupHandler {
	return &SignupHandler{svc: svc}
}

func (h *SignupHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req signup.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	res, err := h.svc.Create(r.Context(), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, res)
}

func (h *SignupHandler) Consume(w http.ResponseWriter, r *http.Request) {
	pending, err := h.svc.Consume(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pending)
}

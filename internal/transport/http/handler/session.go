package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-auth-broker/internal/domain"
	"github.com/go-auth-broker/internal/transport/http/middleware"
)

// AccountGetter is the minimal account lookup the session handler requires.
type AccountGetter interface {
	Get(ctx context.Context, accountID string) (*domain.Account, error)
}

// SessionHandler introspects the bearer session established by a flow.
type SessionHandler struct {
	accounts AccountGetter
}

func NewSessionHandler(accounts AccountGetter) *SessionHandler {
	return &SessionHandler{accounts: accounts}
}

type sessionResponse struct {
	AccountID string          `json:"account_id"`
	DeviceID  string          `json:"device_id"`
	Provider  string          `json:"provider"`
	ExpiresAt int64           `json:"expires_at"`
	Account   *domain.Account `json:"account"`
}

// Get echoes the session claims together with the current account record. A
// bearer whose account has since been removed is no longer a session.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing session")
		return
	}
	account, err := h.accounts.Get(r.Context(), claims.AccountID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "session account no longer exists")
			return
		}
		writeDomainError(w, err)
		return
	}
	resp := sessionResponse{
		AccountID: claims.AccountID,
		DeviceID:  claims.DeviceID,
		Provider:  claims.Provider,
		Account:   account,
	}
	if claims.ExpiresAt != nil {
		resp.ExpiresAt = claims.ExpiresAt.Unix()
	}
	writeJSON(w, http.StatusOK, resp)
}

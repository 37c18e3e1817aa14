package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"monedero/internal/errorcatalog"
	"monedero/internal/token"
	usermodels "monedero/internal/user/models"
	id "monedero/pkg/domain"
)

// LoginService authenticates completed registrations.
type LoginService interface {
	Login(ctx context.Context, countryCode, number, password string) (*usermodels.User, error)
}

// TokenIssuer mints session token pairs.
type TokenIssuer interface {
	Issue(userID id.UserID, clientID *id.ClientID, stage string) (token.Pair, error)
}

// TokenHandler exchanges phone credentials for a session token pair.
type TokenHandler struct {
	login   LoginService
	tokens  TokenIssuer
	logger  *slog.Logger
	catalog errorcatalog.Catalog
}

func NewTokenHandler(login LoginService, tokens TokenIssuer, logger *slog.Logger, catalog errorcatalog.Catalog) *TokenHandler {
	return &TokenHandler{
		login:   login,
		tokens:  tokens,
		logger:  logger,
		catalog: catalog,
	}
}

func (h *TokenHandler) Register(r chi.Router) {
	r.Post("/auth/token", h.handleToken)
}

type tokenResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         userView  `json:"user"`
}

func (h *TokenHandler) handleToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PhoneCountryCode string `json:"phone_country_code"`
		PhoneNumber      string `json:"phone_number"`
		Password         string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.catalog, err)
		return
	}

	user, err := h.login.Login(r.Context(), req.PhoneCountryCode, req.PhoneNumber, req.Password)
	if err != nil {
		if h.logger != nil {
			h.logger.WarnContext(r.Context(), "login failed", "error", err)
		}
		writeError(w, h.catalog, err)
		return
	}

	pair, err := h.tokens.Issue(user.ID, user.ClientID, user.Stage.String())
	if err != nil {
		writeError(w, h.catalog, err)
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "Bearer",
		ExpiresAt:    pair.ExpiresAt,
		User:         toUserView(user),
	})
}

package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	accountmodels "monedero/internal/account/models"
	"monedero/internal/errorcatalog"
	"monedero/internal/platform/middleware"
	id "monedero/pkg/domain"
	dErrors "monedero/pkg/domain-errors"
)

// AccountService is the slice of account operations the HTTP layer drives.
type AccountService interface {
	Open(ctx context.Context, userID id.UserID, currency string) (*accountmodels.Account, error)
	Get(ctx context.Context, accountID id.AccountID) (*accountmodels.Account, error)
	ListByUser(ctx context.Context, userID id.UserID) ([]*accountmodels.Account, error)
	Credit(ctx context.Context, accountID id.AccountID, expected id.Version, amount decimal.Decimal) (*accountmodels.Account, error)
	Debit(ctx context.Context, accountID id.AccountID, expected id.Version, amount decimal.Decimal) (*accountmodels.Account, error)
	Freeze(ctx context.Context, accountID id.AccountID, expected id.Version) (*accountmodels.Account, error)
	Unfreeze(ctx context.Context, accountID id.AccountID, expected id.Version) (*accountmodels.Account, error)
	Close(ctx context.Context, accountID id.AccountID, expected id.Version) (*accountmodels.Account, error)
}

// AccountHandler exposes account lifecycle and balance movements. All routes
// require an authenticated session; accounts open under the caller's own
// user id.
type AccountHandler struct {
	service   AccountService
	logger    *slog.Logger
	catalog   errorcatalog.Catalog
	validator middleware.TokenValidator
}

func NewAccountHandler(service AccountService, logger *slog.Logger, catalog errorcatalog.Catalog, validator middleware.TokenValidator) *AccountHandler {
	return &AccountHandler{
		service:   service,
		logger:    logger,
		catalog:   catalog,
		validator: validator,
	}
}

func (h *AccountHandler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(h.validator))
		r.Post("/accounts", h.handleOpen)
		r.Get("/accounts/{accountID}", h.handleGet)
		r.Get("/users/{userID}/accounts", h.handleListByUser)
		r.Post("/accounts/{accountID}/credit", h.handleCredit)
		r.Post("/accounts/{accountID}/debit", h.handleDebit)
		r.Post("/accounts/{accountID}/freeze", h.handleFreeze)
		r.Post("/accounts/{accountID}/unfreeze", h.handleUnfreeze)
		r.Post("/accounts/{accountID}/close", h.handleClose)
	})
}

func (h *AccountHandler) handleOpen(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Currency string `json:"currency"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.catalog, err)
		return
	}

	claims := middleware.Claims(r.Context())
	if claims == nil {
		writeError(w, h.catalog, dErrors.New(dErrors.CodeUnauthorized, "missing authentication context"))
		return
	}
	userID, err := id.ParseUserID(claims.UserID)
	if err != nil {
		writeError(w, h.catalog, err)
		return
	}

	account, err := h.service.Open(r.Context(), userID, req.Currency)
	if err != nil {
		writeError(w, h.catalog, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAccountView(account))
}

func (h *AccountHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	accountID, err := id.ParseAccountID(chi.URLParam(r, "accountID"))
	if err != nil {
		writeError(w, h.catalog, err)
		return
	}
	account, err := h.service.Get(r.Context(), accountID)
	if err != nil {
		writeError(w, h.catalog, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountView(account))
}

func (h *AccountHandler) handleListByUser(w http.ResponseWriter, r *http.Request) {
	userID, err := id.ParseUserID(chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, h.catalog, err)
		return
	}
	accounts, err := h.service.ListByUser(r.Context(), userID)
	if err != nil {
		writeError(w, h.catalog, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountViews(accounts))
}

func (h *AccountHandler) handleCredit(w http.ResponseWriter, r *http.Request) {
	h.handleMovement(w, r, h.service.Credit)
}

func (h *AccountHandler) handleDebit(w http.ResponseWriter, r *http.Request) {
	h.handleMovement(w, r, h.service.Debit)
}

func (h *AccountHandler) handleMovement(w http.ResponseWriter, r *http.Request, move func(context.Context, id.AccountID, id.Version, decimal.Decimal) (*accountmodels.Account, error)) {
	var req struct {
		Amount  string `json:"amount"`
		Version string `json:"version"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.catalog, err)
		return
	}
	h.run(w, r, req.Version, func(ctx context.Context, accountID id.AccountID, version id.Version) (*accountmodels.Account, error) {
		amount, err := decimal.NewFromString(req.Amount)
		if err != nil {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "amount must be a decimal amount")
		}
		return move(ctx, accountID, version, amount)
	})
}

func (h *AccountHandler) handleFreeze(w http.ResponseWriter, r *http.Request) {
	h.handleTransition(w, r, h.service.Freeze)
}

func (h *AccountHandler) handleUnfreeze(w http.ResponseWriter, r *http.Request) {
	h.handleTransition(w, r, h.service.Unfreeze)
}

func (h *AccountHandler) handleClose(w http.ResponseWriter, r *http.Request) {
	h.handleTransition(w, r, h.service.Close)
}

func (h *AccountHandler) handleTransition(w http.ResponseWriter, r *http.Request, transition func(context.Context, id.AccountID, id.Version) (*accountmodels.Account, error)) {
	var req struct {
		Version string `json:"version"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.catalog, err)
		return
	}
	h.run(w, r, req.Version, func(ctx context.Context, accountID id.AccountID, version id.Version) (*accountmodels.Account, error) {
		return transition(ctx, accountID, version)
	})
}

func (h *AccountHandler) run(w http.ResponseWriter, r *http.Request, rawVersion string, op func(context.Context, id.AccountID, id.Version) (*accountmodels.Account, error)) {
	accountID, err := id.ParseAccountID(chi.URLParam(r, "accountID"))
	if err != nil {
		writeError(w, h.catalog, err)
		return
	}
	version, err := parseVersion(rawVersion)
	if err != nil {
		writeError(w, h.catalog, err)
		return
	}

	account, err := op(r.Context(), accountID, version)
	if err != nil {
		if h.logger != nil {
			h.logger.WarnContext(r.Context(), "account operation failed",
				"account_id", accountID,
				"path", r.URL.Path,
				"error", err,
			)
		}
		writeError(w, h.catalog, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountView(account))
}

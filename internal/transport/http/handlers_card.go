package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	cardmodels "monedero/internal/card/models"
	cardservice "monedero/internal/card/service"
	"monedero/internal/errorcatalog"
	"monedero/internal/platform/middleware"
	id "monedero/pkg/domain"
	dErrors "monedero/pkg/domain-errors"
)

// CardService is the slice of card operations the HTTP layer drives.
type CardService interface {
	IssuePhysical(ctx context.Context, req cardservice.IssueRequest) (*cardmodels.Card, error)
	IssueVirtual(ctx context.Context, req cardservice.IssueRequest) (*cardmodels.Card, error)
	Get(ctx context.Context, cardID id.CardID) (*cardmodels.Card, error)
	ListByAccount(ctx context.Context, accountID id.AccountID) ([]*cardmodels.Card, error)
	Activate(ctx context.Context, cardID id.CardID, expected id.Version) (*cardmodels.Card, error)
	SetTemporaryBlock(ctx context.Context, cardID id.CardID, expected id.Version, blocked bool) (*cardmodels.Card, error)
	ConfigureRules(ctx context.Context, cardID id.CardID, expected id.Version, dailyLimit decimal.Decimal, onlinePurchases, atmWithdrawal bool) (*cardmodels.Card, error)
	UpdateShipment(ctx context.Context, cardID id.CardID, expected id.Version, state cardmodels.ShipmentState, trackingNumber *string) (*cardmodels.Card, error)
	Cancel(ctx context.Context, cardID id.CardID, expected id.Version, reason cardmodels.CancelReason) (*cardmodels.Card, error)
}

// CardHandler exposes card issuance and lifecycle operations. All routes
// require an authenticated session.
type CardHandler struct {
	service   CardService
	logger    *slog.Logger
	catalog   errorcatalog.Catalog
	validator middleware.TokenValidator
}

func NewCardHandler(service CardService, logger *slog.Logger, catalog errorcatalog.Catalog, validator middleware.TokenValidator) *CardHandler {
	return &CardHandler{
		service:   service,
		logger:    logger,
		catalog:   catalog,
		validator: validator,
	}
}

func (h *CardHandler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(h.validator))
		r.Post("/cards/physical", h.handleIssue(h.service.IssuePhysical))
		r.Post("/cards/virtual", h.handleIssue(h.service.IssueVirtual))
		r.Get("/cards/{cardID}", h.handleGet)
		r.Get("/accounts/{accountID}/cards", h.handleListByAccount)
		r.Post("/cards/{cardID}/activate", h.handleActivate)
		r.Put("/cards/{cardID}/block", h.handleBlock)
		r.Put("/cards/{cardID}/rules", h.handleRules)
		r.Put("/cards/{cardID}/shipment", h.handleShipment)
		r.Post("/cards/{cardID}/cancel", h.handleCancel)
	})
}

// handleIssue builds the issuance handler for either card type. The
// processor token is minted server side; it never arrives from the caller.
func (h *CardHandler) handleIssue(issue func(context.Context, cardservice.IssueRequest) (*cardmodels.Card, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			AccountID    string `json:"account_id"`
			MaskedNumber string `json:"masked_number"`
			ExpiresOn    string `json:"expires_on"`
			DailyLimit   string `json:"daily_limit"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, h.catalog, err)
			return
		}

		accountID, err := id.ParseAccountID(req.AccountID)
		if err != nil {
			writeError(w, h.catalog, err)
			return
		}
		expiresOn, err := time.Parse(time.DateOnly, req.ExpiresOn)
		if err != nil {
			writeError(w, h.catalog, dErrors.New(dErrors.CodeInvalidInput, "expires_on must be a YYYY-MM-DD date"))
			return
		}
		dailyLimit, err := decimal.NewFromString(req.DailyLimit)
		if err != nil {
			writeError(w, h.catalog, dErrors.New(dErrors.CodeInvalidInput, "daily_limit must be a decimal amount"))
			return
		}
		processorToken, err := cardservice.NewProcessorToken()
		if err != nil {
			writeError(w, h.catalog, dErrors.Wrap(err, dErrors.CodeInternal, "failed to mint processor token"))
			return
		}

		card, err := issue(r.Context(), cardservice.IssueRequest{
			AccountID:      accountID,
			ProcessorToken: processorToken,
			MaskedNumber:   req.MaskedNumber,
			ExpiresOn:      expiresOn,
			DailyLimit:     dailyLimit,
		})
		if err != nil {
			writeError(w, h.catalog, err)
			return
		}
		writeJSON(w, http.StatusCreated, toCardView(card))
	}
}

func (h *CardHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	cardID, err := id.ParseCardID(chi.URLParam(r, "cardID"))
	if err != nil {
		writeError(w, h.catalog, err)
		return
	}
	card, err := h.service.Get(r.Context(), cardID)
	if err != nil {
		writeError(w, h.catalog, err)
		return
	}
	writeJSON(w, http.StatusOK, toCardView(card))
}

func (h *CardHandler) handleListByAccount(w http.ResponseWriter, r *http.Request) {
	accountID, err := id.ParseAccountID(chi.URLParam(r, "accountID"))
	if err != nil {
		writeError(w, h.catalog, err)
		return
	}
	cards, err := h.service.ListByAccount(r.Context(), accountID)
	if err != nil {
		writeError(w, h.catalog, err)
		return
	}
	writeJSON(w, http.StatusOK, toCardViews(cards))
}

func (h *CardHandler) handleActivate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Version string `json:"version"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.catalog, err)
		return
	}
	h.run(w, r, req.Version, func(ctx context.Context, cardID id.CardID, version id.Version) (*cardmodels.Card, error) {
		return h.service.Activate(ctx, cardID, version)
	})
}

func (h *CardHandler) handleBlock(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Blocked bool   `json:"blocked"`
		Version string `json:"version"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.catalog, err)
		return
	}
	h.run(w, r, req.Version, func(ctx context.Context, cardID id.CardID, version id.Version) (*cardmodels.Card, error) {
		return h.service.SetTemporaryBlock(ctx, cardID, version, req.Blocked)
	})
}

func (h *CardHandler) handleRules(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DailyLimit      string `json:"daily_limit"`
		OnlinePurchases bool   `json:"online_purchases"`
		ATMWithdrawal   bool   `json:"atm_withdrawal"`
		Version         string `json:"version"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.catalog, err)
		return
	}
	h.run(w, r, req.Version, func(ctx context.Context, cardID id.CardID, version id.Version) (*cardmodels.Card, error) {
		dailyLimit, err := decimal.NewFromString(req.DailyLimit)
		if err != nil {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "daily_limit must be a decimal amount")
		}
		return h.service.ConfigureRules(ctx, cardID, version, dailyLimit, req.OnlinePurchases, req.ATMWithdrawal)
	})
}

func (h *CardHandler) handleShipment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		State          string  `json:"state"`
		TrackingNumber *string `json:"tracking_number"`
		Version        string  `json:"version"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.catalog, err)
		return
	}
	h.run(w, r, req.Version, func(ctx context.Context, cardID id.CardID, version id.Version) (*cardmodels.Card, error) {
		state := cardmodels.ShipmentState(req.State)
		switch state {
		case cardmodels.ShipmentRequested, cardmodels.ShipmentInTransit, cardmodels.ShipmentDelivered:
		default:
			return nil, dErrors.New(dErrors.CodeInvalidInput, "unknown shipment state").
				WithParam("state", req.State)
		}
		return h.service.UpdateShipment(ctx, cardID, version, state, req.TrackingNumber)
	})
}

func (h *CardHandler) handleCancel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason  string `json:"reason"`
		Version string `json:"version"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.catalog, err)
		return
	}
	h.run(w, r, req.Version, func(ctx context.Context, cardID id.CardID, version id.Version) (*cardmodels.Card, error) {
		return h.service.Cancel(ctx, cardID, version, cardmodels.CancelReason(req.Reason))
	})
}

func (h *CardHandler) run(w http.ResponseWriter, r *http.Request, rawVersion string, op func(context.Context, id.CardID, id.Version) (*cardmodels.Card, error)) {
	cardID, err := id.ParseCardID(chi.URLParam(r, "cardID"))
	if err != nil {
		writeError(w, h.catalog, err)
		return
	}
	version, err := parseVersion(rawVersion)
	if err != nil {
		writeError(w, h.catalog, err)
		return
	}

	card, err := op(r.Context(), cardID, version)
	if err != nil {
		if h.logger != nil {
			h.logger.WarnContext(r.Context(), "card operation failed",
				"card_id", cardID,
				"path", r.URL.Path,
				"error", err,
			)
		}
		writeError(w, h.catalog, err)
		return
	}
	writeJSON(w, http.StatusOK, toCardView(card))
}

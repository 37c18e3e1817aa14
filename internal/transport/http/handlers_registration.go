package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	clientmodels "monedero/internal/client/models"
	"monedero/internal/errorcatalog"
	"monedero/internal/platform/middleware"
	"monedero/internal/registration"
	usermodels "monedero/internal/user/models"
	id "monedero/pkg/domain"
	dErrors "monedero/pkg/domain-errors"
)

// RegistrationService is the slice of the registration workflow the HTTP
// layer drives.
type RegistrationService interface {
	Start(ctx context.Context, countryCode, number string) (*usermodels.User, error)
	Get(ctx context.Context, userID id.UserID) (*usermodels.User, error)
	IssueVerification(ctx context.Context, userID id.UserID, expected id.Version, channel usermodels.VerificationChannel) (*usermodels.User, error)
	ConfirmPhone(ctx context.Context, userID id.UserID, expected id.Version, code string) (*usermodels.User, error)
	CompleteClientData(ctx context.Context, userID id.UserID, expected id.Version, profile clientmodels.Profile) (*usermodels.User, error)
	RegisterEmail(ctx context.Context, userID id.UserID, expected id.Version, email string) (*usermodels.User, error)
	VerifyEmail(ctx context.Context, userID id.UserID, expected id.Version, code string) (*usermodels.User, error)
	RegisterBiometrics(ctx context.Context, userID id.UserID, expected id.Version, req registration.BiometricsRequest) (*usermodels.User, error)
	AcceptTerms(ctx context.Context, userID id.UserID, expected id.Version, accepted []usermodels.ConsentType) (*usermodels.User, error)
	CompleteRegistration(ctx context.Context, userID id.UserID, expected id.Version, password, confirmation string) (*usermodels.User, error)
	ChangePassword(ctx context.Context, userID id.UserID, expected id.Version, current, next string) (*usermodels.User, error)
}

// RegistrationHandler exposes the onboarding workflow.
type RegistrationHandler struct {
	service   RegistrationService
	logger    *slog.Logger
	catalog   errorcatalog.Catalog
	validator middleware.TokenValidator
}

func NewRegistrationHandler(service RegistrationService, logger *slog.Logger, catalog errorcatalog.Catalog, validator middleware.TokenValidator) *RegistrationHandler {
	return &RegistrationHandler{
		service:   service,
		logger:    logger,
		catalog:   catalog,
		validator: validator,
	}
}

// Register mounts the registration routes. The workflow endpoints are open:
// callers hold no credentials until registration completes. Password changes
// require an authenticated session.
func (h *RegistrationHandler) Register(r chi.Router) {
	r.Post("/registration", h.handleStart)
	r.Get("/registration/{userID}", h.handleGet)
	r.Post("/registration/{userID}/verifications", h.handleIssueVerification)
	r.Post("/registration/{userID}/phone/confirm", h.handleConfirmPhone)
	r.Put("/registration/{userID}/client-data", h.handleCompleteClientData)
	r.Put("/registration/{userID}/email", h.handleRegisterEmail)
	r.Post("/registration/{userID}/email/verify", h.handleVerifyEmail)
	r.Post("/registration/{userID}/biometrics", h.handleRegisterBiometrics)
	r.Post("/registration/{userID}/terms", h.handleAcceptTerms)
	r.Post("/registration/{userID}/complete", h.handleComplete)

	r.With(middleware.RequireAuth(h.validator)).
		Post("/users/{userID}/password", h.handleChangePassword)
}

func (h *RegistrationHandler) handleStart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PhoneCountryCode string `json:"phone_country_code"`
		PhoneNumber      string `json:"phone_number"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.catalog, err)
		return
	}

	user, err := h.service.Start(r.Context(), req.PhoneCountryCode, req.PhoneNumber)
	if err != nil {
		writeError(w, h.catalog, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserView(user))
}

func (h *RegistrationHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	userID, err := id.ParseUserID(chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, h.catalog, err)
		return
	}
	user, err := h.service.Get(r.Context(), userID)
	if err != nil {
		writeError(w, h.catalog, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserView(user))
}

func (h *RegistrationHandler) handleIssueVerification(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Channel string `json:"channel"`
		Version string `json:"version"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.catalog, err)
		return
	}
	h.run(w, r, req.Version, func(ctx context.Context, userID id.UserID, version id.Version) (*usermodels.User, error) {
		channel := usermodels.VerificationChannel(req.Channel)
		if !channel.IsValid() {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "unknown verification channel").
				WithParam("channel", req.Channel)
		}
		return h.service.IssueVerification(ctx, userID, version, channel)
	})
}

func (h *RegistrationHandler) handleConfirmPhone(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code    string `json:"code"`
		Version string `json:"version"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.catalog, err)
		return
	}
	h.run(w, r, req.Version, func(ctx context.Context, userID id.UserID, version id.Version) (*usermodels.User, error) {
		return h.service.ConfirmPhone(ctx, userID, version, req.Code)
	})
}

func (h *RegistrationHandler) handleCompleteClientData(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FirstName       string  `json:"first_name"`
		PaternalSurname string  `json:"paternal_surname"`
		MaternalSurname *string `json:"maternal_surname"`
		CURP            string  `json:"curp"`
		RFC             *string `json:"rfc"`
		BirthDate       string  `json:"birth_date"`
		PostalCode      string  `json:"postal_code"`
		StateCode       string  `json:"state_code"`
		Version         string  `json:"version"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.catalog, err)
		return
	}
	h.run(w, r, req.Version, func(ctx context.Context, userID id.UserID, version id.Version) (*usermodels.User, error) {
		birthDate, err := time.Parse(time.DateOnly, req.BirthDate)
		if err != nil {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "birth_date must be a YYYY-MM-DD date")
		}
		return h.service.CompleteClientData(ctx, userID, version, clientmodels.Profile{
			FirstName:       req.FirstName,
			PaternalSurname: req.PaternalSurname,
			MaternalSurname: req.MaternalSurname,
			CURP:            req.CURP,
			RFC:             req.RFC,
			BirthDate:       birthDate,
			PostalCode:      req.PostalCode,
			StateCode:       req.StateCode,
		})
	})
}

func (h *RegistrationHandler) handleRegisterEmail(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email   string `json:"email"`
		Version string `json:"version"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.catalog, err)
		return
	}
	h.run(w, r, req.Version, func(ctx context.Context, userID id.UserID, version id.Version) (*usermodels.User, error) {
		return h.service.RegisterEmail(ctx, userID, version, req.Email)
	})
}

func (h *RegistrationHandler) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code    string `json:"code"`
		Version string `json:"version"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.catalog, err)
		return
	}
	h.run(w, r, req.Version, func(ctx context.Context, userID id.UserID, version id.Version) (*usermodels.User, error) {
		return h.service.VerifyEmail(ctx, userID, version, req.Code)
	})
}

func (h *RegistrationHandler) handleRegisterBiometrics(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Fingerprint  string `json:"fingerprint"`
		BiometricKey string `json:"biometric_key"`
		Version      string `json:"version"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.catalog, err)
		return
	}
	userAgent := r.UserAgent()
	h.run(w, r, req.Version, func(ctx context.Context, userID id.UserID, version id.Version) (*usermodels.User, error) {
		return h.service.RegisterBiometrics(ctx, userID, version, registration.BiometricsRequest{
			Fingerprint:  req.Fingerprint,
			BiometricKey: req.BiometricKey,
			UserAgent:    userAgent,
		})
	})
}

func (h *RegistrationHandler) handleAcceptTerms(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Consents []string `json:"consents"`
		Version  string   `json:"version"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.catalog, err)
		return
	}
	h.run(w, r, req.Version, func(ctx context.Context, userID id.UserID, version id.Version) (*usermodels.User, error) {
		accepted := make([]usermodels.ConsentType, 0, len(req.Consents))
		for _, c := range req.Consents {
			accepted = append(accepted, usermodels.ConsentType(c))
		}
		return h.service.AcceptTerms(ctx, userID, version, accepted)
	})
}

func (h *RegistrationHandler) handleComplete(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password             string `json:"password"`
		PasswordConfirmation string `json:"password_confirmation"`
		Version              string `json:"version"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.catalog, err)
		return
	}
	h.run(w, r, req.Version, func(ctx context.Context, userID id.UserID, version id.Version) (*usermodels.User, error) {
		return h.service.CompleteRegistration(ctx, userID, version, req.Password, req.PasswordConfirmation)
	})
}

func (h *RegistrationHandler) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
		Version         string `json:"version"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.catalog, err)
		return
	}
	h.run(w, r, req.Version, func(ctx context.Context, userID id.UserID, version id.Version) (*usermodels.User, error) {
		claims := middleware.Claims(ctx)
		if claims == nil || claims.UserID != userID.String() {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token does not belong to the user")
		}
		return h.service.ChangePassword(ctx, userID, version, req.CurrentPassword, req.NewPassword)
	})
}

// run funnels the shared plumbing of a workflow mutation: parse the user id
// from the path, decode the caller's version token, execute the operation
// and render the updated user.
func (h *RegistrationHandler) run(w http.ResponseWriter, r *http.Request, rawVersion string, op func(context.Context, id.UserID, id.Version) (*usermodels.User, error)) {
	userID, err := id.ParseUserID(chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, h.catalog, err)
		return
	}
	version, err := parseVersion(rawVersion)
	if err != nil {
		writeError(w, h.catalog, err)
		return
	}

	user, err := op(r.Context(), userID, version)
	if err != nil {
		if h.logger != nil {
			h.logger.WarnContext(r.Context(), "registration operation failed",
				"user_id", userID,
				"path", r.URL.Path,
				"error", err,
			)
		}
		writeError(w, h.catalog, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserView(user))
}

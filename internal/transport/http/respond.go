// Package httptransport is the thin HTTP layer over the wallet services.
// Handlers decode requests, delegate to a service and encode the result;
// no business rules live here.
package httptransport

import (
	"encoding/json"
	"net/http"

	"monedero/internal/errorcatalog"
	id "monedero/pkg/domain"
	dErrors "monedero/pkg/domain-errors"
)

// statusOf maps the stable domain code to an HTTP status.
func statusOf(code dErrors.Code) int {
	switch code {
	case dErrors.CodeValidation, dErrors.CodeInvalidInput:
		return http.StatusBadRequest
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeConflict, dErrors.CodeDuplicate:
		return http.StatusConflict
	case dErrors.CodeExpired:
		return http.StatusGone
	case dErrors.CodeInvalidState, dErrors.CodeInvariantViolation:
		return http.StatusUnprocessableEntity
	case dErrors.CodeLocked:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

type errorResponse struct {
	Error   string               `json:"error"`
	Details []errorcatalog.Entry `json:"details"`
}

// writeError renders a failure as the catalog-resolved error envelope. The
// outer code drives the HTTP status; the details carry the display
// templates for each underlying violation.
func writeError(w http.ResponseWriter, catalog errorcatalog.Catalog, err error) {
	code := dErrors.CodeOf(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusOf(code))
	_ = json.NewEncoder(w).Encode(errorResponse{
		Error:   string(code),
		Details: catalog.Resolve(err),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON parses the request body into dst, rejecting unknown fields so
// typos surface instead of silently dropping input.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return dErrors.New(dErrors.CodeInvalidInput, "invalid request body")
	}
	return nil
}

// parseVersion decodes the version token every mutating request carries.
func parseVersion(s string) (id.Version, error) {
	return id.DecodeVersion(s)
}

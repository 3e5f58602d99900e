package httpapi

import (
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"continuity.org/internal/analytics"
	"continuity.org/internal/audit"
	"continuity.org/internal/backend"
	"continuity.org/internal/bia"
	"continuity.org/internal/department"
	"continuity.org/internal/identity"
	"continuity.org/internal/navigation"
	"continuity.org/internal/obs"
)

var (
	errUnauthenticated = errors.New("sign in required")
	errForbidden       = errors.New("forbidden")
	errNoOrganization  = errors.New("organization membership required")
	errDisabled        = errors.New("feature disabled")
	errBadRequest      = errors.New("bad request")
)

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

type errorBody struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
	Redirect  string `json:"redirect,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

// respondError writes a plain error payload.
func respondError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	writeJSON(w, code, errorBody{Error: msg, RequestID: audit.RequestIDFromContext(r.Context())})
}

// respondErr maps a domain error onto the HTTP taxonomy: authentication
// failures redirect to sign-in, transport failures are retryable.
func respondErr(w http.ResponseWriter, r *http.Request, err error) {
	body := errorBody{Error: err.Error(), RequestID: audit.RequestIDFromContext(r.Context())}
	code := http.StatusInternalServerError

	// ErrAuthFailed can wrap a not-found lookup; it must win over ErrNotFound.
	switch {
	case errors.Is(err, backend.ErrUnavailable):
		code = http.StatusServiceUnavailable
		body.Retryable = true
	case errors.Is(err, errUnauthenticated),
		errors.Is(err, identity.ErrSessionExpired),
		errors.Is(err, identity.ErrInvalidToken),
		errors.Is(err, identity.ErrAuthFailed),
		errors.Is(err, backend.ErrInvalidToken):
		code = http.StatusUnauthorized
		body.Redirect = navigation.SignInPath
	case errors.Is(err, errDisabled):
		code = http.StatusServiceUnavailable
	case errors.Is(err, errForbidden), errors.Is(err, errNoOrganization):
		code = http.StatusForbidden
	case errors.Is(err, bia.ErrPending), errors.Is(err, backend.ErrConflict),
		errors.Is(err, identity.ErrAlreadyExists):
		code = http.StatusConflict
	case errors.Is(err, bia.ErrNotFound), errors.Is(err, bia.ErrUnknownTemplate),
		errors.Is(err, identity.ErrNotFound), errors.Is(err, department.ErrNotFound),
		errors.Is(err, analytics.ErrUnknownAnalysis), errors.Is(err, backend.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, errBadRequest), errors.Is(err, bia.ErrInvalidProcess),
		errors.Is(err, bia.ErrInvalidPriority), errors.Is(err, bia.ErrInvalidAnswer),
		errors.Is(err, bia.ErrIncomplete), errors.Is(err, bia.ErrEmptyCategory),
		errors.Is(err, backend.ErrRejected):
		code = http.StatusBadRequest
	}

	if code >= http.StatusInternalServerError {
		obs.Logger().Error("request failed",
			zap.String("request_id", body.RequestID),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		if code == http.StatusInternalServerError {
			body.Error = "internal error"
		}
	}
	writeJSON(w, code, body)
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/navis-app/navis-api/internal/auth"
	"github.com/navis-app/navis-api/internal/dashboard"
	"github.com/navis-app/navis-api/internal/feed"
	"github.com/navis-app/navis-api/internal/location"
	"github.com/navis-app/navis-api/internal/navy"
	"github.com/navis-app/navis-api/internal/profile"
	"github.com/navis-app/navis-api/internal/route"
	"github.com/navis-app/navis-api/internal/sos"
)

const (
	maxBodyBytes = 1 << 20

	// statusClientClosed is nginx's code for a request the client abandoned.
	statusClientClosed = 499
)

var errBadBody = eris.New("Requisição inválida")

// errorMapping pairs a sentinel with its status. message overrides the
// sentinel text when the sentinel is not meant for end users.
type errorMapping struct {
	err     error
	status  int
	message string
}

var errorMappings = []errorMapping{
	{err: errBadBody, status: http.StatusBadRequest},

	{err: auth.ErrMissingCredentials, status: http.StatusBadRequest},
	{err: auth.ErrMissingFields, status: http.StatusBadRequest},
	{err: auth.ErrInvalidEmail, status: http.StatusBadRequest},
	{err: auth.ErrWeakPassword, status: http.StatusBadRequest},
	{err: auth.ErrUnsupportedProvider, status: http.StatusBadRequest},
	{err: auth.ErrEmailTaken, status: http.StatusConflict},
	{err: auth.ErrInvalidToken, status: http.StatusUnauthorized},

	{err: route.ErrInvalidInput, status: http.StatusBadRequest, message: "Informe origem e destino válidos"},
	{err: route.ErrNotFound, status: http.StatusNotFound},
	{err: route.ErrMapUnavailable, status: http.StatusConflict, message: "O mapa ainda não está pronto"},
	{err: route.ErrSuperseded, status: http.StatusConflict, message: "Rota substituída por uma nova solicitação"},
	{err: route.ErrRouting, status: http.StatusBadGateway},

	{err: dashboard.ErrRouteNotFound, status: http.StatusNotFound},
	{err: dashboard.ErrEmptyName, status: http.StatusBadRequest},
	{err: dashboard.ErrMissingEndpoint, status: http.StatusBadRequest},
	{err: dashboard.ErrUnknownPlan, status: http.StatusBadRequest},
	{err: dashboard.ErrInvalidSecurity, status: http.StatusBadRequest},
	{err: dashboard.ErrInvalidTime, status: http.StatusBadRequest},

	{err: feed.ErrEmptyContent, status: http.StatusBadRequest},
	{err: feed.ErrContentTooLong, status: http.StatusBadRequest},
	{err: feed.ErrEmptyComment, status: http.StatusBadRequest},
	{err: feed.ErrNotOwner, status: http.StatusForbidden},
	{err: feed.ErrPinNotOwner, status: http.StatusForbidden},
	{err: feed.ErrPostNotFound, status: http.StatusNotFound},

	{err: sos.ErrNoContact, status: http.StatusPreconditionFailed},
	{err: sos.ErrInvalidContact, status: http.StatusBadRequest},
	{err: sos.ErrHoldTooShort, status: http.StatusBadRequest},
	{err: sos.ErrAlertNotFound, status: http.StatusNotFound},
	{err: sos.ErrNotCancelable, status: http.StatusConflict},

	{err: profile.ErrNameRequired, status: http.StatusBadRequest},
	{err: profile.ErrInvalidEmail, status: http.StatusBadRequest},
	{err: profile.ErrInvalidCPF, status: http.StatusBadRequest},
	{err: profile.ErrInvalidPhone, status: http.StatusBadRequest},
	{err: profile.ErrBioTooLong, status: http.StatusBadRequest},
	{err: profile.ErrEmailTaken, status: http.StatusConflict},

	{err: location.ErrInvalidCoordinates, status: http.StatusBadRequest},
	{err: navy.ErrEmptyMessage, status: http.StatusBadRequest, message: "Digite uma mensagem"},

	{err: context.Canceled, status: statusClientClosed, message: "Requisição cancelada"},
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// fail maps err to a status and a client-safe message.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, message := classifyError(err)
	if status >= http.StatusInternalServerError {
		zap.L().Error("api: request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	h.writeError(w, status, message)
}

func classifyError(err error) (int, string) {
	var limit *dashboard.ErrPlanLimit
	if errors.As(err, &limit) {
		return http.StatusForbidden, limit.Error()
	}
	for _, m := range errorMappings {
		if eris.Is(err, m.err) {
			if m.message != "" {
				return m.status, m.message
			}
			return m.status, m.err.Error()
		}
	}
	return http.StatusInternalServerError, "Erro interno do servidor"
}

// decodeJSON reads a JSON body into v. An empty body leaves v untouched.
func decodeJSON(r *http.Request, v any) error {
	body := http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return eris.Wrap(errBadBody, err.Error())
	}
	return nil
}

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/mpapenbr/f1-race-predictor/log"
	"github.com/mpapenbr/f1-race-predictor/pkg/model"
)

var ErrBadRequest = errors.New("bad request")

type errorResponse struct {
	Error string `json:"error"`
}

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrBadRequest, fmt.Sprintf(format, args...))
}

// statusFor maps the error taxonomy to http status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrRaceNotFound), errors.Is(err, model.ErrTrackNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, model.ErrUnknownDriver),
		errors.Is(err, model.ErrUnknownTab):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrDataUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.GetFromContext(r.Context()).Warn("could not write response",
			log.String("path", r.URL.Path), log.ErrorField(err))
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	l := log.GetFromContext(r.Context())
	if status >= http.StatusInternalServerError {
		l.Error("request failed",
			log.String("path", r.URL.Path), log.Int("status", status), log.ErrorField(err))
	} else {
		l.Debug("request rejected",
			log.String("path", r.URL.Path), log.Int("status", status), log.ErrorField(err))
	}
	writeJSON(w, r, status, errorResponse{Error: err.Error()})
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return badRequest("empty request body")
	}
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		return badRequest("invalid json: %v", err)
	}
	return nil
}

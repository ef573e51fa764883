package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/justestif/melophile/internal/clustering"
	"github.com/justestif/melophile/internal/db"
	"github.com/justestif/melophile/internal/features"
	"github.com/justestif/melophile/internal/logging"
	"github.com/justestif/melophile/internal/recommend"
	"github.com/justestif/melophile/internal/spotify"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 16

var (
	errBadRequest  = errors.New("bad request")
	errUnavailable = errors.New("spotify import is not configured")
)

var validate = validator.New()

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		logging.Error().Err(err).Msg("failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("failed to write JSON response")
	}
}

// writeError maps err to a status code and writes {"error": "..."}.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logging.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	} else {
		logging.Ctx(r.Context()).Debug().Err(err).Int("status", status).Msg("request rejected")
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, recommend.ErrInvalidFeatureSelection),
		errors.Is(err, recommend.ErrInvalidSize),
		errors.Is(err, recommend.ErrTargetOutOfRange),
		errors.Is(err, features.ErrUnknownFeature),
		errors.Is(err, features.ErrInvalidSelection),
		errors.Is(err, spotify.ErrInvalidURL):
		return http.StatusBadRequest
	case errors.Is(err, db.ErrNotFound),
		errors.Is(err, spotify.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, clustering.ErrDegenerateClustering),
		errors.Is(err, clustering.ErrNoSongs),
		errors.Is(err, clustering.ErrMissingFeatures),
		errors.Is(err, recommend.ErrNoCandidates),
		errors.Is(err, spotify.ErrNoAudioFeatures):
		return http.StatusUnprocessableEntity
	case errors.Is(err, gobreaker.ErrOpenState),
		errors.Is(err, gobreaker.ErrTooManyRequests),
		errors.Is(err, errUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// decode reads a JSON body into v and validates it.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %w", errBadRequest, err)
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %w", errBadRequest, err)
	}
	return nil
}

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/benmeehan/pin-locator/internal/services"
	"github.com/benmeehan/pin-locator/internal/store"
	"github.com/benmeehan/pin-locator/pkg/location"
	"github.com/rs/zerolog"
)

func writeJSON(w http.ResponseWriter, logger zerolog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, logger zerolog.Logger, status int, msg string) {
	writeJSON(w, logger, status, errorResponse{Error: msg})
}

// errorStatus maps a domain error to its HTTP status and client message.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, location.ErrPermissionDenied):
		return http.StatusForbidden, "access to location was denied"
	case errors.Is(err, location.ErrCapabilityUnavailable):
		return http.StatusServiceUnavailable, "geolocation is not supported on this device"
	case errors.Is(err, location.ErrNoFix):
		return http.StatusGatewayTimeout, "could not determine location, check that location services are enabled"
	case errors.Is(err, services.ErrAcquisitionInProgress):
		return http.StatusConflict, "a location is already being recorded"
	case errors.Is(err, services.ErrAddressLookup):
		return http.StatusBadGateway, "could not fetch address"
	case errors.Is(err, store.ErrPinNotFound):
		return http.StatusNotFound, "pin not found"
	case errors.Is(err, services.ErrNoPins):
		return http.StatusNotFound, "there are no pins to delete"
	case errors.Is(err, services.ErrNothingToExport):
		return http.StatusNotFound, "there is no data to export"
	case errors.Is(err, services.ErrInvalidImport):
		return http.StatusBadRequest, "invalid file format, expected a list of locations"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := errorStatus(err)
	event := h.logger.Warn()
	if status == http.StatusInternalServerError {
		event = h.logger.Error()
	}
	event.Err(err).Str("method", r.Method).Str("path", r.URL.Path).Int("status", status).Msg("Request failed")
	writeError(w, h.logger, status, msg)
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/benmeehan/pin-locator/internal/models"
	"github.com/rs/zerolog"
)

const (
	maxNoteBodyBytes   = 64 << 10
	maxImportBodyBytes = 10 << 20
)

// PinService is the pin workflow exposed over HTTP.
type PinService interface {
	Record(ctx context.Context) (models.Pin, error)
	List(ctx context.Context) ([]models.Pin, error)
	Get(ctx context.Context, id string) (models.Pin, error)
	UpdateNote(ctx context.Context, id, note string) (models.Pin, error)
	Delete(ctx context.Context, id string) error
	DeleteAll(ctx context.Context) (int, error)
	Export(ctx context.Context) ([]byte, string, error)
	Import(ctx context.Context, data []byte) (int, error)
}

// Handler serves the pin API.
type Handler struct {
	pins     PinService
	hub      *Hub
	deviceID string
	logger   zerolog.Logger
}

// NewHandler creates a Handler. hub may be nil, which disables the live feed.
func NewHandler(pins PinService, hub *Hub, deviceID string, logger zerolog.Logger) *Handler {
	return &Handler{
		pins:     pins,
		hub:      hub,
		deviceID: deviceID,
		logger:   logger,
	}
}

// Health provides a minimal liveness check endpoint.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	res := healthResponse{Status: "ok", DeviceID: h.deviceID}
	if h.hub != nil {
		res.Clients = h.hub.Count()
	}
	writeJSON(w, h.logger, http.StatusOK, res)
}

func (h *Handler) ListPins(w http.ResponseWriter, r *http.Request) {
	pins, err := h.pins.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, newPinResponses(pins))
}

// RecordPin acquires the current position and stores it as a new pin.
func (h *Handler) RecordPin(w http.ResponseWriter, r *http.Request) {
	pin, err := h.pins.Record(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/pins/"+pin.ID)
	writeJSON(w, h.logger, http.StatusCreated, newPinResponse(pin))
}

func (h *Handler) GetPin(w http.ResponseWriter, r *http.Request) {
	pin, err := h.pins.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, newPinResponse(pin))
}

func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	var req noteRequest

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxNoteBodyBytes))
	defer r.Body.Close()
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid json body")
		return
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		writeError(w, h.logger, http.StatusBadRequest, "body must contain only one JSON object")
		return
	}

	pin, err := h.pins.UpdateNote(r.Context(), r.PathValue("id"), req.Note)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, newPinResponse(pin))
}

func (h *Handler) DeletePin(w http.ResponseWriter, r *http.Request) {
	if err := h.pins.Delete(r.Context(), r.PathValue("id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) DeleteAllPins(w http.ResponseWriter, r *http.Request) {
	n, err := h.pins.DeleteAll(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, countResponse{Count: n})
}

// ExportPins sends the pins as a downloadable JSON file.
func (h *Handler) ExportPins(w http.ResponseWriter, r *http.Request) {
	data, name, err := h.pins.Export(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", "attachment; filename=\""+name+"\"")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.logger.Warn().Err(err).Msg("Failed to write export")
	}
}

// ImportPins merges the JSON array in the request body.
func (h *Handler) ImportPins(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxImportBodyBytes))
	defer r.Body.Close()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, h.logger, http.StatusRequestEntityTooLarge, "import file is too large")
			return
		}
		writeError(w, h.logger, http.StatusBadRequest, "could not read the file")
		return
	}

	n, err := h.pins.Import(r.Context(), data)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, countResponse{Count: n})
}

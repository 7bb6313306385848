package api

import (
	"net/http"

	"github.com/rs/zerolog"
)

// NewRouter wires the handlers and returns an http.Handler.
func NewRouter(h *Handler, logger zerolog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.Health)

	mux.HandleFunc("GET /api/pins", h.ListPins)
	mux.HandleFunc("POST /api/pins", h.RecordPin)
	mux.HandleFunc("DELETE /api/pins", h.DeleteAllPins)
	mux.HandleFunc("GET /api/pins/export", h.ExportPins)
	mux.HandleFunc("POST /api/pins/import", h.ImportPins)
	mux.HandleFunc("GET /api/pins/{id}", h.GetPin)
	mux.HandleFunc("DELETE /api/pins/{id}", h.DeletePin)
	mux.HandleFunc("PUT /api/pins/{id}/note", h.UpdateNote)

	if h.hub != nil {
		mux.HandleFunc("GET /api/ws", h.hub.ServeWS)
	}

	return loggingMiddleware(logger, mux)
}

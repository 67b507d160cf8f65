package handler

import (
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/gatdilshan/railway-safety-research/internal/engine"
	"github.com/gatdilshan/railway-safety-research/internal/model"
)

// TrackHandler handles track management HTTP requests: upload, list,
// delete, and active-track selection.
type TrackHandler struct {
	engine *engine.Engine
}

// NewTrackHandler creates a handler wired to the engine.
func NewTrackHandler(e *engine.Engine) *TrackHandler {
	return &TrackHandler{engine: e}
}

// UploadTrack handles POST /api/v1/tracks
//
// The CSV text is the raw request body; name, start_station and
// end_station come from query parameters, matching the
// upload(csv_text, name, start_station, end_station) contract.
func (h *TrackHandler) UploadTrack(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "failed to read request body"})
		return
	}

	q := r.URL.Query()
	track, err := h.engine.Upload(r.Context(), string(raw), q.Get("name"), q.Get("start_station"), q.Get("end_station"))
	if err != nil {
		switch {
		case errors.Is(err, model.ErrInvalidTrack):
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error":   "invalid_track",
				"message": "fewer than 2 well-formed vertices survived parsing",
			})
		case errors.Is(err, model.ErrStoreUnavailable):
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "store_unavailable"})
		default:
			log.Printf("[handler] upload track error: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal_error"})
		}
		return
	}

	writeJSON(w, http.StatusCreated, track)
}

// ListTracks handles GET /api/v1/tracks
func (h *TrackHandler) ListTracks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.ListTracks(r.Context()))
}

// GetTrack handles GET /api/v1/tracks/{track_id}
func (h *TrackHandler) GetTrack(w http.ResponseWriter, r *http.Request) {
	trackID := mux.Vars(r)["track_id"]
	track, err := h.engine.GetTrack(r.Context(), trackID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown_track"})
		return
	}
	writeJSON(w, http.StatusOK, track)
}

// DeleteTrack handles DELETE /api/v1/tracks/{track_id}
func (h *TrackHandler) DeleteTrack(w http.ResponseWriter, r *http.Request) {
	trackID := mux.Vars(r)["track_id"]
	if err := h.engine.DeleteTrack(r.Context(), trackID); err != nil {
		switch {
		case errors.Is(err, model.ErrUnknownTrack):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown_track"})
		case errors.Is(err, model.ErrStoreUnavailable):
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "store_unavailable"})
		default:
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal_error"})
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// ActivateTrack handles POST /api/v1/tracks/{track_id}/activate
func (h *TrackHandler) ActivateTrack(w http.ResponseWriter, r *http.Request) {
	trackID := mux.Vars(r)["track_id"]
	if err := h.engine.SetActiveTrack(r.Context(), trackID); err != nil {
		switch {
		case errors.Is(err, model.ErrUnknownTrack):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown_track"})
		case errors.Is(err, model.ErrStoreUnavailable):
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "store_unavailable"})
		default:
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal_error"})
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

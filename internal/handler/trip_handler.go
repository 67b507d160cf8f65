package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/gatdilshan/railway-safety-research/internal/engine"
	"github.com/gatdilshan/railway-safety-research/internal/model"
)

// TripHandler handles real-testing trip lifecycle HTTP requests.
type TripHandler struct {
	engine *engine.Engine
}

// NewTripHandler creates a handler wired to the engine.
func NewTripHandler(e *engine.Engine) *TripHandler {
	return &TripHandler{engine: e}
}

type startTripBody struct {
	TrackID string `json:"track_id"`
}

// StartTrip handles POST /api/v1/trips/{train_id}/start
func (h *TripHandler) StartTrip(w http.ResponseWriter, r *http.Request) {
	trainID := mux.Vars(r)["train_id"]

	var body startTripBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if body.TrackID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "track_id is required"})
		return
	}

	if err := h.engine.StartTrip(r.Context(), trainID, body.TrackID); err != nil {
		h.writeTripError(w, "start_trip", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type stopTripBody struct {
	TrackID string `json:"track_id,omitempty"`
}

// StopTrip handles POST /api/v1/trips/{train_id}/stop
func (h *TripHandler) StopTrip(w http.ResponseWriter, r *http.Request) {
	trainID := mux.Vars(r)["train_id"]

	var body stopTripBody
	// A body is optional here: stop_trip resolves track_id from the
	// train's own state when omitted.
	_ = json.NewDecoder(r.Body).Decode(&body)

	if err := h.engine.StopTrip(r.Context(), trainID, body.TrackID); err != nil {
		h.writeTripError(w, "stop_trip", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *TripHandler) writeTripError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, model.ErrUnknownTrain):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown_train"})
	case errors.Is(err, model.ErrUnknownTrack):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown_track"})
	case errors.Is(err, model.ErrTrackBusy):
		writeJSON(w, http.StatusConflict, map[string]string{
			"error":   "track_busy",
			"message": "track is already held by another train",
		})
	case errors.Is(err, model.ErrStoreUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "store_unavailable"})
	default:
		log.Printf("[handler] %s error: %v", op, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal_error"})
	}
}

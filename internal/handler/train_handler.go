package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/gatdilshan/railway-safety-research/internal/engine"
	"github.com/gatdilshan/railway-safety-research/internal/model"
)

// TrainHandler handles the train state-query and registration surface.
type TrainHandler struct {
	engine *engine.Engine
}

// NewTrainHandler creates a handler wired to the engine.
func NewTrainHandler(e *engine.Engine) *TrainHandler {
	return &TrainHandler{engine: e}
}

// GetTrain handles GET /api/v1/trains/{id}
//
// id is tried as a train_id first, then as a device_id — the endpoint
// field devices poll to drive their buzzer. The polled contract is
// buzzer_on := active OR collision_detected, exposed here as both raw
// fields so callers can apply either reading.
func (h *TrainHandler) GetTrain(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	tr, err := h.engine.GetTrain(id)
	if err != nil {
		if errors.Is(err, model.ErrUnknownTrain) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown_train"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal_error"})
		return
	}

	resp := struct {
		model.Train
		BuzzerOn bool `json:"buzzer_on"`
	}{Train: tr, BuzzerOn: tr.BuzzerOn()}
	writeJSON(w, http.StatusOK, resp)
}

// ListTrains handles GET /api/v1/trains
func (h *TrainHandler) ListTrains(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.ListTrains())
}

type registerTrainBody struct {
	TrainID  string `json:"train_id"`
	DeviceID string `json:"device_id"`
}

// RegisterTrain handles POST /api/v1/trains
//
// Binds a train_id to a device_id. Idempotent: re-registering the same
// pair is a no-op; re-registering a train_id with a new device_id rebinds
// it.
func (h *TrainHandler) RegisterTrain(w http.ResponseWriter, r *http.Request) {
	var body registerTrainBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if body.TrainID == "" || body.DeviceID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "train_id and device_id are required"})
		return
	}

	if err := h.engine.RegisterTrain(r.Context(), body.TrainID, body.DeviceID); err != nil {
		if errors.Is(err, model.ErrStoreUnavailable) {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "store_unavailable"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal_error"})
		return
	}

	writeJSON(w, http.StatusCreated, map[string]bool{"ok": true})
}

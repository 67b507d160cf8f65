package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gatdilshan/railway-safety-research/internal/engine"
	"github.com/gatdilshan/railway-safety-research/internal/model"
)

// FixHandler handles GPS fix ingestion HTTP requests.
type FixHandler struct {
	engine *engine.Engine
}

// NewFixHandler creates a handler wired to the engine.
func NewFixHandler(e *engine.Engine) *FixHandler {
	return &FixHandler{engine: e}
}

// fixRequestBody is the JSON body for POST /api/v1/fixes. Latitude and
// Longitude are pointers so a genuinely absent field can be told apart
// from an explicit zero, per the InvalidFix contract.
type fixRequestBody struct {
	Latitude   *float64 `json:"latitude"`
	Longitude  *float64 `json:"longitude"`
	Satellites int      `json:"satellites"`
	HDOP       float64  `json:"hdop"`
	Accuracy   float64  `json:"accuracy"`
	Timestamp  string   `json:"timestamp"`
	DeviceID   string   `json:"device_id"`
}

// SubmitFix handles POST /api/v1/fixes
//
// Ingests a single GPS fix from a tracker device. The response always
// carries the map-match result; collision is only populated once a lock
// has actually been acquired or refreshed on this call.
func (h *FixHandler) SubmitFix(w http.ResponseWriter, r *http.Request) {
	var body fixRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}

	var ts time.Time
	if body.Timestamp != "" {
		parsed, err := time.Parse(time.RFC3339, body.Timestamp)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "timestamp must be RFC3339"})
			return
		}
		ts = parsed
	}

	result, err := h.engine.SubmitFix(r.Context(), engine.FixInput{
		Latitude:   body.Latitude,
		Longitude:  body.Longitude,
		Satellites: body.Satellites,
		HDOP:       body.HDOP,
		Accuracy:   body.Accuracy,
		Timestamp:  ts,
		DeviceID:   body.DeviceID,
	})
	if err != nil {
		switch {
		case errors.Is(err, model.ErrInvalidFix):
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error":   "invalid_fix",
				"message": "latitude and longitude are required",
			})
		case errors.Is(err, model.ErrMissingSession):
			// Non-error from the device's point of view: no session to
			// route this fix against. Logged, not surfaced as a failure.
			log.Printf("[handler] submit fix: no open session for device %s", body.DeviceID)
			writeJSON(w, http.StatusOK, map[string]interface{}{"saved": false})
		case errors.Is(err, model.ErrUnknownTrain):
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error":   "unknown_train",
				"message": "device is not bound to a registered train",
			})
		case errors.Is(err, model.ErrUnknownTrack):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown_track"})
		case errors.Is(err, model.ErrStoreUnavailable):
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "store_unavailable"})
		default:
			log.Printf("[handler] submit fix error: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal_error"})
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"saved":       result.Saved,
		"track_match": result.TrackMatch,
		"collision":   result.Collision,
	})
}

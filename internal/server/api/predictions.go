package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/ayusman/mudra/internal/classifier"
	"github.com/ayusman/mudra/internal/history"
	"github.com/ayusman/mudra/internal/paging"
	"github.com/ayusman/mudra/internal/recognizer"
	"github.com/ayusman/mudra/internal/store"
)

// PredictionHandler handles HTTP requests for prediction endpoints.
type PredictionHandler struct {
	recognizer *recognizer.Recognizer
	history    *history.Service
}

// NewPredictionHandler creates a new PredictionHandler.
func NewPredictionHandler(rec *recognizer.Recognizer, hist *history.Service) *PredictionHandler {
	return &PredictionHandler{recognizer: rec, history: hist}
}

// Routes returns the router mounted at /api/prediction.
func (h *PredictionHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/predict", h.predict)
	r.Post("/bulk-predict", h.bulkPredict)
	r.Get("/history", h.list)
	r.Get("/history/{id}", h.get)
	r.Delete("/history/{id}", h.delete)
	r.Post("/add-samples", h.addSamples)
	return r
}

type predictRequest struct {
	Landmarks  json.RawMessage `json:"landmarks"`
	Image      string          `json:"image"`
	SessionID  string          `json:"session_id"`
	SaveResult *bool           `json:"save_result"`
}

// saveStatus is attached to responses for requests that asked to persist.
type saveStatus struct {
	ID           string `json:"id,omitempty"`
	SessionID    string `json:"session_id,omitempty"`
	GestureCount *int   `json:"total_gestures_detected,omitempty"`
	Saved        *bool  `json:"saved,omitempty"`
	SaveError    string `json:"save_error,omitempty"`
}

func newSaveStatus(sessionID, id string, count int, err error) saveStatus {
	var st saveStatus
	if err != nil {
		saved := false
		st.Saved = &saved
		st.SaveError = err.Error()
		return st
	}
	if id == "" {
		return st
	}
	st.ID = id
	if sessionID != "" {
		st.SessionID = sessionID
		st.GestureCount = &count
	}
	return st
}

type predictResponse struct {
	classifier.Result
	UserID  string `json:"user_id"`
	Message string `json:"message,omitempty"`
	saveStatus
}

// predict handles POST /api/prediction/predict.
func (h *PredictionHandler) predict(w http.ResponseWriter, r *http.Request) {
	u, ok := caller(w, r)
	if !ok {
		return
	}

	var req predictRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON format")
		return
	}

	out, err := h.recognizer.Predict(r.Context(), recognizer.Input{
		UserID:     u.ID,
		SessionID:  req.SessionID,
		Landmarks:  req.Landmarks,
		Image:      req.Image,
		SaveResult: boolOr(req.SaveResult, true),
	})
	if err != nil {
		writeStoreError(w, err, "Prediction failed")
		return
	}

	writeJSON(w, http.StatusOK, predictResponse{
		Result:     out.Result,
		UserID:     u.ID,
		Message:    out.Message,
		saveStatus: newSaveStatus(req.SessionID, out.PredictionID, out.GestureCount, out.SaveErr),
	})
}

type bulkPredictRequest struct {
	LandmarksArray []json.RawMessage `json:"landmarks_array"`
	ImageArray     []string          `json:"image_array"`
	SessionID      string            `json:"session_id"`
	GetMajority    *bool             `json:"get_majority"`
	SaveResult     *bool             `json:"save_result"`
}

type majorityResponse struct {
	Label       string    `json:"label"`
	Confidence  float64   `json:"confidence"`
	Count       int       `json:"count"`
	TotalFrames int       `json:"total_frames"`
	UserID      string    `json:"user_id"`
	Timestamp   time.Time `json:"timestamp"`
	saveStatus
}

type bulkPredictResponse struct {
	Results  []classifier.Result `json:"results"`
	Majority *majorityResponse   `json:"majority_prediction,omitempty"`
}

// bulkPredict handles POST /api/prediction/bulk-predict.
func (h *PredictionHandler) bulkPredict(w http.ResponseWriter, r *http.Request) {
	u, ok := caller(w, r)
	if !ok {
		return
	}

	var req bulkPredictRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON format")
		return
	}
	if req.LandmarksArray == nil && req.ImageArray == nil {
		writeError(w, http.StatusBadRequest, "Either 'image_array' or 'landmarks_array' is required")
		return
	}

	out, err := h.recognizer.PredictBurst(r.Context(), recognizer.BurstInput{
		UserID:      u.ID,
		SessionID:   req.SessionID,
		Landmarks:   req.LandmarksArray,
		Images:      req.ImageArray,
		GetMajority: boolOr(req.GetMajority, true),
		SaveResult:  boolOr(req.SaveResult, true),
	})
	if err != nil {
		writeStoreError(w, err, "Bulk prediction failed")
		return
	}

	resp := bulkPredictResponse{Results: out.Results}
	if m := out.Majority; m != nil {
		resp.Majority = &majorityResponse{
			Label:       m.Label,
			Confidence:  m.ConfidencePct,
			Count:       m.SupportingCount,
			TotalFrames: m.TotalFrames,
			UserID:      u.ID,
			Timestamp:   time.Now().UTC(),
			saveStatus:  newSaveStatus(req.SessionID, out.PredictionID, out.GestureCount, out.SaveErr),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type historyResponse struct {
	Predictions []*store.Prediction `json:"predictions"`
	Pagination  paging.Pagination   `json:"pagination"`
}

// list handles GET /api/prediction/history.
func (h *PredictionHandler) list(w http.ResponseWriter, r *http.Request) {
	u, ok := caller(w, r)
	if !ok {
		return
	}
	p, err := pageParams(r)
	if err != nil {
		writeStoreError(w, err, "Failed to retrieve prediction history")
		return
	}

	page, err := h.history.ListPredictions(r.Context(), u.ID, p)
	if err != nil {
		writeStoreError(w, err, "Failed to retrieve prediction history")
		return
	}
	writeJSON(w, http.StatusOK, historyResponse{Predictions: page.Items, Pagination: page.Pagination})
}

// get handles GET /api/prediction/history/{id}.
func (h *PredictionHandler) get(w http.ResponseWriter, r *http.Request) {
	u, ok := caller(w, r)
	if !ok {
		return
	}

	p, err := h.history.GetPrediction(r.Context(), chi.URLParam(r, "id"), u.ID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Prediction not found or access denied")
		return
	}
	if err != nil {
		writeStoreError(w, err, "Failed to get prediction")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// delete handles DELETE /api/prediction/history/{id}.
func (h *PredictionHandler) delete(w http.ResponseWriter, r *http.Request) {
	u, ok := caller(w, r)
	if !ok {
		return
	}

	err := h.history.DeletePrediction(r.Context(), chi.URLParam(r, "id"), u.ID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Prediction not found or access denied")
		return
	}
	if err != nil {
		writeStoreError(w, err, "Failed to delete prediction")
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Prediction deleted successfully"})
}

type addSamplesRequest struct {
	Count int `json:"count"`
}

type addSamplesResponse struct {
	Message   string   `json:"message"`
	SampleIDs []string `json:"sample_ids"`
}

// addSamples handles POST /api/prediction/add-samples.
func (h *PredictionHandler) addSamples(w http.ResponseWriter, r *http.Request) {
	u, ok := caller(w, r)
	if !ok {
		return
	}

	var req addSamplesRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON format")
		return
	}

	samples, err := h.history.AddSamples(r.Context(), u.ID, req.Count)
	if err != nil {
		writeStoreError(w, err, "Failed to add sample predictions")
		return
	}

	ids := make([]string, len(samples))
	for i, p := range samples {
		ids[i] = p.ID
	}
	log.Info().Str("user_id", u.ID).Int("count", len(ids)).Msg("sample predictions added")
	writeJSON(w, http.StatusOK, addSamplesResponse{
		Message:   fmt.Sprintf("Added %d sample predictions", len(ids)),
		SampleIDs: ids,
	})
}

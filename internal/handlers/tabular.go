package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/Brownie44l1/spine-api/internal/model"
	"github.com/Brownie44l1/spine-api/internal/reporting"
	"github.com/Brownie44l1/spine-api/internal/tabular"
	"github.com/sirupsen/logrus"
)

type TabularHealthResponse struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
	Features    int    `json:"n_features,omitempty"`
}

type PredictRequest struct {
	Features []float64 `json:"features"`
}

type PredictResponse struct {
	Prediction float64 `json:"prediction"`
}

type BatchPredictRequest struct {
	Instances [][]float64 `json:"instances"`
}

type BatchPredictResponse struct {
	Predictions []float64 `json:"predictions"`
}

type TabularHandler struct {
	base
	svc     *tabular.Service
	maxBody int64
}

func NewTabularHandler(svc *tabular.Service, maxBody int64, reporter *reporting.Reporter, log logrus.FieldLogger) *TabularHandler {
	return &TabularHandler{
		base:    base{service: "tabular", log: log, reporter: reporter},
		svc:     svc,
		maxBody: maxBody,
	}
}

// Register adds the tabular routes to mux.
func (h *TabularHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.Root)
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("POST /predict", h.Predict)
	mux.HandleFunc("POST /predict-batch", h.PredictBatch)
}

func (h *TabularHandler) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, TabularHealthResponse{
		Status:      statusRunning,
		ModelLoaded: h.svc.Ready(),
	})
}

func (h *TabularHandler) Health(w http.ResponseWriter, r *http.Request) {
	ready := h.svc.Ready()
	writeJSON(w, http.StatusOK, TabularHealthResponse{
		Status:      healthStatus(ready),
		ModelLoaded: ready,
		Features:    h.svc.Features(),
	})
}

func (h *TabularHandler) Predict(w http.ResponseWriter, r *http.Request) {
	var req PredictRequest
	if !h.decode(w, r, &req) {
		return
	}

	y, err := h.svc.Predict(r.Context(), req.Features)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, PredictResponse{Prediction: y})
}

func (h *TabularHandler) PredictBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchPredictRequest
	if !h.decode(w, r, &req) {
		return
	}

	out, err := h.svc.PredictBatch(r.Context(), req.Instances)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, BatchPredictResponse{Predictions: out})
}

// decode reads a JSON body into v. Readiness is checked first so a missing
// model answers 503 whatever the payload.
func (h *TabularHandler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if !h.svc.Ready() {
		h.writeError(w, r, model.ErrNotReady)
		return false
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBody))
	if err != nil {
		writeBodyError(w, err, "Failed to read request body")
		return false
	}
	if err := json.Unmarshal(body, v); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid JSON")
		return false
	}
	return true
}

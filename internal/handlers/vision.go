package handlers

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/Brownie44l1/spine-api/internal/middleware"
	"github.com/Brownie44l1/spine-api/internal/model"
	"github.com/Brownie44l1/spine-api/internal/reporting"
	"github.com/Brownie44l1/spine-api/internal/vision"
	"github.com/docker/go-units"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// multipartMemory is how much of an upload is kept in memory while parsing.
const multipartMemory = 10 << 20

// VisionHealthResponse answers GET / and GET /health.
type VisionHealthResponse struct {
	Status          string   `json:"status"`
	ModelLoaded     bool     `json:"model_loaded"`
	VertebraeLabels []string `json:"vertebrae_labels"`
}

// VisionPredictionResponse answers both prediction endpoints.
type VisionPredictionResponse struct {
	Predictions vision.Result `json:"predictions"`
	Status      string        `json:"status"`
}

// VisionOptions configures the vision handlers.
type VisionOptions struct {
	// TempDir receives uploads while they are decoded. Empty means the
	// system temp directory.
	TempDir          string
	MaxUploadSize    int64
	DefaultThreshold float64
}

type VisionHandler struct {
	base
	svc  *vision.Service
	opts VisionOptions
}

func NewVisionHandler(svc *vision.Service, opts VisionOptions, reporter *reporting.Reporter, log logrus.FieldLogger) *VisionHandler {
	if opts.TempDir == "" {
		opts.TempDir = os.TempDir()
	}
	return &VisionHandler{
		base: base{service: "vision", log: log, reporter: reporter},
		svc:  svc,
		opts: opts,
	}
}

// Register adds the vision routes to mux.
func (h *VisionHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.Root)
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("POST /predict", h.Predict)
	mux.HandleFunc("POST /predict-path", h.PredictPath)
}

func (h *VisionHandler) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, VisionHealthResponse{
		Status:          statusRunning,
		ModelLoaded:     h.svc.Ready(),
		VertebraeLabels: vision.Labels,
	})
}

func (h *VisionHandler) Health(w http.ResponseWriter, r *http.Request) {
	ready := h.svc.Ready()
	writeJSON(w, http.StatusOK, VisionHealthResponse{
		Status:          healthStatus(ready),
		ModelLoaded:     ready,
		VertebraeLabels: vision.Labels,
	})
}

// Predict classifies an uploaded DICOM file sent as the "file" form field.
func (h *VisionHandler) Predict(w http.ResponseWriter, r *http.Request) {
	if !h.svc.Ready() {
		h.writeError(w, r, model.ErrNotReady)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxUploadSize)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		writeBodyError(w, err, "Failed to parse form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "No file provided. Use 'file' as the form field name")
		return
	}
	defer file.Close()

	if !strings.HasSuffix(header.Filename, ".dcm") {
		writeDetail(w, http.StatusBadRequest, "File must be a DICOM (.dcm) file")
		return
	}

	threshold, err := parseThreshold(r, h.opts.DefaultThreshold)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	log := middleware.Logger(r.Context(), h.log)
	log.Infof("Received file: %s, size: %s", header.Filename, units.HumanSize(float64(header.Size)))

	tmpPath, err := h.spool(file)
	if tmpPath != "" {
		defer func() {
			if err := os.Remove(tmpPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
				log.Warnf("Failed to remove %s: %v", tmpPath, err)
			}
		}()
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	result, err := h.svc.PredictFile(r.Context(), tmpPath, threshold)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, VisionPredictionResponse{Predictions: result, Status: statusSuccess})
}

// spool copies an upload into a uniquely named file under TempDir. The
// returned path is set whenever a file was created, even on error.
func (h *VisionHandler) spool(src io.Reader) (string, error) {
	path := filepath.Join(h.opts.TempDir, uuid.NewString()+".dcm")
	dst, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return "", fmt.Errorf("create temporary file: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return path, fmt.Errorf("write temporary file: %w", err)
	}
	if err := dst.Close(); err != nil {
		return path, fmt.Errorf("write temporary file: %w", err)
	}
	return path, nil
}

// PredictPath classifies a DICOM file already present on the server. The
// path is trusted as given.
func (h *VisionHandler) PredictPath(w http.ResponseWriter, r *http.Request) {
	if !h.svc.Ready() {
		h.writeError(w, r, model.ErrNotReady)
		return
	}

	dicomPath := r.FormValue("dicom_path")
	if dicomPath == "" {
		writeDetail(w, http.StatusBadRequest, "dicom_path is required")
		return
	}
	if _, err := os.Stat(dicomPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			writeDetail(w, http.StatusNotFound, "DICOM file not found")
			return
		}
		h.writeError(w, r, model.BadInputf("cannot access %s: %w", dicomPath, err))
		return
	}

	threshold, err := parseThreshold(r, h.opts.DefaultThreshold)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	result, err := h.svc.PredictFile(r.Context(), dicomPath, threshold)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, VisionPredictionResponse{Predictions: result, Status: statusSuccess})
}

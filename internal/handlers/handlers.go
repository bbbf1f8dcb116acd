package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/Brownie44l1/spine-api/internal/middleware"
	"github.com/Brownie44l1/spine-api/internal/model"
	"github.com/Brownie44l1/spine-api/internal/reporting"
	"github.com/sirupsen/logrus"
)

const (
	statusRunning   = "running"
	statusHealthy   = "healthy"
	statusNotLoaded = "model not loaded"
	statusSuccess   = "success"
)

// statusClientClosedRequest answers requests whose caller went away.
const statusClientClosedRequest = 499

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// base holds what every handler needs to answer and to fail.
type base struct {
	service  string
	log      logrus.FieldLogger
	reporter *reporting.Reporter
}

func healthStatus(ready bool) string {
	if ready {
		return statusHealthy
	}
	return statusNotLoaded
}

// writeJSON encodes v before committing the status, so an unencodable value
// becomes a 500 instead of an empty reply.
func writeJSON(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		buf.Reset()
		status = http.StatusInternalServerError
		json.NewEncoder(&buf).Encode(ErrorResponse{Detail: "Prediction error: " + err.Error()})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, ErrorResponse{Detail: detail})
}

// writeError maps err onto its HTTP status. Unexpected failures are logged
// and reported; their message is returned to the caller. Cancelled or
// expired request contexts are neither.
func (b *base) writeError(w http.ResponseWriter, r *http.Request, err error) {
	log := middleware.Logger(r.Context(), b.log)

	switch {
	case errors.Is(err, context.Canceled):
		log.Debugf("Request cancelled: %v", err)
		writeDetail(w, statusClientClosedRequest, "Request cancelled")
		return
	case errors.Is(err, context.DeadlineExceeded):
		log.Warnf("Request timed out: %v", err)
		writeDetail(w, http.StatusGatewayTimeout, "Request timed out")
		return
	}

	switch kind := model.KindOf(err); kind {
	case model.KindNotReady:
		writeDetail(w, http.StatusServiceUnavailable, "Model not loaded")
	case model.KindBadInput:
		log.Debugf("Rejected request: %v", err)
		writeDetail(w, http.StatusBadRequest, err.Error())
	default:
		log.Errorf("Prediction error: %v", err)
		b.reporter.Capture(err, map[string]string{
			"service": b.service,
			"path":    r.URL.Path,
			"kind":    kind.String(),
		})
		writeDetail(w, http.StatusInternalServerError, "Prediction error: "+err.Error())
	}
}

// writeBodyError answers a request whose body could not be read.
func writeBodyError(w http.ResponseWriter, err error, what string) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		writeDetail(w, http.StatusRequestEntityTooLarge, "Request body too large")
		return
	}
	writeDetail(w, http.StatusBadRequest, what)
}

// parseThreshold reads the optional threshold form or query value.
func parseThreshold(r *http.Request, fallback float64) (float64, error) {
	raw := r.FormValue("threshold")
	if raw == "" {
		return fallback, nil
	}
	t, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, model.BadInputf("invalid threshold %q", raw)
	}
	return t, nil
}

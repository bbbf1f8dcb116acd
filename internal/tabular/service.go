// Package tabular serves generic row-wise predictions from a loaded model.
// The artifact's feature order is an external contract: rows are passed to
// the model exactly as received.
package tabular

import (
	"context"
	"math"

	"github.com/Brownie44l1/spine-api/internal/model"
	"github.com/sirupsen/logrus"
)

// Arch binds tabular artifacts: any number of features, one output per row.
var Arch = model.Arch{OutputWidth: 1}

type Service struct {
	handle *model.Handle
	log    logrus.FieldLogger
}

func NewService(handle *model.Handle, log logrus.FieldLogger) *Service {
	return &Service{handle: handle, log: log}
}

// Ready reports whether a model has been loaded.
func (s *Service) Ready() bool {
	return s.handle.Ready()
}

// Features is the model's input width, or 0 when unknown or not loaded.
func (s *Service) Features() int {
	p, _, err := s.handle.Get()
	if err != nil {
		return 0
	}
	return p.InputWidth()
}

// Predict returns the model output for a single feature vector.
func (s *Service) Predict(ctx context.Context, features []float64) (float64, error) {
	out, err := s.PredictBatch(ctx, [][]float64{features})
	if err != nil {
		return 0, err
	}
	return out[0], nil
}

// PredictBatch returns one output per row, in input order.
func (s *Service) PredictBatch(ctx context.Context, rows [][]float64) ([]float64, error) {
	predictor, _, err := s.handle.Get()
	if err != nil {
		return nil, err
	}

	matrix, err := toMatrix(rows, predictor.InputWidth())
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out, err := predictor.Predict(matrix, len(rows))
	if err != nil {
		return nil, model.InferenceFailuref("%w", err)
	}
	if len(out) != len(rows) {
		return nil, model.InferenceFailuref("model returned %d values for %d rows", len(out), len(rows))
	}
	for i, v := range out {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, model.InferenceFailuref("model returned non-finite value %v for row %d", v, i)
		}
	}
	s.log.Debugf("Predicted %d rows", len(rows))
	return out, nil
}

// toMatrix flattens rows into a row-major float32 matrix. width is the
// expected row length, 0 meaning whatever the first row has. Values must be
// representable as float32.
func toMatrix(rows [][]float64, width int) ([]float32, error) {
	if len(rows) == 0 {
		return nil, model.BadInputf("no instances to predict")
	}
	if width == 0 {
		width = len(rows[0])
	}
	if width == 0 {
		return nil, model.BadInputf("feature vectors must not be empty")
	}

	matrix := make([]float32, 0, len(rows)*width)
	for i, row := range rows {
		if len(row) != width {
			return nil, model.BadInputf("instance %d has %d features, expected %d", i, len(row), width)
		}
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, model.BadInputf("instance %d feature %d is not finite", i, j)
			}
			if math.Abs(v) > math.MaxFloat32 {
				return nil, model.BadInputf("instance %d feature %d is out of float32 range", i, j)
			}
			matrix = append(matrix, float32(v))
		}
	}
	return matrix, nil
}

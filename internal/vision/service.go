// Package vision classifies cervical vertebrae visible in a DICOM slice.
package vision

import (
	"context"
	"math"

	"github.com/Brownie44l1/spine-api/internal/model"
	"github.com/Brownie44l1/spine-api/internal/preprocess"
	"github.com/sirupsen/logrus"
)

// Labels is the fixed, ordered output schema of the classifier.
var Labels = []string{"C1", "C2", "C3", "C4", "C5", "C6", "C7"}

// DefaultThreshold is used when the caller does not supply one.
const DefaultThreshold = 0.5

// LabelResult is the outcome for one vertebra.
type LabelResult struct {
	Prob  float64 `json:"prob"`
	Label int     `json:"label"`
}

// Result maps each label to its outcome.
type Result map[string]LabelResult

// Service runs DICOM files through the published predictor.
type Service struct {
	handle *model.Handle
	opts   preprocess.Options
	log    logrus.FieldLogger
}

func NewService(handle *model.Handle, opts preprocess.Options, log logrus.FieldLogger) *Service {
	return &Service{handle: handle, opts: opts, log: log}
}

// Arch is the architecture every vision artifact is bound to.
func (s *Service) Arch() model.Arch {
	return model.Arch{
		InputWidth:  3 * s.opts.Size * s.opts.Size,
		OutputWidth: len(Labels),
	}
}

// DefaultMetadata describes the exported transformer when no sidecar exists.
func (s *Service) DefaultMetadata() model.Metadata {
	size := int64(s.opts.Size)
	return model.Metadata{
		InputName:   "input",
		OutputName:  "output",
		InputShape:  []int64{1, 3, size, size},
		OutputShape: []int64{1, int64(len(Labels))},
		OutputType:  model.OutputFloat32,
		Classes:     Labels,
		ImageSize:   s.opts.Size,
	}
}

// Ready reports whether a model has been loaded.
func (s *Service) Ready() bool {
	return s.handle.Ready()
}

// PredictFile classifies the DICOM file at path.
func (s *Service) PredictFile(ctx context.Context, path string, threshold float64) (Result, error) {
	if err := ValidateThreshold(threshold); err != nil {
		return nil, err
	}
	if !s.handle.Ready() {
		return nil, model.ErrNotReady
	}

	tensor, err := s.opts.File(path)
	if err != nil {
		return nil, model.BadInputf("invalid DICOM: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.PredictTensor(tensor, threshold)
}

// PredictTensor runs an already preprocessed [1,3,S,S] tensor.
func (s *Service) PredictTensor(tensor *preprocess.Tensor, threshold float64) (Result, error) {
	predictor, _, err := s.handle.Get()
	if err != nil {
		return nil, err
	}

	logits, err := predictor.Predict(tensor.Data, tensor.Shape[0])
	if err != nil {
		return nil, model.InferenceFailuref("%w", err)
	}
	if len(logits) != len(Labels) {
		return nil, model.InferenceFailuref("model returned %d outputs, expected %d", len(logits), len(Labels))
	}

	probs := make([]float64, len(logits))
	for i, v := range logits {
		probs[i] = Sigmoid(v)
		if math.IsNaN(probs[i]) {
			return nil, model.InferenceFailuref("model returned %v for %s", v, Labels[i])
		}
	}
	flags := Threshold(probs, threshold)

	result := make(Result, len(Labels))
	for i, label := range Labels {
		result[label] = LabelResult{Prob: probs[i], Label: flags[i]}
	}
	s.log.WithField("threshold", threshold).Debugf("Prediction: %v", result)
	return result, nil
}

// Sigmoid is the logistic function.
func Sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// Threshold flags each class independently: 1 iff prob >= t.
func Threshold(probs []float64, t float64) []int {
	flags := make([]int, len(probs))
	for i, p := range probs {
		if p >= t {
			flags[i] = 1
		}
	}
	return flags
}

// ValidateThreshold rejects NaN and infinite cutoffs.
func ValidateThreshold(t float64) error {
	if math.IsNaN(t) || math.IsInf(t, 0) {
		return model.BadInputf("threshold must be a finite number, got %v", t)
	}
	return nil
}

package model

import (
	"fmt"

	"github.com/sirupsen/logrus"
	ort "github.com/yalue/onnxruntime_go"
)

// ONNXOptions configures an ONNX Runtime backed predictor.
type ONNXOptions struct {
	ModelPath string
	Metadata  Metadata
	Device    Device
}

type onnxPredictor struct {
	session  *ort.DynamicAdvancedSession
	metadata Metadata
	inWidth  int
	outWidth int
}

// newONNXPredictor opens a session on the requested device. A CUDA session
// that cannot be created falls back to CPU when the device was auto-detected.
// The caller must hold a runtime reference; the predictor takes it over on
// success.
func newONNXPredictor(opts ONNXOptions, log logrus.FieldLogger) (*onnxPredictor, Device, error) {
	if err := opts.Metadata.validate(); err != nil {
		return nil, "", err
	}

	device := resolveDevice(opts.Device, log)
	session, err := openSession(opts.ModelPath, opts.Metadata, device)
	if err != nil && device == DeviceCUDA && opts.Device == DeviceAuto {
		log.Warnf("CUDA session failed, falling back to CPU: %v", err)
		device = DeviceCPU
		session, err = openSession(opts.ModelPath, opts.Metadata, device)
	}
	if err != nil {
		return nil, "", err
	}

	return &onnxPredictor{
		session:  session,
		metadata: opts.Metadata,
		inWidth:  sampleSize(opts.Metadata.InputShape),
		outWidth: sampleSize(opts.Metadata.OutputShape),
	}, device, nil
}

// introspect fills names, shapes and the output type the metadata leaves
// unset from the graph itself.
func introspect(modelPath string, m Metadata) (Metadata, error) {
	if m.InputName != "" && m.OutputName != "" && len(m.InputShape) > 0 && len(m.OutputShape) > 0 {
		return m, nil
	}
	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return m, fmt.Errorf("failed to inspect model: %w", err)
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return m, fmt.Errorf("model declares %d inputs and %d outputs", len(inputs), len(outputs))
	}

	in, out := inputs[0], outputs[0]
	for _, info := range inputs {
		if info.Name == m.InputName {
			in = info
		}
	}
	for _, info := range outputs {
		if info.Name == m.OutputName {
			out = info
		}
	}
	if m.InputName == "" {
		m.InputName = in.Name
	}
	if m.OutputName == "" {
		m.OutputName = out.Name
	}
	if len(m.InputShape) == 0 {
		m.InputShape = append([]int64(nil), in.Dimensions...)
	}
	if len(m.OutputShape) == 0 {
		m.OutputShape = append([]int64(nil), out.Dimensions...)
		switch out.DataType {
		case ort.TensorElementDataTypeDouble:
			m.OutputType = OutputFloat64
		case ort.TensorElementDataTypeInt64:
			m.OutputType = OutputInt64
		}
	}
	return m, nil
}

func openSession(modelPath string, metadata Metadata, device Device) (*ort.DynamicAdvancedSession, error) {
	options, cleanup, err := sessionOptions(device)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	session, err := ort.NewDynamicAdvancedSession(modelPath,
		[]string{metadata.InputName}, []string{metadata.OutputName},
		options)
	if err != nil {
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}
	return session, nil
}

func (p *onnxPredictor) InputWidth() int  { return p.inWidth }
func (p *onnxPredictor) OutputWidth() int { return p.outWidth }

// Predict allocates fresh tensors per call, so concurrent callers never share
// buffers and the session itself needs no lock.
func (p *onnxPredictor) Predict(input []float32, rows int) ([]float64, error) {
	if rows <= 0 || len(input) != rows*p.inWidth {
		return nil, fmt.Errorf("expected %d values for %d rows, got %d", rows*p.inWidth, rows, len(input))
	}

	inputTensor, err := ort.NewTensor(batchShape(p.metadata.InputShape, rows), input)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	outputShape := batchShape(p.metadata.OutputShape, rows)
	switch p.metadata.OutputType {
	case OutputFloat64:
		return runSession[float64](p.session, inputTensor, outputShape)
	case OutputInt64:
		return runSession[int64](p.session, inputTensor, outputShape)
	default:
		return runSession[float32](p.session, inputTensor, outputShape)
	}
}

func runSession[T float32 | float64 | int64](session *ort.DynamicAdvancedSession, input ort.ArbitraryTensor, shape ort.Shape) ([]float64, error) {
	outputTensor, err := ort.NewEmptyTensor[T](shape)
	if err != nil {
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}
	defer outputTensor.Destroy()

	if err := session.Run([]ort.ArbitraryTensor{input}, []ort.ArbitraryTensor{outputTensor}); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	outputData := outputTensor.GetData()
	out := make([]float64, len(outputData))
	for i, val := range outputData {
		out[i] = float64(val)
	}
	return out, nil
}

func batchShape(shape []int64, rows int) ort.Shape {
	dims := make([]int64, len(shape))
	copy(dims, shape)
	dims[0] = int64(rows)
	return ort.NewShape(dims...)
}

func (p *onnxPredictor) Close() error {
	if p.session != nil {
		if err := p.session.Destroy(); err != nil {
			return err
		}
		p.session = nil
		releaseRuntime()
	}
	return nil
}

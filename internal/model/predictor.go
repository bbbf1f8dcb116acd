package model

// Predictor is a loaded model ready for inference. Implementations must be
// safe for concurrent calls to Predict; nothing mutates a Predictor after it
// has been loaded.
type Predictor interface {
	// Predict runs a forward pass over rows samples laid out row-major in
	// input and returns rows*OutputWidth() raw outputs, also row-major.
	Predict(input []float32, rows int) ([]float64, error)
	// InputWidth is the number of values per sample, or 0 if the model does
	// not declare it.
	InputWidth() int
	// OutputWidth is the number of raw outputs per sample.
	OutputWidth() int
	// Close releases any native resources.
	Close() error
}

// Arch describes the architecture a service binds a model artifact to. A zero
// width is not checked.
type Arch struct {
	InputWidth  int
	OutputWidth int
}

// Device is the execution target of a loaded predictor.
type Device string

const (
	DeviceCPU  Device = "cpu"
	DeviceCUDA Device = "cuda"
	// DeviceAuto is only valid as a request; loaded predictors always report
	// a concrete device.
	DeviceAuto Device = "auto"
)

// ParseDevice validates a configured device name.
func ParseDevice(s string) (Device, error) {
	switch d := Device(s); d {
	case DeviceCPU, DeviceCUDA, DeviceAuto:
		return d, nil
	case "":
		return DeviceAuto, nil
	default:
		return "", BadInputf("unknown device %q (want auto, cpu or cuda)", s)
	}
}

package model

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// ErrArtifactMissing is returned when the model file does not exist.
var ErrArtifactMissing = errors.New("model artifact not found")

// LoadOptions describes which artifact to load and what to bind it to.
type LoadOptions struct {
	Path string
	// MetadataPath is the ONNX sidecar. Empty means MetadataPath(Path).
	MetadataPath string
	// Defaults fill whatever the sidecar leaves unset.
	Defaults Metadata
	Arch     Arch
	Device   Device
	// LibraryPath points at the onnxruntime shared library. Empty uses the
	// runtime's default lookup.
	LibraryPath string
}

// Load deserializes the artifact at opts.Path. ONNX graphs run through ONNX
// Runtime; safetensors checkpoints are bound to the linear architecture on
// the CPU.
func Load(opts LoadOptions, log logrus.FieldLogger) (Predictor, Device, error) {
	if opts.Device == "" {
		opts.Device = DeviceAuto
	}
	if _, err := os.Stat(opts.Path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, "", fmt.Errorf("%w: %s", ErrArtifactMissing, opts.Path)
		}
		return nil, "", fmt.Errorf("stat model: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(opts.Path)); ext {
	case ".onnx":
		return loadONNX(opts, log)
	case ".safetensors":
		return loadCheckpoint(opts)
	default:
		return nil, "", fmt.Errorf("unsupported model format %q", ext)
	}
}

func loadONNX(opts LoadOptions, log logrus.FieldLogger) (Predictor, Device, error) {
	metaPath := opts.MetadataPath
	if metaPath == "" {
		metaPath = MetadataPath(opts.Path)
	}
	metadata, err := LoadMetadata(metaPath, opts.Defaults)
	if err != nil {
		return nil, "", err
	}
	if n := len(metadata.Classes); n > 0 && opts.Arch.OutputWidth > 0 && n != opts.Arch.OutputWidth {
		return nil, "", fmt.Errorf("metadata lists %d classes, architecture has %d outputs", n, opts.Arch.OutputWidth)
	}

	if err := acquireRuntime(opts.LibraryPath); err != nil {
		return nil, "", err
	}
	p, device, err := openONNX(opts, metadata, log)
	if err != nil {
		releaseRuntime()
		return nil, "", err
	}
	return p, device, nil
}

func openONNX(opts LoadOptions, metadata Metadata, log logrus.FieldLogger) (Predictor, Device, error) {
	metadata, err := introspect(opts.Path, metadata)
	if err != nil {
		return nil, "", err
	}
	if err := metadata.validate(); err != nil {
		return nil, "", err
	}
	if err := checkWidths(sampleSize(metadata.InputShape), sampleSize(metadata.OutputShape), opts.Arch); err != nil {
		return nil, "", err
	}
	return newONNXPredictor(ONNXOptions{
		ModelPath: opts.Path,
		Metadata:  metadata,
		Device:    opts.Device,
	}, log)
}

func loadCheckpoint(opts LoadOptions) (Predictor, Device, error) {
	state, err := ReadSafetensors(opts.Path)
	if err != nil {
		return nil, "", err
	}
	p, err := bindLinear(StripDDPPrefix(state), opts.Arch)
	if err != nil {
		return nil, "", err
	}
	return p, DeviceCPU, nil
}

func checkWidths(in, out int, arch Arch) error {
	if arch.InputWidth > 0 && in != arch.InputWidth {
		return fmt.Errorf("model takes %d values per sample, architecture has %d", in, arch.InputWidth)
	}
	if arch.OutputWidth > 0 && out != arch.OutputWidth {
		return fmt.Errorf("model produces %d values per sample, architecture has %d", out, arch.OutputWidth)
	}
	return nil
}

// LoadInto loads the artifact and publishes it on h. Failures are logged and
// returned but leave h not ready; callers keep serving.
func LoadInto(h *Handle, opts LoadOptions, log logrus.FieldLogger) error {
	log.Infof("Loading model from: %s", opts.Path)

	p, device, err := Load(opts, log)
	if err != nil {
		if errors.Is(err, ErrArtifactMissing) {
			log.Warnf("%s not found. Please add your model file.", opts.Path)
		} else {
			log.Errorf("Error loading model: %v", err)
		}
		return err
	}
	if err := h.Publish(p, device); err != nil {
		p.Close()
		return err
	}

	log.WithFields(logrus.Fields{
		"device":  device,
		"inputs":  p.InputWidth(),
		"outputs": p.OutputWidth(),
	}).Info("Model loaded successfully")
	return nil
}

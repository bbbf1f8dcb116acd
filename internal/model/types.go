package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Output element types understood by the ONNX backend.
const (
	OutputFloat32 = "float32"
	OutputFloat64 = "float64"
	OutputInt64   = "int64"
)

// Metadata describes an ONNX artifact. It is read from a JSON sidecar next to
// the model; fields left empty there fall back to the service defaults.
// A leading dimension of -1 (or any value) in the shapes is replaced by the
// number of rows at inference time.
type Metadata struct {
	InputName   string   `json:"input_name,omitempty"`
	OutputName  string   `json:"output_name,omitempty"`
	InputShape  []int64  `json:"input_shape,omitempty"`
	OutputShape []int64  `json:"output_shape,omitempty"`
	OutputType  string   `json:"output_type,omitempty"`
	Classes     []string `json:"classes,omitempty"`
	ImageSize   int      `json:"image_size,omitempty"`
}

// withDefaults fills unset fields from d.
func (m Metadata) withDefaults(d Metadata) Metadata {
	if m.InputName == "" {
		m.InputName = d.InputName
	}
	if m.OutputName == "" {
		m.OutputName = d.OutputName
	}
	if len(m.InputShape) == 0 {
		m.InputShape = d.InputShape
	}
	if len(m.OutputShape) == 0 {
		m.OutputShape = d.OutputShape
	}
	if m.OutputType == "" {
		m.OutputType = d.OutputType
	}
	if m.OutputType == "" {
		m.OutputType = OutputFloat32
	}
	if len(m.Classes) == 0 {
		m.Classes = d.Classes
	}
	if m.ImageSize == 0 {
		m.ImageSize = d.ImageSize
	}
	return m
}

func (m Metadata) validate() error {
	if m.InputName == "" || m.OutputName == "" {
		return errors.New("metadata: input and output names are required")
	}
	if len(m.InputShape) < 2 {
		return fmt.Errorf("metadata: input shape %v needs a batch and at least one feature dimension", m.InputShape)
	}
	if len(m.OutputShape) < 1 {
		return errors.New("metadata: output shape is required")
	}
	for _, dim := range m.InputShape[1:] {
		if dim <= 0 {
			return fmt.Errorf("metadata: input shape %v has a non-positive feature dimension", m.InputShape)
		}
	}
	for _, dim := range m.OutputShape[1:] {
		if dim <= 0 {
			return fmt.Errorf("metadata: output shape %v has a non-positive dimension", m.OutputShape)
		}
	}
	switch m.OutputType {
	case OutputFloat32, OutputFloat64, OutputInt64:
	default:
		return fmt.Errorf("metadata: unsupported output type %q", m.OutputType)
	}
	return nil
}

// sampleSize is the product of every dimension but the first.
func sampleSize(shape []int64) int {
	n := 1
	for _, dim := range shape[1:] {
		n *= int(dim)
	}
	return n
}

// MetadataPath returns the sidecar path conventionally paired with an
// artifact: the same name with a .json extension.
func MetadataPath(artifact string) string {
	return strings.TrimSuffix(artifact, filepath.Ext(artifact)) + ".json"
}

// LoadMetadata reads the sidecar at path. A missing file yields the defaults.
func LoadMetadata(path string, defaults Metadata) (Metadata, error) {
	metaFile, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return defaults.withDefaults(Metadata{}), nil
	}
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to read metadata: %w", err)
	}

	var metadata Metadata
	if err := json.Unmarshal(metaFile, &metadata); err != nil {
		return Metadata{}, fmt.Errorf("failed to parse metadata: %w", err)
	}
	return metadata.withDefaults(defaults), nil
}

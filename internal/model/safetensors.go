package model

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
)

// ddpPrefix is prepended to every parameter name by DistributedDataParallel.
const ddpPrefix = "module."

// maxHeaderLen bounds the JSON header of a checkpoint.
const maxHeaderLen = 100 * 1024 * 1024

// Tensor is a dense float tensor read from a checkpoint.
type Tensor struct {
	Shape []int64
	Data  []float64
}

// StateDict maps parameter names to tensors.
type StateDict map[string]Tensor

type tensorInfo struct {
	Dtype       string   `json:"dtype"`
	Shape       []int64  `json:"shape"`
	DataOffsets [2]int64 `json:"data_offsets"`
}

// ReadSafetensors loads every tensor of a safetensors checkpoint.
//
// Safetensors format:
//
//	[8 bytes: header length (uint64, little-endian)]
//	[N bytes: JSON header]
//	[remaining: tensor data]
func ReadSafetensors(path string) (StateDict, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint: %w", err)
	}
	defer file.Close()

	var headerLen uint64
	if err := binary.Read(file, binary.LittleEndian, &headerLen); err != nil {
		return nil, fmt.Errorf("read header length: %w", err)
	}
	if headerLen > maxHeaderLen {
		return nil, fmt.Errorf("header length too large: %d bytes", headerLen)
	}

	headerBytes := make([]byte, headerLen)
	if _, err := io.ReadFull(file, headerBytes); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	var rawHeader map[string]json.RawMessage
	if err := json.Unmarshal(headerBytes, &rawHeader); err != nil {
		return nil, fmt.Errorf("parse JSON header: %w", err)
	}
	delete(rawHeader, "__metadata__")

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read tensor data: %w", err)
	}

	state := make(StateDict, len(rawHeader))
	for name, raw := range rawHeader {
		var info tensorInfo
		if err := json.Unmarshal(raw, &info); err != nil {
			return nil, fmt.Errorf("parse tensor %q: %w", name, err)
		}
		t, err := decodeTensor(info, data)
		if err != nil {
			return nil, fmt.Errorf("tensor %q: %w", name, err)
		}
		state[name] = t
	}
	return state, nil
}

func decodeTensor(info tensorInfo, data []byte) (Tensor, error) {
	start, end := info.DataOffsets[0], info.DataOffsets[1]
	if start < 0 || end < start || end > int64(len(data)) {
		return Tensor{}, fmt.Errorf("data offsets %v out of range (%d bytes)", info.DataOffsets, len(data))
	}
	raw := data[start:end]

	var width int64
	switch info.Dtype {
	case "F32":
		width = 4
	case "F64":
		width = 8
	default:
		return Tensor{}, fmt.Errorf("unsupported dtype %q", info.Dtype)
	}

	// Each dimension is bounded by the bytes available so count*width
	// cannot overflow.
	limit := int64(len(raw)) / width
	count := int64(1)
	for _, dim := range info.Shape {
		if dim < 0 {
			return Tensor{}, fmt.Errorf("negative dimension in shape %v", info.Shape)
		}
		if dim != 0 && count > limit/dim {
			return Tensor{}, fmt.Errorf("shape %v needs more than the %d bytes available", info.Shape, len(raw))
		}
		count *= dim
	}
	if int64(len(raw)) != count*width {
		return Tensor{}, fmt.Errorf("expected %d bytes for shape %v, got %d", count*width, info.Shape, len(raw))
	}

	values := make([]float64, count)
	for i := range values {
		off := int64(i) * width
		if width == 4 {
			values[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(raw[off:])))
		} else {
			values[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[off:]))
		}
	}
	return Tensor{Shape: info.Shape, Data: values}, nil
}

// StripDDPPrefix removes the distributed-training prefix from parameter
// names. When any name carries it, the first occurrence is removed from every
// name; otherwise the dict is returned as is.
func StripDDPPrefix(state StateDict) StateDict {
	prefixed := false
	for name := range state {
		if strings.HasPrefix(name, ddpPrefix) {
			prefixed = true
			break
		}
	}
	if !prefixed {
		return state
	}

	cleaned := make(StateDict, len(state))
	for name, t := range state {
		cleaned[strings.Replace(name, ddpPrefix, "", 1)] = t
	}
	return cleaned
}

package model

import (
	"fmt"
	"strings"

	"github.com/jaypipes/ghw"
	"github.com/sirupsen/logrus"
	ort "github.com/yalue/onnxruntime_go"
)

// hasNVIDIAGPU is a variable so tests can stub hardware discovery.
var hasNVIDIAGPU = func() (bool, error) {
	gpus, err := ghw.GPU()
	if err != nil {
		return false, err
	}
	for _, gpu := range gpus.GraphicsCards {
		if gpu.DeviceInfo == nil || gpu.DeviceInfo.Vendor == nil {
			continue
		}
		if strings.ToLower(gpu.DeviceInfo.Vendor.Name) == "nvidia" {
			return true, nil
		}
	}
	return false, nil
}

// resolveDevice turns a requested device into the one to try first.
func resolveDevice(requested Device, log logrus.FieldLogger) Device {
	if requested != DeviceAuto {
		return requested
	}
	ok, err := hasNVIDIAGPU()
	if err != nil {
		log.Debugf("GPU discovery failed, using CPU: %v", err)
		return DeviceCPU
	}
	if ok {
		return DeviceCUDA
	}
	return DeviceCPU
}

// sessionOptions builds ONNX session options for device. The returned
// cleanup must be called once the session has been created.
func sessionOptions(device Device) (*ort.SessionOptions, func(), error) {
	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create session options: %w", err)
	}
	if device != DeviceCUDA {
		return opts, func() { opts.Destroy() }, nil
	}

	cudaOpts, err := ort.NewCUDAProviderOptions()
	if err != nil {
		opts.Destroy()
		return nil, nil, fmt.Errorf("failed to create CUDA provider options: %w", err)
	}
	if err := cudaOpts.Update(map[string]string{"device_id": "0"}); err != nil {
		cudaOpts.Destroy()
		opts.Destroy()
		return nil, nil, fmt.Errorf("failed to configure CUDA provider: %w", err)
	}
	if err := opts.AppendExecutionProviderCUDA(cudaOpts); err != nil {
		cudaOpts.Destroy()
		opts.Destroy()
		return nil, nil, fmt.Errorf("failed to enable CUDA provider: %w", err)
	}
	return opts, func() {
		cudaOpts.Destroy()
		opts.Destroy()
	}, nil
}

package model

import (
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// The ONNX Runtime environment is process-wide. Sessions share it and the
// last one to close tears it down.
var runtimeEnv struct {
	mu   sync.Mutex
	refs int
}

func acquireRuntime(libPath string) error {
	runtimeEnv.mu.Lock()
	defer runtimeEnv.mu.Unlock()

	if runtimeEnv.refs == 0 {
		if libPath != "" {
			ort.SetSharedLibraryPath(libPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return fmt.Errorf("failed to initialize ONNX environment: %w", err)
		}
	}
	runtimeEnv.refs++
	return nil
}

func releaseRuntime() {
	runtimeEnv.mu.Lock()
	defer runtimeEnv.mu.Unlock()

	if runtimeEnv.refs == 0 {
		return
	}
	runtimeEnv.refs--
	if runtimeEnv.refs == 0 {
		ort.DestroyEnvironment()
	}
}

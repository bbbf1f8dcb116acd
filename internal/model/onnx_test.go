package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// requireRuntime skips unless ONNXRUNTIME_LIB points at the shared library.
func requireRuntime(t *testing.T) string {
	t.Helper()
	lib := os.Getenv("ONNXRUNTIME_LIB")
	if lib == "" {
		t.Skip("ONNXRUNTIME_LIB not set")
	}
	return lib
}

func TestLoadCorruptONNXReleasesRuntime(t *testing.T) {
	lib := requireRuntime(t)

	path := filepath.Join(t.TempDir(), "broken.onnx")
	require.NoError(t, os.WriteFile(path, []byte("not a protobuf graph"), 0o644))

	_, _, err := Load(LoadOptions{Path: path, Device: DeviceCPU, LibraryPath: lib}, discardLogger())
	require.Error(t, err)

	runtimeEnv.mu.Lock()
	defer runtimeEnv.mu.Unlock()
	require.Zero(t, runtimeEnv.refs)
}

func TestBatchShape(t *testing.T) {
	tests := []struct {
		shape []int64
		rows  int
		want  []int64
	}{
		{[]int64{1, 3, 224, 224}, 1, []int64{1, 3, 224, 224}},
		{[]int64{-1, 4}, 5, []int64{5, 4}},
		{[]int64{1, 7}, 2, []int64{2, 7}},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, []int64(batchShape(tt.shape, tt.rows)))
	}
}

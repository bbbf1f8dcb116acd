package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaults(t *testing.T) {
	vision := Default(Vision)
	require.Equal(t, "0.0.0.0:8000", vision.Server.Addr)
	require.Equal(t, "deit_best_model.onnx", vision.Model.Path)
	require.Equal(t, 224, vision.Vision.ImageSize)
	require.NoError(t, vision.Validate())

	tabular := Default(Tabular)
	require.Equal(t, "model.onnx", tabular.Model.Path)

	n, err := vision.MaxUploadBytes()
	require.NoError(t, err)
	require.Equal(t, int64(64<<20), n)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: 127.0.0.1:9000
  max_upload_size: 8MB
  shutdown_timeout: 3s
log:
  level: debug
  format: json
model:
  path: weights/head.safetensors
  device: cpu
vision:
  default_threshold: 0.3
`)
	cfg, err := Load(Vision, path)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	require.Equal(t, 3*time.Second, cfg.Server.ShutdownTimeout)
	require.Equal(t, "json", cfg.Log.Format)
	require.Equal(t, "weights/head.safetensors", cfg.Model.Path)
	require.Equal(t, 0.3, cfg.Vision.DefaultThreshold)
	// Unset keys keep their defaults.
	require.Equal(t, 2000.0, cfg.Vision.WindowMax)
	require.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)

	n, err := cfg.MaxUploadBytes()
	require.NoError(t, err)
	require.Equal(t, int64(8<<20), n)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("MODEL_PATH", "/models/model.onnx")
	t.Setenv("LISTEN_ADDR", ":9999")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load(Tabular, writeConfig(t, "model:\n  path: other.onnx\n"))
	require.NoError(t, err)
	require.Equal(t, "/models/model.onnx", cfg.Model.Path)
	require.Equal(t, ":9999", cfg.Server.Addr)
	require.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(Vision, filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"UploadSize", "server:\n  max_upload_size: lots\n"},
		{"Window", "vision:\n  window_min: 10\n  window_max: 10\n"},
		{"ImageSize", "vision:\n  image_size: 0\n"},
		{"Syntax", "server: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(Vision, writeConfig(t, tt.body))
			require.Error(t, err)
		})
	}
}

func TestLoadReadsPerServiceDefaultFile(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultPath(Vision)), []byte("model:\n  path: deit.onnx\n"), 0o644))

	vision, err := Load(Vision, "")
	require.NoError(t, err)
	require.Equal(t, "deit.onnx", vision.Model.Path)

	// The vision file is never picked up by the tabular service.
	tabular, err := Load(Tabular, "")
	require.NoError(t, err)
	require.Equal(t, "model.onnx", tabular.Model.Path)
	require.Equal(t, "tabular.yaml", DefaultPath(Tabular))
}

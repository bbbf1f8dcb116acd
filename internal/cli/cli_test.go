package cli

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"github.com/Brownie44l1/spine-api/internal/model"
	"github.com/Brownie44l1/spine-api/internal/server"
	"github.com/stretchr/testify/require"
)

func testService(build func(Env) (server.Routes, model.LoadOptions, []string, error)) Service {
	if build == nil {
		build = func(Env) (server.Routes, model.LoadOptions, []string, error) {
			return nil, model.LoadOptions{}, nil, errors.New("build not expected")
		}
	}
	return Service{Name: "tabular", Short: "test service", Version: "test", Build: build}
}

func TestRunHelp(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := Run(testService(nil), []string{"--help"}, &stdout, &stderr)
	require.Equal(t, 0, code)
	require.Contains(t, stdout.String(), "--model")
	require.Contains(t, stdout.String(), "--config")
}

func TestRunVersion(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := Run(testService(nil), []string{"--version"}, &stdout, &stderr)
	require.Equal(t, 0, code)
	require.Contains(t, stdout.String(), "test")
}

func TestRunErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unexpected argument", []string{"serve"}, "unknown command"},
		{"missing config", []string{"--config", filepath.Join(t.TempDir(), "nope.yaml")}, "read config"},
		{"bad device", []string{"--device", "tpu"}, "unknown device"},
		{"build failure", []string{"--device", "cpu"}, "build not expected"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DEVICE", "")
			var stdout, stderr bytes.Buffer
			code := Run(testService(nil), tt.args, &stdout, &stderr)
			require.Equal(t, 1, code)
			require.Contains(t, stderr.String(), tt.want)
		})
	}
}

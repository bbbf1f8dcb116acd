// vision-server classifies cervical vertebrae in uploaded DICOM slices.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/Brownie44l1/spine-api/internal/cli"
	"github.com/Brownie44l1/spine-api/internal/config"
	"github.com/Brownie44l1/spine-api/internal/handlers"
	"github.com/Brownie44l1/spine-api/internal/model"
	"github.com/Brownie44l1/spine-api/internal/preprocess"
	"github.com/Brownie44l1/spine-api/internal/server"
	"github.com/Brownie44l1/spine-api/internal/vision"
)

// version is injected via ldflags.
var version = "dev"

func main() {
	os.Exit(cli.Run(service(), os.Args[1:], os.Stdout, os.Stderr))
}

func service() cli.Service {
	return cli.Service{
		Name:    config.Vision,
		Short:   "Serve the cervical vertebrae classifier over HTTP",
		Version: version,
		Build:   build,
	}
}

func build(env cli.Env) (server.Routes, model.LoadOptions, []string, error) {
	cfg := env.Config
	maxUpload, err := cfg.MaxUploadBytes()
	if err != nil {
		return nil, model.LoadOptions{}, nil, err
	}
	if err := vision.ValidateThreshold(cfg.Vision.DefaultThreshold); err != nil {
		return nil, model.LoadOptions{}, nil, fmt.Errorf("vision.default_threshold: %w", err)
	}

	svc := vision.NewService(env.Handle, preprocess.Options{
		Size:      cfg.Vision.ImageSize,
		WindowMin: cfg.Vision.WindowMin,
		WindowMax: cfg.Vision.WindowMax,
	}, env.Log.WithField("component", "vision"))

	routes := handlers.NewVisionHandler(svc, handlers.VisionOptions{
		TempDir:          cfg.Server.TempDir,
		MaxUploadSize:    maxUpload,
		DefaultThreshold: cfg.Vision.DefaultThreshold,
	}, env.Reporter, env.Log.WithField("component", "http"))

	load := model.LoadOptions{
		Defaults: svc.DefaultMetadata(),
		Arch:     svc.Arch(),
	}
	endpoints := []string{
		"GET  /              - Service status",
		"GET  /health        - Health check",
		"POST /predict       - Predict from DICOM upload (form field 'file')",
		"POST /predict-path  - Predict from a DICOM path on the server",
		"Classes: " + strings.Join(vision.Labels, ", "),
	}
	return routes, load, endpoints, nil
}

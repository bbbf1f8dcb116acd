// tabular-server serves row-wise predictions from a tabular model.
package main

import (
	"os"

	"github.com/Brownie44l1/spine-api/internal/cli"
	"github.com/Brownie44l1/spine-api/internal/config"
	"github.com/Brownie44l1/spine-api/internal/handlers"
	"github.com/Brownie44l1/spine-api/internal/model"
	"github.com/Brownie44l1/spine-api/internal/server"
	"github.com/Brownie44l1/spine-api/internal/tabular"
)

// version is injected via ldflags.
var version = "dev"

func main() {
	os.Exit(cli.Run(service(), os.Args[1:], os.Stdout, os.Stderr))
}

func service() cli.Service {
	return cli.Service{
		Name:    config.Tabular,
		Short:   "Serve a tabular model over HTTP",
		Version: version,
		Build:   build,
	}
}

func build(env cli.Env) (server.Routes, model.LoadOptions, []string, error) {
	maxBody, err := env.Config.MaxUploadBytes()
	if err != nil {
		return nil, model.LoadOptions{}, nil, err
	}

	svc := tabular.NewService(env.Handle, env.Log.WithField("component", "tabular"))
	routes := handlers.NewTabularHandler(svc, maxBody, env.Reporter, env.Log.WithField("component", "http"))

	endpoints := []string{
		"GET  /               - Service status",
		"GET  /health         - Health check",
		`POST /predict        - Predict one row: {"features": [...]}`,
		`POST /predict-batch  - Predict many rows: {"instances": [[...], ...]}`,
	}
	return routes, model.LoadOptions{Arch: tabular.Arch}, endpoints, nil
}

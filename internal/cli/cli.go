// Package cli builds the command line shared by the service binaries.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/Brownie44l1/spine-api/internal/config"
	"github.com/Brownie44l1/spine-api/internal/logging"
	"github.com/Brownie44l1/spine-api/internal/model"
	"github.com/Brownie44l1/spine-api/internal/reporting"
	"github.com/Brownie44l1/spine-api/internal/server"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Env is what a service needs to assemble its routes.
type Env struct {
	Config   *config.Config
	Handle   *model.Handle
	Reporter *reporting.Reporter
	Log      *logrus.Logger
}

// Service describes one binary.
type Service struct {
	// Name is both the command name and the config.Default key.
	Name    string
	Short   string
	Version string
	// Build returns the routes, the artifact to load and a few lines
	// describing the endpoints, logged at startup.
	Build func(env Env) (server.Routes, model.LoadOptions, []string, error)
}

// Run executes the command with args and returns the process exit code.
func Run(svc Service, args []string, stdout, stderr io.Writer) int {
	root := NewRootCmd(svc, stdout, stderr)
	if args == nil {
		args = []string{}
	}
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.Execute(); err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", svc.Name, err)
		return 1
	}
	return 0
}

// NewRootCmd creates the root command for svc.
func NewRootCmd(svc Service, stdout, stderr io.Writer) *cobra.Command {
	var (
		configPath string
		addr       string
		modelPath  string
		device     string
	)

	cmd := &cobra.Command{
		Use:           svc.Name,
		Short:         svc.Short,
		Version:       svc.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(svc.Name, configPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if modelPath != "" {
				cfg.Model.Path = modelPath
			}
			if device != "" {
				cfg.Model.Device = device
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, svc, cfg, stderr)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "YAML config file (default "+config.DefaultPath(svc.Name)+" when present)")
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address, overrides server.addr")
	cmd.Flags().StringVar(&modelPath, "model", "", "Model artifact (.onnx or .safetensors), overrides model.path")
	cmd.Flags().StringVar(&device, "device", "", "Inference device: auto, cpu or cuda")
	return cmd
}

func serve(ctx context.Context, svc Service, cfg *config.Config, stderr io.Writer) error {
	log, err := logging.New(cfg.Log, stderr)
	if err != nil {
		return err
	}

	dev, err := model.ParseDevice(cfg.Model.Device)
	if err != nil {
		return fmt.Errorf("model.device: %w", err)
	}

	reporter, err := reporting.New(cfg.Sentry, svc.Name, svc.Version)
	if err != nil {
		return err
	}

	handle := model.NewHandle()
	routes, load, endpoints, err := svc.Build(Env{Config: cfg, Handle: handle, Reporter: reporter, Log: log})
	if err != nil {
		return err
	}
	load.Path = cfg.Model.Path
	load.MetadataPath = cfg.Model.MetadataPath
	load.Device = dev
	load.LibraryPath = cfg.Model.LibraryPath

	log.Infof("Starting %s service %s", svc.Name, svc.Version)
	log.Info("Endpoints:")
	for _, e := range endpoints {
		log.Infof("  %s", e)
	}
	if reporter.Enabled() {
		log.Info("Error reporting enabled")
	}

	return server.Run(ctx, server.Options{
		Addr:            cfg.Server.Addr,
		CORSOrigins:     cfg.Server.CORSOrigins,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		Handle:          handle,
		Load:            load,
		Reporter:        reporter,
	}, routes, log)
}

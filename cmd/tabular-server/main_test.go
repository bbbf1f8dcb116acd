package main

import (
	"io"
	"testing"

	"github.com/Brownie44l1/spine-api/internal/cli"
	"github.com/Brownie44l1/spine-api/internal/config"
	"github.com/Brownie44l1/spine-api/internal/model"
	"github.com/Brownie44l1/spine-api/internal/tabular"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestBuild(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)

	cfg := config.Default(config.Tabular)
	routes, load, endpoints, err := build(cli.Env{Config: cfg, Handle: model.NewHandle(), Log: log})
	require.NoError(t, err)
	require.NotNil(t, routes)
	require.Len(t, endpoints, 4)
	require.Equal(t, tabular.Arch, load.Arch)
}

func TestBuildRejectsBadUploadSize(t *testing.T) {
	cfg := config.Default(config.Tabular)
	cfg.Server.MaxUploadSize = "lots"
	_, _, _, err := build(cli.Env{Config: cfg, Handle: model.NewHandle(), Log: logrus.New()})
	require.Error(t, err)
}

package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/Brownie44l1/spine-api/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(config.LogConfig{Level: "debug", Format: "json"}, &buf)
	require.NoError(t, err)
	require.Equal(t, logrus.DebugLevel, log.GetLevel())

	log.WithField("component", "vision").Info("Model loaded")
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "vision", entry["component"])
	require.Equal(t, "Model loaded", entry["msg"])
}

func TestNewRejectsBadConfig(t *testing.T) {
	_, err := New(config.LogConfig{Level: "loud"}, nil)
	require.Error(t, err)
	_, err = New(config.LogConfig{Level: "info", Format: "xml"}, nil)
	require.Error(t, err)
}

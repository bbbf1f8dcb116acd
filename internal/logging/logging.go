package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/Brownie44l1/spine-api/internal/config"
	"github.com/sirupsen/logrus"
)

// New builds the root logger from cfg, writing to out (stderr if nil).
func New(cfg config.LogConfig, out io.Writer) (*logrus.Logger, error) {
	log := logrus.New()
	if out == nil {
		out = os.Stderr
	}
	log.SetOutput(out)

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("log.level: %w", err)
	}
	log.SetLevel(level)

	switch cfg.Format {
	case "", "text":
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("log.format: unknown format %q", cfg.Format)
	}
	return log, nil
}

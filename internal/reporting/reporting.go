// Package reporting forwards unexpected failures to Sentry when configured.
package reporting

import (
	"fmt"
	"time"

	"github.com/Brownie44l1/spine-api/internal/config"
	"github.com/getsentry/sentry-go"
)

const flushTimeout = 2 * time.Second

// Reporter is a no-op unless built with a DSN. A nil *Reporter is valid.
type Reporter struct {
	hub *sentry.Hub
}

// New initializes Sentry for service. An empty DSN returns a disabled
// reporter.
func New(cfg config.SentryConfig, service, release string) (*Reporter, error) {
	if cfg.DSN == "" {
		return &Reporter{}, nil
	}
	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:         cfg.DSN,
		Environment: cfg.Environment,
		Release:     release,
		ServerName:  service,
	})
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	return &Reporter{hub: sentry.NewHub(client, sentry.NewScope())}, nil
}

// Enabled reports whether events are sent anywhere.
func (r *Reporter) Enabled() bool {
	return r != nil && r.hub != nil
}

// Capture sends err with tags attached.
func (r *Reporter) Capture(err error, tags map[string]string) {
	if !r.Enabled() || err == nil {
		return
	}
	r.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		r.hub.CaptureException(err)
	})
}

// Flush waits for buffered events to be delivered.
func (r *Reporter) Flush() {
	if r.Enabled() {
		r.hub.Flush(flushTimeout)
	}
}

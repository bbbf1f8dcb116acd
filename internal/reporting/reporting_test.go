package reporting

import (
	"errors"
	"testing"

	"github.com/Brownie44l1/spine-api/internal/config"
	"github.com/stretchr/testify/require"
)

func TestDisabledReporter(t *testing.T) {
	r, err := New(config.SentryConfig{}, "vision", "dev")
	require.NoError(t, err)
	require.False(t, r.Enabled())

	r.Capture(errors.New("boom"), map[string]string{"kind": "inference failure"})
	r.Flush()

	var none *Reporter
	require.False(t, none.Enabled())
	none.Capture(errors.New("boom"), nil)
	none.Flush()
}

func TestInvalidDSN(t *testing.T) {
	_, err := New(config.SentryConfig{DSN: "not a dsn"}, "vision", "dev")
	require.Error(t, err)
}

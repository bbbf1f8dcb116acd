package model

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type stubPredictor struct{ closed bool }

func (s *stubPredictor) Predict([]float32, int) ([]float64, error) { return nil, nil }
func (s *stubPredictor) InputWidth() int                           { return 0 }
func (s *stubPredictor) OutputWidth() int                          { return 1 }
func (s *stubPredictor) Close() error                              { s.closed = true; return nil }

func TestHandleStartsNotReady(t *testing.T) {
	h := NewHandle()
	require.False(t, h.Ready())

	_, _, err := h.Get()
	require.ErrorIs(t, err, ErrNotReady)
	require.NoError(t, h.Close())
}

func TestHandlePublishOnce(t *testing.T) {
	h := NewHandle()
	first := &stubPredictor{}
	require.NoError(t, h.Publish(first, DeviceCPU))
	require.Error(t, h.Publish(&stubPredictor{}, DeviceCUDA))
	require.Error(t, NewHandle().Publish(nil, DeviceCPU))

	p, device, err := h.Get()
	require.NoError(t, err)
	require.Same(t, first, p)
	require.Equal(t, DeviceCPU, device)

	require.NoError(t, h.Close())
	require.True(t, first.closed)
	require.True(t, h.Ready())
}

func TestHandleConcurrentPublish(t *testing.T) {
	h := NewHandle()
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if h.Publish(&stubPredictor{}, DeviceCPU) == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, wins)
}

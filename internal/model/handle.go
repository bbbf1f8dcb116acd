package model

import (
	"errors"
	"sync/atomic"
)

var errAlreadyPublished = errors.New("predictor already published")

type loaded struct {
	predictor Predictor
	device    Device
}

// Handle owns the process-wide predictor. It starts not ready and moves to
// ready exactly once, when Publish succeeds; there is no way back.
type Handle struct {
	cur atomic.Pointer[loaded]
}

func NewHandle() *Handle {
	return &Handle{}
}

// Publish makes p the served predictor. Only the first call succeeds.
func (h *Handle) Publish(p Predictor, device Device) error {
	if p == nil {
		return errors.New("nil predictor")
	}
	if !h.cur.CompareAndSwap(nil, &loaded{predictor: p, device: device}) {
		return errAlreadyPublished
	}
	return nil
}

// Ready reports whether a predictor has been published.
func (h *Handle) Ready() bool {
	return h.cur.Load() != nil
}

// Get returns the published predictor and its device, or ErrNotReady.
func (h *Handle) Get() (Predictor, Device, error) {
	l := h.cur.Load()
	if l == nil {
		return nil, "", ErrNotReady
	}
	return l.predictor, l.device, nil
}

// Close releases the published predictor, if any. The handle stays ready;
// Close is meant for process shutdown only.
func (h *Handle) Close() error {
	if l := h.cur.Load(); l != nil {
		return l.predictor.Close()
	}
	return nil
}

package model

import (
	"fmt"
	"sort"
	"strings"
)

// Parameter names of the linear architecture, matching the classifier head
// naming used by the transformer checkpoints.
const (
	linearWeight = "head.weight"
	linearBias   = "head.bias"
)

// linearPredictor is a dense layer, y = W·x + b, evaluated in pure Go.
type linearPredictor struct {
	weight   []float64 // [out, in], row-major
	bias     []float64 // [out]
	inWidth  int
	outWidth int
}

// bindLinear binds a state dict to a freshly constructed linear architecture.
// Binding is strict: every parameter must be present with the expected shape
// and no extra parameters are allowed.
func bindLinear(state StateDict, arch Arch) (*linearPredictor, error) {
	var unexpected []string
	for name := range state {
		if name != linearWeight && name != linearBias {
			unexpected = append(unexpected, name)
		}
	}
	if len(unexpected) > 0 {
		sort.Strings(unexpected)
		return nil, fmt.Errorf("unexpected parameters in checkpoint: %s", strings.Join(unexpected, ", "))
	}

	w, ok := state[linearWeight]
	if !ok {
		return nil, fmt.Errorf("missing parameter %q", linearWeight)
	}
	b, ok := state[linearBias]
	if !ok {
		return nil, fmt.Errorf("missing parameter %q", linearBias)
	}
	if len(w.Shape) != 2 {
		return nil, fmt.Errorf("%s: expected 2 dimensions, got shape %v", linearWeight, w.Shape)
	}

	out, in := int(w.Shape[0]), int(w.Shape[1])
	if arch.OutputWidth > 0 && out != arch.OutputWidth {
		return nil, fmt.Errorf("size mismatch for %s: checkpoint has %d outputs, architecture has %d", linearWeight, out, arch.OutputWidth)
	}
	if arch.InputWidth > 0 && in != arch.InputWidth {
		return nil, fmt.Errorf("size mismatch for %s: checkpoint has %d inputs, architecture has %d", linearWeight, in, arch.InputWidth)
	}
	if len(b.Shape) != 1 || int(b.Shape[0]) != out {
		return nil, fmt.Errorf("size mismatch for %s: expected shape [%d], got %v", linearBias, out, b.Shape)
	}
	if len(w.Data) != out*in || len(b.Data) != out {
		return nil, fmt.Errorf("checkpoint data does not match shapes %v and %v", w.Shape, b.Shape)
	}

	return &linearPredictor{
		weight:   w.Data,
		bias:     b.Data,
		inWidth:  in,
		outWidth: out,
	}, nil
}

func (p *linearPredictor) InputWidth() int  { return p.inWidth }
func (p *linearPredictor) OutputWidth() int { return p.outWidth }

func (p *linearPredictor) Predict(input []float32, rows int) ([]float64, error) {
	if rows <= 0 || len(input) != rows*p.inWidth {
		return nil, fmt.Errorf("expected %d values for %d rows, got %d", rows*p.inWidth, rows, len(input))
	}

	out := make([]float64, rows*p.outWidth)
	for r := 0; r < rows; r++ {
		x := input[r*p.inWidth : (r+1)*p.inWidth]
		for o := 0; o < p.outWidth; o++ {
			w := p.weight[o*p.inWidth : (o+1)*p.inWidth]
			sum := p.bias[o]
			for i, v := range x {
				sum += w[i] * float64(v)
			}
			out[r*p.outWidth+o] = sum
		}
	}
	return out, nil
}

func (p *linearPredictor) Close() error { return nil }

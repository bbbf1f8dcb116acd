// Package preprocess turns DICOM images into model input tensors.
package preprocess

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/nfnt/resize"
)

// epsilon keeps normalization finite for constant images.
const epsilon = 1e-6

// Options controls the intensity window and the output resolution.
type Options struct {
	// Size is the side of the square output image.
	Size int
	// WindowMin and WindowMax bound calibrated intensities before
	// normalization.
	WindowMin float64
	WindowMax float64
}

// DefaultOptions matches the resolution and window the vertebrae model was
// trained with.
var DefaultOptions = Options{Size: 224, WindowMin: -1000, WindowMax: 2000}

// Tensor is a dense NCHW float tensor.
type Tensor struct {
	Shape [4]int
	Data  []float32
}

// File reads the DICOM file at path and converts it into a [1,3,Size,Size]
// tensor.
func (o Options) File(path string) (*Tensor, error) {
	frame, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	return o.Tensor(frame)
}

// Tensor applies rescale, windowing, normalization and resizing to frame.
func (o Options) Tensor(frame *Frame) (*Tensor, error) {
	if o.Size <= 0 {
		return nil, fmt.Errorf("invalid output size %d", o.Size)
	}
	if frame.Rows <= 0 || frame.Cols <= 0 || len(frame.Pixels) != frame.Rows*frame.Cols {
		return nil, fmt.Errorf("invalid %dx%d frame with %d pixels", frame.Rows, frame.Cols, len(frame.Pixels))
	}

	gray := o.normalize(frame)
	resized := resize.Resize(uint(o.Size), uint(o.Size), gray, resize.Bilinear)

	plane := o.Size * o.Size
	data := make([]float32, 3*plane)
	for y := 0; y < o.Size; y++ {
		for x := 0; x < o.Size; x++ {
			v := float32(grayAt(resized, x, y)) / 255.0
			idx := y*o.Size + x
			data[idx] = v
			data[plane+idx] = v
			data[2*plane+idx] = v
		}
	}

	return &Tensor{Shape: [4]int{1, 3, o.Size, o.Size}, Data: data}, nil
}

// normalize calibrates, clips and maps the frame onto 0..255.
func (o Options) normalize(frame *Frame) *image.Gray {
	vals := make([]float64, len(frame.Pixels))
	lo, hi := math.Inf(1), math.Inf(-1)
	for i, v := range frame.Pixels {
		if frame.HasRescale {
			v = v*frame.Slope + frame.Intercept
		}
		v = math.Min(math.Max(v, o.WindowMin), o.WindowMax)
		vals[i] = v
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	gray := image.NewGray(image.Rect(0, 0, frame.Cols, frame.Rows))
	scale := 255.0 / (hi - lo + epsilon)
	for i, v := range vals {
		gray.Pix[i] = uint8(math.Min((v-lo)*scale, 255))
	}
	return gray
}

func grayAt(img image.Image, x, y int) uint8 {
	if g, ok := img.(*image.Gray); ok {
		return g.GrayAt(x, y).Y
	}
	return color.GrayModel.Convert(img.At(x, y)).(color.Gray).Y
}

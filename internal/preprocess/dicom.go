package preprocess

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"strconv"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// ErrNoPixelData is returned for DICOM files without a usable image.
var ErrNoPixelData = errors.New("dicom: no pixel data")

// Frame is a single decoded gray plane with the file's rescale metadata.
type Frame struct {
	Rows, Cols int
	// Pixels holds stored values, row-major.
	Pixels []float64

	// HasRescale is set when both RescaleSlope and RescaleIntercept are
	// present in the file.
	HasRescale bool
	Slope      float64
	Intercept  float64
}

// ReadFile decodes the first frame of the DICOM file at path.
func ReadFile(path string) (*Frame, error) {
	ds, err := dicom.ParseFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("parse dicom: %w", err)
	}
	return fromDataset(ds)
}

func fromDataset(ds dicom.Dataset) (*Frame, error) {
	el, err := ds.FindElementByTag(tag.PixelData)
	if err != nil {
		return nil, ErrNoPixelData
	}
	info, ok := el.Value.GetValue().(dicom.PixelDataInfo)
	if !ok || len(info.Frames) == 0 {
		return nil, ErrNoPixelData
	}

	f := info.Frames[0]
	var frame *Frame
	if f.Encapsulated {
		img, err := f.GetImage()
		if err != nil {
			return nil, fmt.Errorf("decode encapsulated frame: %w", err)
		}
		frame = imageFrame(img)
	} else {
		native := f.NativeData
		if native.Rows*native.Cols != len(native.Data) {
			return nil, fmt.Errorf("dicom: %dx%d frame holds %d pixels", native.Rows, native.Cols, len(native.Data))
		}
		signed := false
		if rep, ok := intTag(ds, tag.PixelRepresentation); ok && rep == 1 {
			signed = true
		}
		bits := native.BitsPerSample
		frame = &Frame{Rows: native.Rows, Cols: native.Cols, Pixels: make([]float64, len(native.Data))}
		for i, samples := range native.Data {
			if len(samples) == 0 {
				return nil, ErrNoPixelData
			}
			v := samples[0]
			if signed && bits > 0 && bits < 64 && v >= 1<<(bits-1) {
				v -= 1 << bits
			}
			frame.Pixels[i] = float64(v)
		}
	}
	if frame.Rows == 0 || frame.Cols == 0 {
		return nil, ErrNoPixelData
	}

	slope, okSlope := floatTag(ds, tag.RescaleSlope)
	intercept, okIntercept := floatTag(ds, tag.RescaleIntercept)
	if okSlope && okIntercept {
		frame.HasRescale = true
		frame.Slope = slope
		frame.Intercept = intercept
	}
	return frame, nil
}

// imageFrame reads stored sample values from a decoded frame. 8 and 16-bit
// gray images keep their values; anything else goes through Gray16.
func imageFrame(img image.Image) *Frame {
	b := img.Bounds()
	frame := &Frame{Rows: b.Dy(), Cols: b.Dx(), Pixels: make([]float64, b.Dx()*b.Dy())}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			var v uint16
			switch g := img.(type) {
			case *image.Gray:
				v = uint16(g.GrayAt(x, y).Y)
			case *image.Gray16:
				v = g.Gray16At(x, y).Y
			default:
				v = color.Gray16Model.Convert(img.At(x, y)).(color.Gray16).Y
			}
			frame.Pixels[(y-b.Min.Y)*frame.Cols+(x-b.Min.X)] = float64(v)
		}
	}
	return frame
}

func intTag(ds dicom.Dataset, t tag.Tag) (int, bool) {
	el, err := ds.FindElementByTag(t)
	if err != nil {
		return 0, false
	}
	vals, ok := el.Value.GetValue().([]int)
	if !ok || len(vals) == 0 {
		return 0, false
	}
	return vals[0], true
}

// floatTag reads a decimal string (DS) element.
func floatTag(ds dicom.Dataset, t tag.Tag) (float64, bool) {
	el, err := ds.FindElementByTag(t)
	if err != nil {
		return 0, false
	}
	vals, ok := el.Value.GetValue().([]string)
	if !ok || len(vals) == 0 {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(vals[0]), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

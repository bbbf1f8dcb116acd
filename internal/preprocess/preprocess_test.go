package preprocess

import (
	"bytes"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"github.com/Brownie44l1/spine-api/internal/preprocess/dicomtest"
	"github.com/stretchr/testify/require"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/frame"
	"github.com/suyashkumar/dicom/pkg/tag"
)

func rampFrame(rows, cols int) *Frame {
	f := &Frame{Rows: rows, Cols: cols, Pixels: make([]float64, rows*cols)}
	for i := range f.Pixels {
		f.Pixels[i] = float64(i%97) * 40
	}
	return f
}

func TestTensorShapeIsFixed(t *testing.T) {
	for _, dims := range [][2]int{{1, 1}, {16, 16}, {512, 512}, {300, 97}, {7, 640}} {
		tensor, err := DefaultOptions.Tensor(rampFrame(dims[0], dims[1]))
		require.NoError(t, err)
		require.Equal(t, [4]int{1, 3, 224, 224}, tensor.Shape, "input %v", dims)
		require.Len(t, tensor.Data, 3*224*224)
	}
}

func TestTensorRangeAndChannels(t *testing.T) {
	opts := Options{Size: 32, WindowMin: -1000, WindowMax: 2000}
	tensor, err := opts.Tensor(rampFrame(64, 48))
	require.NoError(t, err)

	plane := 32 * 32
	for i := 0; i < plane; i++ {
		v := tensor.Data[i]
		require.GreaterOrEqual(t, v, float32(0))
		require.LessOrEqual(t, v, float32(1))
		require.Equal(t, v, tensor.Data[plane+i])
		require.Equal(t, v, tensor.Data[2*plane+i])
	}
}

func TestConstantImageIsUniform(t *testing.T) {
	f := &Frame{Rows: 20, Cols: 30, Pixels: make([]float64, 600)}
	for i := range f.Pixels {
		f.Pixels[i] = 512
	}

	tensor, err := DefaultOptions.Tensor(f)
	require.NoError(t, err)
	for _, v := range tensor.Data {
		require.Equal(t, float32(0), v)
	}
}

func TestNormalizeAppliesRescaleAndWindow(t *testing.T) {
	f := &Frame{
		Rows:       1,
		Cols:       4,
		Pixels:     []float64{0, 1024, 2048, 4000},
		HasRescale: true,
		Slope:      1,
		Intercept:  -1024,
	}
	gray := DefaultOptions.normalize(f)

	// Calibrated values clip to [-1000, 0, 1024, 2000].
	require.Equal(t, uint8(0), gray.Pix[0])
	require.Equal(t, uint8(84), gray.Pix[1])
	require.Equal(t, uint8(172), gray.Pix[2])
	require.Equal(t, uint8(254), gray.Pix[3])
}

func TestNormalizeWithoutRescale(t *testing.T) {
	f := &Frame{Rows: 1, Cols: 2, Pixels: []float64{-5000, 5000}, Slope: 10, Intercept: 10}
	gray := DefaultOptions.normalize(f)
	require.Equal(t, []uint8{0, 254}, gray.Pix)
}

func TestTensorRejectsInvalidFrame(t *testing.T) {
	_, err := DefaultOptions.Tensor(&Frame{Rows: 2, Cols: 2, Pixels: []float64{1}})
	require.Error(t, err)
	_, err = Options{Size: 0}.Tensor(rampFrame(2, 2))
	require.Error(t, err)
}

func TestReadFile(t *testing.T) {
	path := dicomtest.Write(t, t.TempDir(), 2, 2, []uint16{0, 1024, 2048, 4000}, "1", "-1024")

	frame, err := ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, 2, frame.Rows)
	require.Equal(t, 2, frame.Cols)
	require.Equal(t, []float64{0, 1024, 2048, 4000}, frame.Pixels)
	require.True(t, frame.HasRescale)
	require.Equal(t, 1.0, frame.Slope)
	require.Equal(t, -1024.0, frame.Intercept)

	tensor, err := DefaultOptions.File(path)
	require.NoError(t, err)
	require.Equal(t, [4]int{1, 3, 224, 224}, tensor.Shape)
}

func TestReadFileWithoutRescale(t *testing.T) {
	path := dicomtest.Write(t, t.TempDir(), 1, 2, []uint16{7, 9}, "", "")

	frame, err := ReadFile(path)
	require.NoError(t, err)
	require.False(t, frame.HasRescale)
}

func TestReadFileRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.dcm")
	require.NoError(t, os.WriteFile(path, []byte("definitely not dicom"), 0o644))

	_, err := ReadFile(path)
	require.Error(t, err)
}

func TestReadFileSignedPixels(t *testing.T) {
	path := dicomtest.WriteImage(t, t.TempDir(), dicomtest.Image{
		Rows:   1,
		Cols:   3,
		Pixels: []uint16{0xFC18, 0x0000, 0x07D0},
		Signed: true,
	})

	frame, err := ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, []float64{-1000, 0, 2000}, frame.Pixels)
}

func encapsulatedDataset(t *testing.T, img image.Image, slope, intercept string) dicom.Dataset {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 100}))

	pixels, err := dicom.NewElement(tag.PixelData, dicom.PixelDataInfo{
		IsEncapsulated: true,
		Frames: []*frame.Frame{{
			Encapsulated:     true,
			EncapsulatedData: frame.EncapsulatedFrame{Data: buf.Bytes()},
		}},
	})
	require.NoError(t, err)
	slopeEl, err := dicom.NewElement(tag.RescaleSlope, []string{slope})
	require.NoError(t, err)
	interceptEl, err := dicom.NewElement(tag.RescaleIntercept, []string{intercept})
	require.NoError(t, err)
	return dicom.Dataset{Elements: []*dicom.Element{pixels, slopeEl, interceptEl}}
}

func TestEncapsulatedFrameKeepsStoredValues(t *testing.T) {
	gray := image.NewGray(image.Rect(0, 0, 8, 8))
	for i := range gray.Pix {
		gray.Pix[i] = 100
	}

	f, err := fromDataset(encapsulatedDataset(t, gray, "1", "-1024"))
	require.NoError(t, err)
	require.Equal(t, 8, f.Rows)
	require.Equal(t, 8, f.Cols)
	require.True(t, f.HasRescale)
	for _, v := range f.Pixels {
		require.InDelta(t, 100, v, 1)
	}

	// 100 - 1024 = -924 sits inside the window, 76/3000 of the way up.
	out := DefaultOptions.normalize(f)
	for _, v := range out.Pix {
		require.Equal(t, uint8(6), v)
	}
}

func TestImageFrameGray16(t *testing.T) {
	img := image.NewGray16(image.Rect(0, 0, 2, 1))
	img.Pix = []uint8{0x01, 0x00, 0x0B, 0xB8} // big endian 256, 3000

	f := imageFrame(img)
	require.Equal(t, []float64{256, 3000}, f.Pixels)
}

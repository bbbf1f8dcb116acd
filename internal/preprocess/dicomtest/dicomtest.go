// Package dicomtest builds small DICOM files for tests.
package dicomtest

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// dicomElement encodes one explicit VR little endian element.
func dicomElement(group, element uint16, vr string, value []byte) []byte {
	if len(value)%2 == 1 {
		pad := byte(' ')
		if vr == "UI" || vr == "OB" {
			pad = 0
		}
		value = append(value, pad)
	}
	b := binary.LittleEndian.AppendUint16(nil, group)
	b = binary.LittleEndian.AppendUint16(b, element)
	b = append(b, vr...)
	switch vr {
	case "OB", "OW":
		b = append(b, 0, 0)
		b = binary.LittleEndian.AppendUint32(b, uint32(len(value)))
	default:
		b = binary.LittleEndian.AppendUint16(b, uint16(len(value)))
	}
	return append(b, value...)
}

func us(v uint16) []byte { return binary.LittleEndian.AppendUint16(nil, v) }

// Image describes the pixel module of a test file. Empty Slope or Intercept
// leave the tag out; Signed sets PixelRepresentation to 1.
type Image struct {
	Rows, Cols int
	Pixels     []uint16
	Signed     bool
	Slope      string
	Intercept  string
}

// Write creates a minimal 16-bit unsigned monochrome DICOM file in dir and
// returns its path.
func Write(t testing.TB, dir string, rows, cols int, pixels []uint16, slope, intercept string) string {
	t.Helper()
	return WriteImage(t, dir, Image{Rows: rows, Cols: cols, Pixels: pixels, Slope: slope, Intercept: intercept})
}

// WriteImage creates a minimal 16-bit monochrome DICOM file in dir and
// returns its path.
func WriteImage(t testing.TB, dir string, img Image) string {
	t.Helper()

	var meta []byte
	meta = append(meta, dicomElement(0x0002, 0x0001, "OB", []byte{0, 1})...)
	meta = append(meta, dicomElement(0x0002, 0x0002, "UI", []byte("1.2.840.10008.5.1.4.1.1.2"))...)
	meta = append(meta, dicomElement(0x0002, 0x0003, "UI", []byte("1.2.3.4"))...)
	meta = append(meta, dicomElement(0x0002, 0x0010, "UI", []byte("1.2.840.10008.1.2.1"))...)

	representation := uint16(0)
	if img.Signed {
		representation = 1
	}

	var ds []byte
	ds = append(ds, dicomElement(0x0028, 0x0002, "US", us(1))...)
	ds = append(ds, dicomElement(0x0028, 0x0004, "CS", []byte("MONOCHROME2"))...)
	ds = append(ds, dicomElement(0x0028, 0x0010, "US", us(uint16(img.Rows)))...)
	ds = append(ds, dicomElement(0x0028, 0x0011, "US", us(uint16(img.Cols)))...)
	ds = append(ds, dicomElement(0x0028, 0x0100, "US", us(16))...)
	ds = append(ds, dicomElement(0x0028, 0x0101, "US", us(16))...)
	ds = append(ds, dicomElement(0x0028, 0x0102, "US", us(15))...)
	ds = append(ds, dicomElement(0x0028, 0x0103, "US", us(representation))...)
	if img.Intercept != "" {
		ds = append(ds, dicomElement(0x0028, 0x1052, "DS", []byte(img.Intercept))...)
	}
	if img.Slope != "" {
		ds = append(ds, dicomElement(0x0028, 0x1053, "DS", []byte(img.Slope))...)
	}
	var px []byte
	for _, p := range img.Pixels {
		px = binary.LittleEndian.AppendUint16(px, p)
	}
	ds = append(ds, dicomElement(0x7FE0, 0x0010, "OW", px)...)

	file := make([]byte, 128)
	file = append(file, "DICM"...)
	file = append(file, dicomElement(0x0002, 0x0000, "UL", binary.LittleEndian.AppendUint32(nil, uint32(len(meta))))...)
	file = append(file, meta...)
	file = append(file, ds...)

	path := filepath.Join(dir, "slice.dcm")
	require.NoError(t, os.WriteFile(path, file, 0o644))
	return path
}

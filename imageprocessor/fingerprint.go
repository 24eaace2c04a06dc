package imageprocessor

import (
	"encoding/binary"
	"encoding/hex"

	"phototagger/types"
)

// Sampling grid. Each sample is four consecutive pixels of one row.
const (
	SampleRows      = 16
	SampleColumns   = 8
	PixelsPerSample = 4
	SampleBytes     = PixelsPerSample * BytesPerPixel

	fingerprintHeader = 8

	// FingerprintSize is the length of every fingerprint in bytes
	FingerprintSize = fingerprintHeader + SampleRows*SampleColumns*SampleBytes
)

// Fingerprint identifies a photo by its dimensions and a fixed grid of raw
// pixel samples. Two fingerprints are equal only when the dimensions and all
// sampled bytes are identical.
type Fingerprint [FingerprintSize]byte

// Width returns the image width recorded in the fingerprint
func (f Fingerprint) Width() int {
	return int(binary.LittleEndian.Uint32(f[0:4]))
}

// Height returns the image height recorded in the fingerprint
func (f Fingerprint) Height() int {
	return int(binary.LittleEndian.Uint32(f[4:8]))
}

// String returns a short hex prefix for log output
func (f Fingerprint) String() string {
	return hex.EncodeToString(f[:24])
}

// ComputeFingerprint samples the raster on a 16x8 grid. Column offsets are
// multiples of four pixels so the last sample ends at or before the right
// edge; row spacing puts the last sampled row at or near the bottom edge.
// Images narrower than four pixels cannot be sampled.
func ComputeFingerprint(r *Raster) (Fingerprint, error) {
	var fp Fingerprint

	if r == nil {
		return fp, types.Errorf(types.CategoryValidation, "fingerprint", "", "no image")
	}
	if r.Width < PixelsPerSample {
		return fp, types.Errorf(types.CategoryValidation, "fingerprint", "",
			"image width %d is below the %d pixel minimum", r.Width, PixelsPerSample)
	}
	if r.Height < 1 {
		return fp, types.Errorf(types.CategoryValidation, "fingerprint", "", "image has no rows")
	}
	if len(r.Pix) < r.Width*r.Height*BytesPerPixel {
		return fp, types.Errorf(types.CategoryValidation, "fingerprint", "",
			"pixel buffer holds %d bytes, want %d", len(r.Pix), r.Width*r.Height*BytesPerPixel)
	}

	colStep := ((r.Width/PixelsPerSample - 1) / (SampleColumns - 1)) * PixelsPerSample
	rowStep := (r.Height - 1) / (SampleRows - 1)

	binary.LittleEndian.PutUint32(fp[0:4], uint32(r.Width))
	binary.LittleEndian.PutUint32(fp[4:8], uint32(r.Height))

	out := fingerprintHeader
	for row := 0; row < SampleRows; row++ {
		y := row * rowStep
		for col := 0; col < SampleColumns; col++ {
			start := r.Offset(col*colStep, y)
			out += copy(fp[out:out+SampleBytes], r.Pix[start:start+SampleBytes])
		}
	}

	return fp, nil
}

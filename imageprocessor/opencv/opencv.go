// Package opencv decodes images with OpenCV through gocv. It produces the
// same packed RGB rasters as the Go decoders, so fingerprints from either
// loader are only comparable when a whole run uses the same one.
package opencv

import (
	"fmt"
	"os"
	"runtime/debug"

	"phototagger/imageprocessor"
	"phototagger/logging"
	"phototagger/types"

	"gocv.io/x/gocv"
)

// Loader implements imageprocessor.ImageLoader on top of OpenCV
type Loader struct {
	imageprocessor.BaseImageLoader
}

// NewLoader creates an OpenCV loader for the formats OpenCV decodes natively
func NewLoader() *Loader {
	return &Loader{
		BaseImageLoader: imageprocessor.BaseImageLoader{
			SupportedFormats: []imageprocessor.FormatType{
				imageprocessor.FormatJPEG,
				imageprocessor.FormatPNG,
				imageprocessor.FormatTIFF,
				imageprocessor.FormatBMP,
				imageprocessor.FormatWEBP,
			},
		},
	}
}

// LoadImage reads the file and decodes it with OpenCV
func (l *Loader) LoadImage(path string) (*imageprocessor.Raster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, types.NewError(types.CategoryIO, "read image", path, err)
	}
	r, err := DecodeRaster(data)
	if err != nil {
		return nil, types.NewError(types.CategoryDecode, "decode", path, err)
	}
	return r, nil
}

// DecodeRaster decodes compressed bytes into a packed RGB raster. EXIF
// orientation is ignored so the raster matches the stored pixel order.
func DecodeRaster(data []byte) (r *imageprocessor.Raster, err error) {
	// Use defer to recover from any panics inside the C bindings
	defer func() {
		if rec := recover(); rec != nil {
			logging.LogError("Panic during OpenCV decode: %v\nStack trace: %s", rec, string(debug.Stack()))
			r = nil
			err = fmt.Errorf("panic during image decoding: %v", rec)
		}
	}()

	img, err := gocv.IMDecode(data, gocv.IMReadColor|gocv.IMReadIgnoreOrientation)
	if err != nil {
		return nil, err
	}
	defer img.Close()

	if img.Empty() {
		return nil, fmt.Errorf("image is empty after decoding")
	}

	rgb := gocv.NewMat()
	defer rgb.Close()
	gocv.CvtColor(img, &rgb, gocv.ColorBGRToRGB)

	width, height := rgb.Cols(), rgb.Rows()
	pix := rgb.ToBytes()
	if len(pix) != width*height*imageprocessor.BytesPerPixel {
		return nil, fmt.Errorf("unexpected pixel buffer size %d for %dx%d", len(pix), width, height)
	}

	return &imageprocessor.Raster{Width: width, Height: height, Pix: pix}, nil
}

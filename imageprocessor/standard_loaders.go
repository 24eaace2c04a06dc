package imageprocessor

import (
	"bytes"
	"image"
	"os"

	// Registered decoders for image.Decode
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"phototagger/types"
)

// StandardImageLoader decodes every format the Go image decoders understand
type StandardImageLoader struct {
	BaseImageLoader
}

// NewStandardImageLoader creates a new loader for standard image formats
func NewStandardImageLoader() *StandardImageLoader {
	return &StandardImageLoader{
		BaseImageLoader: BaseImageLoader{
			SupportedFormats: []FormatType{
				FormatJPEG,
				FormatPNG,
				FormatGIF,
				FormatTIFF,
				FormatBMP,
				FormatWEBP,
			},
		},
	}
}

// LoadImage reads and decodes the file
func (l *StandardImageLoader) LoadImage(path string) (*Raster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, types.NewError(types.CategoryIO, "read image", path, err)
	}
	r, err := DecodeRaster(data)
	if err != nil {
		return nil, newImageLoadError(path, err)
	}
	return r, nil
}

// DecodeRaster decodes compressed image bytes into a raster
func DecodeRaster(data []byte) (*Raster, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return RasterFromImage(img), nil
}

// DecodeDimensions reads only the image header and returns width and height
func DecodeDimensions(path string) (int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, types.NewError(types.CategoryIO, "open image", path, err)
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, newImageLoadError(path, err)
	}
	return cfg.Width, cfg.Height, nil
}

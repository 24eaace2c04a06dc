package imageprocessor

import (
	"phototagger/types"
)

// ImageLoader interface defines methods for image loading
type ImageLoader interface {
	// CanLoad reports whether this loader decodes the file's format
	CanLoad(path string) bool

	// LoadImage decodes the file into a packed RGB raster
	LoadImage(path string) (*Raster, error)
}

// BaseImageLoader provides common functionality for all image loaders
type BaseImageLoader struct {
	// Formats this loader can handle
	SupportedFormats []FormatType
}

// CanLoad checks if this loader supports the file's format
func (l *BaseImageLoader) CanLoad(path string) bool {
	format := GetFileFormat(path)
	for _, supported := range l.SupportedFormats {
		if format == supported {
			return true
		}
	}
	return false
}

// newImageLoadError creates a standardized error for image loading failures
func newImageLoadError(path string, err error) error {
	return types.NewError(types.CategoryDecode, "decode", path, err)
}

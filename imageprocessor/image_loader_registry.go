package imageprocessor

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"phototagger/logging"
	"phototagger/types"
)

// ImageLoaderRegistry maintains a registry of image loaders
type ImageLoaderRegistry struct {
	loaders       map[string]ImageLoader
	defaultLoader ImageLoader
	mutex         sync.RWMutex
}

// NewImageLoaderRegistry creates a new image loader registry
func NewImageLoaderRegistry() *ImageLoaderRegistry {
	registry := &ImageLoaderRegistry{
		loaders: make(map[string]ImageLoader),
	}

	// Register standard image loaders for common formats
	registry.registerStandardLoaders()

	return registry
}

// registerStandardLoaders registers the Go decoders for every known extension
func (r *ImageLoaderRegistry) registerStandardLoaders() {
	standardLoader := NewStandardImageLoader()
	for ext := range formatExtensions {
		r.RegisterLoader(ext, standardLoader)
	}
	r.defaultLoader = standardLoader
}

// RegisterLoader registers a new loader for a specific file extension
func (r *ImageLoaderRegistry) RegisterLoader(ext string, loader ImageLoader) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	ext = strings.ToLower(ext)
	r.loaders[ext] = loader
}

// UseForAll registers loader for every known extension. Formats it cannot
// decode keep falling back to the default loader.
func (r *ImageLoaderRegistry) UseForAll(loader ImageLoader) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for ext := range r.loaders {
		r.loaders[ext] = loader
	}
	logging.DebugLog("Image loader %T registered for all formats", loader)
}

// GetLoader returns the loader registered for the path's extension when it
// can decode that format, and the default loader otherwise
func (r *ImageLoaderRegistry) GetLoader(path string) ImageLoader {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	ext := strings.ToLower(filepath.Ext(path))
	if loader, ok := r.loaders[ext]; ok && loader.CanLoad(path) {
		return loader
	}

	return r.defaultLoader
}

// LoadImage loads an image using the appropriate registered loader
func (r *ImageLoaderRegistry) LoadImage(path string) (*Raster, error) {
	loader := r.GetLoader(path)
	if loader == nil {
		return nil, newImageLoadError(path, fmt.Errorf("no suitable loader found"))
	}

	return loader.LoadImage(path)
}

// FingerprintFile decodes path and computes its fingerprint
func (r *ImageLoaderRegistry) FingerprintFile(path string) (Fingerprint, error) {
	img, err := r.LoadImage(path)
	if err != nil {
		return Fingerprint{}, err
	}
	fp, err := ComputeFingerprint(img)
	if err != nil {
		if ce, ok := err.(*types.CategorizedError); ok && ce.Path == "" {
			ce.Path = path
		}
		return Fingerprint{}, err
	}
	return fp, nil
}

package main

import (
	"phototagger/config"
	"phototagger/imageprocessor"
	"phototagger/imageprocessor/opencv"
	"phototagger/metadata"
	"phototagger/types"
)

// newMetadataStore opens the metadata backend named by backend
func newMetadataStore(cfg *config.Config, backend string) (metadata.Store, error) {
	switch backend {
	case config.BackendExif:
		return metadata.NewExifStore(), nil
	default:
		store, err := metadata.NewExifToolStore(cfg.ExifToolPath)
		if err != nil {
			return nil, types.NewError(types.CategoryArgument, "start exiftool", cfg.ExifToolPath, err)
		}
		return store, nil
	}
}

// newDecoder builds the image decoder registry selected by the config
func newDecoder(cfg *config.Config) *imageprocessor.ImageLoaderRegistry {
	registry := imageprocessor.NewImageLoaderRegistry()
	if cfg.Decoder == config.DecoderOpenCV {
		registry.UseForAll(opencv.NewLoader())
	}
	return registry
}

package config

import (
	"errors"
	"fmt"

	"phototagger/metadata"
)

// Validate ensures the configuration is usable
func (c *Config) Validate() error {
	switch c.Decoder {
	case DecoderGo, DecoderOpenCV:
	default:
		return fmt.Errorf("decoder must be %q or %q, got %q", DecoderGo, DecoderOpenCV, c.Decoder)
	}

	switch c.MetadataBackend {
	case BackendExifTool, BackendExif:
	default:
		return fmt.Errorf("metadata_backend must be %q or %q, got %q", BackendExifTool, BackendExif, c.MetadataBackend)
	}

	if _, err := metadata.ParseUTCOffset(c.CaptureUTCOffset); err != nil {
		return fmt.Errorf("capture_utc_offset: %w", err)
	}

	if c.Workers < 1 {
		return errors.New("workers must be at least 1")
	}
	if c.QueryTimeoutSeconds < 0 {
		return errors.New("query_timeout_seconds must not be negative")
	}
	if c.DatabasePath == "" {
		return errors.New("database_path must be set")
	}
	return nil
}

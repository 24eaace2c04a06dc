// Package config loads phototagger settings from a TOML file, the
// environment and defaults.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"phototagger/metadata"
	"phototagger/utils"

	"github.com/pelletier/go-toml/v2"
)

// LibraryEnv overrides library_dir when set
const LibraryEnv = "PHOTOTAGGER_LIBRARY"

// Decoder and metadata backend names
const (
	DecoderGo       = "go"
	DecoderOpenCV   = "opencv"
	BackendExifTool = "exiftool"
	BackendExif     = "exif"
)

// Config holds every setting a run can use
type Config struct {
	// LibraryDir is the photo library that matches are looked up in
	LibraryDir   string `toml:"library_dir"`
	DatabasePath string `toml:"database_path"`
	LogFile      string `toml:"log_file"`
	Debug        bool   `toml:"debug"`
	// Decoder selects the pixel decoder: "go" or "opencv"
	Decoder string `toml:"decoder"`
	// MetadataBackend selects how the index command reads metadata: "exiftool" or "exif"
	MetadataBackend string `toml:"metadata_backend"`
	ExifToolPath    string `toml:"exiftool_path"`
	// CaptureUTCOffset is the zone capture times are taken to be in, e.g. "+02:00"
	CaptureUTCOffset    string `toml:"capture_utc_offset"`
	Workers             int    `toml:"workers"`
	QueryTimeoutSeconds int    `toml:"query_timeout_seconds"`
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		DatabasePath:     utils.GetDefaultDatabasePath(),
		Decoder:          DecoderGo,
		MetadataBackend:  BackendExifTool,
		CaptureUTCOffset: "+00:00",
		Workers:          1,
	}
}

// DefaultConfigPath returns the per-user configuration file location
func DefaultConfigPath() (string, error) {
	return utils.ExpandHome("~/.config/phototagger/config.toml")
}

// Load locates, parses, and validates a configuration file. It returns the
// config, the path it resolved to, and whether that file exists.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config %s: %w", resolvedPath, err)
		}
	}

	if env := strings.TrimSpace(os.Getenv(LibraryEnv)); env != "" {
		cfg.LibraryDir = env
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := utils.ExpandHome(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("phototagger.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// normalize expands and cleans path fields
func (c *Config) normalize() error {
	for _, p := range []*string{&c.LibraryDir, &c.DatabasePath, &c.LogFile, &c.ExifToolPath} {
		v := strings.TrimSpace(*p)
		if v == "" {
			*p = ""
			continue
		}
		expanded, err := utils.ExpandHome(v)
		if err != nil {
			return err
		}
		*p = expanded
	}
	c.Decoder = strings.ToLower(strings.TrimSpace(c.Decoder))
	c.MetadataBackend = strings.ToLower(strings.TrimSpace(c.MetadataBackend))
	return nil
}

// CaptureOffset returns the parsed capture_utc_offset
func (c *Config) CaptureOffset() time.Duration {
	d, err := metadata.ParseUTCOffset(c.CaptureUTCOffset)
	if err != nil {
		return 0
	}
	return d
}

// QueryTimeout returns the per-query bound, zero for none
func (c *Config) QueryTimeout() time.Duration {
	return time.Duration(c.QueryTimeoutSeconds) * time.Second
}

// Marshal renders the configuration as TOML
func (c *Config) Marshal() ([]byte, error) {
	return toml.Marshal(c)
}

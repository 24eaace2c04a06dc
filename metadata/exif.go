package metadata

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"phototagger/imageprocessor"
	"phototagger/logging"
	"phototagger/types"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"
)

// ErrReadOnly is returned by stores that cannot write metadata
var ErrReadOnly = errors.New("metadata store is read-only")

// ExifStore reads EXIF fields in-process without exiftool. It does not see
// IPTC or XMP keywords and cannot write.
type ExifStore struct{}

// NewExifStore creates a read-only EXIF store
func NewExifStore() *ExifStore {
	return &ExifStore{}
}

// Open parses the EXIF block of path. Files without EXIF still yield the
// file name, content type, and pixel dimensions.
func (s *ExifStore) Open(path string) (Properties, error) {
	fields := map[string]interface{}{
		KeyFileName: filepath.Base(path),
	}
	if ct := imageprocessor.ContentType(path); ct != "" {
		fields[KeyMIMEType] = ct
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, types.NewError(types.CategoryIO, "read metadata", path, err)
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		logging.DebugLog("EXIF decode for %s: %v", path, err)
	}
	if x != nil && (err == nil || !exif.IsCriticalError(err)) {
		_ = x.Walk(fieldCollector(fields))
	}

	if w, h, err := imageprocessor.DecodeDimensions(path); err == nil {
		fields[KeyImageWidth] = w
		fields[KeyImageHeight] = h
	}

	return &exifProperties{path: path, fields: fields}, nil
}

// Close is a no-op
func (s *ExifStore) Close() error {
	return nil
}

type fieldCollector map[string]interface{}

func (c fieldCollector) Walk(name exif.FieldName, tag *tiff.Tag) error {
	if s, err := tag.StringVal(); err == nil {
		c[string(name)] = strings.TrimRight(s, "\x00 ")
		return nil
	}
	c[string(name)] = tag.String()
	return nil
}

type exifProperties struct {
	path   string
	fields map[string]interface{}
}

func (p *exifProperties) Path() string { return p.path }

func (p *exifProperties) ReadValue(key string) (Value, bool) {
	raw, ok := p.fields[key]
	if !ok || raw == nil {
		return Value{}, false
	}
	return NewValue(raw), true
}

func (p *exifProperties) ReadAll() []Property {
	props := make([]Property, 0, len(p.fields))
	for k, v := range p.fields {
		props = append(props, Property{Key: k, Value: NewValue(v)})
	}
	SortProperties(props)
	return props
}

func (p *exifProperties) WriteValues(updates []Property) error {
	return types.NewError(types.CategoryIO, "write metadata", p.path, ErrReadOnly)
}

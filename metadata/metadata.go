// Package metadata reads and writes per-file photo properties.
//
// Store opens a file's property set; Properties gives typed, optional access
// to single values (ReadValue), the full listing (ReadAll), and a committing
// write (WriteValues). Two adapters are provided: ExifToolStore, backed by a
// long-running exiftool process, which can write keywords; and ExifStore,
// backed by a pure Go EXIF parser, which is read-only.
package metadata

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"phototagger/types"
)

// Property keys, named as exiftool reports them
const (
	KeyFileName    = "FileName"
	KeyImageWidth  = "ImageWidth"
	KeyImageHeight = "ImageHeight"
	KeyCameraModel = "Model"
	KeyCaptureTime = "DateTimeOriginal"
	KeyKeywords    = "Keywords"
	KeySubject     = "Subject"
	KeyMIMEType    = "MIMEType"
)

// Store opens property sets for files
type Store interface {
	Open(path string) (Properties, error)
	Close() error
}

// Properties is the property set of one file
type Properties interface {
	// Path returns the file the properties belong to
	Path() string
	// ReadValue returns the value for key; ok is false when the key is absent
	ReadValue(key string) (Value, bool)
	// ReadAll returns every property sorted by key
	ReadAll() []Property
	// WriteValues writes and commits the updates to the file
	WriteValues(updates []Property) error
}

// Property is one key/value pair
type Property struct {
	Key   string
	Value Value
}

// Value is a loosely typed property value with explicit conversions
type Value struct {
	raw interface{}
}

// NewValue wraps a raw value
func NewValue(raw interface{}) Value {
	return Value{raw: raw}
}

// Raw returns the wrapped value
func (v Value) Raw() interface{} {
	return v.raw
}

// IsNull reports whether no value is held
func (v Value) IsNull() bool {
	return v.raw == nil
}

// Text returns the value as a single string; lists are not text
func (v Value) Text() (string, bool) {
	switch t := v.raw.(type) {
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case bool:
		return strconv.FormatBool(t), true
	case fmt.Stringer:
		return t.String(), true
	}
	return "", false
}

// Int returns the value as an integer when it holds a number
func (v Value) Int() (int64, bool) {
	switch t := v.raw.(type) {
	case float64:
		return int64(t), true
	case int:
		return int64(t), true
	case int64:
		return t, true
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		return n, err == nil
	}
	return 0, false
}

// Strings returns the value as a list. A single string becomes a
// one-element list; null becomes an empty list.
func (v Value) Strings() []string {
	switch t := v.raw.(type) {
	case nil:
		return nil
	case []string:
		return append([]string(nil), t...)
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := NewValue(item).Text(); ok {
				out = append(out, s)
			}
		}
		return out
	}
	if s, ok := v.Text(); ok && s != "" {
		return []string{s}
	}
	return nil
}

// String formats the value for listings: lists are joined with ';' and a
// missing value prints as "(Null)"
func (v Value) String() string {
	switch v.raw.(type) {
	case nil:
		return "(Null)"
	case []string, []interface{}:
		return strings.Join(v.Strings(), ";")
	}
	if s, ok := v.Text(); ok {
		return s
	}
	return fmt.Sprint(v.raw)
}

// SortProperties orders properties by key, ignoring case
func SortProperties(props []Property) {
	sort.SliceStable(props, func(i, j int) bool {
		a, b := strings.ToLower(props[i].Key), strings.ToLower(props[j].Key)
		if a == b {
			return props[i].Key < props[j].Key
		}
		return a < b
	})
}

// ReadPhotoMetadata extracts the lookup fields from a property set
func ReadPhotoMetadata(props Properties) types.PhotoMetadata {
	var m types.PhotoMetadata

	if v, ok := props.ReadValue(KeyFileName); ok {
		m.FileName, _ = v.Text()
	}
	if m.FileName == "" && props.Path() != "" {
		m.FileName = filepath.Base(props.Path())
	}
	m.Width = readInt(props, KeyImageWidth, "ExifImageWidth", "PixelXDimension")
	m.Height = readInt(props, KeyImageHeight, "ExifImageHeight", "PixelYDimension")
	if v, ok := props.ReadValue(KeyCameraModel); ok {
		if s, ok := v.Text(); ok {
			m.CameraModel = strings.TrimSpace(s)
		}
	}
	if v, ok := props.ReadValue(KeyCaptureTime); ok {
		if s, ok := v.Text(); ok {
			if t, err := ParseCaptureTime(s); err == nil {
				m.CaptureTime = t
			}
		}
	}

	return m
}

func readInt(props Properties, keys ...string) int {
	for _, key := range keys {
		if v, ok := props.ReadValue(key); ok {
			if n, ok := v.Int(); ok && n > 0 {
				return int(n)
			}
		}
	}
	return 0
}

// ReadTags returns the keyword list of a file. A missing field is an empty set.
func ReadTags(props Properties) types.TagSet {
	for _, key := range []string{KeyKeywords, KeySubject} {
		if v, ok := props.ReadValue(key); ok {
			if tags := v.Strings(); len(tags) > 0 {
				return types.TagSet(tags)
			}
		}
	}
	return types.TagSet{}
}

// WriteTags replaces the keyword list of a file and commits the change
func WriteTags(props Properties, tags types.TagSet) error {
	list := []string(tags)
	return props.WriteValues([]Property{
		{Key: KeyKeywords, Value: NewValue(list)},
		{Key: KeySubject, Value: NewValue(list)},
	})
}

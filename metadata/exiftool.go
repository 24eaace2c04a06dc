package metadata

import (
	"fmt"
	"sync"

	"phototagger/logging"
	"phototagger/types"

	"github.com/barasher/go-exiftool"
)

// ExifToolStore reads and writes properties through one stay-open exiftool
// process shared by every file of a run
type ExifToolStore struct {
	et *exiftool.Exiftool
	mu sync.Mutex
}

// NewExifToolStore starts exiftool. binaryPath may be empty to use the one on PATH.
func NewExifToolStore(binaryPath string) (*ExifToolStore, error) {
	var opts []func(*exiftool.Exiftool) error
	if binaryPath != "" {
		opts = append(opts, exiftool.SetExiftoolBinaryPath(binaryPath))
	}
	et, err := exiftool.NewExiftool(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize exiftool: %w", err)
	}
	return &ExifToolStore{et: et}, nil
}

// Open extracts the metadata of path
func (s *ExifToolStore) Open(path string) (Properties, error) {
	s.mu.Lock()
	fileInfos := s.et.ExtractMetadata(path)
	s.mu.Unlock()

	if len(fileInfos) == 0 {
		return nil, types.Errorf(types.CategoryIO, "read metadata", path, "no metadata extracted")
	}
	fileInfo := fileInfos[0]
	if fileInfo.Err != nil {
		return nil, types.NewError(types.CategoryIO, "read metadata", path, fileInfo.Err)
	}

	return &exifToolProperties{store: s, path: path, fields: fileInfo.Fields}, nil
}

// Close stops the exiftool process
func (s *ExifToolStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.et.Close()
}

func (s *ExifToolStore) write(path string, updates []Property) error {
	fm := exiftool.EmptyFileMetadata()
	fm.File = path
	for _, u := range updates {
		switch raw := u.Value.Raw().(type) {
		case []string:
			fm.SetStrings(u.Key, raw)
		case string:
			fm.SetString(u.Key, raw)
		case int:
			fm.SetInt(u.Key, int64(raw))
		case int64:
			fm.SetInt(u.Key, raw)
		case nil:
			fm.Clear(u.Key)
		default:
			return types.Errorf(types.CategoryValidation, "write metadata", path,
				"unsupported value type %T for %s", raw, u.Key)
		}
	}

	batch := []exiftool.FileMetadata{fm}
	s.mu.Lock()
	s.et.WriteMetadata(batch)
	s.mu.Unlock()

	if batch[0].Err != nil {
		return types.NewError(types.CategoryIO, "write metadata", path, batch[0].Err)
	}
	logging.DebugLog("Committed %d metadata field(s) to %s", len(updates), path)
	return nil
}

type exifToolProperties struct {
	store  *ExifToolStore
	path   string
	fields map[string]interface{}
}

func (p *exifToolProperties) Path() string { return p.path }

func (p *exifToolProperties) ReadValue(key string) (Value, bool) {
	raw, ok := p.fields[key]
	if !ok || raw == nil {
		return Value{}, false
	}
	return NewValue(raw), true
}

func (p *exifToolProperties) ReadAll() []Property {
	props := make([]Property, 0, len(p.fields))
	for k, v := range p.fields {
		if k == "SourceFile" {
			continue
		}
		props = append(props, Property{Key: k, Value: NewValue(v)})
	}
	SortProperties(props)
	return props
}

func (p *exifToolProperties) WriteValues(updates []Property) error {
	if err := p.store.write(p.path, updates); err != nil {
		return err
	}
	for _, u := range updates {
		if u.Value.IsNull() {
			delete(p.fields, u.Key)
		} else {
			p.fields[u.Key] = u.Value.Raw()
		}
	}
	return nil
}

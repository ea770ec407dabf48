package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"tuya-switch/internal/domain"
)

const DefaultFile = "tuya-devices.json"

// Registry is the ordered list of devices read from a registry file.
type Registry struct {
	path    string
	records []domain.Record
}

func New(records []domain.Record) *Registry {
	return &Registry{records: records}
}

// ResolvePath joins a relative file name with baseDir. Absolute names and
// an empty baseDir leave file untouched; an empty file selects DefaultFile.
func ResolvePath(file, baseDir string) string {
	if file == "" {
		file = DefaultFile
	}
	if filepath.IsAbs(file) || baseDir == "" {
		return file
	}
	return filepath.Join(baseDir, file)
}

// Load reads and validates the registry at path.
func Load(path string) (*Registry, error) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		if err == nil || errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w (%s)", domain.ErrRegistryNotFound, path)
		}
		return nil, fmt.Errorf("%w (%s): %w", domain.ErrRegistryNotFound, path, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w (%s): %w", domain.ErrRegistryNotFound, path, err)
	}

	records, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w (%s): %w", domain.ErrRegistryInvalid, path, err)
	}

	return &Registry{path: path, records: records}, nil
}

// Parse decodes a registry document. Numbers keep their literal text so a
// version written as 3.3 stays "3.3".
func Parse(data []byte) ([]domain.Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("decoding: trailing data after registry array")
	}

	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("validating: %w", err)
	}

	items, _ := doc.([]any)
	records := make([]domain.Record, 0, len(items))
	for _, item := range items {
		obj, _ := item.(map[string]any)
		records = append(records, toRecord(obj))
	}

	return records, nil
}

// toRecord keeps scalar values only; nested objects and arrays cannot be
// selected and are dropped.
func toRecord(obj map[string]any) domain.Record {
	fields := make(map[string]string, len(obj))
	for k, v := range obj {
		switch val := v.(type) {
		case string:
			fields[k] = val
		case json.Number:
			fields[k] = val.String()
		case bool:
			fields[k] = strconv.FormatBool(val)
		}
	}

	return domain.Record{
		ID:      fields["id"],
		IP:      fields["ip"],
		Key:     fields["key"],
		Type:    domain.DeviceType(fields["type"]),
		Version: fields["ver"],
		Fields:  fields,
	}
}

func (r *Registry) Path() string {
	return r.path
}

func (r *Registry) Records() []domain.Record {
	result := make([]domain.Record, len(r.records))
	copy(result, r.records)
	return result
}

// Find returns the first record with a field value equal to selector,
// ignoring case.
func (r *Registry) Find(selector string) (domain.Record, bool) {
	for _, rec := range r.records {
		if rec.Matches(selector) {
			return rec, true
		}
	}
	return domain.Record{}, false
}

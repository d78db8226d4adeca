package assignment

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned by Find when no assignment has the given name.
var ErrNotFound = errors.New("assignment not found")

// Format is an assignment file encoding.
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
	FormatTOML
)

// FormatOf returns the format implied by a file extension, and false for
// files that are not assignments.
func FormatOf(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, true
	case ".yaml", ".yml":
		return FormatYAML, true
	case ".toml":
		return FormatTOML, true
	}
	return 0, false
}

// Parse decodes and validates one assignment.
func Parse(data []byte, format Format) (*Assignment, error) {
	var a Assignment
	switch format {
	case FormatJSON:
		if err := json.NewDecoder(bytes.NewReader(data)).Decode(&a); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &a); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
		}
	case FormatTOML:
		if _, err := toml.Decode(string(data), &a); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
		}
	default:
		return nil, fmt.Errorf("unknown assignment format %d", format)
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return &a, nil
}

// Load reads the assignment at path.
func Load(path string) (*Assignment, error) {
	format, ok := FormatOf(path)
	if !ok {
		return nil, fmt.Errorf("%s: not a .json, .yaml, .yml or .toml file", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	a, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	a.Path = path
	return a, nil
}

// LoadAll loads every assignment file under dir, sorted by name. Files that
// fail to load are skipped and reported together in the returned error,
// alongside the assignments that did load. A missing dir yields no
// assignments and no error.
func LoadAll(dir string) ([]*Assignment, error) {
	var (
		out  []*Assignment
		errs []error
		seen = make(map[string]string)
	)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir && errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return fs.SkipDir
			}
			return nil
		}
		if _, ok := FormatOf(path); !ok || !d.Type().IsRegular() {
			return nil
		}
		a, err := Load(path)
		if err != nil {
			errs = append(errs, err)
			return nil
		}
		if prev, ok := seen[a.Name]; ok {
			errs = append(errs, fmt.Errorf("%s: %w: duplicate name %q (also in %s)", path, ErrInvalid, a.Name, prev))
			return nil
		}
		seen[a.Name] = path
		out = append(out, a)
		return nil
	})
	if err != nil {
		errs = append(errs, err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, errors.Join(errs...)
}

// Find loads the assignments under dir and returns the one named name.
func Find(dir, name string) (*Assignment, error) {
	all, err := LoadAll(dir)
	for _, a := range all {
		if a.Name == name {
			return a, nil
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrNotFound, name, err)
	}
	return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
}

// Package seed populates a computer from a manifest of files and
// directories, as used to install a ROM or a starter program.
//
// Manifests are written in YAML, or in JSON with comments and trailing
// commas.
package seed

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/SquidDev-CC/bedrock/pkg/computer/filesystem"
)

var (
	ErrInvalidEntry = errors.New("invalid entry")
	ErrConflict     = errors.New("conflicting entries")
	ErrCycle        = errors.New("dependency cycle")
)

// Manifest describes what to write into a computer.
type Manifest struct {
	// Label, if set, replaces the computer's label.
	Label *string `yaml:"label,omitempty" json:"label,omitempty"`

	Entries []Entry `yaml:"entries" json:"entries"`
}

// Entry is one file or directory. Parent directories need not be listed;
// they are created as needed.
type Entry struct {
	Path    string  `yaml:"path" json:"path"`
	Dir     bool    `yaml:"dir,omitempty" json:"dir,omitempty"`
	Content *string `yaml:"content,omitempty" json:"content,omitempty"`

	// Depends lists other entries that must be written before this one.
	Depends []string `yaml:"depends,omitempty" json:"depends,omitempty"`
}

// Parse decodes a YAML manifest. Unknown fields are rejected.
func Parse(data []byte) (*Manifest, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	var manifest Manifest
	if err := decoder.Decode(&manifest); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	if err := manifest.Validate(); err != nil {
		return nil, err
	}
	return &manifest, nil
}

// ParseJSONC decodes a manifest written as JSON with comments. Unknown
// fields are rejected.
func ParseJSONC(data []byte) (*Manifest, error) {
	decoder := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
	decoder.DisallowUnknownFields()

	var manifest Manifest
	if err := decoder.Decode(&manifest); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	if err := manifest.Validate(); err != nil {
		return nil, err
	}
	return &manifest, nil
}

// ReadFile reads a manifest from disk, choosing the format by extension:
// .json and .jsonc are JSONC, anything else is YAML.
func ReadFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var manifest *Manifest
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		manifest, err = ParseJSONC(data)
	default:
		manifest, err = Parse(data)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return manifest, nil
}

// Validate checks every path and dependency, and that no path is used as
// both a file and a directory.
func (m *Manifest) Validate() error {
	kinds := make(map[string]bool, len(m.Entries))
	for i, entry := range m.Entries {
		if !validPath(entry.Path) {
			return fmt.Errorf("entry %d: path %q: %w", i, entry.Path, ErrInvalidEntry)
		}
		if entry.Dir && entry.Content != nil {
			return fmt.Errorf("entry %d: directory %q has content: %w", i, entry.Path, ErrInvalidEntry)
		}
		if dir, seen := kinds[entry.Path]; seen && dir != entry.Dir {
			return fmt.Errorf("%q is both a file and a directory: %w", entry.Path, ErrConflict)
		}
		kinds[entry.Path] = entry.Dir
	}

	for _, entry := range m.Entries {
		for parent := parentOf(entry.Path); parent != ""; parent = parentOf(parent) {
			if dir, ok := kinds[parent]; ok && !dir {
				return fmt.Errorf("%q is a file but contains %q: %w", parent, entry.Path, ErrConflict)
			}
		}
		for _, dep := range entry.Depends {
			if _, ok := kinds[dep]; !ok {
				return fmt.Errorf("%q depends on unknown entry %q: %w", entry.Path, dep, ErrInvalidEntry)
			}
		}
	}
	return nil
}

func validPath(path string) bool {
	if path == "" {
		return false
	}
	for _, part := range strings.Split(path, "/") {
		if part == "" || part == "." || part == ".." {
			return false
		}
	}
	return true
}

func parentOf(path string) string {
	parent, _ := filesystem.Split(path)
	return parent
}

// Package configloader reads YAML configuration files.
package configloader

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// IsYAML reports whether path has a .yaml or .yml extension.
func IsYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// Load decodes the YAML file at path into target. Unknown keys are errors,
// so a typo in a key does not silently fall back to a default.
func Load(path string, target any) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "read file %s", path)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(target); err != nil {
		return errors.Wrapf(err, "unmarshal YAML %s", path)
	}
	return nil
}

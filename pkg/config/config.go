// Package config loads YAML configuration files with ${VAR} expansion.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Validator is implemented by configs that check themselves after decoding.
type Validator interface {
	Validate() error
}

// Decode expands environment variables in r, decodes the YAML into target
// and validates it. Fields missing from the document keep the values target
// already holds, so callers pass a pre-filled default. Unknown keys are
// rejected.
func Decode[T any](r io.Reader, target *T) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader([]byte(os.ExpandEnv(string(data)))))
	dec.KnownFields(true)
	if err := dec.Decode(target); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config: %w", err)
	}

	if validator, ok := any(target).(Validator); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("config validation failed: %w", err)
		}
	}
	return nil
}

// Load reads filename and decodes it with Decode.
func Load[T any](filename string, target *T) error {
	f, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", filename, err)
	}
	defer f.Close()

	if err := Decode(f, target); err != nil {
		return fmt.Errorf("%s: %w", filename, err)
	}
	return nil
}

// LoadOptional behaves like Load but keeps the defaults in target when
// filename does not exist. They are still validated.
func LoadOptional[T any](filename string, target *T) error {
	if _, err := os.Stat(filename); errors.Is(err, os.ErrNotExist) {
		return Decode(bytes.NewReader(nil), target)
	}
	return Load(filename, target)
}

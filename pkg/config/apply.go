package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Resource is the generic declarative envelope `fxcoordctl apply -f` reads:
// an {apiVersion,kind,metadata,spec} wrapper around a resource-specific spec.
type Resource struct {
	APIVersion string                 `yaml:"apiVersion"`
	Kind       string                 `yaml:"kind"`
	Metadata   ResourceMetadata       `yaml:"metadata"`
	Spec       map[string]interface{} `yaml:"spec"`
}

// ResourceMetadata is the common metadata block of a Resource.
type ResourceMetadata struct {
	Name   string            `yaml:"name"`
	Labels map[string]string `yaml:"labels,omitempty"`
}

// StandbyGroupSpec is the declarative form of a synchronous_standby_names
// value, decoded from a Resource of Kind "StandbyGroup".
type StandbyGroupSpec struct {
	SynchronousStandbyNames string `yaml:"synchronousStandbyNames"`
}

// ForeignServerSpec declares a participant foreign server, decoded from a
// Resource of Kind "ForeignServer".
type ForeignServerSpec struct {
	ServerID uint32 `yaml:"serverId"`
	UserID   uint32 `yaml:"userId"`
	Driver   string `yaml:"driver"`
}

// LoadResource reads and parses a YAML resource file.
func LoadResource(path string) (*Resource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read resource file: %w", err)
	}
	var r Resource
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("config: parse resource file: %w", err)
	}
	return &r, nil
}

// DecodeStandbyGroup re-decodes r.Spec as a StandbyGroupSpec.
func (r *Resource) DecodeStandbyGroup() (StandbyGroupSpec, error) {
	var spec StandbyGroupSpec
	if err := decodeSpec(r.Spec, &spec); err != nil {
		return StandbyGroupSpec{}, err
	}
	return spec, nil
}

// DecodeForeignServer re-decodes r.Spec as a ForeignServerSpec.
func (r *Resource) DecodeForeignServer() (ForeignServerSpec, error) {
	var spec ForeignServerSpec
	if err := decodeSpec(r.Spec, &spec); err != nil {
		return ForeignServerSpec{}, err
	}
	return spec, nil
}

// standbyGroupFileName is the data-dir-relative file `apply -f` writes a
// StandbyGroup resource's synchronous_standby_names value to, and `serve`
// reads it from on startup if the flag wasn't given. `apply` only ever
// parses and validates the group against a throwaway Coordinator it opens
// and shuts down immediately, so this file is the only thing that makes an
// applied StandbyGroup resource actually reach a later, separately started
// `serve` process.
const standbyGroupFileName = "synchronous_standby_names"

// SaveStandbyGroupFile persists names under dataDir.
func SaveStandbyGroupFile(dataDir, names string) error {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("config: create data dir: %w", err)
	}
	path := filepath.Join(dataDir, standbyGroupFileName)
	if err := os.WriteFile(path, []byte(names), 0o644); err != nil {
		return fmt.Errorf("config: write standby group file: %w", err)
	}
	return nil
}

// LoadStandbyGroupFile reads a standby group previously written by
// SaveStandbyGroupFile, returning "" with no error if none was ever
// applied.
func LoadStandbyGroupFile(dataDir string) (string, error) {
	path := filepath.Join(dataDir, standbyGroupFileName)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("config: read standby group file: %w", err)
	}
	return string(data), nil
}

// decodeSpec round-trips a map[string]interface{} through YAML into a
// concrete struct, avoiding a second file read.
func decodeSpec(spec map[string]interface{}, out interface{}) error {
	data, err := yaml.Marshal(spec)
	if err != nil {
		return fmt.Errorf("config: re-encode spec: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config: decode spec: %w", err)
	}
	return nil
}
